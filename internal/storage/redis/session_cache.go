package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cuffie-gateway/internal/wallet"
)

// Config 描述 Redis 会话缓存的连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	// Name 区分同一 Redis 中的多个网关实例。
	Name string
	// TTL 为 0 时缓存永不过期。
	TTL time.Duration
}

// keyPrefix 是所有会话缓存键的公共前缀。
const keyPrefix = "cuffie:session:"

// store 是 SessionCache 用到的 go-redis 命令子集。
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SessionCache 在 Redis 中记录上一次使用的钱包连接方式。
type SessionCache struct {
	client store
	closer func() error
	key    string
	ttl    time.Duration
}

// NewSessionCache 连接 Redis 并返回会话缓存。
func NewSessionCache(ctx context.Context, cfg Config) (*SessionCache, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	cache := newSessionCache(client, cfg.Name, cfg.TTL)
	cache.closer = client.Close
	return cache, nil
}

func newSessionCache(client store, name string, ttl time.Duration) *SessionCache {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "default"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &SessionCache{client: client, key: keyPrefix + name, ttl: ttl}
}

// Key 返回缓存使用的 Redis 键。
func (c *SessionCache) Key() string {
	return c.key
}

// Get 实现 wallet.SessionCache。键不存在时返回空字符串。
func (c *SessionCache) Get(ctx context.Context) (string, error) {
	value, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("读取 Redis 会话缓存失败: %w", err)
	}
	return value, nil
}

// Set 实现 wallet.SessionCache。
func (c *SessionCache) Set(ctx context.Context, connector string) error {
	if err := c.client.Set(ctx, c.key, connector, c.ttl).Err(); err != nil {
		return fmt.Errorf("写入 Redis 会话缓存失败: %w", err)
	}
	return nil
}

// Clear 实现 wallet.SessionCache。
func (c *SessionCache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("清除 Redis 会话缓存失败: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接。
func (c *SessionCache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

var _ wallet.SessionCache = (*SessionCache)(nil)
