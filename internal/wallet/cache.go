package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// SessionCache remembers which connector was used last so a restart can
// reconnect silently. Get returns "" when nothing is cached.
type SessionCache interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, connector string) error
	Clear(ctx context.Context) error
}

// MemoryCache keeps the cached connector in process memory.
type MemoryCache struct {
	mu        sync.RWMutex
	connector string
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Get implements SessionCache.
func (c *MemoryCache) Get(context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connector, nil
}

// Set implements SessionCache.
func (c *MemoryCache) Set(_ context.Context, connector string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connector = connector
	return nil
}

// Clear implements SessionCache.
func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connector = ""
	return nil
}

type cachedSession struct {
	Connector string `json:"connector"`
	UpdatedAt int64  `json:"updated_at"`
}

// FileCache persists the cached connector as a small JSON document inside the
// runtime data directory.
type FileCache struct {
	mu   sync.Mutex
	path string
}

// NewFileCache creates the data directory if needed.
func NewFileCache(dataDir string) (*FileCache, error) {
	if strings.TrimSpace(dataDir) == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建会话缓存目录失败: %w", err)
	}
	return &FileCache{path: filepath.Join(dataDir, "wallet_session.json")}, nil
}

// Get implements SessionCache.
func (c *FileCache) Get(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	content, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("读取会话缓存失败: %w", err)
	}
	var record cachedSession
	if err := json.Unmarshal(content, &record); err != nil {
		return "", fmt.Errorf("解析会话缓存失败: %w", err)
	}
	return record.Connector, nil
}

// Set implements SessionCache.
func (c *FileCache) Set(_ context.Context, connector string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	encoded, err := json.Marshal(cachedSession{Connector: connector, UpdatedAt: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("序列化会话缓存失败: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o600); err != nil {
		return fmt.Errorf("写入会话缓存失败: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("写入会话缓存失败: %w", err)
	}
	return nil
}

// Clear implements SessionCache.
func (c *FileCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("清除会话缓存失败: %w", err)
	}
	return nil
}
