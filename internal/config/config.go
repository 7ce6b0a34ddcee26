package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuffie-gateway/internal/auth"
	"cuffie-gateway/pkg/logger"
)

// 环境变量名称。
const (
	EnvConfigPath    = "CUFFIE_CONFIG"
	EnvRPCURL        = "CUFFIE_RPC_URL"
	EnvServerAddress = "CUFFIE_SERVER_ADDRESS"
)

// DefaultPath 是未设置 CUFFIE_CONFIG 时读取的配置文件。
var DefaultPath = filepath.Join("configs", "cuffie.json")

// Config 描述了网关守护进程在启动阶段需要加载的全部配置。
type Config struct {
	Server       ServerConfig       `json:"server"`
	Logging      logger.Config      `json:"logging"`
	Network      NetworkConfig      `json:"network"`
	Wallet       WalletConfig       `json:"wallet"`
	SessionCache SessionCacheConfig `json:"session_cache"`
	Ledger       LedgerConfig       `json:"ledger"`
	Notify       NotifyConfig       `json:"notify"`
	Runtime      RuntimeConfig      `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址、WebSocket 跨域来源与接口认证。Auth 为空时接口不做认证。
type ServerConfig struct {
	Address        string      `json:"address"`
	AllowedOrigins []string    `json:"allowed_origins"`
	Auth           auth.Config `json:"auth"`
}

// NetworkConfig 选择目标网络，并允许覆盖 RPC 地址与链 ID。
type NetworkConfig struct {
	Name         string `json:"name"`
	NetworksFile string `json:"networks_file"`
	RPCURL       string `json:"rpc_url"`
	ChainID      uint64 `json:"chain_id"`
}

// WalletConfig 描述可用的钱包连接方式。
type WalletConfig struct {
	// DefaultConnector 为空时，只有一个连接方式可用才会自动选择。
	DefaultConnector string            `json:"default_connector"`
	RPC              RPCWalletConfig   `json:"rpc"`
	Keyed            KeyedWalletConfig `json:"keyed"`
}

// RPCWalletConfig 对应由外部节点托管账户的钱包。
type RPCWalletConfig struct {
	URL            string `json:"url"`
	PollIntervalMS int    `json:"poll_interval_ms"`
}

// PollInterval 返回账户轮询间隔。
func (c RPCWalletConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// KeyedWalletConfig 对应本地私钥签名的钱包。
type KeyedWalletConfig struct {
	Enabled       bool   `json:"enabled"`
	RPCURL        string `json:"rpc_url"`
	PrivateKeyEnv string `json:"private_key_env"`
}

// SessionCacheConfig 控制钱包选择记录的存放位置。
type SessionCacheConfig struct {
	Driver string      `json:"driver"`
	Redis  RedisConfig `json:"redis"`
}

// RedisConfig 描述 Redis 会话缓存的连接信息。
type RedisConfig struct {
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	Name       string `json:"name"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// TTL 返回缓存过期时间，0 表示不过期。
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LedgerConfig 描述交易账本的存储后端。
type LedgerConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// NotifyConfig 控制会话事件的外发。
type NotifyConfig struct {
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述会话事件队列。URL 为空时不启用。
type RabbitMQConfig struct {
	URL     string `json:"url"`
	Queue   string `json:"queue"`
	Durable bool   `json:"durable"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Default 返回一份完全基于内存与本地文件的可运行配置。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(".")
	return cfg
}

// Path 返回 CUFFIE_CONFIG 指定的路径，未设置时返回 DefaultPath。
func Path() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultPath
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查驱动名称等枚举字段。
func (c *Config) Validate() error {
	switch c.SessionCache.Driver {
	case "memory", "file":
	case "redis":
		if strings.TrimSpace(c.SessionCache.Redis.Address) == "" {
			return errors.New("session_cache.redis.address 不能为空")
		}
	default:
		return fmt.Errorf("未知的会话缓存驱动: %s", c.SessionCache.Driver)
	}
	switch c.Ledger.Driver {
	case "memory":
	case "mysql":
		if strings.TrimSpace(c.Ledger.DSN) == "" {
			return errors.New("ledger.dsn 不能为空")
		}
	default:
		return fmt.Errorf("未知的交易账本驱动: %s", c.Ledger.Driver)
	}
	return nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Network.Name == "" {
		c.Network.Name = "bsc"
	}
	if c.Network.NetworksFile != "" && !filepath.IsAbs(c.Network.NetworksFile) {
		c.Network.NetworksFile = filepath.Join(baseDir, c.Network.NetworksFile)
	}

	if c.Wallet.RPC.PollIntervalMS <= 0 {
		c.Wallet.RPC.PollIntervalMS = 4000
	}
	if c.Wallet.Keyed.PrivateKeyEnv == "" {
		c.Wallet.Keyed.PrivateKeyEnv = "CUFFIE_PRIVATE_KEY"
	}

	if c.SessionCache.Driver == "" {
		c.SessionCache.Driver = "file"
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "memory"
	}
	if c.Notify.RabbitMQ.Queue == "" {
		c.Notify.RabbitMQ.Queue = "cuffie.session"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	}
}

// applyEnv 使用环境变量覆盖文件中的值。
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvRPCURL)); v != "" {
		c.Network.RPCURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddress)); v != "" {
		c.Server.Address = v
	}
}
