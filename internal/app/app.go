// Package app 根据配置组装网关守护进程的全部组件。
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuffie-gateway/internal/api"
	"cuffie-gateway/internal/auth"
	"cuffie-gateway/internal/config"
	"cuffie-gateway/internal/notify"
	"cuffie-gateway/internal/observability/metrics"
	"cuffie-gateway/internal/sale"
	"cuffie-gateway/internal/storage/mysql"
	redisstore "cuffie-gateway/internal/storage/redis"
	"cuffie-gateway/internal/wallet"
	"cuffie-gateway/internal/wallet/keyed"
	"cuffie-gateway/internal/wallet/rpcwallet"
	"cuffie-gateway/internal/web3"
	"cuffie-gateway/internal/web3/provider"
	"cuffie-gateway/pkg/logger"
)

// App 持有守护进程运行期间的全部组件。
type App struct {
	cfg     *config.Config
	Session *wallet.Manager
	Gateway *sale.Gateway
	Ledger  mysql.TransactionRepository
	Metrics *metrics.Collector
	Server  *api.Server

	closers []func() error
	log     *slog.Logger
}

// New 按配置构造全部组件。失败时已经创建的资源会被释放。
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("配置为空")
	}
	a := &App{cfg: cfg, log: logger.Named("app")}
	built := false
	defer func() {
		if !built {
			_ = a.Close()
		}
	}()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	// 解析目标网络并连接只读节点。
	name, def, err := resolveNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	defs := web3.NetworkDefinitions{Networks: map[string]web3.NetworkDefinition{name: def}}
	registry, err := provider.NewRegistry(defs, name, nil)
	if err != nil {
		return nil, err
	}
	a.onClose(func() error { registry.Close(); return nil })
	_, reader, err := registry.Default(ctx)
	if err != nil {
		return nil, err
	}

	// 组装钱包选择器与会话管理器。
	cache, err := a.buildSessionCache(ctx)
	if err != nil {
		return nil, err
	}
	connectors := buildConnectors(cfg.Wallet, def)
	if len(connectors) == 0 {
		a.log.Warn("未配置任何钱包连接方式，只能执行只读查询")
	}
	var chooser wallet.Chooser
	if c := strings.TrimSpace(cfg.Wallet.DefaultConnector); c != "" {
		chooser = wallet.FixedChooser(c)
	}
	modal := wallet.NewModal(cache, chooser, connectors...)

	var session *wallet.Manager
	session = wallet.NewManager(modal, wallet.WithReloadHook(func(ctx context.Context, event wallet.ProviderEvent) {
		if res := session.Reload(ctx); !res.OK() {
			a.log.Warn("网络切换后重新加载会话失败", slog.Any("error", res.Err))
		}
	}))
	a.Session = session
	a.onClose(session.Close)

	a.Metrics = metrics.New()
	session.AddChangeListener(a.Metrics)

	if cfg.Notify.RabbitMQ.URL != "" {
		publisher, err := notify.NewRabbitMQPublisher(notify.RabbitMQConfig{
			URL:     cfg.Notify.RabbitMQ.URL,
			Queue:   cfg.Notify.RabbitMQ.Queue,
			Durable: cfg.Notify.RabbitMQ.Durable,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(publisher.Close)
		session.AddChangeListener(publisher)
	}

	// 交易账本。
	ledger, err := a.buildLedger(ctx)
	if err != nil {
		return nil, err
	}
	a.Ledger = ledger

	gateway, err := sale.NewGateway(sale.ConfigFromNetwork(name, def), session, reader,
		sale.WithLedger(ledger),
		sale.WithObserver(a.Metrics),
	)
	if err != nil {
		return nil, err
	}
	a.Gateway = gateway

	authSvc, err := auth.NewService(cfg.Server.Auth)
	if err != nil {
		return nil, err
	}

	a.Server = api.NewServer(cfg.Server.Address, session, gateway,
		api.WithAuth(authSvc),
		api.WithLedger(ledger),
		api.WithMetrics(a.Metrics),
		api.WithOriginPatterns(cfg.Server.AllowedOrigins...),
	)
	built = true
	return a, nil
}

// Run 恢复缓存的会话后启动 API 服务，直到 ctx 结束。
func (a *App) Run(ctx context.Context) error {
	if res := a.Session.Initialize(ctx); !res.OK() {
		a.log.Warn("恢复钱包会话失败", slog.Any("error", res.Err))
	}
	if err := a.Server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close 按创建顺序的逆序释放资源。
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// resolveNetwork 读取网络定义并应用配置中的覆盖项。
func resolveNetwork(cfg config.NetworkConfig) (string, web3.NetworkDefinition, error) {
	defs, err := web3.LoadNetworkDefinitions(cfg.NetworksFile)
	if err != nil {
		return "", web3.NetworkDefinition{}, err
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		name = web3.NetworkBSC
	}
	def, err := defs.Lookup(name)
	if err != nil {
		return "", web3.NetworkDefinition{}, err
	}
	if cfg.RPCURL != "" {
		def.RPCURL = cfg.RPCURL
	}
	if cfg.ChainID != 0 {
		def.ChainID = cfg.ChainID
	}
	return name, def, nil
}

func buildConnectors(cfg config.WalletConfig, def web3.NetworkDefinition) []wallet.Connector {
	var connectors []wallet.Connector
	if cfg.RPC.URL != "" {
		connectors = append(connectors, rpcwallet.NewConnector(rpcwallet.Config{
			URL:          cfg.RPC.URL,
			PollInterval: cfg.RPC.PollInterval(),
		}))
	}
	if cfg.Keyed.Enabled {
		rpcURL := cfg.Keyed.RPCURL
		if rpcURL == "" {
			rpcURL = def.RPCURL
		}
		connectors = append(connectors, keyed.NewConnector(keyed.Config{
			RPCURL:        rpcURL,
			PrivateKeyEnv: cfg.Keyed.PrivateKeyEnv,
		}))
	}
	return connectors
}

func (a *App) buildSessionCache(ctx context.Context) (wallet.SessionCache, error) {
	cfg := a.cfg.SessionCache
	switch cfg.Driver {
	case "memory":
		return wallet.NewMemoryCache(), nil
	case "file", "":
		return wallet.NewFileCache(a.cfg.Runtime.DataDir)
	case "redis":
		cache, err := redisstore.NewSessionCache(ctx, redisstore.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Name:     cfg.Redis.Name,
			TTL:      cfg.Redis.TTL(),
		})
		if err != nil {
			return nil, err
		}
		a.onClose(cache.Close)
		return cache, nil
	default:
		return nil, fmt.Errorf("未知的会话缓存驱动: %s", cfg.Driver)
	}
}

func (a *App) buildLedger(ctx context.Context) (mysql.TransactionRepository, error) {
	cfg := a.cfg.Ledger
	switch cfg.Driver {
	case "memory", "":
		return mysql.NewMemoryTransactionRepository(a.cfg.Runtime.DataDir)
	case "mysql":
		repo, err := mysql.NewSQLTransactionRepository(ctx, mysql.Config{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(repo.Close)
		return repo, nil
	default:
		return nil, mysql.ErrUnsupportedDriver
	}
}
