package api

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"cuffie-gateway/internal/auth"
	"cuffie-gateway/internal/observability/metrics"
	"cuffie-gateway/internal/sale"
	"cuffie-gateway/internal/storage/mysql"
	"cuffie-gateway/internal/wallet"
	"cuffie-gateway/internal/web3"
	"cuffie-gateway/pkg/logger"
)

// SessionService 是 API 对钱包会话的依赖，*wallet.Manager 满足该接口。
type SessionService interface {
	AccountInfo() wallet.AccountInfo
	ConnectToWallet(ctx context.Context) error
	DisconnectWallet(ctx context.Context) error
	Subscribe(l wallet.Listener) *wallet.Subscription
}

// SaleService 是 API 对合约网关的依赖，*sale.Gateway 满足该接口。
type SaleService interface {
	Config() sale.Config
	GetVestCuffies(ctx context.Context) (*big.Int, error)
	GetVestedAmount(ctx context.Context) (*big.Int, error)
	GetVestingFinishedAt(ctx context.Context) (*big.Int, error)
	Allowance(ctx context.Context) (*big.Int, error)
	BusdBalance(ctx context.Context) (*big.Int, error)
	SaleWindow(ctx context.Context) (sale.Window, error)
	MaxAmount(ctx context.Context) (*big.Int, error)
	IsWhitelisted(ctx context.Context) (bool, error)
	IsPaused(ctx context.Context) (bool, error)
	ApproveBusd(ctx context.Context, amount string) (*web3.PendingTransaction, error)
	BuyMyCuffies(ctx context.Context, amount string) (*web3.PendingTransaction, error)
	ClaimBoughtAmount(ctx context.Context) (*web3.PendingTransaction, error)
}

// Server 负责暴露 REST 与 WebSocket 接口。
type Server struct {
	addr           string
	session        SessionService
	sale           SaleService
	ledger         mysql.TransactionRepository
	metrics        *metrics.Collector
	auth           *auth.Service
	originPatterns []string
	log            *slog.Logger
}

// Option 定义可选的 Server 配置。
type Option func(*Server)

// WithLedger 启用交易记录查询接口。
func WithLedger(repo mysql.TransactionRepository) Option {
	return func(s *Server) {
		s.ledger = repo
	}
}

// WithMetrics 为每个接口记录指标，并暴露 /metrics。
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithAuth 为接口启用 Bearer Token 认证。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) {
		s.auth = svc
	}
}

// WithOriginPatterns 配置 WebSocket 允许的跨域来源。
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.originPatterns = append(s.originPatterns, patterns...)
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, session SessionService, gw SaleService, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		session: session,
		sale:    gw,
		log:     logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回注册了全部路由的处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /api/v1/session", "session", auth.PermSessionRead, s.handleSession)
	s.route(mux, "POST /api/v1/session/connect", "session_connect", auth.PermSessionWrite, s.handleConnect)
	s.route(mux, "POST /api/v1/session/disconnect", "session_disconnect", auth.PermSessionWrite, s.handleDisconnect)
	// WebSocket 升级需要可 Hijack 的 ResponseWriter，不经过指标中间件。
	mux.Handle("GET /api/v1/session/events", s.protect("session_events", auth.PermSessionRead, http.HandlerFunc(s.handleSessionEvents)))

	s.route(mux, "GET /api/v1/sale/price", "sale_price", auth.PermSaleRead, s.handlePrice)
	s.route(mux, "GET /api/v1/sale/vested", "sale_vested", auth.PermSaleRead, s.handleVested)
	s.route(mux, "GET /api/v1/sale/vesting-finished-at", "sale_vesting_finished_at", auth.PermSaleRead, s.handleVestingFinishedAt)
	s.route(mux, "GET /api/v1/sale/allowance", "sale_allowance", auth.PermSaleRead, s.handleAllowance)
	s.route(mux, "GET /api/v1/sale/balance", "sale_balance", auth.PermSaleRead, s.handleBalance)
	s.route(mux, "GET /api/v1/sale/window", "sale_window", auth.PermSaleRead, s.handleWindow)
	s.route(mux, "GET /api/v1/sale/max-amount", "sale_max_amount", auth.PermSaleRead, s.handleMaxAmount)
	s.route(mux, "GET /api/v1/sale/whitelisted", "sale_whitelisted", auth.PermSaleRead, s.handleWhitelisted)
	s.route(mux, "GET /api/v1/sale/paused", "sale_paused", auth.PermSaleRead, s.handlePaused)
	s.route(mux, "POST /api/v1/sale/approve", "sale_approve", auth.PermSaleWrite, s.handleApprove)
	s.route(mux, "POST /api/v1/sale/buy", "sale_buy", auth.PermSaleWrite, s.handleBuy)
	s.route(mux, "POST /api/v1/sale/claim", "sale_claim", auth.PermSaleWrite, s.handleClaim)

	s.route(mux, "GET /api/v1/transactions", "transactions", auth.PermLedgerRead, s.handleTransactions)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern, name, perm string, handler http.HandlerFunc) {
	h := s.protect(name, perm, handler)
	if s.metrics != nil {
		h = s.metrics.Middleware(name, h)
	}
	mux.Handle(pattern, h)
}

// protect 在启用认证时要求调用方具备 perm 权限。
func (s *Server) protect(name, perm string, h http.Handler) http.Handler {
	if s.auth == nil || s.auth.Mode() == auth.ModeDisabled {
		return h
	}
	return s.auth.Middleware(auth.MiddlewareConfig{RequiredPermissions: []string{perm}, AuditEvent: name})(h)
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	// 配置 HTTP 服务器。
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("API 服务已启动", slog.String("address", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
