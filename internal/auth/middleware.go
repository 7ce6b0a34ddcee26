package auth

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	loggerpkg "cuffie-gateway/pkg/logger"
)

// MiddlewareConfig 配置身份认证中间件的行为。
type MiddlewareConfig struct {
	// RequiredPermissions 是访问该路由所需的权限列表。
	RequiredPermissions []string
	// AuditEvent 指定记录审计日志时使用的事件名称。
	AuditEvent string
}

// Middleware 返回一个 HTTP 中间件，用于处理身份认证和授权。
func (s *Service) Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s == nil || s.mode == ModeDisabled {
				next.ServeHTTP(w, r)
				return
			}
			logger := s.audit
			if logger == nil {
				logger = loggerpkg.Audit()
			}

			// 认证请求。
			subject, err := s.AuthenticateRequest(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				status := http.StatusUnauthorized
				http.Error(w, http.StatusText(status), status)
				logger.Warn("access_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", status,
					"error", err.Error(),
				)
				return
			}
			// 授权请求。
			if err := subject.Authorize(cfg.RequiredPermissions...); err != nil {
				status := http.StatusForbidden
				if !errors.Is(err, ErrPermissionDenied) {
					status = http.StatusUnauthorized
				}
				http.Error(w, http.StatusText(status), status)
				logger.Warn("permission_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", status,
					"error", err.Error(),
					"user", subject.Name,
				)
				return
			}
			// 记录审计日志。
			start := time.Now()
			aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
			ctx := WithSubject(r.Context(), subject)
			next.ServeHTTP(aw, r.WithContext(ctx))
			event := cfg.AuditEvent
			if event == "" {
				event = r.URL.Path
			}
			logger.Info("api_request",
				"event", event,
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user", subject.Name,
			)
		})
	}
}

// auditWriter 包装 http.ResponseWriter，用于捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层的 WriteHeader 方法。
func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap 让 http.ResponseController 能够取得底层的 ResponseWriter。
func (w *auditWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack 透传给底层连接，WebSocket 升级依赖它。
func (w *auditWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("底层 ResponseWriter 不支持 Hijack")
	}
	return hj.Hijack()
}
