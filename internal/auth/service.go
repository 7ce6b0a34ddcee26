package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuffie-gateway/pkg/logger"
)

// Service 校验 API 请求携带的静态 Bearer Token。
type Service struct {
	mode    Mode
	entries []tokenEntry
	audit   *slog.Logger
}

type tokenEntry struct {
	digest  [sha256.Size]byte
	subject *Subject
}

// NewService 根据配置创建认证服务。disabled 模式下所有请求直接放行。
func NewService(cfg Config) (*Service, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	if mode == "" {
		mode = ModeDisabled
	}

	switch mode {
	case ModeDisabled:
		return &Service{mode: ModeDisabled}, nil
	case ModeToken:
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}

	svc := &Service{mode: ModeToken, audit: logger.Audit()}
	for _, tc := range cfg.Tokens {
		secret := tc.Token
		if tc.TokenEnv != "" {
			secret = os.Getenv(tc.TokenEnv)
		}
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return nil, fmt.Errorf("token %q 未配置密钥", tc.Name)
		}
		subject := &Subject{Name: tc.Name, Permissions: append([]string(nil), tc.Permissions...)}
		subject.normalise()
		svc.entries = append(svc.entries, tokenEntry{digest: sha256.Sum256([]byte(secret)), subject: subject})
	}
	if len(svc.entries) == 0 {
		return nil, fmt.Errorf("token 模式至少需要配置一个 token")
	}
	return svc, nil
}

// Mode 返回当前身份认证服务的工作模式。
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// AuthenticateRequest 解析 Authorization 头并返回对应的主体。
func (s *Service) AuthenticateRequest(_ context.Context, authorization string) (*Subject, error) {
	if s == nil || s.mode == ModeDisabled {
		return nil, nil
	}
	token, ok := strings.CutPrefix(strings.TrimSpace(authorization), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return nil, ErrMissingToken
	}

	digest := sha256.Sum256([]byte(token))
	var match *Subject
	// 遍历全部条目，避免提前返回泄露匹配位置。
	for _, entry := range s.entries {
		if subtle.ConstantTimeCompare(digest[:], entry.digest[:]) == 1 {
			match = entry.subject
		}
	}
	if match == nil {
		return nil, ErrInvalidToken
	}
	return match, nil
}
