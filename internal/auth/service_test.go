package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTokenService(t *testing.T) *Service {
	t.Helper()
	t.Setenv("TEST_OPERATOR_TOKEN", "operator-secret")
	svc, err := NewService(Config{
		Mode: ModeToken,
		Tokens: []TokenConfig{
			{Name: "viewer", Token: "viewer-secret", Permissions: []string{PermSaleRead, PermSessionRead}},
			{Name: "operator", TokenEnv: "TEST_OPERATOR_TOKEN", Permissions: []string{"*"}},
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestAuthenticateRequest(t *testing.T) {
	svc := newTokenService(t)
	ctx := context.Background()

	subject, err := svc.AuthenticateRequest(ctx, "Bearer operator-secret")
	if err != nil || subject.Name != "operator" {
		t.Fatalf("unexpected result %+v %v", subject, err)
	}
	if !subject.HasPermission(PermSaleWrite) {
		t.Fatal("wildcard permission must grant sale:write")
	}
	if _, err := svc.AuthenticateRequest(ctx, ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token, got %v", err)
	}
	if _, err := svc.AuthenticateRequest(ctx, "Bearer nope"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestNewServiceValidation(t *testing.T) {
	if svc, err := NewService(Config{}); err != nil || svc.Mode() != ModeDisabled {
		t.Fatalf("empty config must disable auth: %v", err)
	}
	if _, err := NewService(Config{Mode: ModeToken}); err == nil {
		t.Fatal("token mode without tokens must fail")
	}
	if _, err := NewService(Config{Mode: ModeToken, Tokens: []TokenConfig{{Name: "empty", TokenEnv: "UNSET_TOKEN_ENV_FOR_TEST"}}}); err == nil {
		t.Fatal("token without secret must fail")
	}
	if _, err := NewService(Config{Mode: "oauth"}); err == nil {
		t.Fatal("unknown mode must fail")
	}
}

func TestMiddleware(t *testing.T) {
	svc := newTokenService(t)
	var seen *Subject
	h := svc.Middleware(MiddlewareConfig{RequiredPermissions: []string{PermSaleWrite}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"invalid", "Bearer wrong", http.StatusUnauthorized},
		{"forbidden", "Bearer viewer-secret", http.StatusForbidden},
		{"allowed", "Bearer operator-secret", http.StatusAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sale/buy", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
	if seen == nil || seen.Name != "operator" {
		t.Fatalf("handler did not receive the subject: %+v", seen)
	}
}

func TestDisabledMiddlewarePassesThrough(t *testing.T) {
	svc, _ := NewService(Config{Mode: ModeDisabled})
	h := svc.Middleware(MiddlewareConfig{RequiredPermissions: []string{PermSaleWrite}})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}
