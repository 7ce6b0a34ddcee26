package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cuffie-gateway/internal/config"
	"cuffie-gateway/internal/wallet"
	"cuffie-gateway/internal/web3"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Runtime.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Network.RPCURL = "http://127.0.0.1:1"
	cfg.SessionCache.Driver = "memory"
	return cfg
}

func TestNewWiresInMemoryStack(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	if a.Gateway.Config().ChainID != 56 {
		t.Fatalf("unexpected chain id %d", a.Gateway.Config().ChainID)
	}

	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	var view struct {
		Connected bool `json:"connected"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Connected {
		t.Fatal("fresh daemon must start disconnected")
	}

	rec = httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session/connect", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("connect without connectors: status %d", rec.Code)
	}
}

func TestNewRejectsUnknownNetwork(t *testing.T) {
	cfg := testConfig(t)
	cfg.Network.Name = "polygon"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected unknown network to fail")
	}
}

func TestResolveNetworkOverrides(t *testing.T) {
	name, def, err := resolveNetwork(config.NetworkConfig{Name: "BSC", RPCURL: "http://node:8545", ChainID: 1337})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if name != web3.NetworkBSC || def.RPCURL != "http://node:8545" || def.ChainID != 1337 {
		t.Fatalf("unexpected network %s %+v", name, def)
	}
	if def.Stable() != web3.DefaultNetworks().Networks[web3.NetworkBSC].Stable() {
		t.Fatal("contract addresses must come from the network definition")
	}
}

func TestBuildConnectors(t *testing.T) {
	def := web3.DefaultNetworks().Networks[web3.NetworkBSC]
	if got := buildConnectors(config.WalletConfig{}, def); len(got) != 0 {
		t.Fatalf("expected no connectors, got %d", len(got))
	}
	got := buildConnectors(config.WalletConfig{
		RPC:   config.RPCWalletConfig{URL: "http://127.0.0.1:8545"},
		Keyed: config.KeyedWalletConfig{Enabled: true},
	}, def)
	names := make([]string, 0, len(got))
	for _, c := range got {
		names = append(names, c.Name())
	}
	if len(names) != 2 || names[0] != "rpc" || names[1] != "keyed" {
		t.Fatalf("unexpected connectors %v", names)
	}
}

func TestFileSessionCacheLivesInDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionCache.Driver = "file"
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	if _, err := os.Stat(cfg.Runtime.DataDir); err != nil {
		t.Fatalf("data dir not created: %v", err)
	}
	if a.Session.IsConnected() {
		t.Fatal("unexpected connected session")
	}
}

func TestCloseKeepsCachedSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionCache.Driver = "file"
	cfg.Wallet.RPC.URL = "http://127.0.0.1:1"
	ctx := context.Background()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cache, err := wallet.NewFileCache(cfg.Runtime.DataDir)
	if err != nil {
		t.Fatalf("file cache: %v", err)
	}
	if err := cache.Set(ctx, "rpc"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := cache.Get(ctx)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if got != "rpc" {
		t.Fatalf("shutdown must keep the cached connector, got %q", got)
	}
}
