package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cuffie.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"runtime":{"data_dir":"state"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Server.Address)
	}
	if cfg.Network.Name != "bsc" || cfg.SessionCache.Driver != "file" || cfg.Ledger.Driver != "memory" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if want := filepath.Join(filepath.Dir(path), "state"); cfg.Runtime.DataDir != want {
		t.Fatalf("data dir = %q, want %q", cfg.Runtime.DataDir, want)
	}
	if cfg.Wallet.RPC.PollInterval() != 4*time.Second {
		t.Fatalf("poll interval = %v", cfg.Wallet.RPC.PollInterval())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvRPCURL, "http://127.0.0.1:8545")
	t.Setenv(EnvServerAddress, "127.0.0.1:9090")

	cfg, err := Load(writeConfig(t, `{"server":{"address":":1"}}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network.RPCURL != "http://127.0.0.1:8545" || cfg.Server.Address != "127.0.0.1:9090" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsUnknownDrivers(t *testing.T) {
	cases := map[string]string{
		"cache":       `{"session_cache":{"driver":"etcd"}}`,
		"redis":       `{"session_cache":{"driver":"redis"}}`,
		"ledger":      `{"ledger":{"driver":"postgres"}}`,
		"mysql":       `{"ledger":{"driver":"mysql"}}`,
		"broken json": `{`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	if Path() != DefaultPath {
		t.Fatalf("unexpected default path %q", Path())
	}
	t.Setenv(EnvConfigPath, "/etc/cuffie.json")
	if Path() != "/etc/cuffie.json" {
		t.Fatalf("unexpected path %q", Path())
	}
}
