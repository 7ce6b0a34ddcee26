package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestInitWritesJSONToFileAndAudit(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	auditPath := filepath.Join(dir, "audit", "audit.log")

	if err := Init(Config{
		Level:       "debug",
		OutputPaths: []string{logPath},
		Audit:       AuditConfig{Enabled: true, Path: auditPath},
	}); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = Sync()
		_ = Init(Config{OutputPaths: []string{"discard"}})
	})

	Named("wallet").Info("connected", "account", "0xabc")
	Audit().Info("transaction submitted", "hash", "0x01")

	entry := readFirstLine(t, logPath)
	if entry["component"] != "wallet" || entry["msg"] != "connected" {
		t.Fatalf("unexpected log entry %+v", entry)
	}

	audit := readFirstLine(t, auditPath)
	if audit["stream"] != "audit" || audit["hash"] != "0x01" {
		t.Fatalf("unexpected audit entry %+v", audit)
	}
}

func TestInitRejectsAuditWithoutPath(t *testing.T) {
	err := Init(Config{OutputPaths: []string{"discard"}, Audit: AuditConfig{Enabled: true}})
	if err == nil {
		t.Fatal("expected error for enabled audit without path")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func readFirstLine(t *testing.T, path string) map[string]any {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("%s is empty", path)
	}
	var entry map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return entry
}
