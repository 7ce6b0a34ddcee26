package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cuffie-gateway/sdk/go/cuffie"
)

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--url", srv.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestStatusAndBuy(t *testing.T) {
	account := "0x00000000000000000000000000000000000000A1"
	var buyBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/session":
			_ = json.NewEncoder(w).Encode(cuffie.Session{Connected: true, Provider: "rpc", SelectedAccount: &account})
		case "/api/v1/sale/buy":
			_ = json.NewDecoder(r.Body).Decode(&buyBody)
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(cuffie.Transaction{Method: "BuymyCuffies", Hash: "0xabc"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	out, err := runCLI(t, srv, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Connected: "+account+" (via rpc)") {
		t.Fatalf("unexpected status output %q", out)
	}

	out, err = runCLI(t, srv, "buy", "10", "--wait")
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !strings.Contains(out, "BuymyCuffies submitted: 0xabc") {
		t.Fatalf("unexpected buy output %q", out)
	}
	if buyBody["amount"] != "10" || buyBody["wait"] != true {
		t.Fatalf("unexpected buy body %v", buyBody)
	}
}

func TestAPIErrorsSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(cuffie.APIError{Code: "WRONG_NETWORK", Message: "Wallet is not connected to BNB Smart Chain mainnet"})
	}))
	defer srv.Close()

	_, err := runCLI(t, srv, "claim")
	if err == nil || !strings.Contains(err.Error(), "WRONG_NETWORK") {
		t.Fatalf("expected wrong network error, got %v", err)
	}
}

func TestBuyRequiresAmount(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := runCLI(t, srv, "buy"); err == nil {
		t.Fatal("expected missing amount to fail")
	}
}

func TestSaleStatusReads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/sale/window":
			_ = json.NewEncoder(w).Encode(cuffie.Window{Start: "100", End: "200"})
		case "/api/v1/sale/paused":
			_ = json.NewEncoder(w).Encode(cuffie.Flag{Method: "paused", Value: true})
		case "/api/v1/sale/balance":
			_ = json.NewEncoder(w).Encode(cuffie.Value{Method: "balanceOf", Value: "1500000000000000000", Formatted: "1.5"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	cases := map[string]string{
		"window":  "start: 100\nend: 200",
		"paused":  "paused: true",
		"balance": "balanceOf: 1.5 (1500000000000000000)",
	}
	for command, want := range cases {
		out, err := runCLI(t, srv, command)
		if err != nil {
			t.Fatalf("%s: %v", command, err)
		}
		if !strings.Contains(out, want) {
			t.Fatalf("%s: unexpected output %q", command, out)
		}
	}
}
