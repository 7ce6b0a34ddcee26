package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	xerrors "cuffie-gateway/internal/errors"
	"cuffie-gateway/internal/wallet"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status %d", rec.Code)
	}
	return rec.Body.String()
}

func assertContains(t *testing.T, body string, lines ...string) {
	t.Helper()
	for _, want := range lines {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestObserveContractResults(t *testing.T) {
	c := New()
	c.ObserveContractCall("allowance", nil)
	c.ObserveContractCall("allowance", xerrors.New(xerrors.CodeInvalidArgument, "bad"))
	c.ObserveSubmission("approve", errors.New("rpc down"))

	assertContains(t, scrape(t, c),
		`cuffie_contract_calls_total{method="allowance",result="ok"} 1`,
		`cuffie_contract_calls_total{method="allowance",result="INVALID_ARGUMENT"} 1`,
		`cuffie_transaction_submissions_total{method="approve",result="UNKNOWN"} 1`,
	)
}

type nopProvider struct{ wallet.Provider }

func TestSessionGauge(t *testing.T) {
	c := New()
	account := common.HexToAddress("0x01")
	c.SessionChanged(wallet.AccountInfo{Provider: nopProvider{}, SelectedAccount: &account})
	assertContains(t, scrape(t, c), "cuffie_wallet_connected 1")

	c.SessionChanged(wallet.AccountInfo{})
	assertContains(t, scrape(t, c),
		"cuffie_wallet_connected 0",
		"cuffie_wallet_session_changes_total 2",
	)
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	c := New()
	h := c.Middleware("price", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/sale/price", nil))
	c.ObserveHTTPRequest("session", http.MethodGet, http.StatusOK, 10*time.Millisecond)

	assertContains(t, scrape(t, c),
		`cuffie_http_requests_total{code="502",handler="price",method="GET"} 1`,
		`cuffie_http_request_errors_total{handler="price",method="GET"} 1`,
		`cuffie_http_request_duration_seconds_count{handler="session",method="GET"} 1`,
	)
}
