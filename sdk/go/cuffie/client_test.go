package cuffie

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionAndReads(t *testing.T) {
	account := "0x00000000000000000000000000000000000000A1"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/session/connect":
			if r.Method != http.MethodPost {
				t.Fatalf("unexpected method: %s", r.Method)
			}
			_ = json.NewEncoder(w).Encode(Session{Connected: true, Provider: "rpc", SelectedAccount: &account})
		case "/api/v1/sale/price":
			_ = json.NewEncoder(w).Encode(Value{Method: "vestedCuffies_BNBprice", Value: "42"})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	session, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !session.Connected || session.SelectedAccount == nil || *session.SelectedAccount != account {
		t.Fatalf("unexpected session %+v", session)
	}
	price, err := client.Price(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Value != "42" {
		t.Fatalf("unexpected price %+v", price)
	}
}

func TestBuySendsAmountAndDecodesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/sale/buy" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			Amount string `json:"amount"`
			Wait   bool   `json:"wait"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Amount != "10" || !body.Wait {
			t.Fatalf("unexpected body %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(APIError{
			Code:     "INSUFFICIENT_ALLOWANCE",
			Message:  "Your account has not enough BNB and BUSD for gas fee.",
			Metadata: map[string]string{"allowance": "0"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Buy(context.Background(), "10", true)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusPaymentRequired || apiErr.Code != "INSUFFICIENT_ALLOWANCE" || apiErr.Metadata["allowance"] != "0" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestTransactionsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Fatalf("unexpected limit %q", got)
		}
		if got := r.URL.Query().Get("account"); got != "0xa1" {
			t.Fatalf("unexpected account %q", got)
		}
		_ = json.NewEncoder(w).Encode([]TransactionRecord{{ID: "1", Method: "approve"}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	records, err := client.Transactions(context.Background(), 5, "0xa1")
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(records) != 1 || records[0].Method != "approve" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestPlainTextErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "交易账本未启用", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	_, err := client.Transactions(context.Background(), 0, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "交易账本未启用" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAccessTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(Session{})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	if _, err := client.Session(context.Background()); err == nil {
		t.Fatal("expected unauthorized without token")
	}
	client.SetAccessToken("secret")
	if _, err := client.Session(context.Background()); err != nil {
		t.Fatalf("session with token: %v", err)
	}
}

func TestSupplementalReads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		switch r.URL.Path {
		case "/api/v1/sale/balance":
			_ = json.NewEncoder(w).Encode(Value{Method: "balanceOf", Value: "2000000000000000000", Formatted: "2"})
		case "/api/v1/sale/max-amount":
			_ = json.NewEncoder(w).Encode(Value{Method: "Max_Amount", Value: "500"})
		case "/api/v1/sale/window":
			_ = json.NewEncoder(w).Encode(Window{Start: "100", End: "200"})
		case "/api/v1/sale/whitelisted":
			_ = json.NewEncoder(w).Encode(Flag{Method: "whitelisted", Value: true})
		case "/api/v1/sale/paused":
			_ = json.NewEncoder(w).Encode(Flag{Method: "paused", Value: false})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	if balance, err := client.Balance(ctx); err != nil || balance.Formatted != "2" {
		t.Fatalf("balance: %+v %v", balance, err)
	}
	if max, err := client.MaxAmount(ctx); err != nil || max.Value != "500" {
		t.Fatalf("max amount: %+v %v", max, err)
	}
	if window, err := client.SaleWindow(ctx); err != nil || window.Start != "100" || window.End != "200" {
		t.Fatalf("window: %+v %v", window, err)
	}
	if flag, err := client.Whitelisted(ctx); err != nil || !flag.Value {
		t.Fatalf("whitelisted: %+v %v", flag, err)
	}
	if flag, err := client.Paused(ctx); err != nil || flag.Value {
		t.Fatalf("paused: %+v %v", flag, err)
	}
}
