// Package cuffie is a Go client for the cuffied REST API.
package cuffie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Waiting for a receipt can take several blocks, so callers that pass
// wait=true should supply their own client or context deadline.
const DefaultHTTPTimeout = 30 * time.Second

// Client wraps the HTTP interactions with the gateway daemon.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// Session is the wallet session snapshot.
type Session struct {
	Connected       bool    `json:"connected"`
	Provider        string  `json:"provider,omitempty"`
	SelectedAccount *string `json:"selectedAccount"`
}

// Value is the result of a read-only contract call. Formatted is the value
// scaled by the token decimals when that makes sense.
type Value struct {
	Method    string `json:"method"`
	Value     string `json:"value"`
	Formatted string `json:"formatted,omitempty"`
}

// Flag is the result of a boolean contract call.
type Flag struct {
	Method string `json:"method"`
	Value  bool   `json:"value"`
}

// Window is the sale window as Unix timestamps.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Receipt summarises a mined transaction.
type Receipt struct {
	Status      uint64 `json:"status"`
	BlockNumber string `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

// Transaction describes a broadcast transaction.
type Transaction struct {
	Hash     string   `json:"hash"`
	Method   string   `json:"method"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Gas      uint64   `json:"gas"`
	GasPrice string   `json:"gasPrice"`
	Receipt  *Receipt `json:"receipt,omitempty"`
}

// TransactionRecord is one ledger entry.
type TransactionRecord struct {
	ID        string `json:"id"`
	Method    string `json:"method"`
	Network   string `json:"network"`
	ChainID   uint64 `json:"chain_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Hash      string `json:"hash"`
	GasPrice  string `json:"gas_price"`
	Gas       uint64 `json:"gas"`
	Amount    string `json:"amount,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// APIError represents a failure reported by the daemon.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Retryable  bool              `json:"retryable,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("cuffie api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("cuffie api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the daemon at rawURL. When httpClient
// is nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// AccessToken returns the currently stored bearer token.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken sets the bearer token sent with every request. An empty
// token sends no Authorization header.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// Session returns the current session snapshot.
func (c *Client) Session(ctx context.Context) (Session, error) {
	var s Session
	err := c.call(ctx, http.MethodGet, "/api/v1/session", nil, nil, &s)
	return s, err
}

// Connect asks the daemon to (re)connect the wallet.
func (c *Client) Connect(ctx context.Context) (Session, error) {
	var s Session
	err := c.call(ctx, http.MethodPost, "/api/v1/session/connect", nil, nil, &s)
	return s, err
}

// Disconnect closes the wallet session.
func (c *Client) Disconnect(ctx context.Context) (Session, error) {
	var s Session
	err := c.call(ctx, http.MethodPost, "/api/v1/session/disconnect", nil, nil, &s)
	return s, err
}

// Price returns the current sale price.
func (c *Client) Price(ctx context.Context) (Value, error) {
	return c.value(ctx, "/api/v1/sale/price")
}

// Vested returns the vested amount of the selected account.
func (c *Client) Vested(ctx context.Context) (Value, error) {
	return c.value(ctx, "/api/v1/sale/vested")
}

// VestingFinishedAt returns the vesting end timestamp of the selected account.
func (c *Client) VestingFinishedAt(ctx context.Context) (Value, error) {
	return c.value(ctx, "/api/v1/sale/vesting-finished-at")
}

// Allowance returns the stablecoin allowance granted to the sale contract.
func (c *Client) Allowance(ctx context.Context) (Value, error) {
	return c.value(ctx, "/api/v1/sale/allowance")
}

// Balance returns the stablecoin balance of the connected account.
func (c *Client) Balance(ctx context.Context) (Value, error) {
	return c.value(ctx, "/api/v1/sale/balance")
}

// MaxAmount returns the per-account purchase cap.
func (c *Client) MaxAmount(ctx context.Context) (Value, error) {
	return c.value(ctx, "/api/v1/sale/max-amount")
}

// SaleWindow returns the start and end of the sale.
func (c *Client) SaleWindow(ctx context.Context) (Window, error) {
	var w Window
	err := c.call(ctx, http.MethodGet, "/api/v1/sale/window", nil, nil, &w)
	return w, err
}

// Whitelisted reports whether the connected account is whitelisted.
func (c *Client) Whitelisted(ctx context.Context) (Flag, error) {
	return c.flag(ctx, "/api/v1/sale/whitelisted")
}

// Paused reports whether the sale contract is paused.
func (c *Client) Paused(ctx context.Context) (Flag, error) {
	return c.flag(ctx, "/api/v1/sale/paused")
}

// Approve grants the sale contract amount stablecoins.
func (c *Client) Approve(ctx context.Context, amount string, wait bool) (Transaction, error) {
	return c.submit(ctx, "/api/v1/sale/approve", amount, wait)
}

// Buy purchases tokens for amount stablecoins.
func (c *Client) Buy(ctx context.Context, amount string, wait bool) (Transaction, error) {
	return c.submit(ctx, "/api/v1/sale/buy", amount, wait)
}

// Claim claims the unlocked tokens.
func (c *Client) Claim(ctx context.Context, wait bool) (Transaction, error) {
	return c.submit(ctx, "/api/v1/sale/claim", "", wait)
}

// Transactions lists ledger entries, newest first. An empty account lists
// every account.
func (c *Client) Transactions(ctx context.Context, limit int, account string) ([]TransactionRecord, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if account != "" {
		query.Set("account", account)
	}
	var records []TransactionRecord
	err := c.call(ctx, http.MethodGet, "/api/v1/transactions", query, nil, &records)
	return records, err
}

func (c *Client) value(ctx context.Context, endpoint string) (Value, error) {
	var v Value
	err := c.call(ctx, http.MethodGet, endpoint, nil, nil, &v)
	return v, err
}

func (c *Client) flag(ctx context.Context, endpoint string) (Flag, error) {
	var f Flag
	err := c.call(ctx, http.MethodGet, endpoint, nil, nil, &f)
	return f, err
}

func (c *Client) submit(ctx context.Context, endpoint, amount string, wait bool) (Transaction, error) {
	payload := struct {
		Amount string `json:"amount,omitempty"`
		Wait   bool   `json:"wait,omitempty"`
	}{Amount: amount, Wait: wait}
	var tx Transaction
	err := c.call(ctx, http.MethodPost, endpoint, nil, payload, &tx)
	return tx, err
}

func (c *Client) call(ctx context.Context, method, endpoint string, query url.Values, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
