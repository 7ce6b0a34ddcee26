package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"cuffie-gateway/internal/sale"
	"cuffie-gateway/internal/storage/mysql"
	"cuffie-gateway/internal/web3"
)

// ValueResponse 是只读查询的返回结构。Formatted 为按精度换算后的可读数值。
type ValueResponse struct {
	Method    string `json:"method"`
	Value     string `json:"value"`
	Formatted string `json:"formatted,omitempty"`
}

// FlagResponse 是布尔查询的返回结构。
type FlagResponse struct {
	Method string `json:"method"`
	Value  bool   `json:"value"`
}

// WindowResponse 是销售时间窗口，Start 与 End 为 Unix 时间戳。
type WindowResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AmountRequest 是 approve 与 buy 的请求体。
type AmountRequest struct {
	Amount string `json:"amount"`
	// Wait 为 true 时等待交易上链后再返回。
	Wait bool `json:"wait"`
}

// TransactionResponse 描述已广播的交易，Receipt 仅在等待上链时返回。
type TransactionResponse struct {
	Hash     string          `json:"hash"`
	Method   string          `json:"method"`
	From     string          `json:"from"`
	To       string          `json:"to"`
	Gas      uint64          `json:"gas"`
	GasPrice string          `json:"gasPrice"`
	Receipt  *ReceiptSummary `json:"receipt,omitempty"`
}

// ReceiptSummary 是交易回执的摘要。
type ReceiptSummary struct {
	Status      uint64 `json:"status"`
	BlockNumber string `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

const (
	defaultTransactionLimit = 20
	maxTransactionLimit     = 100
)

type readFunc func(gw SaleService, ctx context.Context) (*big.Int, error)

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	s.serveRead(w, r, sale.MethodPrice, SaleService.GetVestCuffies, -1)
}

func (s *Server) handleVested(w http.ResponseWriter, r *http.Request) {
	s.serveRead(w, r, sale.MethodVestedAmount, SaleService.GetVestedAmount, int(web3.DefaultDecimals))
}

func (s *Server) handleVestingFinishedAt(w http.ResponseWriter, r *http.Request) {
	s.serveRead(w, r, sale.MethodVestingEnd, SaleService.GetVestingFinishedAt, -1)
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	decimals := int(web3.DefaultDecimals)
	if s.sale != nil {
		decimals = int(s.sale.Config().StableDecimals)
	}
	s.serveRead(w, r, sale.MethodAllowance, SaleService.Allowance, decimals)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	decimals := int(web3.DefaultDecimals)
	if s.sale != nil {
		decimals = int(s.sale.Config().StableDecimals)
	}
	s.serveRead(w, r, sale.MethodBalanceOf, SaleService.BusdBalance, decimals)
}

func (s *Server) handleMaxAmount(w http.ResponseWriter, r *http.Request) {
	s.serveRead(w, r, sale.MethodMaxAmount, SaleService.MaxAmount, -1)
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	if s.sale == nil {
		http.Error(w, errNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}
	window, err := s.sale.SaleWindow(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WindowResponse{Start: window.Start.String(), End: window.End.String()})
}

func (s *Server) handleWhitelisted(w http.ResponseWriter, r *http.Request) {
	s.serveFlag(w, r, sale.MethodWhitelisted, SaleService.IsWhitelisted)
}

func (s *Server) handlePaused(w http.ResponseWriter, r *http.Request) {
	s.serveFlag(w, r, sale.MethodPaused, SaleService.IsPaused)
}

func (s *Server) serveFlag(w http.ResponseWriter, r *http.Request, method string, read func(SaleService, context.Context) (bool, error)) {
	if s.sale == nil {
		http.Error(w, errNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}
	value, err := read(s.sale, r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FlagResponse{Method: method, Value: value})
}

// serveRead 执行只读查询。decimals 小于 0 时不返回换算值。
func (s *Server) serveRead(w http.ResponseWriter, r *http.Request, method string, read readFunc, decimals int) {
	if s.sale == nil {
		http.Error(w, errNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}
	value, err := read(s.sale, r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := ValueResponse{Method: method, Value: value.String()}
	if decimals >= 0 {
		resp.Formatted = web3.FromBaseUnits(value, uint8(decimals))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAmount(w, r)
	if !ok {
		return
	}
	pending, err := s.sale.ApproveBusd(r.Context(), req.Amount)
	s.respondTransaction(w, r, pending, err, req.Wait)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAmount(w, r)
	if !ok {
		return
	}
	pending, err := s.sale.BuyMyCuffies(r.Context(), req.Amount)
	s.respondTransaction(w, r, pending, err, req.Wait)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if s.sale == nil {
		http.Error(w, errNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeBadRequest(w, "请求体解析失败")
		return
	}
	pending, err := s.sale.ClaimBoughtAmount(r.Context())
	s.respondTransaction(w, r, pending, err, req.Wait)
}

func (s *Server) decodeAmount(w http.ResponseWriter, r *http.Request) (AmountRequest, bool) {
	if s.sale == nil {
		http.Error(w, errNotConfigured.Error(), http.StatusServiceUnavailable)
		return AmountRequest{}, false
	}
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "请求体解析失败")
		return AmountRequest{}, false
	}
	if strings.TrimSpace(req.Amount) == "" {
		s.writeBadRequest(w, "amount 不能为空")
		return AmountRequest{}, false
	}
	return req, true
}

func (s *Server) respondTransaction(w http.ResponseWriter, r *http.Request, pending *web3.PendingTransaction, err error, wait bool) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := TransactionResponse{
		Hash:   pending.Hash.Hex(),
		Method: pending.Method,
		From:   pending.Request.From.Hex(),
		To:     pending.Request.To.Hex(),
		Gas:    pending.Request.Gas,
	}
	if pending.Request.GasPrice != nil {
		resp.GasPrice = pending.Request.GasPrice.String()
	}
	if !wait {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	receipt, err := pending.Wait(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp.Receipt = &ReceiptSummary{Status: receipt.Status, GasUsed: receipt.GasUsed}
	if receipt.BlockNumber != nil {
		resp.Receipt.BlockNumber = receipt.BlockNumber.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTransactions 返回最近提交的交易，可按 account 过滤。
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		http.Error(w, "交易账本未启用", http.StatusServiceUnavailable)
		return
	}
	limit := defaultTransactionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxTransactionLimit)
		}
	}

	var (
		records []mysql.TransactionRecord
		err     error
	)
	account := strings.TrimSpace(r.URL.Query().Get("account"))
	switch {
	case account == "":
		records, err = s.ledger.ListLatest(r.Context(), limit)
	case !common.IsHexAddress(account):
		s.writeBadRequest(w, "account 不是合法的地址")
		return
	default:
		records, err = s.ledger.ListByAccount(r.Context(), account, limit)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []mysql.TransactionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
