package web3

import (
	"context"
	"errors"
	"math/big"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainReader is the read-only view of the network used for contract calls
// and gas price lookups. *ethclient.Client satisfies it.
type ChainReader interface {
	CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// ReceiptFetcher looks up mined transactions.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// TransactionRequest is the unsigned transaction handed to a wallet provider.
type TransactionRequest struct {
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	GasPrice *big.Int       `json:"gasPrice"`
	Data     []byte         `json:"data"`
	Gas      uint64         `json:"gas"`
}

// CallMsg converts the request into the shape used for gas estimation.
func (r TransactionRequest) CallMsg() gethcore.CallMsg {
	to := r.To
	return gethcore.CallMsg{
		From:     r.From,
		To:       &to,
		GasPrice: r.GasPrice,
		Gas:      r.Gas,
		Data:     r.Data,
	}
}

// DefaultReceiptPollInterval is used by PendingTransaction.Wait when no
// interval was configured.
const DefaultReceiptPollInterval = 3 * time.Second

// PendingTransaction is a broadcast transaction whose receipt can be awaited.
type PendingTransaction struct {
	Hash    common.Hash        `json:"hash"`
	Method  string             `json:"method"`
	Request TransactionRequest `json:"request"`

	fetcher  ReceiptFetcher
	interval time.Duration
}

// NewPendingTransaction binds a broadcast hash to the fetcher able to resolve
// its receipt.
func NewPendingTransaction(hash common.Hash, method string, req TransactionRequest, fetcher ReceiptFetcher) *PendingTransaction {
	return &PendingTransaction{
		Hash:     hash,
		Method:   method,
		Request:  req,
		fetcher:  fetcher,
		interval: DefaultReceiptPollInterval,
	}
}

// WithPollInterval overrides how often Wait checks for the receipt.
func (p *PendingTransaction) WithPollInterval(interval time.Duration) *PendingTransaction {
	if interval > 0 {
		p.interval = interval
	}
	return p
}

// Wait blocks until the transaction is mined or ctx is done. There is no
// internal timeout.
func (p *PendingTransaction) Wait(ctx context.Context) (*types.Receipt, error) {
	if p == nil || p.fetcher == nil {
		return nil, errors.New("交易缺少回执查询后端")
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		receipt, err := p.fetcher.TransactionReceipt(ctx, p.Hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, gethcore.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
