// Package rpcwallet connects to an external signer over JSON-RPC. Any endpoint
// that manages its own keys and answers eth_sendTransaction works, e.g. Clef,
// a node with unlocked accounts or a browser wallet bridge.
package rpcwallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"cuffie-gateway/internal/wallet"
	"cuffie-gateway/internal/web3"
	"cuffie-gateway/pkg/logger"
)

// ConnectorName is the modal option name of the JSON-RPC signer.
const ConnectorName = "rpc"

// DefaultPollInterval controls how often account and chain changes are checked.
const DefaultPollInterval = 4 * time.Second

// Config describes the signer endpoint.
type Config struct {
	URL          string
	PollInterval time.Duration
}

// caller is the subset of *rpc.Client the provider uses.
type caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// Provider is a wallet.Provider backed by a JSON-RPC signer.
type Provider struct {
	rpc      caller
	interval time.Duration
	log      *slog.Logger

	events chan wallet.ProviderEvent
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	mu       sync.Mutex
	accounts []common.Address
	chainID  *big.Int
}

// NewConnector returns the modal connector dialing cfg.URL on demand.
func NewConnector(cfg Config) wallet.Connector {
	return wallet.NewConnector(ConnectorName, func(ctx context.Context) (wallet.Provider, error) {
		return Dial(ctx, cfg)
	})
}

// Dial connects to the signer and starts watching it for changes.
func Dial(ctx context.Context, cfg Config) (*Provider, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("未配置钱包签名节点地址")
	}
	client, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("连接钱包签名节点失败: %w", err)
	}
	p := New(client, cfg.PollInterval)
	if err := p.Start(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// New wraps an established RPC client. Polling starts with Start.
func New(c caller, interval time.Duration) *Provider {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Provider{
		rpc:      c,
		interval: interval,
		log:      logger.Named("wallet.rpc"),
		events:   make(chan wallet.ProviderEvent, 8),
		stop:     make(chan struct{}),
	}
}

// Start primes the change detector and launches the polling goroutine.
func (p *Provider) Start(ctx context.Context) error {
	if err := p.prime(ctx); err != nil {
		return err
	}
	p.start()
	return nil
}

func (p *Provider) prime(ctx context.Context) error {
	accounts, err := p.Accounts(ctx)
	if err != nil {
		return err
	}
	chainID, err := p.ChainID(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.accounts = accounts
	p.chainID = chainID
	p.mu.Unlock()
	return nil
}

func (p *Provider) start() {
	p.wg.Add(1)
	go p.poll()
}

// Accounts implements wallet.Provider.
func (p *Provider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts 调用失败: %w", err)
	}
	return accounts, nil
}

// ChainID implements wallet.Provider.
func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := p.rpc.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return nil, fmt.Errorf("eth_chainId 调用失败: %w", err)
	}
	return (*big.Int)(&id), nil
}

// EstimateGas implements wallet.Provider.
func (p *Provider) EstimateGas(ctx context.Context, req web3.TransactionRequest) (uint64, error) {
	var gas hexutil.Uint64
	if err := p.rpc.CallContext(ctx, &gas, "eth_estimateGas", toCallArg(req)); err != nil {
		return 0, fmt.Errorf("eth_estimateGas 调用失败: %w", err)
	}
	return uint64(gas), nil
}

// SendTransaction implements wallet.Provider. The signer fills in the nonce
// and signs with the key of req.From.
func (p *Provider) SendTransaction(ctx context.Context, req web3.TransactionRequest) (common.Hash, error) {
	var hash common.Hash
	if err := p.rpc.CallContext(ctx, &hash, "eth_sendTransaction", toCallArg(req)); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction 调用失败: %w", err)
	}
	return hash, nil
}

// TransactionReceipt implements web3.ReceiptFetcher. Unknown or pending
// transactions yield ethereum.NotFound.
func (p *Provider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	if err := p.rpc.CallContext(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, gethcore.NotFound
	}
	return receipt, nil
}

// Events implements wallet.Provider.
func (p *Provider) Events() <-chan wallet.ProviderEvent {
	return p.events
}

// Close stops polling and closes the RPC connection. It is safe to call more
// than once.
func (p *Provider) Close() error {
	p.once.Do(func() {
		close(p.stop)
		p.wg.Wait()
		close(p.events)
		p.rpc.Close()
	})
	return nil
}

func (p *Provider) poll() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.check()
		}
	}
}

func (p *Provider) check() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	accounts, err := p.Accounts(ctx)
	if err != nil {
		p.log.Debug("轮询钱包账户失败", slog.Any("error", err))
		return
	}
	chainID, err := p.ChainID(ctx)
	if err != nil {
		p.log.Debug("轮询钱包链 ID 失败", slog.Any("error", err))
		return
	}

	p.mu.Lock()
	accountsChanged := !sameAccounts(p.accounts, accounts)
	chainChanged := p.chainID == nil || p.chainID.Cmp(chainID) != 0
	p.accounts = accounts
	p.chainID = chainID
	p.mu.Unlock()

	if accountsChanged {
		p.emit(wallet.ProviderEvent{Kind: wallet.EventAccountsChanged, Accounts: accounts, ChainID: chainID})
	}
	if chainChanged {
		p.emit(wallet.ProviderEvent{Kind: wallet.EventChainChanged, Accounts: accounts, ChainID: chainID})
	}
}

func (p *Provider) emit(ev wallet.ProviderEvent) {
	select {
	case p.events <- ev:
	case <-p.stop:
	}
}

func sameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toCallArg(req web3.TransactionRequest) map[string]interface{} {
	arg := map[string]interface{}{
		"from": req.From,
		"to":   req.To,
	}
	if len(req.Data) > 0 {
		arg["data"] = hexutil.Bytes(req.Data)
	}
	if req.GasPrice != nil {
		arg["gasPrice"] = (*hexutil.Big)(req.GasPrice)
	}
	if req.Gas != 0 {
		arg["gas"] = hexutil.Uint64(req.Gas)
	}
	return arg
}

var _ wallet.Provider = (*Provider)(nil)
