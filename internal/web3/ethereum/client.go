package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"cuffie-gateway/internal/web3"
)

// Config describes how to reach the public read-only endpoint of a network.
type Config struct {
	Name   string
	RPCURL string
}

// backend is the subset of ethclient.Client the read-only client relies on.
type backend interface {
	gethcore.ContractCaller
	gethcore.GasPricer
	gethcore.TransactionReader
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client is a read-only EVM client used for contract calls, gas price
// lookups and receipt polling. It never signs or submits transactions.
type Client struct {
	name      string
	rpcClient *gethrpc.Client
	eth       *ethclient.Client
	backend   backend

	mu      sync.Mutex
	chainID *big.Int
}

// NewClient dials the configured RPC endpoint.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置只读 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接只读节点失败: %w", err)
	}
	eth := ethclient.NewClient(rpcClient)
	return &Client{name: cfg.Name, rpcClient: rpcClient, eth: eth, backend: eth}, nil
}

// NewClientWithBackend wraps an already constructed backend, e.g. a
// simulated chain in tests.
func NewClientWithBackend(name string, b backend) *Client {
	return &Client{name: name, backend: b}
}

// Name returns the network name the client was built for.
func (c *Client) Name() string {
	return c.name
}

// CallContract executes a read-only message call.
func (c *Client) CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b, err := c.get()
	if err != nil {
		return nil, err
	}
	out, err := b.CallContract(ctx, call, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("合约只读调用失败: %w", err)
	}
	return out, nil
}

// SuggestGasPrice returns the network's current gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	b, err := c.get()
	if err != nil {
		return nil, err
	}
	price, err := b.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询 gas price 失败: %w", err)
	}
	return price, nil
}

// TransactionReceipt returns the receipt of a mined transaction. Not-yet-mined
// transactions yield ethereum.NotFound unwrapped so callers can poll.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*coretypes.Receipt, error) {
	b, err := c.get()
	if err != nil {
		return nil, err
	}
	return b.TransactionReceipt(ctx, hash)
}

// ChainID returns the chain id reported by the endpoint, cached after the
// first successful lookup.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	cached := c.chainID
	b := c.backend
	c.mu.Unlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}
	if b == nil {
		return nil, errors.New("只读客户端已关闭")
	}

	id, err := b.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取链 ID 失败: %w", err)
	}
	c.mu.Lock()
	c.chainID = new(big.Int).Set(id)
	c.mu.Unlock()
	return id, nil
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	c.rpcClient = nil
	c.backend = nil
}

func (c *Client) get() (backend, error) {
	if c == nil {
		return nil, errors.New("未初始化的只读客户端")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend == nil {
		return nil, errors.New("只读客户端已关闭")
	}
	return c.backend, nil
}

var (
	_ web3.ChainReader    = (*Client)(nil)
	_ web3.ReceiptFetcher = (*Client)(nil)
)
