// Package keyed signs transactions with a local ECDSA key. It is meant for
// operators and automation that hold their own key instead of an external
// wallet.
package keyed

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"cuffie-gateway/internal/wallet"
	"cuffie-gateway/internal/web3"
)

// ConnectorName is the modal option name of the local key signer.
const ConnectorName = "keyed"

// DefaultKeyEnv is read when no environment variable name is configured.
const DefaultKeyEnv = "CUFFIE_PRIVATE_KEY"

// Config describes where the key lives and which node broadcasts.
type Config struct {
	RPCURL        string
	PrivateKeyEnv string
}

// backend is the subset of ethclient.Client used for signing and broadcast.
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, call gethcore.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Provider is a wallet.Provider holding a single private key.
type Provider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	backend backend
	closer  func()

	mu        sync.Mutex
	closeOnce sync.Once
}

// NewConnector returns the modal connector loading the key on demand.
func NewConnector(cfg Config) wallet.Connector {
	return wallet.NewConnector(ConnectorName, func(ctx context.Context) (wallet.Provider, error) {
		return Dial(ctx, cfg)
	})
}

// Dial loads the key from the environment and connects to the node.
func Dial(ctx context.Context, cfg Config) (*Provider, error) {
	envName := strings.TrimSpace(cfg.PrivateKeyEnv)
	if envName == "" {
		envName = DefaultKeyEnv
	}
	hexKey := strings.TrimSpace(os.Getenv(envName))
	if hexKey == "" {
		return nil, fmt.Errorf("环境变量 %s 未设置私钥", envName)
	}
	key, err := ParseKey(hexKey)
	if err != nil {
		return nil, err
	}

	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置广播节点地址")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接广播节点失败: %w", err)
	}
	p := New(key, client)
	p.closer = client.Close
	return p, nil
}

// ParseKey decodes a hex private key with or without the 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}
	return key, nil
}

// New binds a key to a backend.
func New(key *ecdsa.PrivateKey, b backend) *Provider {
	return &Provider{key: key, address: crypto.PubkeyToAddress(key.PublicKey), backend: b}
}

// Address returns the account controlled by the key.
func (p *Provider) Address() common.Address {
	return p.address
}

// Accounts implements wallet.Provider.
func (p *Provider) Accounts(context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

// ChainID implements wallet.Provider.
func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := p.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取链 ID 失败: %w", err)
	}
	return id, nil
}

// EstimateGas implements wallet.Provider.
func (p *Provider) EstimateGas(ctx context.Context, req web3.TransactionRequest) (uint64, error) {
	gas, err := p.backend.EstimateGas(ctx, req.CallMsg())
	if err != nil {
		return 0, fmt.Errorf("估算 gas 失败: %w", err)
	}
	return gas, nil
}

// SendTransaction signs a legacy transaction and broadcasts it. Requests from
// any address other than the key's are rejected.
func (p *Provider) SendTransaction(ctx context.Context, req web3.TransactionRequest) (common.Hash, error) {
	if req.From != p.address {
		return common.Hash{}, fmt.Errorf("私钥无法为地址 %s 签名", req.From.Hex())
	}
	if req.GasPrice == nil {
		return common.Hash{}, errors.New("交易缺少 gas price")
	}

	// nonce lookup and broadcast must not interleave between concurrent sends
	p.mu.Lock()
	defer p.mu.Unlock()

	chainID, err := p.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := p.backend.PendingNonceAt(ctx, p.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("获取 nonce 失败: %w", err)
	}

	to := req.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      req.Gas,
		GasPrice: new(big.Int).Set(req.GasPrice),
		Data:     req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), p.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("签名交易失败: %w", err)
	}
	if err := p.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("广播交易失败: %w", err)
	}
	return signed.Hash(), nil
}

// TransactionReceipt implements web3.ReceiptFetcher.
func (p *Provider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return p.backend.TransactionReceipt(ctx, hash)
}

// Events implements wallet.Provider. A local key never switches account or
// chain on its own.
func (p *Provider) Events() <-chan wallet.ProviderEvent {
	return nil
}

// Close releases the node connection. It is safe to call more than once and
// concurrently with SendTransaction.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		if p.closer != nil {
			p.closer()
		}
	})
	return nil
}

var _ wallet.Provider = (*Provider)(nil)
