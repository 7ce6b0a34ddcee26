package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cuffie-gateway/internal/web3"
)

// EventKind names a change reported by a provider.
type EventKind string

const (
	EventAccountsChanged EventKind = "accountsChanged"
	EventChainChanged    EventKind = "chainChanged"
	EventNetworkChanged  EventKind = "networkChanged"
)

// ProviderEvent is emitted when the wallet behind a provider switches account
// or network.
type ProviderEvent struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  *big.Int
}

// Provider is an active wallet connection able to sign and submit
// transactions. Providers that hold resources also implement io.Closer.
type Provider interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, req web3.TransactionRequest) (uint64, error)
	SendTransaction(ctx context.Context, req web3.TransactionRequest) (common.Hash, error)
	web3.ReceiptFetcher

	// Events may return nil when the provider never reports changes.
	Events() <-chan ProviderEvent
}

// Connector opens a provider of one kind, e.g. a JSON-RPC signer or a local key.
type Connector interface {
	Name() string
	Connect(ctx context.Context) (Provider, error)
}

type connectorFunc struct {
	name    string
	connect func(ctx context.Context) (Provider, error)
}

func (c connectorFunc) Name() string { return c.name }

func (c connectorFunc) Connect(ctx context.Context) (Provider, error) { return c.connect(ctx) }

// NewConnector adapts a function into a named Connector.
func NewConnector(name string, connect func(ctx context.Context) (Provider, error)) Connector {
	return connectorFunc{name: name, connect: connect}
}
