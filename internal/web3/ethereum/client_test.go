package ethereum

import (
	"context"
	"errors"
	"math/big"
	"testing"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

type fakeBackend struct {
	chainCalls int
	gasPrice   *big.Int
	callOut    []byte
	callErr    error
}

func (f *fakeBackend) CallContract(_ context.Context, _ gethcore.CallMsg, _ *big.Int) ([]byte, error) {
	return f.callOut, f.callErr
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeBackend) TransactionByHash(context.Context, common.Hash) (*coretypes.Transaction, bool, error) {
	return nil, false, gethcore.NotFound
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*coretypes.Receipt, error) {
	return nil, gethcore.NotFound
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	f.chainCalls++
	return big.NewInt(56), nil
}

func TestClientCachesChainID(t *testing.T) {
	backend := &fakeBackend{}
	client := NewClientWithBackend("bsc", backend)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := client.ChainID(ctx)
		if err != nil {
			t.Fatalf("chain id: %v", err)
		}
		if id.Int64() != 56 {
			t.Fatalf("unexpected chain id %s", id)
		}
	}
	if backend.chainCalls != 1 {
		t.Fatalf("expected a single upstream chain id lookup, got %d", backend.chainCalls)
	}
}

func TestClientWrapsCallErrors(t *testing.T) {
	upstream := errors.New("execution reverted")
	client := NewClientWithBackend("bsc", &fakeBackend{callErr: upstream, gasPrice: big.NewInt(5)})

	if _, err := client.CallContract(context.Background(), gethcore.CallMsg{}, nil); !errors.Is(err, upstream) {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}

	price, err := client.SuggestGasPrice(context.Background())
	if err != nil || price.Int64() != 5 {
		t.Fatalf("unexpected gas price %v, %v", price, err)
	}

	if _, err := client.TransactionReceipt(context.Background(), common.Hash{}); !errors.Is(err, gethcore.NotFound) {
		t.Fatalf("receipt lookups must surface NotFound unwrapped, got %v", err)
	}
}

func TestClientClosed(t *testing.T) {
	client := NewClientWithBackend("bsc", &fakeBackend{})
	client.Close()

	if _, err := client.SuggestGasPrice(context.Background()); err == nil {
		t.Fatal("expected error after close")
	}
	if client.Name() != "bsc" {
		t.Fatalf("unexpected name %q", client.Name())
	}
}
