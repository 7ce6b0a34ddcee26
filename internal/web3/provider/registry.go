package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuffie-gateway/internal/web3"
	"cuffie-gateway/internal/web3/ethereum"
)

// Dialer builds the read-only client for a network definition.
type Dialer func(ctx context.Context, name string, def web3.NetworkDefinition) (*ethereum.Client, error)

// Registry hands out read-only chain clients keyed by network name. Clients
// are dialed on first use and shared afterwards.
type Registry struct {
	defaultNetwork string
	defs           web3.NetworkDefinitions
	dial           Dialer

	mu      sync.Mutex
	clients map[string]*ethereum.Client
}

// NewRegistry validates the default network and prepares lazy clients.
func NewRegistry(defs web3.NetworkDefinitions, defaultNetwork string, dial Dialer) (*Registry, error) {
	if len(defs.Networks) == 0 {
		return nil, errors.New("未配置任何网络")
	}
	defaultNetwork = strings.ToLower(strings.TrimSpace(defaultNetwork))
	if defaultNetwork == "" {
		defaultNetwork = web3.NetworkBSC
	}
	if _, err := defs.Lookup(defaultNetwork); err != nil {
		return nil, err
	}
	if dial == nil {
		dial = dialEthereum
	}
	return &Registry{
		defaultNetwork: defaultNetwork,
		defs:           defs,
		dial:           dial,
		clients:        make(map[string]*ethereum.Client),
	}, nil
}

func dialEthereum(ctx context.Context, name string, def web3.NetworkDefinition) (*ethereum.Client, error) {
	return ethereum.NewClient(ctx, ethereum.Config{Name: name, RPCURL: def.RPCURL})
}

// Default returns the definition and client of the default network.
func (r *Registry) Default(ctx context.Context) (web3.NetworkDefinition, *ethereum.Client, error) {
	return r.Network(ctx, r.defaultNetwork)
}

// Network returns the definition and client for the named network.
func (r *Registry) Network(ctx context.Context, name string) (web3.NetworkDefinition, *ethereum.Client, error) {
	if r == nil {
		return web3.NetworkDefinition{}, nil, errors.New("未初始化的网络注册表")
	}
	key := strings.ToLower(strings.TrimSpace(name))
	def, err := r.defs.Lookup(key)
	if err != nil {
		return web3.NetworkDefinition{}, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[key]; ok {
		return def, client, nil
	}
	client, err := r.dial(ctx, key, def)
	if err != nil {
		return web3.NetworkDefinition{}, nil, fmt.Errorf("初始化网络 %s 失败: %w", key, err)
	}
	r.clients[key] = client
	return def, client, nil
}

// Close releases all clients dialed so far.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, client := range r.clients {
		if client != nil {
			client.Close()
		}
		delete(r.clients, name)
	}
}

// Networks returns the configured network names.
func (r *Registry) Networks() []string {
	if r == nil {
		return nil
	}
	names := r.defs.Names()
	sort.Strings(names)
	return names
}
