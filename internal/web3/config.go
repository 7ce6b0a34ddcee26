package web3

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	xerrors "cuffie-gateway/internal/errors"
)

// Well known network names shipped with the gateway.
const (
	NetworkBSC        = "bsc"
	NetworkBSCTestnet = "bsc-testnet"
)

// NetworkDefinitions models the structure of configs/networks.yaml.
type NetworkDefinitions struct {
	Networks map[string]NetworkDefinition `yaml:"networks"`
}

// NetworkDefinition pins the chain, the public read-only endpoint and the two
// contracts the gateway talks to.
type NetworkDefinition struct {
	ChainID        uint64 `yaml:"chain_id"`
	RPCURL         string `yaml:"rpc_url"`
	SaleAddress    string `yaml:"sale_address"`
	StableAddress  string `yaml:"stable_address"`
	StableDecimals uint8  `yaml:"stable_decimals"`
	Description    string `yaml:"description"`
}

// DefaultNetworks returns the built-in BSC mainnet and testnet definitions.
func DefaultNetworks() NetworkDefinitions {
	return NetworkDefinitions{Networks: map[string]NetworkDefinition{
		NetworkBSC: {
			ChainID:        56,
			RPCURL:         "https://bsc-dataseed.binance.org/",
			SaleAddress:    "0xe955fF55ce375cDb862460c46deaB710b38bE453",
			StableAddress:  "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56",
			StableDecimals: 18,
			Description:    "BNB Smart Chain mainnet",
		},
		NetworkBSCTestnet: {
			ChainID:        97,
			RPCURL:         "https://data-seed-prebsc-1-s1.binance.org:8545/",
			SaleAddress:    "0xe955fF55ce375cDb862460c46deaB710b38bE453",
			StableAddress:  "0x8301f2213c0eed49a7e28ae4c3e91722919b8b47",
			StableDecimals: 18,
			Description:    "BNB Smart Chain testnet",
		},
	}}
}

// LoadNetworkDefinitions parses the YAML file and overlays it on the built-in
// defaults. An empty path yields the defaults unchanged.
func LoadNetworkDefinitions(path string) (NetworkDefinitions, error) {
	defs := DefaultNetworks()
	if strings.TrimSpace(path) == "" {
		return defs, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return NetworkDefinitions{}, fmt.Errorf("读取网络配置失败: %w", err)
	}

	var parsed NetworkDefinitions
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		return NetworkDefinitions{}, fmt.Errorf("解析网络配置失败: %w", err)
	}
	for name, def := range parsed.Networks {
		name = strings.ToLower(strings.TrimSpace(name))
		if def.StableDecimals == 0 {
			def.StableDecimals = 18
		}
		defs.Networks[name] = def
	}
	return defs, nil
}

// Lookup returns the named network after validating it.
func (d NetworkDefinitions) Lookup(name string) (NetworkDefinition, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = NetworkBSC
	}
	def, ok := d.Networks[key]
	if !ok {
		return NetworkDefinition{}, xerrors.New(xerrors.CodeNotFound,
			fmt.Sprintf("网络 %s 未在配置中找到，可选: %s", key, strings.Join(d.Names(), ", ")))
	}
	if err := def.Validate(); err != nil {
		return NetworkDefinition{}, fmt.Errorf("网络 %s: %w", key, err)
	}
	return def, nil
}

// Names lists the configured network names in lexical order.
func (d NetworkDefinitions) Names() []string {
	names := make([]string, 0, len(d.Networks))
	for name := range d.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the definition can drive the gateway.
func (n NetworkDefinition) Validate() error {
	if n.ChainID == 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "chain_id 不能为空")
	}
	if strings.TrimSpace(n.RPCURL) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "rpc_url 不能为空")
	}
	if !common.IsHexAddress(n.SaleAddress) {
		return xerrors.New(xerrors.CodeInvalidArgument, "sale_address 不是合法地址")
	}
	if !common.IsHexAddress(n.StableAddress) {
		return xerrors.New(xerrors.CodeInvalidArgument, "stable_address 不是合法地址")
	}
	return nil
}

// Sale returns the token-sale contract address.
func (n NetworkDefinition) Sale() common.Address {
	return common.HexToAddress(n.SaleAddress)
}

// Stable returns the stablecoin contract address.
func (n NetworkDefinition) Stable() common.Address {
	return common.HexToAddress(n.StableAddress)
}
