package entities

import "sort"

// NativeCurrency describes a chain's gas token
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// ChainDefinition carries what a wallet needs to register a chain
type ChainDefinition struct {
	ChainID          uint64         `json:"chainId"`
	Name             string         `json:"name"`
	RPCURLs          []string       `json:"rpcUrls"`
	NativeCurrency   NativeCurrency `json:"nativeCurrency"`
	BlockExplorerURL string         `json:"blockExplorerUrl,omitempty"`
}

const (
	ChainIDEthereum uint64 = 1
	ChainIDOptimism uint64 = 10
	ChainIDPolygon  uint64 = 137
	ChainIDBase     uint64 = 8453
	ChainIDArbitrum uint64 = 42161
)

var ether = NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18}

var knownChains = map[uint64]ChainDefinition{
	ChainIDEthereum: {
		ChainID:          ChainIDEthereum,
		Name:             "Ethereum",
		RPCURLs:          []string{"https://eth.merkle.io"},
		NativeCurrency:   ether,
		BlockExplorerURL: "https://etherscan.io",
	},
	ChainIDOptimism: {
		ChainID:          ChainIDOptimism,
		Name:             "OP Mainnet",
		RPCURLs:          []string{"https://mainnet.optimism.io"},
		NativeCurrency:   ether,
		BlockExplorerURL: "https://optimistic.etherscan.io",
	},
	ChainIDPolygon: {
		ChainID:          ChainIDPolygon,
		Name:             "Polygon",
		RPCURLs:          []string{"https://polygon-rpc.com"},
		NativeCurrency:   NativeCurrency{Name: "POL", Symbol: "POL", Decimals: 18},
		BlockExplorerURL: "https://polygonscan.com",
	},
	ChainIDBase: {
		ChainID:          ChainIDBase,
		Name:             "Base",
		RPCURLs:          []string{"https://mainnet.base.org"},
		NativeCurrency:   ether,
		BlockExplorerURL: "https://basescan.org",
	},
	ChainIDArbitrum: {
		ChainID:          ChainIDArbitrum,
		Name:             "Arbitrum One",
		RPCURLs:          []string{"https://arb1.arbitrum.io/rpc"},
		NativeCurrency:   ether,
		BlockExplorerURL: "https://arbiscan.io",
	},
}

// LookupChain returns the known definition for chainID
func LookupChain(chainID uint64) (ChainDefinition, bool) {
	def, ok := knownChains[chainID]
	if !ok {
		return ChainDefinition{}, false
	}
	def.RPCURLs = append([]string(nil), def.RPCURLs...)
	return def, true
}

// KnownChains returns every known chain definition ordered by chain id
func KnownChains() []ChainDefinition {
	out := make([]ChainDefinition, 0, len(knownChains))
	for id := range knownChains {
		def, _ := LookupChain(id)
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// ChainName returns the display name for chainID, or an empty string
func ChainName(chainID uint64) string {
	return knownChains[chainID].Name
}
