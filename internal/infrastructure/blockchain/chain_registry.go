package blockchain

import (
	"github.com/builders-garden/swifty/internal/domain/entities"
)

// ChainRegistry resolves chain definitions, preferring configured RPC endpoints
type ChainRegistry struct {
	overrides map[uint64]string
}

// NewChainRegistry creates a registry with per-chain RPC overrides
func NewChainRegistry(overrides map[uint64]string) *ChainRegistry {
	copied := make(map[uint64]string, len(overrides))
	for id, url := range overrides {
		copied[id] = url
	}
	return &ChainRegistry{overrides: copied}
}

// Lookup returns the definition for chainID
func (r *ChainRegistry) Lookup(chainID uint64) (entities.ChainDefinition, bool) {
	def, ok := entities.LookupChain(chainID)
	if !ok {
		return entities.ChainDefinition{}, false
	}
	if url, ok := r.overrides[chainID]; ok && url != "" {
		def.RPCURLs = append([]string{url}, def.RPCURLs...)
	}
	return def, true
}
