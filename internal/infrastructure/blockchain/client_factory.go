package blockchain

import (
	"fmt"
	"sync"
)

var beforeGetBackendWriteLockHook = func(string) {}

// ClientFactory manages blockchain clients
type ClientFactory struct {
	backends map[string]Backend
	mu       sync.RWMutex
}

// NewClientFactory creates a new client factory
func NewClientFactory() *ClientFactory {
	return &ClientFactory{
		backends: make(map[string]Backend),
	}
}

// GetBackend returns a backend for the given RPC URL.
// If a client already exists for the URL, it returns the cached client.
func (f *ClientFactory) GetBackend(rpcURL string) (Backend, error) {
	f.mu.RLock()
	backend, ok := f.backends[rpcURL]
	f.mu.RUnlock()
	if ok {
		return backend, nil
	}

	beforeGetBackendWriteLockHook(rpcURL)

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double check
	if backend, ok := f.backends[rpcURL]; ok {
		return backend, nil
	}

	newClient, err := NewEVMClient(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create EVM client: %w", err)
	}

	f.backends[rpcURL] = newClient
	return newClient, nil
}

// RegisterBackend injects/overrides the cached backend for a specific rpcURL.
func (f *ClientFactory) RegisterBackend(rpcURL string, backend Backend) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backends[rpcURL] = backend
}

// Close closes every dialed EVM client
func (f *ClientFactory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for url, backend := range f.backends {
		if c, ok := backend.(*EVMClient); ok {
			c.Close()
		}
		delete(f.backends, url)
	}
}
