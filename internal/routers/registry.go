package routers

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NativeTokenAddress is the sentinel used for the chain's native coin in swap facts
var NativeTokenAddress = common.Address{}

// Registry maps lowercase router addresses to venue information. It is
// read-mostly: entries are loaded once at startup.
type Registry struct {
	mu            sync.RWMutex
	routers       map[string]RouterInfo
	wrappedNative map[uint64]common.Address
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		routers:       make(map[string]RouterInfo),
		wrappedNative: make(map[uint64]common.Address),
	}
}

// NewDefaultRegistry creates a registry seeded with the deployed router table
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for addr, info := range defaultRouters {
		r.Register(addr, info)
	}
	for chainID, addr := range defaultWrappedNative {
		r.SetWrappedNative(chainID, common.HexToAddress(addr))
	}
	return r
}

// Register adds or replaces a router entry
func (r *Registry) Register(address string, info RouterInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routers[canonical(address)] = info
}

// SetWrappedNative records the wrapped-native token contract for a chain
func (r *Registry) SetWrappedNative(chainID uint64, token common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wrappedNative[chainID] = token
}

// Classify looks up a router by address. Comparison is case-insensitive.
func (r *Registry) Classify(address string) (RouterInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.routers[canonical(address)]
	return info, ok
}

// ClassifyAddress is Classify for an already-parsed address
func (r *Registry) ClassifyAddress(address common.Address) (RouterInfo, bool) {
	return r.Classify(address.Hex())
}

// WrappedNative returns the wrapped-native token for a chain
func (r *Registry) WrappedNative(chainID uint64) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.wrappedNative[chainID]
	return addr, ok
}

// Len returns the number of registered routers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routers)
}

func canonical(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
