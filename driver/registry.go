package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory opens a Driver for the given configuration. Backends register one
// per kind, typically from their package init functions.
type Factory func(ctx context.Context, cfg Config) (Driver, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the Factory for a driver kind. It is
// typically called from backend packages' init() functions; tests may
// re-register a kind to substitute a fake.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// Connect locates the Factory for cfg.Kind and invokes it. Callers do not
// need to know which backend they are using; they pass the configuration and
// receive a connected Driver.
//
// If no factory has been registered for the kind, an error is returned.
func Connect(ctx context.Context, cfg Config) (Driver, error) {
	regMu.RLock()
	fn, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported driver.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered driver kinds.
// Mutating the returned slice does not affect the registry.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
