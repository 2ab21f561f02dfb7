// Package registry maps each AnalyticType to its Definition: a factory for
// the executor it resolves to, and the dependency function that produces
// its parent keys, including the burn-in lookback each dependency function
// bakes into the parent range. Registration happens once at startup; the
// registry is immutable after Freeze.
package registry

import (
	"sync"

	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
	"github.com/tm1ddleton/analytics/internal/platform/errors"
)

// DependencyFunc returns the ordered parent keys for a resolved node's key.
// This is the only place burn-in lookback is introduced: a dependency
// function inflates the range it hands to a parent key to cover the
// window/lag that parent needs to prime before the child's own range
// starts producing valid output.
type DependencyFunc func(k key.NodeKey) ([]key.NodeKey, error)

// ExecutorFactory builds a fresh, node-owned types.Executor for k. A
// factory (not a shared value) is required because windowed/incremental
// executors carry per-node mutable state (§3.6: windows are never shared
// across nodes).
type ExecutorFactory func(k key.NodeKey) (types.Executor, error)

// Definition carries everything the engine needs to compile one analytic
// type: how to build its executor and how to derive its parents.
type Definition struct {
	Analytic     key.AnalyticType
	NewExecutor  ExecutorFactory
	Dependencies DependencyFunc
}

// Registry is an immutable-after-freeze mapping from AnalyticType to
// Definition, looked up in constant time.
type Registry struct {
	mu     sync.RWMutex
	defs   map[key.AnalyticType]Definition
	frozen bool
}

// New returns an empty, mutable registry.
func New() *Registry {
	return &Registry{defs: make(map[key.AnalyticType]Definition)}
}

// Register adds a definition. It panics if called after Freeze — consistent
// with the startup-only registration contract; this is a programming error,
// not a runtime condition callers should recover from.
func (r *Registry) Register(d Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("registry: Register called after Freeze")
	}
	r.defs[d.Analytic] = d
}

// Freeze marks the registry immutable. Idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get returns the definition for analytic, or UnknownAnalytic if none was
// registered.
func (r *Registry) Get(analytic key.AnalyticType) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[analytic]
	if !ok {
		return Definition{}, errors.UnknownAnalytic(string(analytic))
	}
	return d, nil
}
