// Package provider implements types.Provider: the boundary between the
// analytics engine and historical price data. InMemory is a reference
// implementation used by tests and local development; Postgres,
// RedisCaching, and Resilient wrap a provider with persistence, caching,
// and fault tolerance respectively.
package provider

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
	"github.com/tm1ddleton/analytics/internal/platform/errors"
)

// InMemory serves price series and calendars from an in-process map. It is
// safe for concurrent use.
type InMemory struct {
	mu   sync.RWMutex
	data map[string]types.Series
}

// NewInMemory returns an empty InMemory provider.
func NewInMemory() *InMemory {
	return &InMemory{data: make(map[string]types.Series)}
}

// Seed replaces asset's entire series. Points need not be pre-sorted.
func (m *InMemory) Seed(asset string, series types.Series) {
	sorted := append(types.Series(nil), series...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[asset] = sorted
}

// Query returns asset's points within rng, or AssetNotFound if asset is
// unknown.
func (m *InMemory) Query(ctx context.Context, asset string, rng key.DateRange) (types.Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	series, ok := m.data[asset]
	if !ok {
		return nil, errors.AssetNotFound(asset)
	}
	return series.Trim(rng.Start, rng.End), nil
}

// Calendar returns the timestamps asset has observations for within rng.
func (m *InMemory) Calendar(ctx context.Context, asset string, rng key.DateRange) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	series, ok := m.data[asset]
	if !ok {
		return nil, errors.AssetNotFound(asset)
	}
	trimmed := series.Trim(rng.Start, rng.End)
	out := make([]time.Time, len(trimmed))
	for i, p := range trimmed {
		out[i] = p.Timestamp
	}
	return out, nil
}
