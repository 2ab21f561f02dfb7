// Package pull implements batch execution: compiling a root's ancestor
// closure, executing it in topological order against a per-invocation
// cache, and trimming the result to the caller's requested range.
package pull

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tm1ddleton/analytics/internal/analytics/dag"
	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/registry"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
	"github.com/tm1ddleton/analytics/internal/platform/errors"
	"github.com/tm1ddleton/analytics/internal/platform/logging"
)

// Engine executes pull-mode requests against a fixed graph and registry.
// It holds no per-request state; every ExecutePull call owns its own cache.
type Engine struct {
	Graph    *dag.Graph
	Registry *registry.Registry
	Provider types.Provider
	logger   *logging.Logger
}

// New builds a pull Engine over an already-resolved graph.
func New(g *dag.Graph, r *registry.Registry, provider types.Provider) *Engine {
	return &Engine{Graph: g, Registry: r, Provider: provider, logger: logging.Default()}
}

// ExecutePull produces the root node's series over userRange. Each node's
// own extended range — with whatever burn-in its dependency function baked
// in at resolution time — is read from its NodeKey; only the final trim
// uses userRange.
func (e *Engine) ExecutePull(ctx context.Context, rootID dag.NodeID, userRange key.DateRange) (types.Series, error) {
	start := time.Now()

	order, err := e.Graph.TopologicalOrder([]dag.NodeID{rootID})
	if err != nil {
		e.logger.LogPullExecution(ctx, "", 0, time.Since(start), err)
		return nil, err
	}

	cache, err := newSeriesCache(len(order))
	if err != nil {
		e.logger.LogPullExecution(ctx, "", 0, time.Since(start), err)
		return nil, err
	}
	failed := make(map[dag.NodeID]string, len(order))
	e.runOrder(ctx, order, cache, failed)

	rootNode, _ := e.Graph.Node(rootID)
	if reason, ok := failed[rootID]; ok {
		err := errors.NodeFailed(int(rootID), reason)
		e.logger.LogPullExecution(ctx, string(rootNode.Analytic), len(order), time.Since(start), err)
		return nil, err
	}

	e.logger.LogPullExecution(ctx, string(rootNode.Analytic), len(order), time.Since(start), nil)
	rootSeries, _ := cache.Get(rootID)
	return rootSeries.Trim(userRange.Start, userRange.End), nil
}

// seriesCache is a bounded LRU cache from node to its computed pull series,
// sized to exactly the number of nodes one invocation will ever compute so
// eviction never actually occurs: every entry is read at least once more
// (by a child) before the invocation returns and the cache is discarded.
type seriesCache struct {
	inner *lru.Cache[dag.NodeID, types.Series]
}

func newSeriesCache(capacity int) (*seriesCache, error) {
	if capacity < 1 {
		capacity = 1
	}
	inner, err := lru.New[dag.NodeID, types.Series](capacity)
	if err != nil {
		return nil, fmt.Errorf("pull: building series cache: %w", err)
	}
	return &seriesCache{inner: inner}, nil
}

func (c *seriesCache) Get(id dag.NodeID) (types.Series, bool) {
	return c.inner.Get(id)
}

func (c *seriesCache) Has(id dag.NodeID) bool {
	return c.inner.Contains(id)
}

func (c *seriesCache) Set(id dag.NodeID, s types.Series) {
	c.inner.Add(id, s)
}

func (c *seriesCache) Len() int {
	return c.inner.Len()
}

// CloneInto copies every entry of c into dst. Used to seed each root's
// private cache from a shared prefix computed once up front.
func (c *seriesCache) CloneInto(dst *seriesCache) {
	for _, id := range c.inner.Keys() {
		if v, ok := c.inner.Peek(id); ok {
			dst.Set(id, v)
		}
	}
}

// runOrder executes every node in order against cache/failed, which the
// caller owns and may have pre-seeded (e.g. with results shared across
// several roots). Nodes already present in cache or failed are not
// recomputed.
func (e *Engine) runOrder(ctx context.Context, order []dag.NodeID, cache *seriesCache, failed map[dag.NodeID]string) {
	for _, id := range order {
		if cache.Has(id) {
			continue
		}
		if _, done := failed[id]; done {
			continue
		}
		node, err := e.Graph.Node(id)
		if err != nil {
			failed[id] = err.Error()
			continue
		}

		parentIDs := e.Graph.Parents(id)
		parentSeries := make([]types.Series, len(parentIDs))
		var failReason string
		for i, pid := range parentIDs {
			if reason, ok := failed[pid]; ok {
				failReason = fmt.Sprintf("parent node %d failed: %s", pid, reason)
				break
			}
			parentSeries[i], _ = cache.Get(pid)
		}
		if failReason != "" {
			failed[id] = failReason
			continue
		}

		def, err := e.Registry.Get(node.Analytic)
		if err != nil {
			failed[id] = err.Error()
			continue
		}
		executor, err := def.NewExecutor(node.Key)
		if err != nil {
			failed[id] = err.Error()
			continue
		}

		nodeRange := key.DateRange{}
		if node.Key.Range != nil {
			nodeRange = *node.Key.Range
		}

		series, err := executor.ExecutePull(ctx, parentSeries, nodeRange, e.Provider)
		if err != nil {
			failed[id] = err.Error()
			continue
		}
		cache.Set(id, series)
	}
}
