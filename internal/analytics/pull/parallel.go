package pull

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/tm1ddleton/analytics/internal/analytics/dag"
	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
)

// RootResult is one root's outcome from ExecutePullParallel: at most one of
// Series/Err is set.
type RootResult struct {
	Series types.Series
	Err    error
}

// ExecutePullParallel computes every root's series, executing nodes shared
// by more than one root exactly once. Sharing is detected by counting, for
// each node in the union ancestor closure, how many roots' individual
// ancestor closures contain it; a count of two or more marks it shared.
// Shared nodes are executed sequentially first (in the union's topological
// order) to build an immutable prefix cache; each root's remaining,
// unshared subtree is then computed concurrently on a bounded worker pool
// against a private copy of that cache. A failure in one root's subtree
// does not affect the others.
func (e *Engine) ExecutePullParallel(ctx context.Context, roots []dag.NodeID, userRange key.DateRange, maxWorkers int) (map[dag.NodeID]RootResult, error) {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if len(roots) == 0 {
		return map[dag.NodeID]RootResult{}, nil
	}

	perRootOrder := make(map[dag.NodeID][]dag.NodeID, len(roots))
	refCount := make(map[dag.NodeID]int)
	for _, root := range roots {
		order, err := e.Graph.TopologicalOrder([]dag.NodeID{root})
		if err != nil {
			return nil, err
		}
		perRootOrder[root] = order
		for _, n := range order {
			refCount[n]++
		}
	}

	unionOrder, err := e.Graph.TopologicalOrder(roots)
	if err != nil {
		return nil, err
	}

	shared := make(map[dag.NodeID]bool)
	for _, n := range unionOrder {
		if refCount[n] > 1 {
			shared[n] = true
		}
	}

	sharedOrder := make([]dag.NodeID, 0, len(shared))
	for _, n := range unionOrder {
		if shared[n] {
			sharedOrder = append(sharedOrder, n)
		}
	}

	sharedCache, err := newSeriesCache(len(unionOrder))
	if err != nil {
		return nil, err
	}
	sharedFailed := make(map[dag.NodeID]string, len(sharedOrder))
	e.runOrder(ctx, sharedOrder, sharedCache, sharedFailed)

	results := make(map[dag.NodeID]RootResult, len(roots))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxWorkers)

	var merr *multierror.Error
	var merrMu sync.Mutex

	for _, root := range roots {
		root := root
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			cache, cacheErr := newSeriesCache(len(sharedOrder) + len(perRootOrder[root]))
			if cacheErr != nil {
				mu.Lock()
				results[root] = RootResult{Err: cacheErr}
				mu.Unlock()
				return
			}
			sharedCache.CloneInto(cache)
			failed := make(map[dag.NodeID]string, len(sharedFailed))
			for k, v := range sharedFailed {
				failed[k] = v
			}

			e.runOrder(ctx, perRootOrder[root], cache, failed)

			var result RootResult
			if reason, ok := failed[root]; ok {
				result.Err = fmt.Errorf("pull: root %d failed: %s", root, reason)
			} else {
				rootSeries, _ := cache.Get(root)
				result.Series = rootSeries.Trim(userRange.Start, userRange.End)
			}

			mu.Lock()
			results[root] = result
			mu.Unlock()

			if result.Err != nil {
				merrMu.Lock()
				merr = multierror.Append(merr, result.Err)
				merrMu.Unlock()
			}
		}()
	}

	wg.Wait()
	return results, merr.ErrorOrNil()
}
