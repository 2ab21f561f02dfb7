// Package push implements incremental execution: an Engine that owns one
// NodePushState and one Executor instance per DAG node, accepts
// (asset, timestamp, value) ticks, and propagates them through the
// descendant closure in topological order under a single-writer
// discipline.
package push

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tm1ddleton/analytics/internal/analytics/dag"
	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/registry"
	"github.com/tm1ddleton/analytics/internal/analytics/state"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
	"github.com/tm1ddleton/analytics/internal/platform/errors"
	"github.com/tm1ddleton/analytics/internal/platform/logging"
	"github.com/tm1ddleton/analytics/internal/platform/metrics"
)

const serviceName = "analytics-engine"

// Callback is invoked once per emitted NodeOutput, in registration order.
// A panic or error from a callback is caught and logged; it never aborts
// propagation or rolls back other nodes' updates.
type Callback func(nodeID dag.NodeID, output types.Point)

type subscription struct {
	id string
	cb Callback
}

// Engine owns all push-mode state for one DAG. PushData calls are
// serialized by mu; concurrent Latest/History/Lifecycle calls are safe and
// return copies.
type Engine struct {
	mu          sync.Mutex
	graph       *dag.Graph
	registry    *registry.Registry
	states      map[dag.NodeID]*state.NodePushState
	executors   map[dag.NodeID]types.Executor
	callbacks   map[dag.NodeID][]subscription
	subIndex    map[string]dag.NodeID
	initialized bool
	logger      *logging.Logger
	metrics     *metrics.Metrics
}

// New allocates a NodePushState and a fresh Executor instance for every
// node currently in g. Nodes resolved into g after New is called are not
// picked up; callers should finish DAG construction before constructing
// the push engine.
func New(g *dag.Graph, r *registry.Registry) (*Engine, error) {
	e := &Engine{
		graph:     g,
		registry:  r,
		states:    make(map[dag.NodeID]*state.NodePushState),
		executors: make(map[dag.NodeID]types.Executor),
		callbacks: make(map[dag.NodeID][]subscription),
		subIndex:  make(map[string]dag.NodeID),
		logger:    logging.Default(),
		metrics:   metrics.Global(),
	}

	for id := 0; id < g.Size(); id++ {
		nodeID := dag.NodeID(id)
		node, err := g.Node(nodeID)
		if err != nil {
			return nil, err
		}
		def, err := r.Get(node.Analytic)
		if err != nil {
			return nil, err
		}
		executor, err := def.NewExecutor(node.Key)
		if err != nil {
			return nil, err
		}
		e.executors[nodeID] = executor
		e.states[nodeID] = state.NewNodePushState(0)
	}

	return e, nil
}

// Initialize fills every node's buffers from historical data by replaying
// push_data in timestamp order over [endDate-lookback, endDate), one tick
// per (asset, timestamp) the provider reports. PushData rejects all calls
// until Initialize succeeds.
func (e *Engine) Initialize(ctx context.Context, provider types.Provider, assets []string, endDate time.Time, lookback time.Duration) error {
	start := endDate.Add(-lookback)
	rng := key.DateRange{Start: start, End: endDate}

	type tick struct {
		asset string
		ts    time.Time
		value float64
	}
	var ticks []tick

	for _, asset := range assets {
		series, err := provider.Query(ctx, asset, rng)
		if err != nil {
			return fmt.Errorf("push: initializing from provider for %s: %w", asset, err)
		}
		for _, p := range series {
			ticks = append(ticks, tick{asset: asset, ts: p.Timestamp, value: p.Value})
		}
	}

	// Stable sort by timestamp, preserving the per-asset order above for
	// ties — ordering across assets within one timestamp is significant.
	for i := 1; i < len(ticks); i++ {
		for j := i; j > 0 && ticks[j].ts.Before(ticks[j-1].ts); j-- {
			ticks[j], ticks[j-1] = ticks[j-1], ticks[j]
		}
	}

	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()

	for _, t := range ticks {
		if err := e.PushData(ctx, t.asset, t.ts, t.value); err != nil {
			return fmt.Errorf("push: initialize replay failed at %s/%s: %w", t.asset, t.ts, err)
		}
	}
	return nil
}

// PushData validates and applies one (asset, timestamp, value) tick,
// propagating it through the combined descendant closure of every
// DataProvider leaf matching asset, in topological order, so each node in
// that closure executes once per tick. Multiple calls
// within one caller-supplied batch must be issued sequentially by the
// caller; ordering across assets is preserved by the caller's call order.
func (e *Engine) PushData(ctx context.Context, asset string, timestamp time.Time, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return errors.InvalidPushValue(asset, value)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return errors.EngineNotInitialized()
	}

	leaves := e.graph.DataProviderLeavesForAsset(asset)
	if len(leaves) == 0 {
		return errors.AssetNotFound(asset)
	}

	for _, leaf := range leaves {
		leafState := e.states[leaf]
		if err := leafState.ValidateMonotonic(timestamp); err != nil {
			if leafState.HasLastTS && timestamp.Equal(leafState.LastTimestamp) {
				return errors.DuplicateTimestamp(int(leaf))
			}
			return errors.NonMonotonicTimestamp(int(leaf))
		}
	}

	descendants, err := e.graph.DescendantTopologicalOrder(leaves)
	if err != nil {
		return err
	}
	e.propagate(ctx, leaves, descendants, timestamp, value)

	return nil
}

// propagate drives execute_push for every node in order, skipping any
// node whose required parent failed this step and, per the engine's
// failure-isolation rule, skipping that node's own descendants within
// this same closure.
func (e *Engine) propagate(ctx context.Context, leaves []dag.NodeID, order []dag.NodeID, timestamp time.Time, leafValue float64) {
	skip := make(map[dag.NodeID]bool)
	isLeaf := make(map[dag.NodeID]bool, len(leaves))
	for _, l := range leaves {
		isLeaf[l] = true
	}

	for _, id := range order {
		st := e.states[id]
		st.BeginStep()

		if skip[id] {
			st.Fail("ancestor failed this step")
			e.metrics.RecordError(serviceName, "push_skip")
			continue
		}

		parentIDs := e.graph.Parents(id)
		snapshots := make([]types.Snapshot, len(parentIDs))
		missing := false
		for i, pid := range parentIDs {
			pState := e.states[pid]
			if pState.Lifecycle == state.Failed {
				missing = true
				break
			}
			if p, ok := pState.Latest(); ok {
				snapshots[i] = types.Snapshot{Value: p.Value, Present: true}
			}
		}

		if missing {
			st.Fail("required parent missing or failed")
			for _, d := range e.graph.Descendants(id) {
				skip[d] = true
			}
			e.metrics.RecordError(serviceName, "push_node_failed")
			continue
		}

		newValue := 0.0
		if isLeaf[id] {
			newValue = leafValue
		}

		executor := e.executors[id]
		stepStart := time.Now()
		point, err := executor.ExecutePush(snapshots, timestamp, newValue)
		if err != nil {
			st.Fail(err.Error())
			for _, d := range e.graph.Descendants(id) {
				skip[d] = true
			}
			e.logger.LogPushStep(ctx, int(id), "", err)
			e.metrics.RecordPushStep(serviceName, "error", time.Since(stepStart))
			e.metrics.RecordError(serviceName, "push_execute_failed")
			continue
		}

		st.Emit(point)
		e.logger.LogPushStep(ctx, int(id), "", nil)
		e.metrics.RecordPushStep(serviceName, "ok", time.Since(stepStart))
		e.dispatchCallbacks(id, point)
	}
}

// dispatchCallbacks invokes every registered callback for id in
// registration order, isolating panics so one observer's bug cannot break
// propagation or other observers.
func (e *Engine) dispatchCallbacks(id dag.NodeID, point types.Point) {
	for _, sub := range e.callbacks[id] {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error(context.Background(), "push callback panicked", fmt.Errorf("%v", r), map[string]interface{}{
						"node_id": int(id),
					})
				}
			}()
			sub.cb(id, point)
		}()
	}
}

// RegisterCallback adds a callback to node's list and returns a
// subscription id usable with UnregisterCallback.
func (e *Engine) RegisterCallback(node dag.NodeID, cb Callback) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := uuid.NewString()
	e.callbacks[node] = append(e.callbacks[node], subscription{id: id, cb: cb})
	e.subIndex[id] = node
	return id
}

// UnregisterCallback removes the subscription previously returned by
// RegisterCallback. It is a no-op if id is unknown.
func (e *Engine) UnregisterCallback(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	node, ok := e.subIndex[id]
	if !ok {
		return
	}
	delete(e.subIndex, id)
	subs := e.callbacks[node]
	for i, sub := range subs {
		if sub.id == id {
			e.callbacks[node] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Latest returns the most recently emitted point for node, if any.
func (e *Engine) Latest(node dag.NodeID) (types.Point, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[node]
	if !ok {
		return types.Point{}, false
	}
	return st.Latest()
}

// History returns a copy of node's emitted output history.
func (e *Engine) History(node dag.NodeID) []types.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[node]
	if !ok {
		return nil
	}
	return st.History()
}

// Lifecycle returns node's current lifecycle phase.
func (e *Engine) Lifecycle(node dag.NodeID) state.Lifecycle {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[node]
	if !ok {
		return state.Uninitialized
	}
	return st.Lifecycle
}
