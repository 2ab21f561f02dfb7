// Package exec implements the canonical executors: DataProviderExecutor,
// MergeExecutor, and WindowedAnalyticExecutor, plus the Lag and Returns
// executors that delegate their pull behavior to the push-from-pull bridge.
// Every executor instance belongs to exactly one node: any window state it
// holds is owned by that node alone.
package exec

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tm1ddleton/analytics/internal/analytics/bridge"
	"github.com/tm1ddleton/analytics/internal/analytics/container"
	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
	"github.com/tm1ddleton/analytics/internal/analytics/window"
)

// DataProviderExecutor is the leaf executor: it has no parents. Push
// accepts an externally-supplied (timestamp, value) and emits it verbatim;
// pull queries the provider directly.
type DataProviderExecutor struct {
	Asset string
}

func (e *DataProviderExecutor) ExecutePush(parents []types.Snapshot, ts time.Time, newValue float64) (types.Point, error) {
	return types.Point{Timestamp: ts, Value: newValue}, nil
}

func (e *DataProviderExecutor) ExecutePull(ctx context.Context, parentSeries []types.Series, rng key.DateRange, provider types.Provider) (types.Series, error) {
	return provider.Query(ctx, e.Asset, rng)
}

// MergeExecutor aligns N parents positionally and invokes Reduce over their
// values at each aligned step. It is stateless and deterministic: pull
// zips the parent series directly rather than delegating to the bridge.
// Used for the Merge analytic and for weighted combinations.
type MergeExecutor struct {
	Reduce func(parentValues []float64) float64
}

func (e *MergeExecutor) ExecutePush(parents []types.Snapshot, ts time.Time, newValue float64) (types.Point, error) {
	values := make([]float64, len(parents))
	for i, p := range parents {
		if !p.Present {
			return types.Point{}, fmt.Errorf("exec: merge parent %d missing at %s", i, ts)
		}
		values[i] = p.Value
	}
	return types.Point{Timestamp: ts, Value: e.Reduce(values)}, nil
}

func (e *MergeExecutor) ExecutePull(ctx context.Context, parentSeries []types.Series, rng key.DateRange, provider types.Provider) (types.Series, error) {
	if len(parentSeries) == 0 {
		return nil, nil
	}

	// Intersect by timestamp: a step is only produced where every parent
	// has a value.
	counts := make(map[time.Time]int)
	var order []time.Time
	for _, series := range parentSeries {
		for _, p := range series {
			if counts[p.Timestamp] == 0 {
				order = append(order, p.Timestamp)
			}
			counts[p.Timestamp]++
		}
	}

	out := make(types.Series, 0, len(order))
	for _, ts := range order {
		if counts[ts] != len(parentSeries) {
			continue
		}
		values := make([]float64, len(parentSeries))
		for i, series := range parentSeries {
			v, ok := series.ValueAt(ts)
			if !ok {
				values[i] = math.NaN()
			} else {
				values[i] = v
			}
		}
		out = append(out, types.Point{Timestamp: ts, Value: e.Reduce(values)})
	}

	return out.Trim(rng.Start, rng.End), nil
}

// ReturnsExecutor computes a pointwise return from two positional parents:
// the current-asset DataProvider and its Lag. It is incremental per §4.E's
// classification: pull replays through the bridge so push and pull agree
// tick-for-tick, even though the container itself carries no state.
type ReturnsExecutor struct {
	Asset     string
	Container container.Container
}

func (e *ReturnsExecutor) ExecutePush(parents []types.Snapshot, ts time.Time, newValue float64) (types.Point, error) {
	if len(parents) != 2 {
		return types.Point{}, fmt.Errorf("exec: returns expects 2 parents (current, lagged), got %d", len(parents))
	}
	current, lagged := parents[0], parents[1]

	// A NaN here means the lag window hasn't filled yet (insufficient
	// burn-in), not a bad price — that's a distinct condition the
	// calculator's 0.0-on-bad-input guard isn't meant to cover, so it must
	// never see this NaN.
	if !current.Present || !lagged.Present || math.IsNaN(current.Value) || math.IsNaN(lagged.Value) {
		return types.Point{Timestamp: ts, Value: math.NaN()}, nil
	}
	return types.Point{Timestamp: ts, Value: e.Container.Pointwise(current.Value, lagged.Value)}, nil
}

func (e *ReturnsExecutor) ExecutePull(ctx context.Context, parentSeries []types.Series, rng key.DateRange, provider types.Provider) (types.Series, error) {
	if len(parentSeries) == 0 {
		return nil, nil
	}
	return bridge.Replay(ctx, e, parentSeries, rng, provider, e.Asset)
}

// LagExecutor holds a k-step lag window. Push appends the parent's current
// value and emits the oldest retained value, or NaN before the window is
// full.
type LagExecutor struct {
	Asset string
	ring  *window.Lag
}

// NewLagExecutor builds a LagExecutor for offset k bound to asset.
func NewLagExecutor(asset string, k uint32) (*LagExecutor, error) {
	ring, err := window.NewLag(k)
	if err != nil {
		return nil, err
	}
	return &LagExecutor{Asset: asset, ring: ring}, nil
}

func (e *LagExecutor) ExecutePush(parents []types.Snapshot, ts time.Time, newValue float64) (types.Point, error) {
	if len(parents) != 1 {
		return types.Point{}, fmt.Errorf("exec: lag expects 1 parent, got %d", len(parents))
	}
	if parents[0].Present {
		e.ring.Push(parents[0].Value)
	}
	if v, ok := e.ring.CurrentLagged(); ok {
		return types.Point{Timestamp: ts, Value: v}, nil
	}
	return types.Point{Timestamp: ts, Value: math.NaN()}, nil
}

func (e *LagExecutor) ExecutePull(ctx context.Context, parentSeries []types.Series, rng key.DateRange, provider types.Provider) (types.Series, error) {
	if len(parentSeries) == 0 {
		return nil, nil
	}
	return bridge.Replay(ctx, e, parentSeries, rng, provider, e.Asset)
}

// WindowedAnalyticExecutor holds a fixed-capacity ring matching its node's
// declared window size. Each push appends the parent's new value and emits
// NaN until the ring holds requiredPoints values, then the container's
// windowed compute over the latest requiredPoints.
type WindowedAnalyticExecutor struct {
	Asset          string
	ring           *window.FixedRing
	requiredPoints int
	Container      container.Container
}

// NewWindowedAnalyticExecutor builds an executor over a ring of the given
// capacity, emitting only once requiredPoints values have been pushed.
func NewWindowedAnalyticExecutor(asset string, capacity, requiredPoints int, c container.Container) (*WindowedAnalyticExecutor, error) {
	ring, err := window.NewFixedRing(capacity)
	if err != nil {
		return nil, err
	}
	return &WindowedAnalyticExecutor{Asset: asset, ring: ring, requiredPoints: requiredPoints, Container: c}, nil
}

func (e *WindowedAnalyticExecutor) ExecutePush(parents []types.Snapshot, ts time.Time, newValue float64) (types.Point, error) {
	if len(parents) != 1 {
		return types.Point{}, fmt.Errorf("exec: windowed analytic expects 1 parent, got %d", len(parents))
	}
	if parents[0].Present {
		e.ring.Push(parents[0].Value)
	}
	if e.ring.Len() < e.requiredPoints {
		return types.Point{Timestamp: ts, Value: math.NaN()}, nil
	}
	return types.Point{Timestamp: ts, Value: e.Container.Windowed(e.ring.SliceLatest(e.requiredPoints))}, nil
}

func (e *WindowedAnalyticExecutor) ExecutePull(ctx context.Context, parentSeries []types.Series, rng key.DateRange, provider types.Provider) (types.Series, error) {
	if len(parentSeries) == 0 {
		return nil, nil
	}
	return bridge.Replay(ctx, e, parentSeries, rng, provider, e.Asset)
}

// EmaExecutor wraps a per-node Ema container. Push applies one pointwise
// step against the single parent's current value.
type EmaExecutor struct {
	Asset     string
	Container container.Container
}

// NewEmaExecutor builds an EmaExecutor bound to a fixed lambda and asset.
func NewEmaExecutor(asset string, lambda float64) *EmaExecutor {
	return &EmaExecutor{Asset: asset, Container: container.NewEma(lambda)}
}

func (e *EmaExecutor) ExecutePush(parents []types.Snapshot, ts time.Time, newValue float64) (types.Point, error) {
	if len(parents) != 1 {
		return types.Point{}, fmt.Errorf("exec: ema expects 1 parent, got %d", len(parents))
	}
	x := 0.0
	if parents[0].Present {
		x = parents[0].Value
	}
	return types.Point{Timestamp: ts, Value: e.Container.Pointwise(x, 0)}, nil
}

func (e *EmaExecutor) ExecutePull(ctx context.Context, parentSeries []types.Series, rng key.DateRange, provider types.Provider) (types.Series, error) {
	if len(parentSeries) == 0 {
		return nil, nil
	}
	return bridge.Replay(ctx, e, parentSeries, rng, provider, e.Asset)
}
