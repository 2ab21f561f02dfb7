package push

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/tm1ddleton/analytics/internal/analytics/dag"
	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/registry"
	"github.com/tm1ddleton/analytics/internal/analytics/state"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
)

func day(n int) time.Time { return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC) }

type memProvider struct {
	byAsset map[string]types.Series
}

func (p memProvider) Query(ctx context.Context, asset string, rng key.DateRange) (types.Series, error) {
	return p.byAsset[asset].Trim(rng.Start, rng.End), nil
}

func (p memProvider) Calendar(ctx context.Context, asset string, rng key.DateRange) ([]time.Time, error) {
	var out []time.Time
	for _, pt := range p.byAsset[asset] {
		if !pt.Timestamp.Before(rng.Start) && pt.Timestamp.Before(rng.End) {
			out = append(out, pt.Timestamp)
		}
	}
	return out, nil
}

func fivePriceSeries() types.Series {
	prices := []float64{100, 105, 102, 108, 110}
	out := make(types.Series, len(prices))
	for i, v := range prices {
		out[i] = types.Point{Timestamp: day(i + 1), Value: v}
	}
	return out
}

func buildReturnsGraph(t *testing.T) (*dag.Graph, *registry.Registry, dag.NodeID) {
	t.Helper()
	g := dag.New()
	reg := registry.Default()
	res := dag.NewResolver(g, reg)

	rng := key.DateRange{Start: day(1), End: day(6)}
	k := key.NodeKey{Analytic: key.Returns, Assets: []string{"AAPL"}, Range: &rng, Params: map[string]string{"lag": "1"}}

	id, err := res.Resolve(k)
	if err != nil {
		t.Fatal(err)
	}
	return g, reg, id
}

func TestPushDataRejectsBeforeInitialize(t *testing.T) {
	g, reg, _ := buildReturnsGraph(t)
	engine, err := New(g, reg)
	if err != nil {
		t.Fatal(err)
	}
	err = engine.PushData(context.Background(), "AAPL", day(1), 100)
	if err == nil {
		t.Fatal("expected PushData to reject calls before Initialize")
	}
}

func TestPushDataMatchesPullScenario(t *testing.T) {
	provider := memProvider{byAsset: map[string]types.Series{"AAPL": fivePriceSeries()}}
	g, reg, returnsID := buildReturnsGraph(t)

	engine, err := New(g, reg)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := engine.Initialize(ctx, provider, []string{"AAPL"}, day(6), 6*24*time.Hour); err != nil {
		t.Fatal(err)
	}

	history := engine.History(returnsID)
	want := []float64{math.NaN(), 0.04879, -0.02899, 0.05716, 0.01835}
	if len(history) != len(want) {
		t.Fatalf("len(history) = %d, want %d: %v", len(history), len(want), history)
	}
	for i, w := range want {
		if math.IsNaN(w) {
			if !math.IsNaN(history[i].Value) {
				t.Errorf("index %d = %v, want NaN", i, history[i].Value)
			}
			continue
		}
		if math.Abs(history[i].Value-w) > 1e-4 {
			t.Errorf("index %d = %v, want %v", i, history[i].Value, w)
		}
	}

	if engine.Lifecycle(returnsID) != state.Ready {
		t.Errorf("expected Ready lifecycle after successful pushes, got %v", engine.Lifecycle(returnsID))
	}
}

func TestPushDataRejectsNonMonotonicTimestamp(t *testing.T) {
	provider := memProvider{byAsset: map[string]types.Series{"AAPL": fivePriceSeries()}}
	g, reg, _ := buildReturnsGraph(t)

	engine, err := New(g, reg)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := engine.Initialize(ctx, provider, []string{"AAPL"}, day(6), 6*24*time.Hour); err != nil {
		t.Fatal(err)
	}

	if err := engine.PushData(ctx, "AAPL", day(2), 103); err == nil {
		t.Fatal("expected rejection of a timestamp at or before the last-seen timestamp")
	}
}

func TestPushDataRejectsInvalidValue(t *testing.T) {
	g, reg, _ := buildReturnsGraph(t)
	engine, err := New(g, reg)
	if err != nil {
		t.Fatal(err)
	}
	engine.initialized = true

	if err := engine.PushData(context.Background(), "AAPL", day(1), math.NaN()); err == nil {
		t.Fatal("expected rejection of a NaN push value")
	}
	if err := engine.PushData(context.Background(), "AAPL", day(1), -1); err == nil {
		t.Fatal("expected rejection of a negative push value")
	}
}

func TestPushDataUnknownAssetIsRejected(t *testing.T) {
	g, reg, _ := buildReturnsGraph(t)
	engine, err := New(g, reg)
	if err != nil {
		t.Fatal(err)
	}
	engine.initialized = true

	if err := engine.PushData(context.Background(), "TSLA", day(1), 100); err == nil {
		t.Fatal("expected AssetNotFound for an asset with no DataProvider leaf")
	}
}

func TestCallbackFailureIsolation(t *testing.T) {
	provider := memProvider{byAsset: map[string]types.Series{"AAPL": fivePriceSeries()}}
	g, reg, returnsID := buildReturnsGraph(t)

	engine, err := New(g, reg)
	if err != nil {
		t.Fatal(err)
	}

	var goodCalls int
	engine.RegisterCallback(returnsID, func(nodeID dag.NodeID, output types.Point) {
		panic("observer bug")
	})
	engine.RegisterCallback(returnsID, func(nodeID dag.NodeID, output types.Point) {
		goodCalls++
	})

	ctx := context.Background()
	if err := engine.Initialize(ctx, provider, []string{"AAPL"}, day(6), 6*24*time.Hour); err != nil {
		t.Fatal(err)
	}

	if goodCalls != 5 {
		t.Errorf("expected the well-behaved callback to fire for every tick despite the panicking one, got %d calls", goodCalls)
	}
}

func TestCallbacksFireInTopologicalOrder(t *testing.T) {
	provider := memProvider{byAsset: map[string]types.Series{"AAPL": fivePriceSeries()}}
	g, reg, returnsID := buildReturnsGraph(t)

	lagID := dag.NodeID(-1)
	for _, pid := range g.Parents(returnsID) {
		node, err := g.Node(pid)
		if err != nil {
			t.Fatal(err)
		}
		if node.Analytic == key.Lag {
			lagID = pid
		}
	}
	if lagID == -1 {
		t.Fatal("returns node has no Lag parent")
	}

	engine, err := New(g, reg)
	if err != nil {
		t.Fatal(err)
	}

	var order []dag.NodeID
	engine.RegisterCallback(lagID, func(nodeID dag.NodeID, output types.Point) {
		order = append(order, nodeID)
	})
	engine.RegisterCallback(returnsID, func(nodeID dag.NodeID, output types.Point) {
		order = append(order, nodeID)
	})

	ctx := context.Background()
	if err := engine.Initialize(ctx, provider, []string{"AAPL"}, day(6), 6*24*time.Hour); err != nil {
		t.Fatal(err)
	}

	if len(order) == 0 {
		t.Fatal("expected at least one paired emission")
	}
	for i := 0; i+1 < len(order); i += 2 {
		if order[i] != lagID || order[i+1] != returnsID {
			t.Fatalf("tick %d: expected lag before returns, got %v then %v", i/2, order[i], order[i+1])
		}
	}
}

func TestUnregisterCallbackStopsDelivery(t *testing.T) {
	provider := memProvider{byAsset: map[string]types.Series{"AAPL": fivePriceSeries()}}
	g, reg, returnsID := buildReturnsGraph(t)

	engine, err := New(g, reg)
	if err != nil {
		t.Fatal(err)
	}

	var calls int
	id := engine.RegisterCallback(returnsID, func(nodeID dag.NodeID, output types.Point) {
		calls++
	})
	engine.UnregisterCallback(id)

	ctx := context.Background()
	if err := engine.Initialize(ctx, provider, []string{"AAPL"}, day(6), 6*24*time.Hour); err != nil {
		t.Fatal(err)
	}

	if calls != 0 {
		t.Errorf("expected no callback deliveries after unregister, got %d", calls)
	}
}
