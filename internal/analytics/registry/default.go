package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tm1ddleton/analytics/internal/analytics/container"
	"github.com/tm1ddleton/analytics/internal/analytics/exec"
	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
)

// lagParam/windowParam are the well-known Params keys dependency functions
// and executor factories read lag offsets and window sizes from.
const (
	lagParam    = "lag"
	windowParam = "window_size"
)

func lagOf(k key.NodeKey) (uint32, error) {
	raw, ok := k.Params[lagParam]
	if !ok {
		return 0, fmt.Errorf("registry: %s key missing %q param", k.Analytic, lagParam)
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("registry: malformed %q param: %w", lagParam, err)
	}
	return uint32(v), nil
}

func windowSizeOf(k key.NodeKey) (uint32, error) {
	if k.Window != nil && k.Window.Kind == key.Fixed {
		return k.Window.Size, nil
	}
	raw, ok := k.Params[windowParam]
	if !ok {
		return 0, fmt.Errorf("registry: %s key missing window size", k.Analytic)
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("registry: malformed %q param: %w", windowParam, err)
	}
	return uint32(v), nil
}

func soleAsset(k key.NodeKey) (string, error) {
	if len(k.Assets) != 1 {
		return "", fmt.Errorf("registry: %s key expects exactly one asset, got %d", k.Analytic, len(k.Assets))
	}
	return k.Assets[0], nil
}

func extendRange(r *key.DateRange, days uint32) key.DateRange {
	if r == nil {
		return key.DateRange{}
	}
	return key.DateRange{Start: r.Start.AddDate(0, 0, -int(days)), End: r.End}
}

// Default returns a Registry carrying the canonical definitions for every
// AnalyticType named in §4.F, ready for Freeze once callers are done adding
// any of their own. provider-free: executors that need a Provider receive
// it at pull time, not at construction.
func Default() *Registry {
	r := New()

	r.Register(Definition{
		Analytic: key.DataProvider,
		Dependencies: func(k key.NodeKey) ([]key.NodeKey, error) {
			return nil, nil
		},
		NewExecutor: func(k key.NodeKey) (types.Executor, error) {
			asset, err := soleAsset(k)
			if err != nil {
				return nil, err
			}
			return &exec.DataProviderExecutor{Asset: asset}, nil
		},
	})

	r.Register(Definition{
		Analytic: key.Lag,
		Dependencies: func(k key.NodeKey) ([]key.NodeKey, error) {
			asset, err := soleAsset(k)
			if err != nil {
				return nil, err
			}
			lag, err := lagOf(k)
			if err != nil {
				return nil, err
			}
			providerRange := extendRange(k.Range, lag)
			return []key.NodeKey{
				{Analytic: key.DataProvider, Assets: []string{asset}, Range: &providerRange},
			}, nil
		},
		NewExecutor: func(k key.NodeKey) (types.Executor, error) {
			asset, err := soleAsset(k)
			if err != nil {
				return nil, err
			}
			lag, err := lagOf(k)
			if err != nil {
				return nil, err
			}
			return exec.NewLagExecutor(asset, lag)
		},
	})

	r.Register(Definition{
		Analytic: key.Returns,
		Dependencies: func(k key.NodeKey) ([]key.NodeKey, error) {
			asset, err := soleAsset(k)
			if err != nil {
				return nil, err
			}
			lag, err := lagOf(k)
			if err != nil {
				return nil, err
			}
			extended := extendRange(k.Range, lag)
			return []key.NodeKey{
				{Analytic: key.DataProvider, Assets: []string{asset}, Range: &extended},
				{Analytic: key.Lag, Assets: []string{asset}, Range: &extended, Params: map[string]string{lagParam: k.Params[lagParam]}},
			}, nil
		},
		NewExecutor: func(k key.NodeKey) (types.Executor, error) {
			asset, err := soleAsset(k)
			if err != nil {
				return nil, err
			}
			c := container.LogReturn
			if k.OverrideTag == "arith" {
				c = container.ArithReturn
			}
			return &exec.ReturnsExecutor{Asset: asset, Container: c}, nil
		},
	})

	r.Register(Definition{
		Analytic: key.Volatility,
		Dependencies: func(k key.NodeKey) ([]key.NodeKey, error) {
			asset, err := soleAsset(k)
			if err != nil {
				return nil, err
			}
			w, err := windowSizeOf(k)
			if err != nil {
				return nil, err
			}
			extended := extendRange(k.Range, w)
			return []key.NodeKey{
				{Analytic: key.Returns, Assets: []string{asset}, Range: &extended, Params: map[string]string{lagParam: "1"}},
			}, nil
		},
		NewExecutor: func(k key.NodeKey) (types.Executor, error) {
			asset, err := soleAsset(k)
			if err != nil {
				return nil, err
			}
			w, err := windowSizeOf(k)
			if err != nil {
				return nil, err
			}
			return exec.NewWindowedAnalyticExecutor(asset, int(w), int(w), container.PopulationStddev)
		},
	})

	r.Register(Definition{
		Analytic: key.Ema,
		Dependencies: func(k key.NodeKey) ([]key.NodeKey, error) {
			asset, err := soleAsset(k)
			if err != nil {
				return nil, err
			}
			return []key.NodeKey{
				{Analytic: key.DataProvider, Assets: []string{asset}, Range: k.Range},
			}, nil
		},
		NewExecutor: func(k key.NodeKey) (types.Executor, error) {
			asset, err := soleAsset(k)
			if err != nil {
				return nil, err
			}
			if k.Window == nil || k.Window.Kind != key.Exponential {
				return nil, fmt.Errorf("registry: Ema key missing exponential window spec")
			}
			return exec.NewEmaExecutor(asset, k.Window.Lambda), nil
		},
	})

	r.Register(Definition{
		Analytic: key.Merge,
		Dependencies: func(k key.NodeKey) ([]key.NodeKey, error) {
			return nil, fmt.Errorf("registry: Merge has no generic dependency rule; callers must resolve its parents explicitly and AddEdge them")
		},
		NewExecutor: func(k key.NodeKey) (types.Executor, error) {
			return &exec.MergeExecutor{Reduce: func(xs []float64) float64 {
				var sum float64
				for _, x := range xs {
					sum += x
				}
				return sum
			}}, nil
		},
	})

	r.Register(Definition{
		Analytic: key.WeightedSum,
		Dependencies: func(k key.NodeKey) ([]key.NodeKey, error) {
			return nil, fmt.Errorf("registry: WeightedSum has no generic dependency rule; callers must resolve its parents explicitly and AddEdge them")
		},
		NewExecutor: func(k key.NodeKey) (types.Executor, error) {
			weights, err := weightsOf(k)
			if err != nil {
				return nil, err
			}
			wc := container.NewWeightedSum(weights)
			return &exec.MergeExecutor{Reduce: wc.Windowed}, nil
		},
	})

	return r
}

func weightsOf(k key.NodeKey) ([]float64, error) {
	raw, ok := k.Params["weights"]
	if !ok {
		return nil, fmt.Errorf("registry: WeightedSum key missing %q param", "weights")
	}
	var weights []float64
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("registry: malformed weight %q: %w", part, err)
		}
		weights = append(weights, v)
	}
	return weights, nil
}
