// Package container provides typed wrappers binding a calc function to a
// named analytic with a fixed input arity. Overrides (e.g. ArithReturn vs
// LogReturn) are expressed by selecting a different container; the registry
// picks the container from the NodeKey's override tag, and since the tag is
// part of the key, nodes with different tags stay distinct.
package container

import "github.com/tm1ddleton/analytics/internal/analytics/calc"

// Pointwise containers take the current and lagged value of a single series
// and produce one output value. This is the arity of the return family.
type Pointwise func(current, lagged float64) float64

// Windowed containers take a slice of recent values and reduce it to one
// output value. This is the arity of the volatility/average family.
type Windowed func(xs []float64) float64

// Container is the small value a registry definition points its executor at.
type Container struct {
	Name      string
	Pointwise Pointwise // nil if this is a windowed container
	Windowed  Windowed  // nil if this is a pointwise container
}

// LogReturn is the default Returns container.
var LogReturn = Container{Name: "log_return", Pointwise: calc.LogReturn}

// ArithReturn is the override Returns container selected via override_tag=arith.
var ArithReturn = Container{Name: "arith_return", Pointwise: calc.ArithReturn}

// PopulationStddev is the Volatility container.
var PopulationStddev = Container{Name: "population_stddev", Windowed: calc.PopulationStddev}

// NewEma builds an Ema container bound to a fixed lambda. The returned
// closure holds its own previous value and hasPrev flag across calls, so
// each Container instance carries one node's EMA state — one Container
// instance per node, matching the one-window-per-node ownership rule.
func NewEma(lambda float64) Container {
	state := struct {
		prev    float64
		hasPrev bool
	}{}
	return Container{
		Name: "ema_step",
		Pointwise: func(x, _ float64) float64 {
			next := calc.EmaStep(state.prev, state.hasPrev, x, lambda)
			state.prev = next
			state.hasPrev = true
			return next
		},
	}
}

// NewWeightedSum builds a WeightedSum container bound to a fixed weight
// vector. The windowed slice passed to Windowed must have the same length
// as weights; callers validate this before invoking (errors.MismatchedLengths).
func NewWeightedSum(weights []float64) Container {
	w := append([]float64(nil), weights...)
	return Container{
		Name: "weighted_sum",
		Windowed: func(xs []float64) float64 {
			return calc.WeightedSum(xs, w)
		},
	}
}
