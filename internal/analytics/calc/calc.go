// Package calc holds the pure, stateless math primitives the core's
// containers dispatch to. No side effects, no logging: every function is a
// closed-form map from floats to a float, with explicit NaN/edge behavior.
package calc

import "math"

// LogReturn computes ln(current/lagged). If lagged <= 0, current <= 0, or
// either input is NaN, it returns 0.0 — upstream producers are expected to
// emit NaN-free positive prices, so this is a deliberate "treat bad input as
// no movement" convention rather than a propagated NaN.
func LogReturn(current, lagged float64) float64 {
	if badPrice(current) || badPrice(lagged) {
		return 0.0
	}
	return math.Log(current / lagged)
}

// ArithReturn computes current/lagged - 1 with the same guard as LogReturn.
func ArithReturn(current, lagged float64) float64 {
	if badPrice(current) || badPrice(lagged) {
		return 0.0
	}
	return current/lagged - 1
}

func badPrice(x float64) bool {
	return math.IsNaN(x) || x <= 0
}

// PopulationStddev computes the population (divide-by-N, not N-1) standard
// deviation of xs. Returns NaN for an empty slice. Not annualised.
func PopulationStddev(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}

	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(n)

	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	variance := sumSq / float64(n)

	return math.Sqrt(variance)
}

// EmaStep computes one exponential-moving-average update. hasPrev indicates
// whether prev holds a meaningful prior value; when false (first push), x
// itself seeds the state. lambda must be in (0, 1].
func EmaStep(prev float64, hasPrev bool, x float64, lambda float64) float64 {
	if !hasPrev {
		return x
	}
	return lambda*x + (1-lambda)*prev
}

// WeightedSum computes sum(w[i] * x[i]). xs and ws must have equal length;
// callers are expected to validate this before calling (see
// errors.MismatchedLengths) since WeightedSum itself has no error return.
func WeightedSum(xs, ws []float64) float64 {
	var sum float64
	for i := range xs {
		sum += xs[i] * ws[i]
	}
	return sum
}
