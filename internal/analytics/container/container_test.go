package container

import (
	"math"
	"testing"
)

func TestLogReturnContainer(t *testing.T) {
	got := LogReturn.Pointwise(105, 100)
	want := math.Log(1.05)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("LogReturn.Pointwise(105, 100) = %v, want %v", got, want)
	}
	if LogReturn.Windowed != nil {
		t.Error("LogReturn must not carry a Windowed compute")
	}
}

func TestArithReturnContainerIsDistinctOverride(t *testing.T) {
	got := ArithReturn.Pointwise(110, 100)
	want := 0.1
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("ArithReturn.Pointwise(110, 100) = %v, want %v", got, want)
	}
	if ArithReturn.Name == LogReturn.Name {
		t.Error("ArithReturn and LogReturn must carry distinct names")
	}
}

func TestPopulationStddevContainer(t *testing.T) {
	got := PopulationStddev.Windowed([]float64{5, 5, 5})
	if got != 0 {
		t.Errorf("PopulationStddev.Windowed(constant) = %v, want 0", got)
	}
	if PopulationStddev.Pointwise != nil {
		t.Error("PopulationStddev must not carry a Pointwise compute")
	}
}

func TestNewEmaSeedsThenSmooths(t *testing.T) {
	c := NewEma(0.5)
	first := c.Pointwise(42, 0)
	if first != 42 {
		t.Errorf("first Ema push = %v, want 42 (seeded)", first)
	}
	second := c.Pointwise(50, 0)
	want := 0.5*50 + 0.5*42
	if math.Abs(second-want) > 1e-9 {
		t.Errorf("second Ema push = %v, want %v", second, want)
	}
}

func TestNewEmaInstancesDoNotShareState(t *testing.T) {
	a := NewEma(0.5)
	b := NewEma(0.5)

	a.Pointwise(10, 0)
	a.Pointwise(20, 0)

	// b has never been pushed, so its first call must still seed from x.
	got := b.Pointwise(99, 0)
	if got != 99 {
		t.Errorf("independent Ema instance leaked state: got %v, want 99", got)
	}
}

func TestNewWeightedSumContainer(t *testing.T) {
	c := NewWeightedSum([]float64{0.5, 0.25, 0.25})
	got := c.Windowed([]float64{1, 2, 3})
	want := 0.5 + 0.5 + 0.75
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("WeightedSum.Windowed() = %v, want %v", got, want)
	}
}

func TestNewWeightedSumCopiesWeights(t *testing.T) {
	weights := []float64{1, 1}
	c := NewWeightedSum(weights)
	weights[0] = 99
	got := c.Windowed([]float64{1, 1})
	if got != 2 {
		t.Errorf("container captured caller's backing array; got %v, want 2", got)
	}
}
