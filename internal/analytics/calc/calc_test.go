package calc

import (
	"math"
	"testing"
)

func TestLogReturn(t *testing.T) {
	tests := []struct {
		name           string
		current, lagged float64
		want           float64
	}{
		{"normal", 105, 100, math.Log(1.05)},
		{"lagged zero", 105, 0, 0.0},
		{"lagged negative", 105, -1, 0.0},
		{"current zero", 0, 100, 0.0},
		{"current NaN", math.NaN(), 100, 0.0},
		{"lagged NaN", 105, math.NaN(), 0.0},
		{"identical idempotence", 50, 50, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogReturn(tt.current, tt.lagged)
			if math.IsNaN(tt.want) {
				if !math.IsNaN(got) {
					t.Errorf("LogReturn(%v, %v) = %v, want NaN", tt.current, tt.lagged, got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("LogReturn(%v, %v) = %v, want %v", tt.current, tt.lagged, got, tt.want)
			}
		})
	}
}

func TestArithReturn(t *testing.T) {
	got := ArithReturn(110, 100)
	want := 0.1
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("ArithReturn(110, 100) = %v, want %v", got, want)
	}

	if got := ArithReturn(100, 0); got != 0.0 {
		t.Errorf("ArithReturn with zero lagged = %v, want 0.0", got)
	}
}

func TestPopulationStddev(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		want float64
	}{
		{"empty", nil, math.NaN()},
		{"constant", []float64{5, 5, 5}, 0.0},
		{
			name: "three-day window from scenario 2",
			xs:   []float64{-0.02899, 0.05716, 0.01835},
			want: 0.03523,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PopulationStddev(tt.xs)
			if math.IsNaN(tt.want) {
				if !math.IsNaN(got) {
					t.Errorf("PopulationStddev(%v) = %v, want NaN", tt.xs, got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-4 {
				t.Errorf("PopulationStddev(%v) = %v, want %v", tt.xs, got, tt.want)
			}
		})
	}
}

func TestEmaStep(t *testing.T) {
	if got := EmaStep(0, false, 42, 0.3); got != 42 {
		t.Errorf("first push: EmaStep() = %v, want 42 (seeded by x)", got)
	}

	got := EmaStep(10, true, 20, 0.5)
	want := 0.5*20 + 0.5*10
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("EmaStep(10, true, 20, 0.5) = %v, want %v", got, want)
	}

	if got := EmaStep(5, true, 5, 0.4); got != 5 {
		t.Errorf("idempotence: EmaStep(prev=x, x, lambda) = %v, want x=5", got)
	}
}

func TestWeightedSum(t *testing.T) {
	xs := []float64{1, 2, 3}
	ws := []float64{0.5, 0.25, 0.25}
	got := WeightedSum(xs, ws)
	want := 0.5 + 0.5 + 0.75
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("WeightedSum() = %v, want %v", got, want)
	}
}

func TestLogReturnOfFivePricesScenario(t *testing.T) {
	prices := []float64{100, 105, 102, 108, 110}
	want := []float64{math.NaN(), 0.04879, -0.02899, 0.05716, 0.01835}

	got := make([]float64, len(prices))
	got[0] = math.NaN()
	for i := 1; i < len(prices); i++ {
		got[i] = LogReturn(prices[i], prices[i-1])
	}

	for i := range want {
		if math.IsNaN(want[i]) {
			if !math.IsNaN(got[i]) {
				t.Errorf("index %d: got %v, want NaN", i, got[i])
			}
			continue
		}
		if math.Abs(got[i]-want[i]) > 1e-4 {
			t.Errorf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
