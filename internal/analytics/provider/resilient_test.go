package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
	"github.com/tm1ddleton/analytics/internal/platform/ratelimit"
	"github.com/tm1ddleton/analytics/internal/platform/resilience"
)

type flakyProvider struct {
	failures int
	calls    int
}

func (f *flakyProvider) Query(ctx context.Context, asset string, rng key.DateRange) (types.Series, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("upstream unavailable")
	}
	return types.Series{{Timestamp: day(1), Value: 100}}, nil
}

func (f *flakyProvider) Calendar(ctx context.Context, asset string, rng key.DateRange) ([]time.Time, error) {
	return []time.Time{day(1)}, nil
}

func TestResilientRetriesThenSucceeds(t *testing.T) {
	flaky := &flakyProvider{failures: 1}
	r := NewResilient(flaky,
		ratelimit.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		resilience.DefaultConfig(),
		resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2},
	)

	series, err := r.Query(context.Background(), "AAPL", key.DateRange{Start: day(1), End: day(2)})
	if err != nil {
		t.Fatalf("expected retry to recover from one failure, got %v", err)
	}
	if len(series) != 1 {
		t.Errorf("Query returned %v", series)
	}
}

func TestResilientSurfacesPersistentFailure(t *testing.T) {
	flaky := &flakyProvider{failures: 10}
	r := NewResilient(flaky,
		ratelimit.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		resilience.DefaultConfig(),
		resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2},
	)

	if _, err := r.Query(context.Background(), "AAPL", key.DateRange{Start: day(1), End: day(2)}); err == nil {
		t.Fatal("expected persistent upstream failure to surface as an error")
	}
}
