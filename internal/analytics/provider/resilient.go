package provider

import (
	"context"
	"time"

	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
	"github.com/tm1ddleton/analytics/internal/platform/errors"
	"github.com/tm1ddleton/analytics/internal/platform/logging"
	"github.com/tm1ddleton/analytics/internal/platform/ratelimit"
	"github.com/tm1ddleton/analytics/internal/platform/resilience"
)

// Resilient wraps a types.Provider with a rate limiter and circuit breaker
// so a slow or failing upstream (a flaky database, a rate-limited market
// data vendor) cannot stall the engine's pull or push paths.
type Resilient struct {
	next    types.Provider
	limiter *ratelimit.RateLimiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewResilient wraps next with rate limiting and circuit breaking using
// the given configs.
func NewResilient(next types.Provider, rl ratelimit.RateLimitConfig, cb resilience.Config, retry resilience.RetryConfig) *Resilient {
	logger := logging.Default()
	if cb.OnStateChange == nil {
		cb = resilience.DefaultServiceCBConfig(logger)
	}
	return &Resilient{
		next:    next,
		limiter: ratelimit.New(rl),
		breaker: resilience.New(cb),
		retry:   retry,
	}
}

func (r *Resilient) Query(ctx context.Context, asset string, rng key.DateRange) (types.Series, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, errors.ProviderOther(asset, err)
	}

	var result types.Series
	err := resilience.Retry(ctx, r.retry, func() error {
		return r.breaker.Execute(ctx, func() error {
			series, queryErr := r.next.Query(ctx, asset, rng)
			if queryErr != nil {
				return queryErr
			}
			result = series
			return nil
		})
	})
	if err != nil {
		return nil, errors.ProviderOther(asset, err)
	}
	return result, nil
}

func (r *Resilient) Calendar(ctx context.Context, asset string, rng key.DateRange) ([]time.Time, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, errors.ProviderOther(asset, err)
	}

	var result []time.Time
	err := resilience.Retry(ctx, r.retry, func() error {
		return r.breaker.Execute(ctx, func() error {
			cal, calErr := r.next.Calendar(ctx, asset, rng)
			if calErr != nil {
				return calErr
			}
			result = cal
			return nil
		})
	})
	if err != nil {
		return nil, errors.ProviderOther(asset, err)
	}
	return result, nil
}
