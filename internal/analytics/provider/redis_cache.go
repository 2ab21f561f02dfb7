package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
	"github.com/tm1ddleton/analytics/internal/platform/logging"
	"github.com/tm1ddleton/analytics/internal/platform/metrics"
)

// RedisCaching wraps a types.Provider with a read-through cache: Query
// results are cached per (asset, range) under the configured TTL; Calendar
// passes straight through, since its results are cheap and order-
// sensitive in ways not worth risking a stale cache for.
type RedisCaching struct {
	next   types.Provider
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
	m      *metrics.Metrics
}

// NewRedisCaching wraps next with a Redis-backed cache using client, with
// entries expiring after ttl.
func NewRedisCaching(next types.Provider, client *redis.Client, ttl time.Duration) *RedisCaching {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCaching{next: next, client: client, ttl: ttl, logger: logging.Default(), m: metrics.Global()}
}

func cacheKeyFor(asset string, rng key.DateRange) string {
	return fmt.Sprintf("provider:series:%s:%d:%d", asset, rng.Start.Unix(), rng.End.Unix())
}

func (r *RedisCaching) Query(ctx context.Context, asset string, rng key.DateRange) (types.Series, error) {
	cacheKey := cacheKeyFor(asset, rng)

	if raw, err := r.client.Get(ctx, cacheKey).Bytes(); err == nil {
		var series types.Series
		if unmarshalErr := json.Unmarshal(raw, &series); unmarshalErr == nil {
			r.m.RecordCacheHit("analytics-engine", "provider")
			return series, nil
		}
	} else if err != redis.Nil {
		r.logger.Warn(ctx, "redis cache read failed, falling through to provider", map[string]interface{}{"error": err.Error()})
	}

	r.m.RecordCacheMiss("analytics-engine", "provider")

	series, err := r.next.Query(ctx, asset, rng)
	if err != nil {
		return nil, err
	}

	if raw, marshalErr := json.Marshal(series); marshalErr == nil {
		if setErr := r.client.Set(ctx, cacheKey, raw, r.ttl).Err(); setErr != nil {
			r.logger.Warn(ctx, "redis cache write failed", map[string]interface{}{"error": setErr.Error()})
		}
	}

	return series, nil
}

func (r *RedisCaching) Calendar(ctx context.Context, asset string, rng key.DateRange) ([]time.Time, error) {
	return r.next.Calendar(ctx, asset, rng)
}
