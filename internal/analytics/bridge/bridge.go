// Package bridge implements the push-from-pull replay: the mechanism that
// makes an incremental executor's pull output bitwise-identical to what the
// same executor would have produced under push, by walking the provider's
// calendar and driving execute_push one tick at a time.
package bridge

import (
	"context"
	"fmt"

	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
)

// Replay drives executor through one execute_push call per calendar
// timestamp within rng, sourcing each parent's value as of that timestamp
// (its last point at or before it) from parentSeries, and returns the
// resulting series trimmed to rng.
//
// calendarAsset names the asset whose provider calendar supplies the tick
// set.
func Replay(
	ctx context.Context,
	executor types.Executor,
	parentSeries []types.Series,
	rng key.DateRange,
	provider types.Provider,
	calendarAsset string,
) (types.Series, error) {
	calendar, err := provider.Calendar(ctx, calendarAsset, rng)
	if err != nil {
		return nil, fmt.Errorf("bridge: fetching calendar: %w", err)
	}

	out := make(types.Series, 0, len(calendar))
	for _, ts := range calendar {
		snapshots := make([]types.Snapshot, len(parentSeries))
		for i, series := range parentSeries {
			v, ok := series.ValueAt(ts)
			snapshots[i] = types.Snapshot{Value: v, Present: ok}
		}

		// The "new value" argument only matters for leaf executors, which
		// never take this path (they are stateless/deterministic per
		// §4.E); incremental executors derive their output purely from
		// parent snapshots, so 0 is passed as a sentinel.
		point, err := executor.ExecutePush(snapshots, ts, 0)
		if err != nil {
			return nil, fmt.Errorf("bridge: execute_push at %s: %w", ts, err)
		}
		out = append(out, point)
	}

	return out.Trim(rng.Start, rng.End), nil
}
