package provider

import (
	"testing"

	"github.com/tm1ddleton/analytics/internal/analytics/key"
)

func TestCacheKeyForIsStablePerAssetAndRange(t *testing.T) {
	rng := key.DateRange{Start: day(1), End: day(5)}
	a := cacheKeyFor("AAPL", rng)
	b := cacheKeyFor("AAPL", rng)
	if a != b {
		t.Errorf("cacheKeyFor is not deterministic: %q vs %q", a, b)
	}

	other := cacheKeyFor("MSFT", rng)
	if a == other {
		t.Error("cacheKeyFor must distinguish assets")
	}

	shifted := cacheKeyFor("AAPL", key.DateRange{Start: day(2), End: day(6)})
	if a == shifted {
		t.Error("cacheKeyFor must distinguish ranges")
	}
}
