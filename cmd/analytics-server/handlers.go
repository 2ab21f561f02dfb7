package main

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tm1ddleton/analytics/internal/analytics/dag"
	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/provider"
	"github.com/tm1ddleton/analytics/internal/analytics/pull"
	"github.com/tm1ddleton/analytics/internal/analytics/registry"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
	platformcache "github.com/tm1ddleton/analytics/internal/platform/cache"
	"github.com/tm1ddleton/analytics/internal/platform/errors"
	"github.com/tm1ddleton/analytics/internal/platform/logging"
)

// Server holds everything the HTTP handlers need: the shared graph and
// registry every request resolves nodes against, a pull engine for
// GET /analytics, the machinery handleReplay needs to spin up an
// independent push engine per session, and a short-lived result cache that
// absorbs bursts of identical queries.
type Server struct {
	graph      *dag.Graph
	registry   *registry.Registry
	resolver   *dag.Resolver
	pullEng    *pull.Engine
	provider   *provider.InMemory
	queryCache *platformcache.TTLCache
	logger     *logging.Logger
}

// queryPoint is the wire shape of one series point: NaN serialises as
// null per §6.2.
type queryPoint struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
}

func toWire(series types.Series) []queryPoint {
	out := make([]queryPoint, len(series))
	for i, p := range series {
		out[i] = queryPoint{Timestamp: p.Timestamp.Format("2006-01-02")}
		if !math.IsNaN(p.Value) {
			v := p.Value
			out[i].Value = &v
		}
	}
	return out
}

// handleAnalyticsQuery implements GET /analytics/{asset}/{analyticType}.
func (s *Server) handleAnalyticsQuery(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	analyticType := key.AnalyticType(chi.URLParam(r, "analyticType"))

	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, errors.InvalidDateRange(r.URL.Query().Get("start"), r.URL.Query().Get("end")))
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, errors.InvalidDateRange(r.URL.Query().Get("start"), r.URL.Query().Get("end")))
		return
	}
	rng := key.DateRange{Start: start, End: end}

	nodeKey := key.NodeKey{Analytic: analyticType, Assets: []string{asset}, Range: &rng}

	if windowRaw := r.URL.Query().Get("window"); windowRaw != "" {
		nodeKey.Params = map[string]string{"window_size": windowRaw, "lag": windowRaw}
	}
	if override := r.URL.Query().Get("override"); override != "" {
		nodeKey.OverrideTag = override
	}

	cacheKey := key.Canonical(nodeKey)
	if cached, ok := s.queryCache.Get(r.Context(), cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	rootID, err := s.resolver.Resolve(nodeKey)
	if err != nil {
		writeError(w, err)
		return
	}

	series, err := s.pullEng.ExecutePull(r.Context(), rootID, rng)
	if err != nil {
		writeError(w, err)
		return
	}

	wire := toWire(series)
	s.queryCache.Set(r.Context(), cacheKey, wire)
	writeJSON(w, http.StatusOK, wire)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := errors.GetHTTPStatus(err)
	svcErr := errors.GetServiceError(err)
	body := map[string]interface{}{"error": err.Error()}
	if svcErr != nil {
		body["code"] = svcErr.Code
		body["details"] = svcErr.Details
	}
	writeJSON(w, status, body)
}
