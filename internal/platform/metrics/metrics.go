// Package metrics provides Prometheus metrics collection for the analytics core.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tm1ddleton/analytics/internal/platform/runtime"
)

// Metrics holds all Prometheus metrics for the analytics engine.
type Metrics struct {
	// Resolution metrics
	NodesResolvedTotal *prometheus.CounterVec
	ResolveDuration    *prometheus.HistogramVec

	// Pull engine metrics
	PullInvocationsTotal *prometheus.CounterVec
	PullDuration         *prometheus.HistogramVec

	// Push engine metrics
	PushStepsTotal    *prometheus.CounterVec
	PushStepDuration  *prometheus.HistogramVec
	ActiveSubscribers prometheus.Gauge

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Provider metrics
	ProviderRoundTripsTotal *prometheus.CounterVec
	ProviderRoundTripDur    *prometheus.HistogramVec

	// Resilience metrics
	CircuitBreakerState *prometheus.GaugeVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodesResolvedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_nodes_resolved_total",
				Help: "Total number of DAG nodes resolved (interned or reused)",
			},
			[]string{"service", "analytic", "outcome"},
		),
		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_resolve_duration_seconds",
				Help:    "Duration of a Resolve call, including recursive parent resolution",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"service", "analytic"},
		),

		PullInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_pull_invocations_total",
				Help: "Total number of execute_pull invocations",
			},
			[]string{"service", "analytic", "status"},
		),
		PullDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_pull_duration_seconds",
				Help:    "Duration of a pull-mode execution",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"service", "analytic"},
		),

		PushStepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_push_steps_total",
				Help: "Total number of push_data steps processed",
			},
			[]string{"service", "status"},
		),
		PushStepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_push_step_duration_seconds",
				Help:    "Duration of a single push_data propagation step",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"service"},
		),
		ActiveSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_active_subscribers",
				Help: "Current number of registered push-engine subscriber callbacks",
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_cache_hits_total",
				Help: "Total number of per-invocation cache hits",
			},
			[]string{"service", "cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_cache_misses_total",
				Help: "Total number of per-invocation cache misses",
			},
			[]string{"service", "cache"},
		),

		ProviderRoundTripsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_provider_roundtrips_total",
				Help: "Total number of DataProvider.Query calls",
			},
			[]string{"service", "status"},
		),
		ProviderRoundTripDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_provider_roundtrip_duration_seconds",
				Help:    "Duration of a DataProvider.Query call",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
			},
			[]string{"service"},
		),

		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "analytics_circuit_breaker_state",
				Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service", "breaker"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_errors_total",
				Help: "Total number of errors by taxonomy code",
			},
			[]string{"service", "code"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.NodesResolvedTotal,
			m.ResolveDuration,
			m.PullInvocationsTotal,
			m.PullDuration,
			m.PushStepsTotal,
			m.PushStepDuration,
			m.ActiveSubscribers,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.ProviderRoundTripsTotal,
			m.ProviderRoundTripDur,
			m.CircuitBreakerState,
			m.ErrorsTotal,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordResolve records a node-resolution outcome (interned vs reused).
func (m *Metrics) RecordResolve(service, analytic, outcome string, duration time.Duration) {
	m.NodesResolvedTotal.WithLabelValues(service, analytic, outcome).Inc()
	m.ResolveDuration.WithLabelValues(service, analytic).Observe(duration.Seconds())
}

// RecordPull records a pull-mode invocation.
func (m *Metrics) RecordPull(service, analytic, status string, duration time.Duration) {
	m.PullInvocationsTotal.WithLabelValues(service, analytic, status).Inc()
	m.PullDuration.WithLabelValues(service, analytic).Observe(duration.Seconds())
}

// RecordPushStep records a single push_data propagation step.
func (m *Metrics) RecordPushStep(service, status string, duration time.Duration) {
	m.PushStepsTotal.WithLabelValues(service, status).Inc()
	m.PushStepDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// SetActiveSubscribers sets the current number of registered callbacks.
func (m *Metrics) SetActiveSubscribers(count int) {
	m.ActiveSubscribers.Set(float64(count))
}

// RecordCacheHit records a per-invocation cache hit.
func (m *Metrics) RecordCacheHit(service, cache string) {
	m.CacheHitsTotal.WithLabelValues(service, cache).Inc()
}

// RecordCacheMiss records a per-invocation cache miss.
func (m *Metrics) RecordCacheMiss(service, cache string) {
	m.CacheMissesTotal.WithLabelValues(service, cache).Inc()
}

// RecordProviderRoundTrip records a DataProvider.Query call.
func (m *Metrics) RecordProviderRoundTrip(service, status string, duration time.Duration) {
	m.ProviderRoundTripsTotal.WithLabelValues(service, status).Inc()
	m.ProviderRoundTripDur.WithLabelValues(service).Observe(duration.Seconds())
}

// SetCircuitBreakerState records the current state of a named circuit breaker.
func (m *Metrics) SetCircuitBreakerState(service, breaker string, state float64) {
	m.CircuitBreakerState.WithLabelValues(service, breaker).Set(state)
}

// RecordError records an error by taxonomy code.
func (m *Metrics) RecordError(service, code string) {
	m.ErrorsTotal.WithLabelValues(service, code).Inc()
}

// UpdateUptime updates the service uptime.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// Helper functions

func getEnvironment() string {
	return string(runtime.Env())
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !runtime.IsProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
