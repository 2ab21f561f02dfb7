// Command analytics-server exposes the analytics core over HTTP: a
// GET query endpoint backed by the pull engine, and a replay endpoint
// that drives a push engine and streams its emissions back over SSE (and,
// as a supplementary transport, a websocket) while the session runs.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tm1ddleton/analytics/internal/analytics/dag"
	"github.com/tm1ddleton/analytics/internal/analytics/provider"
	"github.com/tm1ddleton/analytics/internal/analytics/pull"
	"github.com/tm1ddleton/analytics/internal/analytics/registry"
	platformcache "github.com/tm1ddleton/analytics/internal/platform/cache"
	"github.com/tm1ddleton/analytics/internal/platform/config"
	"github.com/tm1ddleton/analytics/internal/platform/logging"
	"github.com/tm1ddleton/analytics/internal/platform/metrics"
	"github.com/tm1ddleton/analytics/internal/platform/runtime"
)

func main() {
	if runtime.IsDevelopmentOrTesting() {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			logging.Default().Warn(context.Background(), "failed to load .env", map[string]interface{}{"error": err.Error()})
		}
	}

	logger := logging.New("analytics-server", config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("LOG_FORMAT", "json"))
	logging.InitDefault("analytics-server", config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("LOG_FORMAT", "json"))
	metrics.Init("analytics-server")

	dataProvider := provider.NewInMemory()
	graph := dag.New()
	reg := registry.Default()

	queryCacheTTL, ok := config.ParseEnvDuration("QUERY_CACHE_TTL")
	if !ok {
		queryCacheTTL = 30 * time.Second
	}

	srv := &Server{
		graph:      graph,
		registry:   reg,
		resolver:   dag.NewResolver(graph, reg),
		pullEng:    pull.New(graph, reg, dataProvider),
		provider:   dataProvider,
		queryCache: platformcache.NewTTLCache(queryCacheTTL),
		logger:     logger,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Get("/analytics/{asset}/{analyticType}", srv.handleAnalyticsQuery)
	router.Post("/replay", srv.handleReplay)
	router.Get("/ws/replay", srv.handleReplayWS)
	router.Handle("/metrics", promhttp.Handler())

	addr := ":" + config.GetEnv("PORT", "8080")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(context.Background(), "analytics-server listening", map[string]interface{}{"addr": addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(context.Background(), "server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "graceful shutdown failed", err, nil)
	}
}
