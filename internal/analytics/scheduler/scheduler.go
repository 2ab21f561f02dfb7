// Package scheduler drives periodic batch recomputation of pull-mode
// analytics on a cron schedule, independent of the push engine's
// tick-driven propagation.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tm1ddleton/analytics/internal/analytics/dag"
	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/pull"
	"github.com/tm1ddleton/analytics/internal/platform/logging"
	"github.com/tm1ddleton/analytics/internal/platform/metrics"
)

// Job is one recurring recomputation target: a root node resolved ahead of
// time, the date range it should be recomputed over on each firing, and
// a human label used in logs.
type Job struct {
	Label string
	Root  dag.NodeID
	Range key.DateRange
}

// Scheduler runs a fixed set of Jobs against one pull Engine on a cron
// expression. It is built for the batch-recompute deployment mode, where
// the same process that serves on-demand requests also refreshes cached
// analytic results ahead of market open.
type Scheduler struct {
	cron    *cron.Cron
	engine  *pull.Engine
	jobs    []Job
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// New builds a Scheduler over engine. Jobs must be added via AddJob before
// Start.
func New(engine *pull.Engine) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		engine:  engine,
		logger:  logging.Default(),
		metrics: metrics.Global(),
	}
}

// AddJob registers spec (a 6-field cron expression with a leading seconds
// field, or a descriptor such as "@daily"; 5-field expressions are
// rejected) to recompute job on each firing. It returns the
// underlying cron.EntryID for later inspection, or an error if spec is
// malformed.
func (s *Scheduler) AddJob(spec string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		s.runJob(job)
	})
	if err != nil {
		return 0, fmt.Errorf("scheduler: invalid cron spec %q for job %q: %w", spec, job.Label, err)
	}
	s.jobs = append(s.jobs, job)
	return id, nil
}

func (s *Scheduler) runJob(job Job) {
	ctx := context.Background()
	start := time.Now()

	_, err := s.engine.ExecutePull(ctx, job.Root, job.Range)
	duration := time.Since(start)

	s.metrics.RecordPull("analytics-scheduler", job.Label, outcome(err), duration)
	if err != nil {
		s.logger.Error(ctx, "scheduled recompute failed", err, map[string]interface{}{
			"job":      job.Label,
			"node_id":  int(job.Root),
			"duration": duration.String(),
		})
		return
	}
	s.logger.Info(ctx, "scheduled recompute completed", map[string]interface{}{
		"job":      job.Label,
		"node_id":  int(job.Root),
		"duration": duration.String(),
	})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Start begins firing registered jobs in the background. It does not block.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
