package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/AOSC-Dev/buildit/internal/core/ports"
)

// LivenessMonitor periodically reclaims jobs assigned to workers that
// have gone quiet: a single goroutine, one tick, one sweep, errors
// logged and swallowed so a transient store hiccup never kills the
// loop.
type LivenessMonitor struct {
	logger  *slog.Logger
	repo    ports.Repository
	clock   ports.Clock
	tick    time.Duration
	timeout time.Duration
}

// NewLivenessMonitor constructs a LivenessMonitor. tick is the sweep
// interval; timeout is how long a worker may go without a heartbeat
// before it's considered dead and its running job reclaimed.
func NewLivenessMonitor(logger *slog.Logger, repo ports.Repository, clock ports.Clock, tick, timeout time.Duration) *LivenessMonitor {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &LivenessMonitor{logger: logger, repo: repo, clock: clock, tick: tick, timeout: timeout}
}

// Run blocks, sweeping every tick until ctx is cancelled.
func (m *LivenessMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

// sweepOnce never returns an error: the sweeper never surfaces failures
// to callers, it logs and continues.
func (m *LivenessMonitor) sweepOnce(ctx context.Context) {
	workers, err := m.repo.ListAllWorkers(ctx)
	if err != nil {
		m.logger.Error("liveness: list workers failed", "error", err)
		return
	}

	now := m.clock.Now()
	for _, w := range workers {
		if w.RunningJobID == nil {
			continue
		}
		if w.IsLive(now, m.timeout) {
			continue
		}

		jobIDs, err := m.repo.ReclaimJobsOfWorker(ctx, w.ID)
		if err != nil {
			m.logger.Error("liveness: reclaim failed", "worker_id", w.ID, "error", err)
			continue
		}
		if len(jobIDs) > 0 {
			m.logger.Warn("liveness: reclaimed jobs from dead worker",
				"worker_id", w.ID, "hostname", w.Hostname, "job_ids", jobIDs,
				"last_heartbeat", w.LastHeartbeatTime)
		}
	}
}
