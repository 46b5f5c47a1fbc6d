package services

import (
	"context"
	"log/slog"

	"github.com/AOSC-Dev/buildit/internal/core/domain"
	"github.com/AOSC-Dev/buildit/internal/core/ports"
)

// Dispatcher is the endpoint workers poll to ask for work. It is
// stateless beyond its collaborators; all durable state lives in the
// repository.
type Dispatcher struct {
	logger *slog.Logger
	repo   ports.Repository
	clock  ports.Clock
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(logger *slog.Logger, repo ports.Repository, clock ports.Clock) *Dispatcher {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Dispatcher{logger: logger, repo: repo, clock: clock}
}

// PollRequest is the input to Poll: worker credentials plus current
// self-reported capabilities, so hardware upgrades take effect without
// re-registration.
type PollRequest struct {
	Hostname     string
	Arch         string
	WorkerSecret string
	GitCommit    string
	Capabilities domain.Capabilities
	InternetConnectivity bool
	PerformanceWeight    float64
}

// PollResult is the output of Poll. Job is nil when there is no work to
// hand out (neither an error nor a signal to stop polling).
type PollResult struct {
	Job *domain.Job
}

// Poll authenticates a worker, refreshes its bookkeeping, and hands it
// a job to run:
//
//  1. Authenticate using the shared secret.
//  2. Refresh the worker's last_heartbeat_time, capabilities, and
//     internet_connectivity bit.
//  3. If the worker already has a running job, return it again
//     (idempotent under retry) instead of claiming a new one.
//  4. Otherwise invoke ClaimOneJob.
func (d *Dispatcher) Poll(ctx context.Context, req PollRequest, expectedSecret string) (PollResult, error) {
	if req.WorkerSecret != expectedSecret {
		return PollResult{}, unauthorised("invalid worker secret")
	}

	hb := domain.HeartbeatPayload{
		Hostname:             req.Hostname,
		Arch:                 req.Arch,
		WorkerSecret:         req.WorkerSecret,
		GitCommit:            req.GitCommit,
		Capabilities:         req.Capabilities,
		InternetConnectivity: req.InternetConnectivity,
		PerformanceWeight:    req.PerformanceWeight,
	}

	worker, err := d.repo.UpsertWorker(ctx, hb)
	if err != nil {
		return PollResult{}, internalErr("upsert worker", err)
	}

	if worker.RunningJobID != nil {
		job, err := d.repo.GetJob(ctx, *worker.RunningJobID)
		if err != nil {
			d.logger.Error("dispatcher: worker has dangling running_job_id", "worker_id", worker.ID, "job_id", *worker.RunningJobID, "error", err)
			return PollResult{}, nil
		}
		return PollResult{Job: &job}, nil
	}

	job, err := d.repo.ClaimOneJob(ctx, worker.ID, req.Arch, req.Capabilities)
	if err != nil {
		return PollResult{}, internalErr("claim job", err)
	}
	if job == nil {
		return PollResult{}, nil
	}

	d.logger.Info("dispatcher: claimed job", "job_id", job.ID, "worker_id", worker.ID, "arch", req.Arch)
	return PollResult{Job: job}, nil
}

// Heartbeat refreshes last_heartbeat_time between polls and
// completions, so a worker busy on a long build is not taken for dead
// by the sweeper and an idle worker still reports as live.
func (d *Dispatcher) Heartbeat(ctx context.Context, req PollRequest, expectedSecret string) error {
	if req.WorkerSecret != expectedSecret {
		return unauthorised("invalid worker secret")
	}
	hb := domain.HeartbeatPayload{
		Hostname:             req.Hostname,
		Arch:                 req.Arch,
		WorkerSecret:         req.WorkerSecret,
		GitCommit:            req.GitCommit,
		Capabilities:         req.Capabilities,
		InternetConnectivity: req.InternetConnectivity,
		PerformanceWeight:    req.PerformanceWeight,
	}
	if _, err := d.repo.UpsertWorker(ctx, hb); err != nil {
		return internalErr("upsert worker", err)
	}
	return nil
}
