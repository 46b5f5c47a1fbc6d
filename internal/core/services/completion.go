package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AOSC-Dev/buildit/internal/core/domain"
	"github.com/AOSC-Dev/buildit/internal/core/ports"
)

// CompletionHandler records worker-reported job results, relies on the
// repository's conditional update for the stale-completion check, and
// fires a best-effort notification to the submitter surface.
type CompletionHandler struct {
	logger   *slog.Logger
	repo     ports.Repository
	notifier ports.Notifier
}

// NewCompletionHandler constructs a CompletionHandler. notifier may be
// nil, in which case notifications are skipped (useful in tests).
func NewCompletionHandler(logger *slog.Logger, repo ports.Repository, notifier ports.Notifier) *CompletionHandler {
	return &CompletionHandler{logger: logger, repo: repo, notifier: notifier}
}

// CompleteRequest is the input to Complete.
type CompleteRequest struct {
	JobID        domain.JobID
	Hostname     string
	Arch         string
	WorkerSecret string
	Result       domain.Completion
}

// Complete records a worker's reported result for a job. On a stale
// conflict (the job has already been reclaimed, or is assigned to a
// different worker) it returns an apierr-Conflict error and the
// worker's result is discarded.
func (h *CompletionHandler) Complete(ctx context.Context, req CompleteRequest, expectedSecret string) (domain.Job, error) {
	if req.WorkerSecret != expectedSecret {
		return domain.Job{}, unauthorised("invalid worker secret")
	}

	worker, err := h.repo.GetWorkerByHostnameArch(ctx, req.Hostname, req.Arch)
	if err != nil {
		if errors.Is(err, domain.ErrWorkerNotFound) {
			return domain.Job{}, notFound("unknown worker")
		}
		return domain.Job{}, internalErr("lookup worker", err)
	}

	// A completion call counts as a heartbeat; the worker's stored
	// capabilities are carried over unchanged.
	if err := h.repo.TouchHeartbeat(ctx, worker.ID, domain.HeartbeatPayload{
		Capabilities:         worker.Capabilities,
		InternetConnectivity: worker.InternetConnectivity,
	}); err != nil {
		return domain.Job{}, internalErr("refresh heartbeat", err)
	}

	job, err := h.repo.CompleteJob(ctx, req.JobID, worker.ID, req.Result)
	if err != nil {
		if errors.Is(err, domain.ErrStale) {
			return domain.Job{}, conflict("job has been reclaimed or already completed")
		}
		if errors.Is(err, domain.ErrJobNotFound) {
			return domain.Job{}, notFound("unknown job")
		}
		return domain.Job{}, internalErr("complete job", err)
	}

	h.notifyBestEffort(ctx, job)
	return job, nil
}

func (h *CompletionHandler) notifyBestEffort(ctx context.Context, job domain.Job) {
	if h.notifier == nil {
		return
	}
	notice := ports.JobCompletionNotice{
		PipelineID: job.PipelineID,
		JobID:      job.ID,
		LogURL:     job.LogURL,
		Summary:    summarize(job),
	}
	if err := h.notifier.NotifyJobComplete(ctx, notice); err != nil {
		// Callback failures are logged but never roll back the completion.
		h.logger.Error("completion: notify failed", "job_id", job.ID, "error", err)
	}
}

func summarize(job domain.Job) string {
	switch job.Status {
	case domain.JobSuccess:
		return fmt.Sprintf("job %d succeeded (%s)", job.ID, job.Arch)
	case domain.JobFailed:
		return fmt.Sprintf("job %d failed (%s): %s", job.ID, job.Arch, job.FailedPackage)
	case domain.JobError:
		return fmt.Sprintf("job %d errored (%s): %s", job.ID, job.Arch, job.ErrorMessage)
	default:
		return fmt.Sprintf("job %d finished with status %s", job.ID, job.Status)
	}
}
