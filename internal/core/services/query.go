package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/AOSC-Dev/buildit/internal/core/domain"
	"github.com/AOSC-Dev/buildit/internal/core/ports"
)

// QueryService backs the public, read-only query endpoints: it never
// writes, it always paginates list results, and it re-derives every
// status it returns rather than trusting a stored column.
type QueryService struct {
	logger *slog.Logger
	repo   ports.Repository
}

func NewQueryService(logger *slog.Logger, repo ports.Repository) *QueryService {
	return &QueryService{logger: logger, repo: repo}
}

// JobSummary is the per-job shape embedded in a PipelineView.
type JobSummary struct {
	JobID  domain.JobID
	Arch   string
	Status domain.JobStatus
}

// PipelineView is one item of pipeline/list or the body of pipeline/info.
type PipelineView struct {
	Pipeline domain.Pipeline
	Status   domain.PipelineStatus
	Jobs     []JobSummary
}

// ListPipelines implements pipeline/list.
func (q *QueryService) ListPipelines(ctx context.Context, f ports.PipelineListFilter) ([]PipelineView, int64, error) {
	pipelines, total, err := q.repo.ListPipelines(ctx, f)
	if err != nil {
		return nil, 0, internalErr("list pipelines", err)
	}

	ids := make([]domain.PipelineID, len(pipelines))
	for i, p := range pipelines {
		ids[i] = p.ID
	}
	jobsByPipeline, err := q.repo.ListJobsForPipelines(ctx, ids)
	if err != nil {
		return nil, 0, internalErr("list jobs for pipelines", err)
	}

	views := make([]PipelineView, len(pipelines))
	for i, p := range pipelines {
		views[i] = buildPipelineView(p, jobsByPipeline[p.ID])
	}
	return views, total, nil
}

// PipelineInfo implements pipeline/info.
func (q *QueryService) PipelineInfo(ctx context.Context, id domain.PipelineID) (PipelineView, error) {
	p, err := q.repo.GetPipeline(ctx, id)
	if err != nil {
		return PipelineView{}, notFound("unknown pipeline")
	}
	jobs, err := q.repo.ListJobsForPipeline(ctx, id)
	if err != nil {
		return PipelineView{}, internalErr("list jobs for pipeline", err)
	}
	return buildPipelineView(p, jobs), nil
}

func buildPipelineView(p domain.Pipeline, jobs []domain.Job) PipelineView {
	summaries := make([]JobSummary, len(jobs))
	for i, j := range jobs {
		summaries[i] = JobSummary{JobID: j.ID, Arch: j.Arch, Status: j.Status}
	}
	return PipelineView{Pipeline: p, Status: domain.StatusFromJobs(jobs), Jobs: summaries}
}

// ListJobs implements job/list.
func (q *QueryService) ListJobs(ctx context.Context, page, itemsPerPage int64) ([]domain.Job, int64, error) {
	jobs, total, err := q.repo.ListJobs(ctx, page, itemsPerPage)
	if err != nil {
		return nil, 0, internalErr("list jobs", err)
	}
	return jobs, total, nil
}

// JobInfo implements job/info, resolving worker hostnames for display.
type JobInfo struct {
	Job                 domain.Job
	AssignedHostname    string
	BuiltByHostname      string
	ElapsedSeconds      *int64
}

func (q *QueryService) JobInfo(ctx context.Context, id domain.JobID) (JobInfo, error) {
	job, err := q.repo.GetJob(ctx, id)
	if err != nil {
		return JobInfo{}, notFound("unknown job")
	}
	info := JobInfo{Job: job, ElapsedSeconds: job.ElapsedSeconds()}
	if job.AssignedWorkerID != nil {
		if w, err := q.repo.GetWorker(ctx, *job.AssignedWorkerID); err == nil {
			info.AssignedHostname = w.Hostname
		}
	}
	if job.BuiltByWorkerID != nil {
		if w, err := q.repo.GetWorker(ctx, *job.BuiltByWorkerID); err == nil {
			info.BuiltByHostname = w.Hostname
		}
	}
	return info, nil
}

// WorkerView is the per-worker shape for worker/list and worker/info,
// carrying the derived liveness bit and, for a worker currently running
// a job, when that job was assigned.
type WorkerView struct {
	Worker               domain.Worker
	IsLive               bool
	RunningJobAssignTime *time.Time
}

func (q *QueryService) buildWorkerView(ctx context.Context, w domain.Worker, now time.Time, livenessTimeout time.Duration) WorkerView {
	v := WorkerView{Worker: w, IsLive: w.IsLive(now, livenessTimeout)}
	if w.RunningJobID != nil {
		if job, err := q.repo.GetJob(ctx, *w.RunningJobID); err == nil {
			v.RunningJobAssignTime = job.AssignTime
		}
	}
	return v
}

// ListWorkers implements worker/list.
func (q *QueryService) ListWorkers(ctx context.Context, page, itemsPerPage int64, clock ports.Clock, livenessTimeout time.Duration) ([]WorkerView, int64, error) {
	workers, total, err := q.repo.ListWorkers(ctx, page, itemsPerPage)
	if err != nil {
		return nil, 0, internalErr("list workers", err)
	}
	now := clock.Now()
	views := make([]WorkerView, len(workers))
	for i, w := range workers {
		views[i] = q.buildWorkerView(ctx, w, now, livenessTimeout)
	}
	return views, total, nil
}

// WorkerInfo implements worker/info.
func (q *QueryService) WorkerInfo(ctx context.Context, id domain.WorkerID, clock ports.Clock, livenessTimeout time.Duration) (WorkerView, error) {
	w, err := q.repo.GetWorker(ctx, id)
	if err != nil {
		return WorkerView{}, notFound("unknown worker")
	}
	return q.buildWorkerView(ctx, w, clock.Now(), livenessTimeout), nil
}

// DashboardStatus implements dashboard/status.
func (q *QueryService) DashboardStatus(ctx context.Context) (ports.DashboardCounts, error) {
	counts, err := q.repo.DashboardCounts(ctx)
	if err != nil {
		return ports.DashboardCounts{}, internalErr("dashboard counts", err)
	}
	return counts, nil
}
