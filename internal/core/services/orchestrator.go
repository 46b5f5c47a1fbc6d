package services

import (
	"context"
	"log/slog"

	"github.com/AOSC-Dev/buildit/internal/core/domain"
	"github.com/AOSC-Dev/buildit/internal/core/ports"
)

// Orchestrator turns an external submission into a pipeline plus one job
// per requested architecture, and re-derives pipeline status from its
// jobs on every read.
type Orchestrator struct {
	logger   *slog.Logger
	repo     ports.Repository
	resolver ports.Resolver
	notifier ports.Notifier
	clock    ports.Clock
}

// NewOrchestrator constructs an Orchestrator. notifier may be nil.
func NewOrchestrator(logger *slog.Logger, repo ports.Repository, resolver ports.Resolver, notifier ports.Notifier, clock ports.Clock) *Orchestrator {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Orchestrator{logger: logger, repo: repo, resolver: resolver, notifier: notifier, clock: clock}
}

// CreatePipelineRequest is the input to CreatePipeline.
type CreatePipelineRequest struct {
	Packages         []string
	Branch           string
	GithubPR         *int64
	RequestedArchs   []string // empty means "whatever the resolver says"
	Requirements     domain.Requirements
	Source           string
	CreatorLogin     *string
	CreatorAvatarURL *string
	TelegramUser     *int64
}

// CreatePipeline resolves the request's branch/PR to a commit and a
// required architecture set, narrows that set by the caller's requested
// architectures if given, then persists the pipeline and one job per
// resulting architecture.
func (o *Orchestrator) CreatePipeline(ctx context.Context, req CreatePipelineRequest) (domain.PipelineID, error) {
	if len(req.Packages) == 0 {
		return 0, validation("packages must not be empty")
	}

	res, err := o.resolver.Resolve(ctx, ports.ResolveRequest{
		Branch:   req.Branch,
		PR:       req.GithubPR,
		Packages: req.Packages,
	})
	if err != nil {
		return 0, upstream("resolve branch/pr", err)
	}

	archs := res.RequiredArchs
	if len(req.RequestedArchs) > 0 {
		archs = intersect(req.RequestedArchs, res.RequiredArchs)
	}
	if len(archs) == 0 {
		return 0, validation("no matching architecture between request and resolver")
	}

	pipeline := domain.Pipeline{
		Packages:         req.Packages,
		Archs:            archs,
		GitBranch:        req.Branch,
		GitSHA:           res.GitSHA,
		GithubPR:         req.GithubPR,
		Source:           req.Source,
		CreatorLogin:     req.CreatorLogin,
		CreatorAvatarURL: req.CreatorAvatarURL,
		TelegramUser:     req.TelegramUser,
		CreationTime:     o.clock.Now(),
	}

	jobs := make([]domain.Job, 0, len(archs))
	for _, arch := range archs {
		jobs = append(jobs, domain.Job{
			Packages:     req.Packages,
			Arch:         arch,
			CreationTime: pipeline.CreationTime,
			Status:       domain.JobCreated,
			Requirements: req.Requirements,
		})
	}

	pipelineID, _, err := o.repo.CreatePipelineWithJobs(ctx, pipeline, jobs)
	if err != nil {
		return 0, internalErr("create pipeline", err)
	}

	if o.notifier != nil {
		if err := o.notifier.NotifyPipelineCreated(ctx, ports.PipelineCreatedNotice{
			PipelineID: pipelineID,
			Source:     req.Source,
		}); err != nil {
			o.logger.Error("orchestrator: notify pipeline created failed", "pipeline_id", pipelineID, "error", err)
		}
	}

	return pipelineID, nil
}

// PipelineStatus re-derives status from the pipeline's current jobs;
// it is never persisted.
func (o *Orchestrator) PipelineStatus(ctx context.Context, id domain.PipelineID) (domain.PipelineStatus, error) {
	jobs, err := o.repo.ListJobsForPipeline(ctx, id)
	if err != nil {
		return "", internalErr("list jobs for pipeline", err)
	}
	return domain.StatusFromJobs(jobs), nil
}

// RestartJob clones a failed/error job's inputs into a new row in the
// same pipeline. The original job row is retained untouched.
func (o *Orchestrator) RestartJob(ctx context.Context, jobID domain.JobID) (domain.JobID, error) {
	job, err := o.repo.GetJob(ctx, jobID)
	if err != nil {
		return 0, notFound("unknown job")
	}
	if !job.Status.Terminal() || job.Status == domain.JobSuccess {
		return 0, validation("only failed or errored jobs can be restarted")
	}

	clone := domain.Job{
		PipelineID:   job.PipelineID,
		Packages:     job.Packages,
		Arch:         job.Arch,
		CreationTime: o.clock.Now(),
		Status:       domain.JobCreated,
		Requirements: job.Requirements,
	}

	newID, err := o.repo.CreateJob(ctx, clone)
	if err != nil {
		return 0, internalErr("create restarted job", err)
	}
	return newID, nil
}

func intersect(requested, resolved []string) []string {
	set := make(map[string]bool, len(resolved))
	for _, a := range resolved {
		set[a] = true
	}
	out := make([]string, 0, len(requested))
	for _, a := range requested {
		if set[a] {
			out = append(out, a)
		}
	}
	return out
}
