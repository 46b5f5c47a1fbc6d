package ports

import (
	"context"
	"time"

	"github.com/AOSC-Dev/buildit/internal/core/domain"
)

// Repository abstracts the relational store (PostgreSQL in the
// production adapter). Every mutation the scheduler performs goes
// through it; it is the single source of truth for pipeline, job, and
// worker rows.
type Repository interface {
	// Pipelines
	CreatePipelineWithJobs(ctx context.Context, p domain.Pipeline, jobs []domain.Job) (domain.PipelineID, []domain.JobID, error)
	GetPipeline(ctx context.Context, id domain.PipelineID) (domain.Pipeline, error)
	ListPipelines(ctx context.Context, f PipelineListFilter) ([]domain.Pipeline, int64, error)
	ListJobsForPipeline(ctx context.Context, id domain.PipelineID) ([]domain.Job, error)
	ListJobsForPipelines(ctx context.Context, ids []domain.PipelineID) (map[domain.PipelineID][]domain.Job, error)

	// Jobs
	GetJob(ctx context.Context, id domain.JobID) (domain.Job, error)
	ListJobs(ctx context.Context, page, itemsPerPage int64) ([]domain.Job, int64, error)
	CreateJob(ctx context.Context, j domain.Job) (domain.JobID, error)

	// Atomic scheduling primitives: each must hold its invariant under
	// concurrent callers without relying on a higher-level lock.
	ClaimOneJob(ctx context.Context, workerID domain.WorkerID, arch string, caps domain.Capabilities) (*domain.Job, error)
	CompleteJob(ctx context.Context, jobID domain.JobID, workerID domain.WorkerID, c domain.Completion) (domain.Job, error)
	ReclaimJobsOfWorker(ctx context.Context, workerID domain.WorkerID) ([]domain.JobID, error)

	// Workers
	UpsertWorker(ctx context.Context, hb domain.HeartbeatPayload) (domain.Worker, error)
	GetWorker(ctx context.Context, id domain.WorkerID) (domain.Worker, error)
	GetWorkerByHostnameArch(ctx context.Context, hostname, arch string) (domain.Worker, error)
	ListWorkers(ctx context.Context, page, itemsPerPage int64) ([]domain.Worker, int64, error)
	ListAllWorkers(ctx context.Context) ([]domain.Worker, error)
	TouchHeartbeat(ctx context.Context, id domain.WorkerID, hb domain.HeartbeatPayload) error

	// Dashboard
	DashboardCounts(ctx context.Context) (DashboardCounts, error)

	// Users
	GetUserByTelegramChatID(ctx context.Context, telegramChatID int64) (domain.User, error)
	LinkGithubLogin(ctx context.Context, telegramChatID int64, githubLogin string) (domain.User, error)
}

// PipelineListFilter narrows the pipeline listing query.
type PipelineListFilter struct {
	Page          int64
	ItemsPerPage  int64
	StableOnly    bool
	GithubPROnly  bool
}

// DashboardCounts backs the dashboard summary endpoint.
type DashboardCounts struct {
	TotalPipelineCount int64
	TotalJobCount      int64
	PendingJobCount    int64
	RunningJobCount    int64
	FinishedJobCount   int64
	TotalWorkerCount   int64
	LiveWorkerCount    int64
	TotalLogicalCores  int64
	TotalMemoryBytes   int64
	ByArch             map[string]ArchCounts
}

// ArchCounts is the per-architecture breakdown inside DashboardCounts.
type ArchCounts struct {
	TotalJobCount     int64
	PendingJobCount   int64
	RunningJobCount   int64
	FinishedJobCount  int64
	TotalWorkerCount  int64
	LiveWorkerCount   int64
	TotalLogicalCores int64
	TotalMemoryBytes  int64
}

// Resolver maps a pipeline-creation request's (branch|pr, packages) to
// a resolved commit and the architectures that need building; it is an
// external collaborator (git repository inspection), not implemented by
// this repository.
type Resolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error)
}

// ResolveRequest is the input to Resolver.Resolve.
type ResolveRequest struct {
	Branch   string
	PR       *int64
	Packages []string
}

// ResolveResult is the output of Resolver.Resolve.
type ResolveResult struct {
	GitSHA             string
	RequiredArchs      []string
	TopicDescription   string
}

// Notifier pushes a notification to the submitter surface that created
// a pipeline. Failures are logged, never fatal to the transaction that
// produced them.
type Notifier interface {
	NotifyJobComplete(ctx context.Context, n JobCompletionNotice) error
	NotifyPipelineCreated(ctx context.Context, n PipelineCreatedNotice) error
}

// JobCompletionNotice is the payload handed to Notifier.NotifyJobComplete.
type JobCompletionNotice struct {
	PipelineID PipelineID
	JobID      JobID
	LogURL     string
	Summary    string
	Source     string
}

// PipelineID/JobID aliases kept local to ports to avoid importing
// domain into every notifier implementation's call sites redundantly.
type PipelineID = domain.PipelineID
type JobID = domain.JobID

// PipelineCreatedNotice is the payload handed to Notifier.NotifyPipelineCreated.
type PipelineCreatedNotice struct {
	PipelineID PipelineID
	Source     string
}

// Clock abstracts time.Now for deterministic tests of liveness and
// assignment logic.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
