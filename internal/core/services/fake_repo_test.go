package services

import (
	"context"
	"sync"
	"time"

	"github.com/AOSC-Dev/buildit/internal/core/domain"
	"github.com/AOSC-Dev/buildit/internal/core/ports"
)

// fakeRepo is a minimal in-memory ports.Repository used to exercise the
// service layer without a database: a hand-rolled test double rather
// than a generated mock.
type fakeRepo struct {
	mu sync.Mutex

	pipelines   map[domain.PipelineID]domain.Pipeline
	jobs        map[domain.JobID]domain.Job
	workers     map[domain.WorkerID]domain.Worker
	nextPID     int64
	nextJID     int64
	nextWID     int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		pipelines: make(map[domain.PipelineID]domain.Pipeline),
		jobs:      make(map[domain.JobID]domain.Job),
		workers:   make(map[domain.WorkerID]domain.Worker),
	}
}

func (f *fakeRepo) CreatePipelineWithJobs(ctx context.Context, p domain.Pipeline, jobs []domain.Job) (domain.PipelineID, []domain.JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPID++
	p.ID = domain.PipelineID(f.nextPID)
	f.pipelines[p.ID] = p

	ids := make([]domain.JobID, len(jobs))
	for i, j := range jobs {
		f.nextJID++
		j.ID = domain.JobID(f.nextJID)
		j.PipelineID = p.ID
		f.jobs[j.ID] = j
		ids[i] = j.ID
	}
	return p.ID, ids, nil
}

func (f *fakeRepo) GetPipeline(ctx context.Context, id domain.PipelineID) (domain.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pipelines[id]
	if !ok {
		return domain.Pipeline{}, domain.ErrPipelineNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListPipelines(ctx context.Context, filter ports.PipelineListFilter) ([]domain.Pipeline, int64, error) {
	return nil, 0, nil
}

func (f *fakeRepo) ListJobsForPipeline(ctx context.Context, id domain.PipelineID) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Job
	for _, j := range f.jobs {
		if j.PipelineID == id {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListJobsForPipelines(ctx context.Context, ids []domain.PipelineID) (map[domain.PipelineID][]domain.Job, error) {
	return nil, nil
}

func (f *fakeRepo) GetJob(ctx context.Context, id domain.JobID) (domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeRepo) ListJobs(ctx context.Context, page, itemsPerPage int64) ([]domain.Job, int64, error) {
	return nil, 0, nil
}

func (f *fakeRepo) CreateJob(ctx context.Context, j domain.Job) (domain.JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextJID++
	j.ID = domain.JobID(f.nextJID)
	f.jobs[j.ID] = j
	return j.ID, nil
}

func (f *fakeRepo) ClaimOneJob(ctx context.Context, workerID domain.WorkerID, arch string, caps domain.Capabilities) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var best *domain.Job
	for id, j := range f.jobs {
		if j.Status != domain.JobCreated {
			continue
		}
		if !MatchesArch(j.Arch, arch) {
			continue
		}
		if !MatchesCapabilities(j.Requirements, caps) {
			continue
		}
		if best == nil || id < best.ID {
			jCopy := j
			best = &jCopy
		}
	}
	if best == nil {
		return nil, nil
	}

	now := time.Now()
	best.Status = domain.JobAssigned
	best.AssignedWorkerID = &workerID
	best.AssignTime = &now
	f.jobs[best.ID] = *best

	w := f.workers[workerID]
	w.RunningJobID = &best.ID
	f.workers[workerID] = w

	claimed := *best
	return &claimed, nil
}

func (f *fakeRepo) CompleteJob(ctx context.Context, jobID domain.JobID, workerID domain.WorkerID, c domain.Completion) (domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	if j.Status != domain.JobAssigned || j.AssignedWorkerID == nil || *j.AssignedWorkerID != workerID {
		return domain.Job{}, domain.ErrStale
	}

	j.Status = c.DeriveStatus()
	j.BuildSuccess = &c.BuildSuccess
	j.UploadSuccess = &c.UploadSuccess
	j.SuccessfulPackages = c.SuccessfulPackages
	j.FailedPackage = c.FailedPackage
	j.SkippedPackages = c.SkippedPackages
	j.LogURL = c.LogURL
	j.ErrorMessage = c.ErrorMessage
	j.BuiltByWorkerID = &workerID
	f.jobs[jobID] = j

	w := f.workers[workerID]
	w.RunningJobID = nil
	f.workers[workerID] = w

	return j, nil
}

func (f *fakeRepo) ReclaimJobsOfWorker(ctx context.Context, workerID domain.WorkerID) ([]domain.JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var reclaimed []domain.JobID
	for id, j := range f.jobs {
		if j.Status == domain.JobAssigned && j.AssignedWorkerID != nil && *j.AssignedWorkerID == workerID {
			j.Status = domain.JobCreated
			j.AssignedWorkerID = nil
			j.AssignTime = nil
			f.jobs[id] = j
			reclaimed = append(reclaimed, id)
		}
	}
	if w, ok := f.workers[workerID]; ok {
		w.RunningJobID = nil
		f.workers[workerID] = w
	}
	return reclaimed, nil
}

func (f *fakeRepo) UpsertWorker(ctx context.Context, hb domain.HeartbeatPayload) (domain.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, w := range f.workers {
		if w.Hostname == hb.Hostname && w.Arch == hb.Arch {
			w.Capabilities = hb.Capabilities
			w.GitCommit = hb.GitCommit
			w.InternetConnectivity = hb.InternetConnectivity
			w.PerformanceWeight = hb.PerformanceWeight
			w.LastHeartbeatTime = time.Now()
			f.workers[id] = w
			return w, nil
		}
	}
	f.nextWID++
	w := domain.Worker{
		ID: domain.WorkerID(f.nextWID), Hostname: hb.Hostname, Arch: hb.Arch,
		Capabilities: hb.Capabilities, GitCommit: hb.GitCommit,
		InternetConnectivity: hb.InternetConnectivity, PerformanceWeight: hb.PerformanceWeight,
		WorkerSecret: hb.WorkerSecret, LastHeartbeatTime: time.Now(),
	}
	f.workers[w.ID] = w
	return w, nil
}

func (f *fakeRepo) GetWorker(ctx context.Context, id domain.WorkerID) (domain.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workers[id]
	if !ok {
		return domain.Worker{}, domain.ErrWorkerNotFound
	}
	return w, nil
}

func (f *fakeRepo) GetWorkerByHostnameArch(ctx context.Context, hostname, arch string) (domain.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.workers {
		if w.Hostname == hostname && w.Arch == arch {
			return w, nil
		}
	}
	return domain.Worker{}, domain.ErrWorkerNotFound
}

func (f *fakeRepo) ListWorkers(ctx context.Context, page, itemsPerPage int64) ([]domain.Worker, int64, error) {
	return nil, 0, nil
}

func (f *fakeRepo) ListAllWorkers(ctx context.Context) ([]domain.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Worker, 0, len(f.workers))
	for _, w := range f.workers {
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeRepo) TouchHeartbeat(ctx context.Context, id domain.WorkerID, hb domain.HeartbeatPayload) error {
	return nil
}

func (f *fakeRepo) DashboardCounts(ctx context.Context) (ports.DashboardCounts, error) {
	return ports.DashboardCounts{}, nil
}

func (f *fakeRepo) GetUserByTelegramChatID(ctx context.Context, telegramChatID int64) (domain.User, error) {
	return domain.User{}, domain.ErrUserNotFound
}

func (f *fakeRepo) LinkGithubLogin(ctx context.Context, telegramChatID int64, githubLogin string) (domain.User, error) {
	return domain.User{}, nil
}

// fakeResolver is a stand-in Resolver whose result is fixed at
// construction time.
type fakeResolver struct {
	result ports.ResolveResult
	err    error
}

func (r fakeResolver) Resolve(ctx context.Context, req ports.ResolveRequest) (ports.ResolveResult, error) {
	return r.result, r.err
}

// fakeNotifier records every notification it receives.
type fakeNotifier struct {
	mu             sync.Mutex
	pipelineEvents []ports.PipelineCreatedNotice
	jobEvents      []ports.JobCompletionNotice
}

func (n *fakeNotifier) NotifyJobComplete(ctx context.Context, notice ports.JobCompletionNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobEvents = append(n.jobEvents, notice)
	return nil
}

func (n *fakeNotifier) NotifyPipelineCreated(ctx context.Context, notice ports.PipelineCreatedNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pipelineEvents = append(n.pipelineEvents, notice)
	return nil
}
