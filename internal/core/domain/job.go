package domain

import (
	"errors"
	"strings"
	"time"
)

// JobID identifies a job row. Monotonic, assigned by the store.
type JobID int64

// JobStatus is one of five explicit states; the older two-state
// (running/finished+booleans) schema is intentionally not modeled here.
type JobStatus string

const (
	JobCreated  JobStatus = "created"
	JobAssigned JobStatus = "assigned"
	JobSuccess  JobStatus = "success"
	JobFailed   JobStatus = "failed"
	JobError    JobStatus = "error"
)

// Terminal reports whether status is one of the three end states.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobFailed || s == JobError
}

// Requirements are the optional hardware thresholds a job may demand of
// the worker that claims it. A nil pointer means "no requirement" and
// always matches.
type Requirements struct {
	MinCores               *int32
	MinTotalMemoryBytes    *int64
	MinMemoryPerCoreBytes  *int64
	MinFreeDiskBytes       *int64
}

// Completion is the worker-reported result payload for a finished job.
type Completion struct {
	BuildSuccess        bool
	UploadSuccess       bool
	SuccessfulPackages   []string
	FailedPackage        string
	SkippedPackages      []string
	LogURL               string
	ErrorMessage         string
}

// DeriveStatus maps a worker's reported result onto a terminal
// JobStatus: a non-empty error message always means JobError, otherwise
// both booleans must be true for JobSuccess.
func (c Completion) DeriveStatus() JobStatus {
	if strings.TrimSpace(c.ErrorMessage) != "" {
		return JobError
	}
	if c.BuildSuccess && c.UploadSuccess {
		return JobSuccess
	}
	return JobFailed
}

// Job is a single (packages x architecture) unit of work dispatched to
// exactly one worker at a time.
type Job struct {
	ID           JobID
	PipelineID   PipelineID
	Packages     []string
	Arch         string
	CreationTime time.Time
	Status       JobStatus
	Requirements Requirements

	AssignedWorkerID *WorkerID
	AssignTime       *time.Time

	FinishTime          *time.Time
	BuildSuccess        *bool
	UploadSuccess       *bool
	SuccessfulPackages  []string
	FailedPackage       string
	SkippedPackages     []string
	LogURL              string
	ErrorMessage        string
	BuiltByWorkerID     *WorkerID
}

// PackagesJoined renders Packages the way the comma-joined column stores it.
func (j Job) PackagesJoined() string { return strings.Join(j.Packages, ",") }

// ElapsedSeconds is derived on read from AssignTime/FinishTime, never
// stored.
func (j Job) ElapsedSeconds() *int64 {
	if j.AssignTime == nil || j.FinishTime == nil {
		return nil
	}
	secs := int64(j.FinishTime.Sub(*j.AssignTime).Seconds())
	return &secs
}

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrWorkerNotFound = errors.New("worker not found")
	ErrStale          = errors.New("stale: job has been reclaimed or already completed")
	ErrNoWork         = errors.New("no matching job available")
)
