package domain

import (
	"strings"
	"time"
)

// PipelineID identifies a pipeline row. Monotonic, assigned by the store.
type PipelineID int64

// Pipeline is a user-visible build request spanning one or more
// architectures. It is immutable after creation except for its derived
// Status, which is never persisted (see StatusFromJobs).
type Pipeline struct {
	ID               PipelineID
	Packages         []string
	Archs            []string
	GitBranch        string
	GitSHA           string
	GithubPR         *int64
	Source           string // "web", "telegram", "github", "manual"
	CreatorLogin     *string
	CreatorAvatarURL *string
	TelegramUser     *int64
	CreationTime     time.Time
}

// PackagesJoined renders Packages the way the comma-joined column stores it.
func (p Pipeline) PackagesJoined() string { return strings.Join(p.Packages, ",") }

// ArchsJoined renders Archs the way the comma-joined column stores it.
func (p Pipeline) ArchsJoined() string { return strings.Join(p.Archs, ",") }

// SplitList parses a comma-joined column value back into a slice,
// preserving input order and dropping empty segments.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PipelineStatus is derived from the status of every job belonging to
// the pipeline; it is never stored. See StatusFromJobs.
type PipelineStatus string

const (
	PipelineRunning PipelineStatus = "running"
	PipelineSuccess PipelineStatus = "success"
	PipelineFailed  PipelineStatus = "failed"
	PipelineError   PipelineStatus = "error"
)

// StatusFromJobs applies the pipeline's status precedence rule: any job
// in error wins, then any job failed, then any job still pending, else
// success.
func StatusFromJobs(jobs []Job) PipelineStatus {
	sawFailed := false
	sawPending := false
	for _, j := range jobs {
		switch j.Status {
		case JobError:
			return PipelineError
		case JobFailed:
			sawFailed = true
		case JobCreated, JobAssigned:
			sawPending = true
		}
	}
	switch {
	case sawFailed:
		return PipelineFailed
	case sawPending:
		return PipelineRunning
	default:
		return PipelineSuccess
	}
}
