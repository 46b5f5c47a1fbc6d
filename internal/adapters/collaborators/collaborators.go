// Package collaborators holds minimal adapters for external
// collaborators out of scope for this repository (git repository
// inspection, the submitter notification surface): the core only needs
// to depend on their ports.Resolver/ports.Notifier interfaces, so the
// concrete implementations here are deliberately thin pass-throughs,
// not a reimplementation of the chat bot, PR integration, or web UI.
package collaborators

import (
	"context"
	"log/slog"

	"github.com/AOSC-Dev/buildit/internal/core/ports"
)

// PassthroughResolver reports DefaultArchs as the required architecture
// set for every request (the orchestrator then narrows it by the
// caller's requested list) and the branch name as the commit reference,
// standing in for the real git-inspection collaborator.
type PassthroughResolver struct {
	DefaultArchs []string
}

func (p PassthroughResolver) Resolve(_ context.Context, req ports.ResolveRequest) (ports.ResolveResult, error) {
	archs := p.DefaultArchs
	return ports.ResolveResult{
		GitSHA:        req.Branch,
		RequiredArchs: archs,
	}, nil
}

// LoggingNotifier logs every notification instead of forwarding it to
// a chat bot, PR check run, or web push surface.
type LoggingNotifier struct {
	Logger *slog.Logger
}

func (n LoggingNotifier) NotifyJobComplete(_ context.Context, note ports.JobCompletionNotice) error {
	n.Logger.Info("notify: job complete", "pipeline_id", note.PipelineID, "job_id", note.JobID, "summary", note.Summary)
	return nil
}

func (n LoggingNotifier) NotifyPipelineCreated(_ context.Context, note ports.PipelineCreatedNotice) error {
	n.Logger.Info("notify: pipeline created", "pipeline_id", note.PipelineID, "source", note.Source)
	return nil
}
