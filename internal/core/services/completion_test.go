package services

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AOSC-Dev/buildit/internal/apierr"
	"github.com/AOSC-Dev/buildit/internal/core/domain"
)

func TestCompletion_DeriveStatusTruthTable(t *testing.T) {
	cases := []struct {
		name string
		c    domain.Completion
		want domain.JobStatus
	}{
		{"build and upload succeed", domain.Completion{BuildSuccess: true, UploadSuccess: true}, domain.JobSuccess},
		{"build fails", domain.Completion{BuildSuccess: false, UploadSuccess: true}, domain.JobFailed},
		{"upload fails", domain.Completion{BuildSuccess: true, UploadSuccess: false}, domain.JobFailed},
		{"both fail", domain.Completion{BuildSuccess: false, UploadSuccess: false}, domain.JobFailed},
		{"error message wins over success", domain.Completion{BuildSuccess: true, UploadSuccess: true, ErrorMessage: "panic"}, domain.JobError},
		{"error message wins over failure", domain.Completion{ErrorMessage: "disk full"}, domain.JobError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.c.DeriveStatus())
		})
	}
}

func TestCompletionHandler_Complete(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()
	const secret = "s3cr3t"

	setup := func(t *testing.T) (*fakeRepo, *CompletionHandler, domain.WorkerID, domain.JobID) {
		repo := newFakeRepo()
		worker, err := repo.UpsertWorker(ctx, domain.HeartbeatPayload{Hostname: "builder1", Arch: "amd64", WorkerSecret: secret})
		assert.NoError(t, err)
		jobID, err := repo.CreateJob(ctx, domain.Job{Arch: "amd64", Status: domain.JobCreated})
		assert.NoError(t, err)
		claimed, err := repo.ClaimOneJob(ctx, worker.ID, "amd64", domain.Capabilities{LogicalCores: 4, MemoryBytes: 8 << 30})
		assert.NoError(t, err)
		assert.NotNil(t, claimed)
		assert.Equal(t, jobID, claimed.ID)

		handler := NewCompletionHandler(logger, repo, nil)
		return repo, handler, worker.ID, jobID
	}

	t.Run("happy path marks job success", func(t *testing.T) {
		_, handler, _, jobID := setup(t)
		job, err := handler.Complete(ctx, CompleteRequest{
			JobID: jobID, Hostname: "builder1", Arch: "amd64", WorkerSecret: secret,
			Result: domain.Completion{BuildSuccess: true, UploadSuccess: true},
		}, secret)
		assert.NoError(t, err)
		assert.Equal(t, domain.JobSuccess, job.Status)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		_, handler, _, jobID := setup(t)
		_, err := handler.Complete(ctx, CompleteRequest{
			JobID: jobID, Hostname: "builder1", Arch: "amd64", WorkerSecret: "nope",
			Result: domain.Completion{BuildSuccess: true, UploadSuccess: true},
		}, secret)
		ae, ok := apierr.As(err)
		assert.True(t, ok)
		assert.Equal(t, apierr.Unauthorised, ae.Kind)
	})

	t.Run("completing an already-completed job is a stale conflict", func(t *testing.T) {
		_, handler, _, jobID := setup(t)
		_, err := handler.Complete(ctx, CompleteRequest{
			JobID: jobID, Hostname: "builder1", Arch: "amd64", WorkerSecret: secret,
			Result: domain.Completion{BuildSuccess: true, UploadSuccess: true},
		}, secret)
		assert.NoError(t, err)

		_, err = handler.Complete(ctx, CompleteRequest{
			JobID: jobID, Hostname: "builder1", Arch: "amd64", WorkerSecret: secret,
			Result: domain.Completion{BuildSuccess: true, UploadSuccess: true},
		}, secret)
		ae, ok := apierr.As(err)
		assert.True(t, ok)
		assert.Equal(t, apierr.Conflict, ae.Kind)
	})

	t.Run("unknown worker is not found", func(t *testing.T) {
		_, handler, _, jobID := setup(t)
		_, err := handler.Complete(ctx, CompleteRequest{
			JobID: jobID, Hostname: "ghost", Arch: "amd64", WorkerSecret: secret,
			Result: domain.Completion{BuildSuccess: true, UploadSuccess: true},
		}, secret)
		ae, ok := apierr.As(err)
		assert.True(t, ok)
		assert.Equal(t, apierr.NotFound, ae.Kind)
	})
}
