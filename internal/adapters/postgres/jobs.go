package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AOSC-Dev/buildit/internal/core/domain"
)

const jobSelectColumns = `SELECT id, pipeline_id, packages, arch, creation_time, status,
	require_min_core, require_min_total_mem, require_min_total_mem_per_core, require_min_disk,
	assigned_worker_id, assign_time,
	finish_time, build_success, upload_success, successful_packages, failed_package,
	skipped_packages, log_url, error_message, built_by_worker_id`

func scanJob(row scannable) (domain.Job, error) {
	var j domain.Job
	var packages string
	var status string
	var successfulPackages, skippedPackages sql.NullString
	err := row.Scan(
		&j.ID, &j.PipelineID, &packages, &j.Arch, &j.CreationTime, &status,
		&j.Requirements.MinCores, &j.Requirements.MinTotalMemoryBytes,
		&j.Requirements.MinMemoryPerCoreBytes, &j.Requirements.MinFreeDiskBytes,
		&j.AssignedWorkerID, &j.AssignTime,
		&j.FinishTime, &j.BuildSuccess, &j.UploadSuccess, &successfulPackages, &j.FailedPackage,
		&skippedPackages, &j.LogURL, &j.ErrorMessage, &j.BuiltByWorkerID,
	)
	if err != nil {
		return domain.Job{}, err
	}
	j.Packages = domain.SplitList(packages)
	j.Status = domain.JobStatus(status)
	j.SuccessfulPackages = domain.SplitList(successfulPackages.String)
	j.SkippedPackages = domain.SplitList(skippedPackages.String)
	return j, nil
}

func scanJobs(rows *sql.Rows) ([]domain.Job, error) {
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *Repository) GetJob(ctx context.Context, id domain.JobID) (domain.Job, error) {
	row := r.db.QueryRowContext(ctx, jobSelectColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (r *Repository) ListJobs(ctx context.Context, page, itemsPerPage int64) ([]domain.Job, int64, error) {
	page, perPage := normalizePage(page, itemsPerPage)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, jobSelectColumns+`
		FROM jobs ORDER BY id DESC LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (r *Repository) CreateJob(ctx context.Context, j domain.Job) (domain.JobID, error) {
	var id domain.JobID
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO jobs (pipeline_id, packages, arch, creation_time, status,
		                   require_min_core, require_min_total_mem, require_min_total_mem_per_core, require_min_disk)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		j.PipelineID, j.PackagesJoined(), j.Arch, j.CreationTime, string(domain.JobCreated),
		j.Requirements.MinCores, j.Requirements.MinTotalMemoryBytes,
		j.Requirements.MinMemoryPerCoreBytes, j.Requirements.MinFreeDiskBytes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}
	return id, nil
}

// ClaimOneJob locks the oldest matching `created` job FOR UPDATE SKIP
// LOCKED so two concurrent dispatcher calls never claim the same row,
// then assigns it and points the worker at it, all in one transaction.
func (r *Repository) ClaimOneJob(ctx context.Context, workerID domain.WorkerID, arch string, caps domain.Capabilities) (*domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, jobSelectColumns+`
		FROM jobs
		WHERE status = 'created'
		  AND (arch = $1 OR (arch = 'noarch' AND $1 = 'amd64'))
		  AND (require_min_core IS NULL OR require_min_core <= $2)
		  AND (require_min_total_mem IS NULL OR require_min_total_mem <= $3)
		  AND (require_min_total_mem_per_core IS NULL OR require_min_total_mem_per_core <= $4)
		  AND (require_min_disk IS NULL OR require_min_disk <= $5)
		ORDER BY id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		arch, caps.LogicalCores, caps.MemoryBytes, caps.MemoryPerCore(), caps.DiskFreeSpaceBytes,
	)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select candidate job: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs SET status = 'assigned', assigned_worker_id = $1, assign_time = now()
		WHERE id = $2`, workerID, job.ID)
	if err != nil {
		return nil, fmt.Errorf("assign job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE workers SET running_job_id = $1 WHERE id = $2`, job.ID, workerID); err != nil {
		return nil, fmt.Errorf("set worker running_job_id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	job.Status = domain.JobAssigned
	job.AssignedWorkerID = &workerID
	return &job, nil
}

// CompleteJob's UPDATE WHERE clause requires the job to still be
// assigned to worker_id, so a reclaimed or reassigned job yields zero
// affected rows, which this method reports as domain.ErrStale.
func (r *Repository) CompleteJob(ctx context.Context, jobID domain.JobID, workerID domain.WorkerID, c domain.Completion) (domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	status := c.DeriveStatus()

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET
			status = $1, finish_time = now(),
			build_success = $2, upload_success = $3,
			successful_packages = $4, failed_package = $5, skipped_packages = $6,
			log_url = $7, error_message = $8, built_by_worker_id = $9
		WHERE id = $10 AND assigned_worker_id = $9 AND status = 'assigned'`,
		string(status), c.BuildSuccess, c.UploadSuccess,
		joinList(c.SuccessfulPackages), c.FailedPackage, joinList(c.SkippedPackages),
		c.LogURL, c.ErrorMessage, workerID, jobID,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Job{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish "job never existed" from "stale" for a clean 404
		// instead of a misleading 409.
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, jobID).Scan(&exists); err != nil {
			return domain.Job{}, fmt.Errorf("check job exists: %w", err)
		}
		if !exists {
			return domain.Job{}, domain.ErrJobNotFound
		}
		return domain.Job{}, domain.ErrStale
	}

	if _, err := tx.ExecContext(ctx, `UPDATE workers SET running_job_id = NULL WHERE id = $1 AND running_job_id = $2`, workerID, jobID); err != nil {
		return domain.Job{}, fmt.Errorf("clear worker running_job_id: %w", err)
	}

	row := tx.QueryRowContext(ctx, jobSelectColumns+` FROM jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if err != nil {
		return domain.Job{}, fmt.Errorf("reload job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Job{}, fmt.Errorf("commit: %w", err)
	}
	return job, nil
}

// ReclaimJobsOfWorker reverts every job currently assigned to workerID
// back to created; the WHERE clause's status='assigned' makes a repeat
// call a no-op.
func (r *Repository) ReclaimJobsOfWorker(ctx context.Context, workerID domain.WorkerID) ([]domain.JobID, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		UPDATE jobs SET status = 'created', assigned_worker_id = NULL, assign_time = NULL
		WHERE assigned_worker_id = $1 AND status = 'assigned'
		RETURNING id`, workerID)
	if err != nil {
		return nil, fmt.Errorf("reclaim jobs: %w", err)
	}
	var ids []domain.JobID
	for rows.Next() {
		var id domain.JobID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `UPDATE workers SET running_job_id = NULL WHERE id = $1`, workerID); err != nil {
		return nil, fmt.Errorf("clear worker running_job_id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}
