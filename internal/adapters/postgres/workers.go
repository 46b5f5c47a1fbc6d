package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AOSC-Dev/buildit/internal/core/domain"
	"github.com/AOSC-Dev/buildit/internal/core/ports"
)

const workerSelectColumns = `SELECT id, hostname, arch, logical_cores, memory_bytes, disk_free_space_bytes,
	git_commit, last_heartbeat_time, internet_connectivity, running_job_id, worker_secret, performance_weight`

func scanWorker(row scannable) (domain.Worker, error) {
	var w domain.Worker
	err := row.Scan(&w.ID, &w.Hostname, &w.Arch, &w.Capabilities.LogicalCores, &w.Capabilities.MemoryBytes,
		&w.Capabilities.DiskFreeSpaceBytes, &w.GitCommit, &w.LastHeartbeatTime, &w.InternetConnectivity,
		&w.RunningJobID, &w.WorkerSecret, &w.PerformanceWeight)
	return w, err
}

func scanWorkers(rows *sql.Rows) ([]domain.Worker, error) {
	var out []domain.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpsertWorker implements the worker identity rule: re-registering with
// the same (hostname, arch) updates the existing row rather than
// creating a duplicate. The worker_secret column is set only on first
// insert; later heartbeats never change it.
func (r *Repository) UpsertWorker(ctx context.Context, hb domain.HeartbeatPayload) (domain.Worker, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO workers (hostname, arch, logical_cores, memory_bytes, disk_free_space_bytes,
		                      git_commit, last_heartbeat_time, internet_connectivity, worker_secret, performance_weight)
		VALUES ($1, $2, $3, $4, $5, $6, now(), $7, $8, $9)
		ON CONFLICT (hostname, arch) DO UPDATE SET
			logical_cores           = excluded.logical_cores,
			memory_bytes            = excluded.memory_bytes,
			disk_free_space_bytes   = excluded.disk_free_space_bytes,
			git_commit              = excluded.git_commit,
			last_heartbeat_time     = now(),
			internet_connectivity   = excluded.internet_connectivity,
			performance_weight      = excluded.performance_weight
		RETURNING `+workerSelectColumns[len("SELECT "):],
		hb.Hostname, hb.Arch, hb.Capabilities.LogicalCores, hb.Capabilities.MemoryBytes,
		hb.Capabilities.DiskFreeSpaceBytes, hb.GitCommit, hb.InternetConnectivity, hb.WorkerSecret, hb.PerformanceWeight,
	)
	w, err := scanWorker(row)
	if err != nil {
		return domain.Worker{}, fmt.Errorf("upsert worker: %w", err)
	}
	return w, nil
}

func (r *Repository) GetWorker(ctx context.Context, id domain.WorkerID) (domain.Worker, error) {
	row := r.db.QueryRowContext(ctx, workerSelectColumns+` FROM workers WHERE id = $1`, id)
	w, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Worker{}, domain.ErrWorkerNotFound
	}
	if err != nil {
		return domain.Worker{}, fmt.Errorf("get worker: %w", err)
	}
	return w, nil
}

func (r *Repository) GetWorkerByHostnameArch(ctx context.Context, hostname, arch string) (domain.Worker, error) {
	row := r.db.QueryRowContext(ctx, workerSelectColumns+` FROM workers WHERE hostname = $1 AND arch = $2`, hostname, arch)
	w, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Worker{}, domain.ErrWorkerNotFound
	}
	if err != nil {
		return domain.Worker{}, fmt.Errorf("get worker by hostname/arch: %w", err)
	}
	return w, nil
}

func (r *Repository) ListWorkers(ctx context.Context, page, itemsPerPage int64) ([]domain.Worker, int64, error) {
	page, perPage := normalizePage(page, itemsPerPage)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM workers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count workers: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, workerSelectColumns+`
		FROM workers ORDER BY id ASC LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	workers, err := scanWorkers(rows)
	if err != nil {
		return nil, 0, err
	}
	return workers, total, nil
}

// ListAllWorkers backs the liveness sweeper, which must consider every
// worker with a running job regardless of pagination.
func (r *Repository) ListAllWorkers(ctx context.Context) ([]domain.Worker, error) {
	rows, err := r.db.QueryContext(ctx, workerSelectColumns+` FROM workers WHERE running_job_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list all workers: %w", err)
	}
	defer rows.Close()
	return scanWorkers(rows)
}

func (r *Repository) TouchHeartbeat(ctx context.Context, id domain.WorkerID, hb domain.HeartbeatPayload) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE workers SET last_heartbeat_time = now(), logical_cores = $1, memory_bytes = $2,
			disk_free_space_bytes = $3, internet_connectivity = $4
		WHERE id = $5`,
		hb.Capabilities.LogicalCores, hb.Capabilities.MemoryBytes, hb.Capabilities.DiskFreeSpaceBytes,
		hb.InternetConnectivity, id)
	if err != nil {
		return fmt.Errorf("touch heartbeat: %w", err)
	}
	return nil
}

// DashboardCounts aggregates pipeline, job, and worker counts for the
// dashboard summary endpoint.
func (r *Repository) DashboardCounts(ctx context.Context) (ports.DashboardCounts, error) {
	var out ports.DashboardCounts
	out.ByArch = make(map[string]ports.ArchCounts)

	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM pipelines`).Scan(&out.TotalPipelineCount); err != nil {
		return out, fmt.Errorf("count pipelines: %w", err)
	}

	jobRows, err := r.db.QueryContext(ctx, `
		SELECT arch, status, count(*) FROM jobs GROUP BY arch, status`)
	if err != nil {
		return out, fmt.Errorf("job counts by arch: %w", err)
	}
	defer jobRows.Close()
	for jobRows.Next() {
		var arch, status string
		var count int64
		if err := jobRows.Scan(&arch, &status, &count); err != nil {
			return out, err
		}
		ac := out.ByArch[arch]
		applyJobCount(&ac, domain.JobStatus(status), count)
		out.ByArch[arch] = ac

		out.TotalJobCount += count
		switch domain.JobStatus(status) {
		case domain.JobCreated:
			out.PendingJobCount += count
		case domain.JobAssigned:
			out.RunningJobCount += count
		default:
			out.FinishedJobCount += count
		}
	}
	if err := jobRows.Err(); err != nil {
		return out, err
	}

	workerRows, err := r.db.QueryContext(ctx, `
		SELECT arch, logical_cores, memory_bytes, last_heartbeat_time FROM workers`)
	if err != nil {
		return out, fmt.Errorf("worker counts by arch: %w", err)
	}
	defer workerRows.Close()

	const livenessTimeout = 120 * time.Second
	now := time.Now()
	for workerRows.Next() {
		var arch string
		var cores int32
		var memBytes int64
		var lastHB sql.NullTime
		if err := workerRows.Scan(&arch, &cores, &memBytes, &lastHB); err != nil {
			return out, err
		}
		ac := out.ByArch[arch]
		ac.TotalWorkerCount++
		ac.TotalLogicalCores += int64(cores)
		ac.TotalMemoryBytes += memBytes
		live := lastHB.Valid && now.Sub(lastHB.Time) < livenessTimeout
		if live {
			ac.LiveWorkerCount++
		}
		out.ByArch[arch] = ac

		out.TotalWorkerCount++
		out.TotalLogicalCores += int64(cores)
		out.TotalMemoryBytes += memBytes
		if live {
			out.LiveWorkerCount++
		}
	}
	if err := workerRows.Err(); err != nil {
		return out, err
	}

	return out, nil
}

func applyJobCount(ac *ports.ArchCounts, status domain.JobStatus, count int64) {
	if ac == nil {
		return
	}
	ac.TotalJobCount += count
	switch status {
	case domain.JobCreated:
		ac.PendingJobCount += count
	case domain.JobAssigned:
		ac.RunningJobCount += count
	default:
		ac.FinishedJobCount += count
	}
}
