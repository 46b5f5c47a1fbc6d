package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AOSC-Dev/buildit/internal/core/domain"
	"github.com/AOSC-Dev/buildit/internal/core/ports"
)

// CreatePipelineWithJobs runs one transaction inserting the pipeline
// row plus one job row per architecture.
func (r *Repository) CreatePipelineWithJobs(ctx context.Context, p domain.Pipeline, jobs []domain.Job) (domain.PipelineID, []domain.JobID, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var pipelineID domain.PipelineID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO pipelines (packages, archs, git_branch, git_sha, github_pr, source,
		                        creator_login, creator_avatar_url, telegram_user, creation_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		p.PackagesJoined(), p.ArchsJoined(), p.GitBranch, p.GitSHA, p.GithubPR, p.Source,
		p.CreatorLogin, p.CreatorAvatarURL, p.TelegramUser, p.CreationTime,
	).Scan(&pipelineID)
	if err != nil {
		return 0, nil, fmt.Errorf("insert pipeline: %w", err)
	}

	jobIDs := make([]domain.JobID, 0, len(jobs))
	for _, j := range jobs {
		var jobID domain.JobID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO jobs (pipeline_id, packages, arch, creation_time, status,
			                   require_min_core, require_min_total_mem, require_min_total_mem_per_core, require_min_disk)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			pipelineID, j.PackagesJoined(), j.Arch, j.CreationTime, string(domain.JobCreated),
			j.Requirements.MinCores, j.Requirements.MinTotalMemoryBytes,
			j.Requirements.MinMemoryPerCoreBytes, j.Requirements.MinFreeDiskBytes,
		).Scan(&jobID)
		if err != nil {
			return 0, nil, fmt.Errorf("insert job for arch %s: %w", j.Arch, err)
		}
		jobIDs = append(jobIDs, jobID)
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit: %w", err)
	}
	return pipelineID, jobIDs, nil
}

func (r *Repository) GetPipeline(ctx context.Context, id domain.PipelineID) (domain.Pipeline, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, packages, archs, git_branch, git_sha, github_pr, source,
		       creator_login, creator_avatar_url, telegram_user, creation_time
		FROM pipelines WHERE id = $1`, id)
	p, err := scanPipeline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Pipeline{}, domain.ErrPipelineNotFound
	}
	if err != nil {
		return domain.Pipeline{}, fmt.Errorf("get pipeline: %w", err)
	}
	return p, nil
}

func (r *Repository) ListPipelines(ctx context.Context, f ports.PipelineListFilter) ([]domain.Pipeline, int64, error) {
	page, perPage := normalizePage(f.Page, f.ItemsPerPage)

	where := "TRUE"
	if f.GithubPROnly {
		where += " AND github_pr IS NOT NULL"
	}
	if f.StableOnly {
		where += " AND git_branch = 'stable'"
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM pipelines WHERE `+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pipelines: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, packages, archs, git_branch, git_sha, github_pr, source,
		       creator_login, creator_avatar_url, telegram_user, creation_time
		FROM pipelines WHERE `+where+`
		ORDER BY creation_time DESC, id DESC
		LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var out []domain.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *Repository) ListJobsForPipeline(ctx context.Context, id domain.PipelineID) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, jobSelectColumns+` FROM jobs WHERE pipeline_id = $1 ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list jobs for pipeline: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *Repository) ListJobsForPipelines(ctx context.Context, ids []domain.PipelineID) (map[domain.PipelineID][]domain.Job, error) {
	out := make(map[domain.PipelineID][]domain.Job, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, jobSelectColumns+` FROM jobs WHERE pipeline_id = ANY($1) ORDER BY pipeline_id, id ASC`, pgArray(ids))
	if err != nil {
		return nil, fmt.Errorf("list jobs for pipelines: %w", err)
	}
	defer rows.Close()
	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		out[j.PipelineID] = append(out[j.PipelineID], j)
	}
	return out, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPipeline(row scannable) (domain.Pipeline, error) {
	var p domain.Pipeline
	var packages, archs string
	err := row.Scan(&p.ID, &packages, &archs, &p.GitBranch, &p.GitSHA, &p.GithubPR, &p.Source,
		&p.CreatorLogin, &p.CreatorAvatarURL, &p.TelegramUser, &p.CreationTime)
	if err != nil {
		return domain.Pipeline{}, err
	}
	p.Packages = domain.SplitList(packages)
	p.Archs = domain.SplitList(archs)
	return p, nil
}

func normalizePage(page, itemsPerPage int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if itemsPerPage < 1 {
		itemsPerPage = 20
	}
	return page, itemsPerPage
}

func pgArray(ids []domain.PipelineID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
