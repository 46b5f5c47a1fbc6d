// Package postgres is the persistence layer adapter: typed access to
// pipelines, jobs, workers, and users on top of
// database/sql, plus the three atomic scheduling primitives the
// rest of the system depends on for correctness under concurrency.
//
// Access is raw SQL through database/sql: explicit Scan calls, ON
// CONFLICT upserts, $1-style placeholders, driven by
// github.com/jackc/pgx/v5/stdlib. ClaimOneJob, CompleteJob, and
// ReclaimJobsOfWorker additionally rely on real row-level locking and
// transaction isolation across concurrent coordinator goroutines.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository implements ports.Repository against PostgreSQL.
type Repository struct {
	db *sql.DB
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Repository{db: db}, nil
}

// NewRepository wraps an already-open *sql.DB, useful for tests that
// construct their own connection (e.g. with a transaction-scoped DSN).
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error { return r.db.Close() }

// Migrate applies every embedded migration in lexical order. Migrations
// are idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT
// EXISTS) so Migrate is safe to call on every startup.
func (r *Repository) Migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		sqlBytes, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if _, err := r.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", e.Name(), err)
		}
	}
	return nil
}
