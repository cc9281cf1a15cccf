package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Worker status constants for the workers table.
const (
	StatusBooting = "booting"
	StatusReady   = "ready"
	StatusWorking = "working"
	StatusOffline = "offline"
	StatusFailed  = "failed"
)

// Info is one row of the workers heartbeat table.
type Info struct {
	WorkerID      string         `db:"worker_id"`
	Role          string         `db:"role"`
	Status        string         `db:"status"`
	CurrentJobID  sql.NullString `db:"current_job_id"`
	LastHeartbeat time.Time      `db:"last_heartbeat"`
}

// Registry records worker liveness in the workers table. It is auxiliary
// state for observability; queue correctness never reads it.
type Registry struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(db *sqlx.DB, logger *slog.Logger) *Registry {
	return &Registry{
		db:     db,
		logger: logger,
	}
}

// Register upserts the worker row in booting state.
func (r *Registry) Register(ctx context.Context, workerID, role string) error {
	query := `
		INSERT INTO workers (worker_id, role, status, last_heartbeat)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (worker_id) DO UPDATE
		SET role = EXCLUDED.role, status = EXCLUDED.status, last_heartbeat = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, workerID, role, StatusBooting); err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}

	r.logger.Info("Worker registered",
		slog.String("worker_id", workerID),
		slog.String("role", role),
	)

	return nil
}

// Heartbeat refreshes the worker's status, current job, and heartbeat time.
func (r *Registry) Heartbeat(ctx context.Context, workerID, status, currentJobID string) error {
	query := `
		UPDATE workers
		SET status = $1,
			current_job_id = $2,
			last_heartbeat = NOW()
		WHERE worker_id = $3
	`

	jobID := sql.NullString{String: currentJobID, Valid: currentJobID != ""}
	if _, err := r.db.ExecContext(ctx, query, status, jobID, workerID); err != nil {
		return fmt.Errorf("failed to update worker heartbeat: %w", err)
	}

	return nil
}

// MarkOffline flags the worker as gone during graceful shutdown.
func (r *Registry) MarkOffline(ctx context.Context, workerID string) error {
	query := `UPDATE workers SET status = $1, current_job_id = NULL, last_heartbeat = NOW() WHERE worker_id = $2`

	if _, err := r.db.ExecContext(ctx, query, StatusOffline, workerID); err != nil {
		return fmt.Errorf("failed to mark worker offline: %w", err)
	}

	return nil
}

// List returns all known workers, most recently seen first.
func (r *Registry) List(ctx context.Context) ([]Info, error) {
	query := `
		SELECT worker_id, role, status, current_job_id, last_heartbeat
		FROM workers
		ORDER BY last_heartbeat DESC
	`

	var workers []Info
	if err := r.db.SelectContext(ctx, &workers, query); err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}

	return workers, nil
}
