package postgresql

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// schema is the idempotent DDL for the orchestration tables: jobs, their
// requirements (with a cascading foreign key), and worker heartbeats.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id            UUID PRIMARY KEY,
	description       TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'created',
	extraction_status TEXT NOT NULL DEFAULT 'pending',
	validation_status TEXT NOT NULL DEFAULT 'pending',
	document_ref      TEXT,
	config            JSONB,
	error_message     TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS requirements (
	requirement_id   UUID PRIMARY KEY,
	job_id           UUID NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
	text             TEXT NOT NULL,
	req_type         TEXT NOT NULL DEFAULT '',
	priority         TEXT NOT NULL DEFAULT 'medium',
	relevant         BOOLEAN NOT NULL DEFAULT TRUE,
	confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	retry_count      INTEGER NOT NULL DEFAULT 0,
	max_retries      INTEGER NOT NULL DEFAULT 3,
	last_error       TEXT,
	rejection_reason TEXT,
	result_ref       TEXT,
	details          JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	validated_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_requirements_claim
	ON requirements (job_id, status, priority, updated_at);

CREATE INDEX IF NOT EXISTS idx_requirements_status
	ON requirements (status, updated_at);

CREATE TABLE IF NOT EXISTS workers (
	worker_id      TEXT PRIMARY KEY,
	role           TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'booting',
	current_job_id UUID,
	last_heartbeat TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema applies the orchestration DDL. Every statement is idempotent,
// so services run it unconditionally at startup.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if err := EnsureSchema(ctx, c.db); err != nil {
		return err
	}

	c.logger.Info("Database schema ensured",
		slog.String("database", c.config.Database),
	)

	return nil
}

// EnsureSchema applies the orchestration DDL on an existing pool.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
