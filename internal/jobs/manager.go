package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/reqpipe/internal/queue"
)

const jobColumns = `
	job_id, description, status, extraction_status, validation_status,
	document_ref, config, error_message, created_at, updated_at, completed_at
`

// Notifier publishes job lifecycle events so idle workers wake immediately
// instead of waiting out their poll backoff. Queue correctness never depends
// on it; a nil Notifier disables publishing.
type Notifier interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Event is the message body published on job lifecycle changes.
type Event struct {
	Event string `json:"event"`
	JobID string `json:"job_id"`
}

// Manager owns job CRUD and state transitions, and derives aggregate progress
// from the queue's item counts. All mutating operations except Create are
// idempotent no-ops (false, nil) when the job is absent or already terminal.
type Manager struct {
	db       *sqlx.DB
	queue    *queue.Queue
	notifier Notifier
	logger   *slog.Logger
}

// NewManager creates a Manager. notifier may be nil.
func NewManager(db *sqlx.DB, q *queue.Queue, notifier Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		db:       db,
		queue:    q,
		notifier: notifier,
		logger:   logger,
	}
}

// Create inserts a new job and immediately moves it to processing. It fails
// with ErrEmptyDescription on a blank description and ErrMissingDocument when
// documentRef names a local file that does not exist.
func (m *Manager) Create(ctx context.Context, description, documentRef string, config map[string]interface{}) (*Job, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}

	if err := checkDocumentRef(documentRef); err != nil {
		return nil, err
	}

	var configJSON []byte
	if config != nil {
		data, err := json.Marshal(config)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal job config: %w", err)
		}
		configJSON = data
	}

	query := `
		INSERT INTO jobs (
			job_id, description, status, extraction_status, validation_status,
			document_ref, config, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + jobColumns

	var job Job
	err := m.db.QueryRowxContext(ctx, query,
		uuid.New().String(), description, StatusProcessing,
		PipelinePending, PipelinePending,
		nullString(documentRef), configJSON,
	).StructScan(&job)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("document_ref", documentRef),
	)

	m.publish(ctx, "job.created", job.JobID)

	return &job, nil
}

// Get retrieves a job by id, returning ErrJobNotFound when it does not exist.
func (m *Manager) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	var job Job
	if err := m.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// List returns jobs ordered by created_at descending. status narrows the
// result when non-empty; limit caps the page size and offset skips rows.
func (m *Manager) List(ctx context.Context, status string, limit, offset int) ([]Job, error) {
	if status != "" && !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []interface{}{}
	argIdx := 1

	if status != "" {
		query += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, job_id DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	var list []Job
	if err := m.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return list, nil
}

// Cancel sets a non-terminal job to cancelled and marks any sub-pipeline that
// has not completed as failed. In-flight items are left alone; their eventual
// Complete/Reject/Fail still succeeds. Returns false when the job is absent
// or already terminal.
func (m *Manager) Cancel(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $1,
			extraction_status = CASE WHEN extraction_status <> $2 THEN $3 ELSE extraction_status END,
			validation_status = CASE WHEN validation_status <> $2 THEN $3 ELSE validation_status END,
			completed_at = NOW(),
			updated_at = NOW()
		WHERE job_id = $4 AND status NOT IN ($1, $5, $6)
	`

	res, err := m.db.ExecContext(ctx, query,
		StatusCancelled, PipelineCompleted, PipelineFailed,
		id, StatusCompleted, StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel job: %w", err)
	}

	cancelled, err := rowsAffected(res)
	if err != nil {
		return false, err
	}

	if cancelled {
		m.logger.Info("Job cancelled", slog.String("job_id", id))
		m.publish(ctx, "job.cancelled", id)
	}

	return cancelled, nil
}

// UpdateExtractionStatus records the producer pipeline's status for a job.
func (m *Manager) UpdateExtractionStatus(ctx context.Context, id, status, errorMessage string) (bool, error) {
	return m.updatePipelineStatus(ctx, id, "extraction_status", status, errorMessage)
}

// UpdateValidationStatus records the consumer pipeline's status for a job.
func (m *Manager) UpdateValidationStatus(ctx context.Context, id, status, errorMessage string) (bool, error) {
	return m.updatePipelineStatus(ctx, id, "validation_status", status, errorMessage)
}

func (m *Manager) updatePipelineStatus(ctx context.Context, id, column, status, errorMessage string) (bool, error) {
	if !ValidPipelineStatus(status) {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	query := fmt.Sprintf(`
		UPDATE jobs
		SET %s = $1,
			error_message = COALESCE(NULLIF($2, ''), error_message),
			updated_at = NOW()
		WHERE job_id = $3 AND status NOT IN ($4, $5, $6)
	`, column)

	res, err := m.db.ExecContext(ctx, query,
		status, errorMessage, id,
		StatusCompleted, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update %s: %w", column, err)
	}

	updated, err := rowsAffected(res)
	if err != nil {
		return false, err
	}

	if updated {
		m.logger.Info("Pipeline status updated",
			slog.String("job_id", id),
			slog.String("pipeline", column),
			slog.String("status", status),
		)
	}

	return updated, nil
}

// MarkCompleted transitions a non-terminal job to completed.
func (m *Manager) MarkCompleted(ctx context.Context, id string) (bool, error) {
	return m.finish(ctx, id, StatusCompleted, "")
}

// MarkFailed transitions a non-terminal job to failed and records the error.
func (m *Manager) MarkFailed(ctx context.Context, id, errorMessage string) (bool, error) {
	return m.finish(ctx, id, StatusFailed, errorMessage)
}

func (m *Manager) finish(ctx context.Context, id, status, errorMessage string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $1,
			error_message = COALESCE(NULLIF($2, ''), error_message),
			completed_at = NOW(),
			updated_at = NOW()
		WHERE job_id = $3 AND status NOT IN ($4, $5, $6)
	`

	res, err := m.db.ExecContext(ctx, query,
		status, errorMessage, id,
		StatusCompleted, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark job %s: %w", status, err)
	}

	finished, err := rowsAffected(res)
	if err != nil {
		return false, err
	}

	if finished {
		m.logger.Info("Job finished",
			slog.String("job_id", id),
			slog.String("status", status),
		)
	}

	return finished, nil
}

// Delete removes a job; the cascading foreign key removes its items.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}

	deleted, err := rowsAffected(res)
	if err != nil {
		return false, err
	}

	if deleted {
		m.logger.Info("Job deleted", slog.String("job_id", id))
	}

	return deleted, nil
}

// GetStatus merges the job row with derived item counts and progress.
func (m *Manager) GetStatus(ctx context.Context, id string) (*JobStatus, error) {
	job, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	counts, err := m.queue.CountByStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	return &JobStatus{
		Job:             *job,
		Counts:          counts,
		ProgressPercent: Progress(counts),
	}, nil
}

// ListStaleProcessing returns processing jobs whose updated_at predates the
// threshold, feeding the monitor's stuck-job detection.
func (m *Manager) ListStaleProcessing(ctx context.Context, updatedBefore time.Time) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC`

	var list []Job
	if err := m.db.SelectContext(ctx, &list, query, StatusProcessing, updatedBefore); err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	return list, nil
}

func (m *Manager) publish(ctx context.Context, event, jobID string) {
	if m.notifier == nil {
		return
	}

	body, err := json.Marshal(Event{Event: event, JobID: jobID})
	if err != nil {
		return
	}

	if err := m.notifier.Publish(ctx, body, "application/json"); err != nil {
		m.logger.Warn("Failed to publish job event",
			slog.String("event", event),
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// checkDocumentRef accepts empty refs and http(s) URLs without probing, and
// requires anything else to exist as a local file.
func checkDocumentRef(ref string) error {
	if ref == "" {
		return nil
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return nil
	}
	if _, err := os.Stat(ref); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingDocument, ref)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}
