package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const requirementColumns = `
	requirement_id, job_id, text, req_type, priority, relevant, confidence,
	status, retry_count, max_retries, last_error, rejection_reason, result_ref,
	details, created_at, updated_at, validated_at
`

// Queue provides the atomic claim/complete/reject/fail/release operations over
// the requirements table. Every transition is a conditional update keyed on the
// item's current status, so concurrent callers commute without external locks.
type Queue struct {
	db         *sqlx.DB
	logger     *slog.Logger
	maxRetries int
}

// NewQueue creates a Queue. maxRetries is the default retry budget stamped onto
// newly inserted items.
func NewQueue(db *sqlx.DB, logger *slog.Logger, maxRetries int) *Queue {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Queue{
		db:         db,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Acquire atomically claims the single highest-priority, least-recently-touched
// pending item and transitions it to in_progress. Ordering on updated_at keeps
// strict FIFO for never-touched items (updated_at equals created_at) while
// items re-pended by Fail or ReleaseStale rejoin behind work created before
// their retry. Rows claimed by concurrent in-flight
// transactions are skipped rather than waited on, so under N concurrent
// callers and M eligible items exactly M acquisitions succeed and the rest
// get (nil, nil). jobID narrows the claim to one job; empty means any job.
func (q *Queue) Acquire(ctx context.Context, jobID string) (*Requirement, error) {
	args := []interface{}{StatusInProgress, StatusPending}

	jobFilter := ""
	if jobID != "" {
		jobFilter = " AND job_id = $3"
		args = append(args, jobID)
	}

	query := `
		UPDATE requirements
		SET status = $1, updated_at = NOW()
		WHERE requirement_id = (
			SELECT requirement_id
			FROM requirements
			WHERE status = $2
			  AND retry_count < max_retries` + jobFilter + `
			ORDER BY
				CASE priority
					WHEN 'high' THEN 0
					WHEN 'medium' THEN 1
					ELSE 2
				END,
				updated_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + requirementColumns

	var item Requirement
	err := q.db.QueryRowxContext(ctx, query, args...).StructScan(&item)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to acquire item: %w", err)
	}

	q.logger.Info("Item acquired",
		slog.String("requirement_id", item.RequirementID),
		slog.String("job_id", item.JobID),
		slog.String("priority", item.Priority),
		slog.Int("retry_count", item.RetryCount),
	)

	return &item, nil
}

// Complete transitions an in_progress item to integrated and records the
// downstream result reference. Returns ErrNotInProgress if the item is not
// currently claimed and ErrItemNotFound if it does not exist.
func (q *Queue) Complete(ctx context.Context, id, resultRef string, details map[string]interface{}) error {
	detailsJSON, err := marshalDetails(details)
	if err != nil {
		return err
	}

	query := `
		UPDATE requirements
		SET status = $1,
			result_ref = $2,
			details = COALESCE($3, details),
			validated_at = NOW(),
			updated_at = NOW()
		WHERE requirement_id = $4 AND status = $5
	`

	res, err := q.db.ExecContext(ctx, query, StatusIntegrated, resultRef, detailsJSON, id, StatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to complete item: %w", err)
	}

	if err := q.checkTransition(ctx, res, id); err != nil {
		return err
	}

	q.logger.Info("Item integrated",
		slog.String("requirement_id", id),
		slog.String("result_ref", resultRef),
	)

	return nil
}

// Reject transitions an in_progress item to rejected. Rejection is terminal
// and does not count as a retry.
func (q *Queue) Reject(ctx context.Context, id, reason string, details map[string]interface{}) error {
	detailsJSON, err := marshalDetails(details)
	if err != nil {
		return err
	}

	query := `
		UPDATE requirements
		SET status = $1,
			rejection_reason = $2,
			details = COALESCE($3, details),
			validated_at = NOW(),
			updated_at = NOW()
		WHERE requirement_id = $4 AND status = $5
	`

	res, err := q.db.ExecContext(ctx, query, StatusRejected, reason, detailsJSON, id, StatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to reject item: %w", err)
	}

	if err := q.checkTransition(ctx, res, id); err != nil {
		return err
	}

	q.logger.Info("Item rejected",
		slog.String("requirement_id", id),
		slog.String("reason", reason),
	)

	return nil
}

// Fail records a transient worker error on an in_progress item. The retry
// count increases by exactly one per call; when it reaches max_retries the
// item becomes permanently failed, otherwise it returns to pending and is
// immediately re-eligible for Acquire.
func (q *Queue) Fail(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE requirements
		SET retry_count = retry_count + 1,
			status = CASE
				WHEN retry_count + 1 >= max_retries THEN $1
				ELSE $2
			END,
			last_error = $3,
			updated_at = NOW()
		WHERE requirement_id = $4 AND status = $5
		RETURNING status, retry_count
	`

	var status string
	var retryCount int
	err := q.db.QueryRowContext(ctx, query, StatusFailed, StatusPending, errorMessage, id, StatusInProgress).
		Scan(&status, &retryCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return q.notInProgress(ctx, id)
		}
		return fmt.Errorf("failed to fail item: %w", err)
	}

	if status == StatusFailed {
		q.logger.Warn("Item failed permanently",
			slog.String("requirement_id", id),
			slog.Int("retry_count", retryCount),
			slog.String("error", errorMessage),
		)
	} else {
		q.logger.Info("Item returned to pending for retry",
			slog.String("requirement_id", id),
			slog.Int("retry_count", retryCount),
			slog.String("error", errorMessage),
		)
	}

	return nil
}

// ReleaseStale force-transitions items stuck in_progress for longer than
// olderThan back to pending without touching retry_count. It is idempotent:
// a second call with no new staleness releases nothing and returns 0.
func (q *Queue) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE requirements
		SET status = $1, updated_at = NOW()
		WHERE status = $2
		  AND updated_at < NOW() - make_interval(secs => $3)
	`

	res, err := q.db.ExecContext(ctx, query, StatusPending, StatusInProgress, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to release stale items: %w", err)
	}

	released, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if released > 0 {
		q.logger.Warn("Released stale items back to pending",
			slog.Int64("count", released),
			slog.Duration("older_than", olderThan),
		)
	}

	return released, nil
}

// Add inserts new pending items for a job. The producer pipeline calls this
// as it extracts requirements from the source document.
func (q *Queue) Add(ctx context.Context, jobID string, items []NewRequirement) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	for _, item := range items {
		if !ValidPriority(item.Priority) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, item.Priority)
		}
	}

	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO requirements (
			requirement_id, job_id, text, req_type, priority, relevant,
			confidence, status, retry_count, max_retries, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, NOW(), NOW())
	`

	ids := make([]string, 0, len(items))
	for _, item := range items {
		id := uuid.New().String()
		_, err := tx.ExecContext(ctx, query,
			id, jobID, item.Text, item.ReqType, item.Priority,
			item.Relevant, item.Confidence, StatusPending, q.maxRetries,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert item: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit items: %w", err)
	}

	q.logger.Info("Items added",
		slog.String("job_id", jobID),
		slog.Int("count", len(ids)),
	)

	return ids, nil
}

// Get retrieves a single item by id.
func (q *Queue) Get(ctx context.Context, id string) (*Requirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM requirements WHERE requirement_id = $1`

	var item Requirement
	if err := q.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return &item, nil
}

// ListByJob returns all items belonging to a job, oldest first.
func (q *Queue) ListByJob(ctx context.Context, jobID string) ([]Requirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM requirements WHERE job_id = $1 ORDER BY created_at ASC`

	var items []Requirement
	if err := q.db.SelectContext(ctx, &items, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	return items, nil
}

// CountByStatus returns the item counts per status for one job.
func (q *Queue) CountByStatus(ctx context.Context, jobID string) (StatusCounts, error) {
	query := `SELECT status, COUNT(*) FROM requirements WHERE job_id = $1 GROUP BY status`

	rows, err := q.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("failed to count items: %w", err)
	}
	defer rows.Close()

	var counts StatusCounts
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return StatusCounts{}, fmt.Errorf("failed to scan item counts: %w", err)
		}
		switch status {
		case StatusPending:
			counts.Pending = count
		case StatusInProgress:
			counts.InProgress = count
		case StatusIntegrated:
			counts.Integrated = count
		case StatusRejected:
			counts.Rejected = count
		case StatusFailed:
			counts.Failed = count
		}
	}

	if err := rows.Err(); err != nil {
		return StatusCounts{}, fmt.Errorf("failed to read item counts: %w", err)
	}

	return counts, nil
}

// checkTransition maps a zero-row conditional update to the right sentinel.
func (q *Queue) checkTransition(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return q.notInProgress(ctx, id)
	}
	return nil
}

func (q *Queue) notInProgress(ctx context.Context, id string) error {
	if _, err := q.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotInProgress
}

func marshalDetails(details map[string]interface{}) ([]byte, error) {
	if details == nil {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal details: %w", err)
	}
	return data, nil
}
