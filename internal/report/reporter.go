package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/reqpipe/internal/jobs"
	"github.com/cuongbtq/reqpipe/internal/queue"
)

// JobSummary is the aggregate read-side view of one job.
type JobSummary struct {
	JobID            string             `json:"job_id"`
	Description      string             `json:"description"`
	Status           string             `json:"status"`
	ExtractionStatus string             `json:"extraction_status"`
	ValidationStatus string             `json:"validation_status"`
	DocumentRef      string             `json:"document_ref,omitempty"`
	ErrorMessage     string             `json:"error_message,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	Counts           queue.StatusCounts `json:"counts"`
	ByPriority       map[string]int     `json:"by_priority"`
	RelevantCount    int                `json:"relevant_count"`
	AvgConfidence    float64            `json:"avg_confidence"`
	ProgressPercent  float64            `json:"progress_percent"`
	IntegrationRate  float64            `json:"integration_rate"`
}

// DailyStat is one day's worth of job and item activity.
type DailyStat struct {
	Date            string `json:"date"`
	JobsCreated     int    `json:"jobs_created"`
	JobsCompleted   int    `json:"jobs_completed"`
	JobsFailed      int    `json:"jobs_failed"`
	ItemsIntegrated int    `json:"items_integrated"`
	ItemsRejected   int    `json:"items_rejected"`
}

// Reporter aggregates job and item state for humans and machines. It never
// mutates anything.
type Reporter struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewReporter creates a Reporter over the shared store.
func NewReporter(db *sqlx.DB, logger *slog.Logger) *Reporter {
	return &Reporter{
		db:     db,
		logger: logger,
	}
}

// Summary builds the per-job report: counts by status, priority, and
// relevance plus derived ratios. All ratios are guarded against jobs with no
// items yet.
func (r *Reporter) Summary(ctx context.Context, jobID string) (*JobSummary, error) {
	query := `
		SELECT job_id, description, status, extraction_status, validation_status,
		       document_ref, error_message, created_at, updated_at, completed_at, config
		FROM jobs
		WHERE job_id = $1
	`

	var job jobs.Job
	if err := r.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job for report: %w", err)
	}

	summary := &JobSummary{
		JobID:            job.JobID,
		Description:      job.Description,
		Status:           job.Status,
		ExtractionStatus: job.ExtractionStatus,
		ValidationStatus: job.ValidationStatus,
		DocumentRef:      job.DocumentRef.String,
		ErrorMessage:     job.ErrorMessage.String,
		CreatedAt:        job.CreatedAt,
		ByPriority:       make(map[string]int),
	}
	if job.CompletedAt.Valid {
		completed := job.CompletedAt.Time
		summary.CompletedAt = &completed
	}

	aggQuery := `
		SELECT status, priority, relevant, COUNT(*) AS n, AVG(confidence) AS avg_confidence
		FROM requirements
		WHERE job_id = $1
		GROUP BY status, priority, relevant
	`

	rows, err := r.db.QueryContext(ctx, aggQuery, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate items: %w", err)
	}
	defer rows.Close()

	var confidenceSum float64
	for rows.Next() {
		var status, priority string
		var relevant bool
		var n int
		var avgConfidence float64
		if err := rows.Scan(&status, &priority, &relevant, &n, &avgConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan item aggregate: %w", err)
		}

		switch status {
		case queue.StatusPending:
			summary.Counts.Pending += n
		case queue.StatusInProgress:
			summary.Counts.InProgress += n
		case queue.StatusIntegrated:
			summary.Counts.Integrated += n
		case queue.StatusRejected:
			summary.Counts.Rejected += n
		case queue.StatusFailed:
			summary.Counts.Failed += n
		}

		summary.ByPriority[priority] += n
		if relevant {
			summary.RelevantCount += n
		}
		confidenceSum += avgConfidence * float64(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read item aggregates: %w", err)
	}

	total := summary.Counts.Total()
	if total > 0 {
		summary.AvgConfidence = confidenceSum / float64(total)
	}
	summary.ProgressPercent = jobs.Progress(summary.Counts)
	if processed := summary.Counts.Processed(); processed > 0 {
		summary.IntegrationRate = float64(summary.Counts.Integrated) / float64(processed)
	}

	return summary, nil
}

// DailyStats aggregates activity per day over a trailing window of days.
func (r *Reporter) DailyStats(ctx context.Context, days int) ([]DailyStat, error) {
	if days <= 0 {
		days = 7
	}

	byDate := make(map[string]*DailyStat)

	jobQuery := `
		SELECT to_char(created_at, 'YYYY-MM-DD') AS day,
		       COUNT(*) AS created,
		       COUNT(*) FILTER (WHERE status = $1) AS completed,
		       COUNT(*) FILTER (WHERE status = $2) AS failed
		FROM jobs
		WHERE created_at >= NOW() - make_interval(days => $3)
		GROUP BY day
	`

	rows, err := r.db.QueryContext(ctx, jobQuery, jobs.StatusCompleted, jobs.StatusFailed, days)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day string
		var created, completed, failed int
		if err := rows.Scan(&day, &created, &completed, &failed); err != nil {
			return nil, fmt.Errorf("failed to scan daily jobs: %w", err)
		}
		byDate[day] = &DailyStat{
			Date:          day,
			JobsCreated:   created,
			JobsCompleted: completed,
			JobsFailed:    failed,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily jobs: %w", err)
	}

	itemQuery := `
		SELECT to_char(validated_at, 'YYYY-MM-DD') AS day,
		       COUNT(*) FILTER (WHERE status = $1) AS integrated,
		       COUNT(*) FILTER (WHERE status = $2) AS rejected
		FROM requirements
		WHERE validated_at >= NOW() - make_interval(days => $3)
		GROUP BY day
	`

	itemRows, err := r.db.QueryContext(ctx, itemQuery, queue.StatusIntegrated, queue.StatusRejected, days)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var day string
		var integrated, rejected int
		if err := itemRows.Scan(&day, &integrated, &rejected); err != nil {
			return nil, fmt.Errorf("failed to scan daily items: %w", err)
		}
		stat, ok := byDate[day]
		if !ok {
			stat = &DailyStat{Date: day}
			byDate[day] = stat
		}
		stat.ItemsIntegrated = integrated
		stat.ItemsRejected = rejected
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily items: %w", err)
	}

	stats := make([]DailyStat, 0, len(byDate))
	for _, stat := range byDate {
		stats = append(stats, *stat)
	}

	// Dates are YYYY-MM-DD, so lexical order is chronological.
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Date < stats[j].Date
	})

	return stats, nil
}
