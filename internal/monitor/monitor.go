package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/reqpipe/internal/jobs"
	"github.com/cuongbtq/reqpipe/internal/queue"
)

// Derived completion states. These are computed on read, never persisted.
const (
	CompletionInProgress = "in_progress"
	CompletionCompleted  = "completed"
	CompletionStuck      = "stuck"
	CompletionFailed     = "failed"
)

// Stuck component labels for operator triage.
const (
	ComponentExtraction = "extraction"
	ComponentValidation = "validation"
	ComponentBoth       = "both"
)

// JobSource is the read surface the monitor needs from the job manager.
type JobSource interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	ListStaleProcessing(ctx context.Context, updatedBefore time.Time) ([]jobs.Job, error)
}

// ItemSource is the read surface the monitor needs from the queue.
type ItemSource interface {
	CountByStatus(ctx context.Context, jobID string) (queue.StatusCounts, error)
}

// StuckJob describes one stalled job and the pipeline component the
// heuristics blame. The classification is best-effort, not a state machine:
// partial-progress cases land on "both".
type StuckJob struct {
	JobID        string        `json:"job_id"`
	Component    string        `json:"component"`
	Reason       string        `json:"reason"`
	PendingCount int           `json:"pending_count"`
	StalledFor   time.Duration `json:"stalled_for"`
}

// Progress is the derived progress view for one job.
type Progress struct {
	JobID           string             `json:"job_id"`
	Counts          queue.StatusCounts `json:"counts"`
	ProgressPercent float64            `json:"progress_percent"`
	Elapsed         time.Duration      `json:"elapsed"`
	// ETA is a linear extrapolation from throughput so far, nil until at
	// least one item has resolved. An approximation, not a guarantee.
	ETA *time.Duration `json:"eta,omitempty"`
}

// Monitor classifies job completion, detects stuck jobs, probes worker
// health, and computes progress. It only reads job/item state; recovery
// actions (ReleaseStale, worker restarts) are left to the operator.
type Monitor struct {
	jobs       JobSource
	items      ItemSource
	logger     *slog.Logger
	jobTimeout time.Duration

	now func() time.Time
}

// NewMonitor creates a Monitor. jobTimeout is the age past which a job that
// has not finished is considered stuck.
func NewMonitor(jobSource JobSource, itemSource ItemSource, logger *slog.Logger, jobTimeout time.Duration) *Monitor {
	return &Monitor{
		jobs:       jobSource,
		items:      itemSource,
		logger:     logger,
		jobTimeout: jobTimeout,
		now:        time.Now,
	}
}

// CheckCompletion derives the completion state for one job. Completion is
// checked before the timeout so that a job whose items have all resolved
// stays completed forever, even when it was never marked on the row.
func (m *Monitor) CheckCompletion(ctx context.Context, jobID string) (string, error) {
	job, err := m.jobs.Get(ctx, jobID)
	if err != nil {
		return "", err
	}

	switch job.Status {
	case jobs.StatusFailed, jobs.StatusCancelled:
		return CompletionFailed, nil
	case jobs.StatusCompleted:
		return CompletionCompleted, nil
	}

	if job.ExtractionStatus == jobs.PipelineCompleted {
		counts, err := m.items.CountByStatus(ctx, jobID)
		if err != nil {
			return "", err
		}
		if counts.Remaining() == 0 {
			return CompletionCompleted, nil
		}
	}

	if m.now().Sub(job.CreatedAt) > m.jobTimeout {
		return CompletionStuck, nil
	}

	return CompletionInProgress, nil
}

// DetectStuckJobs finds processing jobs with no writes for staleDuration and
// classifies which pipeline component appears stalled: the producer when it
// is still extracting but no items exist yet, the consumer when extraction
// finished but pending items are not draining, otherwise both.
func (m *Monitor) DetectStuckJobs(ctx context.Context, staleDuration time.Duration) ([]StuckJob, error) {
	cutoff := m.now().Add(-staleDuration)

	stale, err := m.jobs.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to detect stuck jobs: %w", err)
	}

	var stuck []StuckJob
	for _, job := range stale {
		counts, err := m.items.CountByStatus(ctx, job.JobID)
		if err != nil {
			return nil, err
		}

		report := StuckJob{
			JobID:        job.JobID,
			PendingCount: counts.Pending,
			StalledFor:   m.now().Sub(job.UpdatedAt),
		}

		switch {
		case job.ExtractionStatus == jobs.PipelineProcessing && counts.Total() == 0:
			report.Component = ComponentExtraction
			report.Reason = "extraction is processing but no items have been produced"
		case job.ExtractionStatus == jobs.PipelineCompleted &&
			job.ValidationStatus == jobs.PipelineProcessing &&
			counts.Pending > 0:
			report.Component = ComponentValidation
			report.Reason = fmt.Sprintf("extraction completed but %d items remain pending", counts.Pending)
		default:
			report.Component = ComponentBoth
			report.Reason = "job has stopped progressing"
		}

		m.logger.Warn("Stuck job detected",
			slog.String("job_id", report.JobID),
			slog.String("component", report.Component),
			slog.Int("pending_count", report.PendingCount),
			slog.Duration("stalled_for", report.StalledFor),
		)

		stuck = append(stuck, report)
	}

	return stuck, nil
}

// ComputeProgress returns total/by-status counts, progress percent, elapsed
// time, and a linear ETA once at least one item has resolved.
func (m *Monitor) ComputeProgress(ctx context.Context, jobID string) (*Progress, error) {
	job, err := m.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	counts, err := m.items.CountByStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}

	progress := &Progress{
		JobID:           jobID,
		Counts:          counts,
		ProgressPercent: jobs.Progress(counts),
		Elapsed:         m.now().Sub(job.CreatedAt),
	}

	resolved := counts.Total() - counts.Remaining()
	if resolved > 0 && counts.Remaining() > 0 {
		eta := time.Duration(float64(progress.Elapsed) / float64(resolved) * float64(counts.Remaining()))
		progress.ETA = &eta
	}

	return progress, nil
}
