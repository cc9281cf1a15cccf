package jobs

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/cuongbtq/reqpipe/internal/queue"
)

// Job status constants. Status only advances created -> processing -> one of
// the terminal three; terminal jobs never re-enter processing.
const (
	StatusCreated    = "created"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Pipeline status constants shared by the extraction (producer) and
// validation (consumer) sub-pipelines.
const (
	PipelinePending    = "pending"
	PipelineProcessing = "processing"
	PipelineCompleted  = "completed"
	PipelineFailed     = "failed"
)

// Job is the top-level unit of work owning a set of requirements and two
// independent sub-pipeline statuses.
type Job struct {
	JobID            string         `db:"job_id"`
	Description      string         `db:"description"`
	Status           string         `db:"status"`
	ExtractionStatus string         `db:"extraction_status"`
	ValidationStatus string         `db:"validation_status"`
	DocumentRef      sql.NullString `db:"document_ref"`
	Config           types.JSONText `db:"config"`
	ErrorMessage     sql.NullString `db:"error_message"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	CompletedAt      sql.NullTime   `db:"completed_at"`
}

// Terminal reports whether the job has reached a state it can never leave.
func (j *Job) Terminal() bool {
	return TerminalStatus(j.Status)
}

// TerminalStatus reports whether a job status string is terminal.
func TerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the known job statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusCreated, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ValidPipelineStatus reports whether s is a known sub-pipeline status.
func ValidPipelineStatus(s string) bool {
	switch s {
	case PipelinePending, PipelineProcessing, PipelineCompleted, PipelineFailed:
		return true
	}
	return false
}

// JobStatus merges the job row with derived item counts.
type JobStatus struct {
	Job             Job
	Counts          queue.StatusCounts
	ProgressPercent float64
}

// Progress computes progress_percent from item counts: terminal items
// (integrated + rejected + failed) over the total, 0 when the job has no
// items yet. Permanently failed items count as resolved so progress reaches
// 100 exactly when no item remains pending or in_progress.
func Progress(counts queue.StatusCounts) float64 {
	total := counts.Total()
	if total == 0 {
		return 0
	}
	return float64(total-counts.Remaining()) / float64(total) * 100
}
