package queue

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Item status constants
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusIntegrated = "integrated"
	StatusRejected   = "rejected"
	StatusFailed     = "failed"
)

// Priority constants, ordered high to low for acquisition
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Requirement is one unit of work: produced by the extraction pipeline,
// consumed by the validation pipeline.
type Requirement struct {
	RequirementID   string         `db:"requirement_id"`
	JobID           string         `db:"job_id"`
	Text            string         `db:"text"`
	ReqType         string         `db:"req_type"`
	Priority        string         `db:"priority"`
	Relevant        bool           `db:"relevant"`
	Confidence      float64        `db:"confidence"`
	Status          string         `db:"status"`
	RetryCount      int            `db:"retry_count"`
	MaxRetries      int            `db:"max_retries"`
	LastError       sql.NullString `db:"last_error"`
	RejectionReason sql.NullString `db:"rejection_reason"`
	ResultRef       sql.NullString `db:"result_ref"`
	Details         types.JSONText `db:"details"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	ValidatedAt     sql.NullTime   `db:"validated_at"`
}

// Terminal reports whether the item can never change state again.
func (r *Requirement) Terminal() bool {
	switch r.Status {
	case StatusIntegrated, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// NewRequirement is the producer-side input for inserting a pending item.
type NewRequirement struct {
	Text       string
	ReqType    string
	Priority   string
	Relevant   bool
	Confidence float64
}

// ValidPriority reports whether p is one of the known priority levels.
func ValidPriority(p string) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// StatusCounts aggregates item counts per status for a job.
type StatusCounts struct {
	Pending    int
	InProgress int
	Integrated int
	Rejected   int
	Failed     int
}

// Total returns the number of items across all statuses.
func (c StatusCounts) Total() int {
	return c.Pending + c.InProgress + c.Integrated + c.Rejected + c.Failed
}

// Processed returns the number of items the consumer has resolved.
func (c StatusCounts) Processed() int {
	return c.Integrated + c.Rejected
}

// Remaining returns the number of items still awaiting a terminal state.
func (c StatusCounts) Remaining() int {
	return c.Pending + c.InProgress
}
