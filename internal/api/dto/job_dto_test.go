package dto

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuongbtq/reqpipe/internal/jobs"
)

func TestFromJob(t *testing.T) {
	created := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	completed := created.Add(2 * time.Hour)

	job := &jobs.Job{
		JobID:            "7f2c9a10-0000-0000-0000-000000000001",
		Description:      "extract requirements",
		Status:           jobs.StatusCompleted,
		ExtractionStatus: jobs.PipelineCompleted,
		ValidationStatus: jobs.PipelineCompleted,
		DocumentRef:      sql.NullString{String: "https://example.com/spec.pdf", Valid: true},
		ErrorMessage:     sql.NullString{},
		CreatedAt:        created,
		UpdatedAt:        completed,
		CompletedAt:      sql.NullTime{Time: completed, Valid: true},
	}

	got := FromJob(job)

	assert.Equal(t, job.JobID, got.JobID)
	assert.Equal(t, "extract requirements", got.Description)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	assert.Equal(t, "https://example.com/spec.pdf", got.DocumentRef)
	assert.Empty(t, got.ErrorMessage)
	assert.Equal(t, "2026-08-26T09:00:00Z", got.CreatedAt)
	assert.Equal(t, "2026-08-26T11:00:00Z", got.CompletedAt)

	t.Run("unfinished job has no completed_at", func(t *testing.T) {
		j := *job
		j.CompletedAt = sql.NullTime{}

		got := FromJob(&j)
		assert.Empty(t, got.CompletedAt)
	})

	t.Run("null document ref maps to empty string", func(t *testing.T) {
		j := *job
		j.DocumentRef = sql.NullString{}

		got := FromJob(&j)
		assert.Empty(t, got.DocumentRef)
	})
}
