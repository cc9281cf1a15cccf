package dto

import (
	"time"

	"github.com/cuongbtq/reqpipe/internal/jobs"
)

type CreateJobRequest struct {
	Description string                 `json:"description" binding:"required"`
	DocumentRef string                 `json:"document_ref"`
	Config      map[string]interface{} `json:"config"`
}

type ListJobsRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

type ListJobsResponse struct {
	Jobs []JobDTO `json:"jobs"`
}

type JobDTO struct {
	JobID            string `json:"job_id"`
	Description      string `json:"description"`
	Status           string `json:"status"`
	ExtractionStatus string `json:"extraction_status"`
	ValidationStatus string `json:"validation_status"`
	DocumentRef      string `json:"document_ref,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
	CompletedAt      string `json:"completed_at,omitempty"`
}

type JobStatusDTO struct {
	JobDTO
	CompletionState string        `json:"completion_state"`
	ProgressPercent float64       `json:"progress_percent"`
	ItemCounts      ItemCountsDTO `json:"item_counts"`
	ElapsedSeconds  float64       `json:"elapsed_seconds"`
	ETASeconds      *float64      `json:"eta_seconds,omitempty"`
}

type ItemCountsDTO struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Integrated int `json:"integrated"`
	Rejected   int `json:"rejected"`
	Failed     int `json:"failed"`
}

// FromJob maps a job row to its transport representation.
func FromJob(job *jobs.Job) JobDTO {
	dto := JobDTO{
		JobID:            job.JobID,
		Description:      job.Description,
		Status:           job.Status,
		ExtractionStatus: job.ExtractionStatus,
		ValidationStatus: job.ValidationStatus,
		DocumentRef:      job.DocumentRef.String,
		ErrorMessage:     job.ErrorMessage.String,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt.Valid {
		dto.CompletedAt = job.CompletedAt.Time.Format(time.RFC3339)
	}
	return dto
}
