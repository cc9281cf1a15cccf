package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/reqpipe/internal/api/dto"
)

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	job, err := h.manager.Create(c.Request.Context(), req.Description, req.DocumentRef, req.Config)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Job created via API",
		slog.String("job_id", job.JobID),
	)

	c.JSON(http.StatusCreated, dto.FromJob(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.manager.Get(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Limit > 100 {
		req.Limit = 100
	}

	list, err := h.manager.List(c.Request.Context(), req.Status, req.Limit, req.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(list))}
	for i := range list {
		resp.Jobs[i] = dto.FromJob(&list[i])
	}

	c.JSON(http.StatusOK, resp)
}

// GetJobStatus handles GET /api/v1/jobs/:job_id/status
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	status, err := h.manager.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	completion, err := h.monitor.CheckCompletion(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	progress, err := h.monitor.ComputeProgress(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := dto.JobStatusDTO{
		JobDTO:          dto.FromJob(&status.Job),
		CompletionState: completion,
		ProgressPercent: status.ProgressPercent,
		ItemCounts: dto.ItemCountsDTO{
			Total:      status.Counts.Total(),
			Pending:    status.Counts.Pending,
			InProgress: status.Counts.InProgress,
			Integrated: status.Counts.Integrated,
			Rejected:   status.Counts.Rejected,
			Failed:     status.Counts.Failed,
		},
		ElapsedSeconds: progress.Elapsed.Seconds(),
	}
	if progress.ETA != nil {
		eta := progress.ETA.Seconds()
		resp.ETASeconds = &eta
	}

	c.JSON(http.StatusOK, resp)
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	cancelled, err := h.manager.Cancel(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":    jobID,
		"cancelled": cancelled,
	})
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	deleted, err := h.manager.Delete(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// jobID validates the :job_id path parameter as a UUID.
func (h *JobHandler) jobID(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return "", false
	}
	return jobID, true
}
