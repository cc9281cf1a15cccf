package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/reqpipe/internal/report"
)

// GetJobReport handles GET /api/v1/jobs/:job_id/report
// ?format=text returns the human-readable rendering, anything else JSON.
func (h *JobHandler) GetJobReport(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	summary, err := h.reporter.Summary(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, report.RenderSummaryText(summary))
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetDailyStats handles GET /api/v1/stats/daily?days=N
func (h *JobHandler) GetDailyStats(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = parsed
	}

	stats, err := h.reporter.DailyStats(c.Request.Context(), days)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, report.RenderDailyStatsText(stats))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"days":  days,
		"stats": stats,
	})
}

// GetStuckJobs handles GET /api/v1/jobs/stuck?stale_minutes=N
func (h *JobHandler) GetStuckJobs(c *gin.Context) {
	staleMinutes := 10
	if raw := c.Query("stale_minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stale_minutes must be a positive integer"})
			return
		}
		staleMinutes = parsed
	}

	stuck, err := h.monitor.DetectStuckJobs(c.Request.Context(), time.Duration(staleMinutes)*time.Minute)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stuck_jobs": stuck})
}
