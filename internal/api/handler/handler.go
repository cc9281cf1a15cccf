package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/reqpipe/internal/jobs"
	"github.com/cuongbtq/reqpipe/internal/monitor"
	"github.com/cuongbtq/reqpipe/internal/queue"
	"github.com/cuongbtq/reqpipe/internal/report"
	"github.com/cuongbtq/reqpipe/internal/worker"
	"github.com/cuongbtq/reqpipe/shared/postgresql"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	DBClient *postgresql.Client
	Manager  *jobs.Manager
	Monitor  *monitor.Monitor
	Reporter *report.Reporter
	Registry *worker.Registry
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger   *slog.Logger
	dbClient *postgresql.Client
	manager  *jobs.Manager
	monitor  *monitor.Monitor
	reporter *report.Reporter
	registry *worker.Registry
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:   deps.Logger,
		dbClient: deps.DBClient,
		manager:  deps.Manager,
		monitor:  deps.Monitor,
		reporter: deps.Reporter,
		registry: deps.Registry,
	}
}

// respondError maps domain errors onto HTTP statuses: unknown ids become 404,
// bad input becomes 400, everything else is a 500 with details logged
// server-side only.
func (h *JobHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound), errors.Is(err, queue.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, jobs.ErrEmptyDescription),
		errors.Is(err, jobs.ErrMissingDocument),
		errors.Is(err, jobs.ErrInvalidStatus),
		errors.Is(err, queue.ErrInvalidPriority):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
