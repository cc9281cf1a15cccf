package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ListWorkers handles GET /api/v1/workers
func (h *JobHandler) ListWorkers(c *gin.Context) {
	workers, err := h.registry.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workers": workers})
}

// ProbeWorker handles GET /api/v1/workers/health?role=&endpoint=
// Probe failures are reported in the body as a health classification and
// never as an HTTP error.
func (h *JobHandler) ProbeWorker(c *gin.Context) {
	role := c.Query("role")
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	timeout := 5 * time.Second
	if raw := c.Query("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timeout must be a positive duration"})
			return
		}
		timeout = parsed
	}

	health := h.monitor.CheckWorkerHealth(c.Request.Context(), role, endpoint, timeout)

	c.JSON(http.StatusOK, health)
}
