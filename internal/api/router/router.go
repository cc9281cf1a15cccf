package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/reqpipe/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "reqpipe-api",
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/stuck", jobHandler.GetStuckJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.GET("/:job_id/status", jobHandler.GetJobStatus)
			jobs.GET("/:job_id/report", jobHandler.GetJobReport)
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
			jobs.DELETE("/:job_id", jobHandler.DeleteJob)
		}

		v1.GET("/stats/daily", jobHandler.GetDailyStats)

		workers := v1.Group("/workers")
		{
			workers.GET("", jobHandler.ListWorkers)
			workers.GET("/health", jobHandler.ProbeWorker)
		}
	}

	return r
}
