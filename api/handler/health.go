package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rcvscrap/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports "busy" while an extraction holds the browser.
func Health(j Jobs, startTime time.Time, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		running := j.Status().Running()

		status := "healthy"
		if running {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Running: running,
			Version: version,
		})
	}
}
