package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rcvscrap/models"
)

// Status returns a handler for GET /api/v1/status.
func Status(j Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, j.Status())
	}
}

// Records returns a handler for GET /api/v1/records.
func Records(j Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, ok := j.Result()
		if !ok {
			respondError(c, errNoResult)
			return
		}
		c.JSON(http.StatusOK, models.RecordsResponse{
			Success: true,
			Total:   len(result.Records),
			Result:  result,
		})
	}
}

var errNoResult = models.NewExtractError(models.ErrCodeNotFound,
	"no completed extraction yet: POST /api/v1/extract first", nil)
