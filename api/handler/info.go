package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rcvscrap/models"
)

// Info returns a handler for GET /: service name, version, endpoints and
// the known document-type categories.
func Info(version string) gin.HandlerFunc {
	resp := models.InfoResponse{
		Name:       "rcvscrap",
		Version:    version,
		Categories: models.KnownCategories(),
		Endpoints: map[string]string{
			"GET /api/v1/health":          "liveness and run state",
			"POST /api/v1/extract":        "start an extraction {month?, year?, categories?}",
			"GET /api/v1/status":          "status of the current or last extraction",
			"GET /api/v1/records":         "records of the last completed extraction",
			"GET /api/v1/download/json":   "last result as a JSON file",
			"GET /api/v1/download/excel":  "last result as an Excel file",
			"GET /api/v1/history":         "periods with cached results",
			"GET /api/v1/history/:period": "cached result for YYYY-MM or default",
		},
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, resp)
	}
}
