package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rcvscrap/jobs"
	"github.com/use-agent/rcvscrap/models"
)

// StartExtraction returns a handler for POST /api/v1/extract.
//
// The body is optional; an empty body extracts every category of the
// portal's default period. The run continues in the background and the
// handler answers 202 with the initial snapshot, or 409 while another run
// is in progress.
func StartExtraction(j Jobs, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidInput, err.Error()))
			return
		}

		period, err := req.Period(now())
		if err != nil {
			respondError(c, err)
			return
		}

		snap, err := j.Start(jobs.Request{
			Period:     period,
			Categories: req.CategoryFilter(),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, snap)
	}
}
