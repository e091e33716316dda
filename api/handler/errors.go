package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rcvscrap/models"
)

// respondError maps an ExtractError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error) {
	ee := models.AsExtractError(err)
	c.JSON(mapErrorToStatus(ee), models.ErrorResponse{
		Success: false,
		Error:   ee.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ExtractError) int {
	switch e.Code {
	case models.ErrCodeAuthFailed, models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeElementNotFound:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeAlreadyRunning:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}
