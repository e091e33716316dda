package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rcvscrap/cache"
	"github.com/use-agent/rcvscrap/models"
)

// HistoryIndex returns a handler for GET /api/v1/history listing the cached
// period keys, newest first.
func HistoryIndex(cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"periods": cc.Keys()})
	}
}

// History returns a handler for GET /api/v1/history/:period where period is
// YYYY-MM or "default".
func History(cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		period, err := models.ParsePeriodKey(c.Param("period"))
		if err != nil {
			respondError(c, err)
			return
		}

		result, ok := cc.Get(cache.Key(period))
		if !ok {
			respondError(c, models.NewExtractError(models.ErrCodeNotFound,
				"no cached result for period "+cache.Key(period), nil))
			return
		}
		c.JSON(http.StatusOK, models.RecordsResponse{
			Success: true,
			Total:   len(result.Records),
			Result:  result,
		})
	}
}
