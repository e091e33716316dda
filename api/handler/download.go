package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rcvscrap/export"
	"github.com/use-agent/rcvscrap/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DownloadJSON returns a handler for GET /api/v1/download/json serving the
// last result as an attachment named after filename.
func DownloadJSON(j Jobs, filename string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, ok := j.Result()
		if !ok {
			respondError(c, errNoResult)
			return
		}

		var buf bytes.Buffer
		if err := export.EncodeJSON(&buf, result); err != nil {
			respondError(c, models.NewExtractError(models.ErrCodeInternal, "could not encode result", err))
			return
		}
		c.Header("Content-Disposition", attachment(filename))
		c.Data(http.StatusOK, "application/json; charset=utf-8", buf.Bytes())
	}
}

// DownloadExcel returns a handler for GET /api/v1/download/excel.
func DownloadExcel(j Jobs, filename string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, ok := j.Result()
		if !ok {
			respondError(c, errNoResult)
			return
		}
		if len(result.Records) == 0 {
			respondError(c, models.NewExtractError(models.ErrCodeNotFound, "last extraction has no records", nil))
			return
		}

		var buf bytes.Buffer
		if err := export.EncodeExcel(&buf, result.Records); err != nil {
			respondError(c, models.NewExtractError(models.ErrCodeInternal, "could not build workbook", err))
			return
		}
		c.Header("Content-Disposition", attachment(filename))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filepath.Base(filename))
}
