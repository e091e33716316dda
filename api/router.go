package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rcvscrap/api/handler"
	"github.com/use-agent/rcvscrap/api/middleware"
	"github.com/use-agent/rcvscrap/cache"
	"github.com/use-agent/rcvscrap/config"
)

// Version is reported by / and /api/v1/health.
const Version = "1.0.0"

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//	Extract: ExtractLimit (if ExtractPerMinute > 0)
//
// Info and health stay outside auth so monitoring probes always work.
func NewRouter(jobs handler.Jobs, cc *cache.Cache, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/", handler.Info(Version))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(jobs, startTime, Version))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Extraction
	extract := []gin.HandlerFunc{handler.StartExtraction(jobs, time.Now)}
	if cfg.RateLimit.ExtractPerMinute > 0 {
		extract = append([]gin.HandlerFunc{middleware.ExtractLimit(cfg.RateLimit)}, extract...)
	}
	protected.POST("/extract", extract...)
	protected.GET("/status", handler.Status(jobs))

	// Results
	protected.GET("/records", handler.Records(jobs))
	protected.GET("/download/json", handler.DownloadJSON(jobs, cfg.Output.JSONPath))
	protected.GET("/download/excel", handler.DownloadExcel(jobs, cfg.Output.ExcelPath))

	// History
	protected.GET("/history", handler.HistoryIndex(cc))
	protected.GET("/history/:period", handler.History(cc))

	return r
}
