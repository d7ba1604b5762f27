package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/apptrelay/api/handler"
	"github.com/use-agent/apptrelay/api/middleware"
	"github.com/use-agent/apptrelay/config"
	"github.com/use-agent/apptrelay/runs"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:   Recovery → Logger
//	Runs:     Auth (if enabled)
//	Trigger:  Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so probes and scrapers always work.
func NewRouter(mgr *runs.Manager, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", handler.Health(mgr, startTime))
	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	protected := r.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}

	protected.POST("/run-scrape", middleware.RateLimit(cfg.RateLimit), handler.Trigger(mgr))
	protected.GET("/runs/:id", handler.GetRun(mgr))

	return r
}
