package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/apptrelay/models"
)

// Version is reported by the health endpoint; overridden at build time.
var Version = "0.1.0"

// QueueStats is what the health endpoint reports about the run queue.
type QueueStats interface {
	Busy() bool
	Queued() int
}

// Health returns a handler for GET /health.
//
// The status is "ok" whenever the process serves requests; a busy worker is
// reported, not treated as degraded.
func Health(q QueueStats, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Busy:    q.Busy(),
			Queued:  q.Queued(),
			Version: Version,
		})
	}
}
