package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/apptrelay/models"
)

// RunGetter looks up runs by id.
type RunGetter interface {
	Get(id string) (models.Run, bool)
}

// GetRun returns a handler for GET /runs/:id.
func GetRun(g RunGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		run, ok := g.Get(id)
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "run not found: "+id, nil))
			return
		}
		c.JSON(http.StatusOK, run)
	}
}
