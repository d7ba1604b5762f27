package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/apptrelay/models"
)

// AcceptedMessage is returned with every accepted trigger.
const AcceptedMessage = "Scraping run accepted and started."

// Submitter enqueues runs.
type Submitter interface {
	Submit(req models.RunRequest) (models.Run, error)
}

// Trigger returns a handler for POST /run-scrape.
//
// The run executes in the background; the response only confirms it was
// queued. Callers follow up with GET /runs/:id.
func Trigger(s Submitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		req.Defaults()

		if err := validateWebhookURL(req.Number); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}

		run, err := s.Submit(req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, models.RunAcceptedResponse{
			Message: AcceptedMessage,
			RunID:   run.ID,
			Status:  run.Status,
		})
	}
}

// validateWebhookURL accepts absolute http(s) URLs only.
func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("number must be an http or https webhook URL")
	}
	if u.Host == "" {
		return errors.New("number must be an absolute webhook URL")
	}
	return nil
}
