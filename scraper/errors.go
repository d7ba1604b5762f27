package scraper

import (
	"context"
	"errors"

	"github.com/use-agent/apptrelay/models"
)

// categorizeError wraps raw errors into typed ScrapeErrors so the run
// record and the API carry a stable code. Typed errors pass through. A
// step whose own wait expired gets code; only the end of the run context
// itself is reported as a timeout.
func categorizeError(ctx context.Context, err error, code, msg string) error {
	var scrapeErr *models.ScrapeError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &scrapeErr):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, "run exceeded its deadline", err)
	case errors.Is(ctx.Err(), context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "run canceled", err)
	default:
		return models.NewScrapeError(code, msg, err)
	}
}
