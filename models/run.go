package models

import "time"

// Run statuses.
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run tracks one triggered scraping run.
type Run struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	WebhookHost string       `json:"webhook_host,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	Processed   int          `json:"processed"`
	Resolved    int          `json:"resolved"`
	Failed      int          `json:"failed"`
	Delivered   bool         `json:"delivered"`
	Error       *ErrorDetail `json:"error,omitempty"`
}

// Finished reports whether the run reached a terminal status.
func (r *Run) Finished() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}
