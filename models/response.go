package models

// RunAcceptedResponse is the immediate response for POST /run-scrape.
type RunAcceptedResponse struct {
	Message string `json:"message"`
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
}

// ErrorResponse wraps an error for any endpoint.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"` // always "ok" while the process serves
	Uptime  string `json:"uptime"`
	Busy    bool   `json:"busy"`
	Queued  int    `json:"queued"`
	Version string `json:"version"`
}
