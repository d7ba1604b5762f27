package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/use-agent/apptrelay/models"
)

// apiClient talks to a running apptrelay server.
type apiClient struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
}

// apiError is a non-2xx answer carrying the server's error envelope.
type apiError struct {
	Status int
	Detail *models.ErrorDetail
}

func (e *apiError) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("[%s] %s", e.Detail.Code, e.Detail.Message)
	}
	return fmt.Sprintf("api returned status %d", e.Status)
}

func (c *apiClient) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope models.ErrorResponse
		_ = json.Unmarshal(raw, &envelope)
		return &apiError{Status: resp.StatusCode, Detail: envelope.Error}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// trigger queues a run.
func (c *apiClient) trigger(ctx context.Context, req models.RunRequest) (models.RunAcceptedResponse, error) {
	var resp models.RunAcceptedResponse
	err := c.do(ctx, http.MethodPost, "/run-scrape", req, &resp)
	return resp, err
}

func (c *apiClient) run(ctx context.Context, id string) (models.Run, error) {
	var run models.Run
	err := c.do(ctx, http.MethodGet, "/runs/"+url.PathEscape(id), nil, &run)
	return run, err
}

// waitRun polls the run until it reaches a terminal status or ctx ends.
func (c *apiClient) waitRun(ctx context.Context, id string) (models.Run, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return models.Run{}, ctx.Err()
		case <-ticker.C:
			run, err := c.run(ctx, id)
			if err != nil {
				return models.Run{}, err
			}
			if run.Finished() {
				return run, nil
			}
		}
	}
}
