package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/apptrelay/config"
	"github.com/use-agent/apptrelay/models"
)

// SignatureHeader carries the HMAC of the body when a secret is configured.
const SignatureHeader = "X-Apptrelay-Signature"

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook: endpoint returned status %d", e.StatusCode)
}

// Sender posts scraped records to the caller's webhook.
type Sender struct {
	secret string
	delays []time.Duration
	client *http.Client
}

// NewSender builds a Sender from config. An empty delay list means a single
// immediate attempt.
func NewSender(cfg config.WebhookConfig) *Sender {
	delays := cfg.RetryDelays
	if len(delays) == 0 {
		delays = []time.Duration{0}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		secret: cfg.Secret,
		delays: delays,
		client: &http.Client{Timeout: timeout},
	}
}

// Deliver sends the records once. The body is the bare JSON array.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, client *http.Client, url, secret string, records []models.Appointment) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("webhook: marshal records: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Apptrelay-Webhook/1.0")

	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Send delivers the records, retrying after each configured delay.
// It returns the last error when every attempt failed.
func (s *Sender) Send(ctx context.Context, url string, records []models.Appointment) error {
	var lastErr error
	for attempt, delay := range s.delays {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := Deliver(ctx, s.client, url, s.secret, records)
		if err == nil {
			slog.Info("webhook delivered",
				"records", len(records),
				"attempt", attempt+1,
			)
			return nil
		}
		lastErr = err
		slog.Warn("webhook delivery failed",
			"records", len(records),
			"attempt", attempt+1,
			"error", err,
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	slog.Error("webhook delivery exhausted all retries", "attempts", len(s.delays))
	return lastErr
}
