package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/apptrelay/config"
	"github.com/use-agent/apptrelay/models"
)

var sample = []models.Appointment{
	{Patient: "DUPONT Marie", DateTime: "12/03/2025 09:30", PhoneNumber: "+33612345678"},
	{Patient: "MARTIN Paul", DateTime: "12/03/2025 10:00", PhoneNumber: "0699887766"},
}

func TestSend_PostsJSONArray(t *testing.T) {
	var got []models.Appointment
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		assert.Empty(t, r.Header.Get(SignatureHeader))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(config.WebhookConfig{Timeout: time.Second})

	require.NoError(t, s.Send(context.Background(), srv.URL, sample))
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, sample, got)
}

func TestSend_SignsBody(t *testing.T) {
	var sig string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig = r.Header.Get(SignatureHeader)
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	s := NewSender(config.WebhookConfig{Secret: "s3cret", Timeout: time.Second})

	require.NoError(t, s.Send(context.Background(), srv.URL, sample))
	assert.Equal(t, "sha256="+Sign("s3cret", body), sig)
}

func TestSend_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSender(config.WebhookConfig{
		Timeout:     time.Second,
		RetryDelays: []time.Duration{0, 10 * time.Millisecond, 10 * time.Millisecond},
	})

	require.NoError(t, s.Send(context.Background(), srv.URL, sample))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_ExhaustedReturnsStatusError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSender(config.WebhookConfig{
		Timeout:     time.Second,
		RetryDelays: []time.Duration{0, time.Millisecond},
	})

	err := s.Send(context.Background(), srv.URL, sample)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSend_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSender(config.WebhookConfig{
		Timeout:     time.Second,
		RetryDelays: []time.Duration{0, time.Hour},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Send(ctx, srv.URL, sample)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewSender_DefaultsToSingleAttempt(t *testing.T) {
	s := NewSender(config.WebhookConfig{})
	assert.Equal(t, []time.Duration{0}, s.delays)
	assert.Equal(t, 10*time.Second, s.client.Timeout)
}
