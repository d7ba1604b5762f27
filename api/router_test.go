package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/apptrelay/config"
	"github.com/use-agent/apptrelay/metrics"
	"github.com/use-agent/apptrelay/models"
	"github.com/use-agent/apptrelay/runs"
)

type emptyDay struct{}

func (emptyDay) Scrape(context.Context, models.Credentials) ([]models.Appointment, error) {
	return []models.Appointment{}, nil
}

func newTestRouter(t *testing.T, auth bool) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		Auth:      config.AuthConfig{Enabled: auth, APIKeys: []string{"secret"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		Metrics:   config.MetricsConfig{Enabled: true},
	}
	mgr := runs.NewManager(emptyDay{}, nil, metrics.NewRunMetrics(prometheus.NewRegistry()),
		config.RunsConfig{QueueSize: 2, MaxEntries: 10, RetainFor: time.Hour}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		<-mgr.Done()
	})
	mgr.Start(ctx)
	return NewRouter(mgr, cfg, time.Now())
}

func request(r http.Handler, method, path, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_TriggerThenStatus(t *testing.T) {
	r := newTestRouter(t, false)

	w := request(r, http.MethodPost, "/run-scrape", `{"password":"pw","number":"https://hooks.example.com/in"}`, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id"`)

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusNotFound, request(r, http.MethodGet, "/runs/nope", "", "").Code)
}

func TestRouter_AuthGuardsRunRoutes(t *testing.T) {
	r := newTestRouter(t, true)

	assert.Equal(t, http.StatusUnauthorized,
		request(r, http.MethodPost, "/run-scrape", `{"number":"https://hooks.example.com/in"}`, "").Code)
	assert.Equal(t, http.StatusAccepted,
		request(r, http.MethodPost, "/run-scrape", `{"number":"https://hooks.example.com/in"}`, "secret").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/runs/x", "", "").Code)

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/metrics", "", "").Code)
}
