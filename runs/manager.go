// Package runs queues triggered scraping runs and executes them one at a
// time, so only one browser session is ever open.
package runs

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/apptrelay/config"
	"github.com/use-agent/apptrelay/metrics"
	"github.com/use-agent/apptrelay/models"
)

// Scraper performs one complete portal run.
type Scraper interface {
	Scrape(ctx context.Context, creds models.Credentials) ([]models.Appointment, error)
}

// Deliverer relays records to a webhook.
type Deliverer interface {
	Send(ctx context.Context, url string, records []models.Appointment) error
}

// Outcome is the result of Process.
type Outcome struct {
	Records   []models.Appointment // every processed appointment, calendar order
	Resolved  []models.Appointment // the subset sent to the webhook
	Attempted bool                 // a delivery was attempted
	Delivered bool
}

// Failed counts records that stand for appointments that could not be processed.
func (o Outcome) Failed() int {
	n := 0
	for _, r := range o.Records {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Process scrapes, keeps the resolved records and delivers them. Nothing is
// sent when no record is resolved. A nil sender skips delivery.
//
// When the scrape fails, the records gathered before the failure are still
// counted and resolved, but nothing is delivered.
func Process(ctx context.Context, sc Scraper, sender Deliverer, creds models.Credentials, webhookURL string) (Outcome, error) {
	records, err := sc.Scrape(ctx, creds)
	out := Outcome{Records: records, Resolved: models.FilterResolved(records)}
	if err != nil {
		return out, err
	}

	slog.Info("final results",
		"processed", len(out.Records),
		"resolved", len(out.Resolved),
		"failed", out.Failed(),
	)
	for _, a := range out.Resolved {
		slog.Debug("resolved appointment", "patient", a.Patient, "dateTime", a.DateTime)
	}

	if len(out.Resolved) == 0 || sender == nil || webhookURL == "" {
		return out, nil
	}

	out.Attempted = true
	if err := sender.Send(ctx, webhookURL, out.Resolved); err != nil {
		return out, models.NewScrapeError(models.ErrCodeWebhookFailed, "webhook delivery failed", err)
	}
	out.Delivered = true
	return out, nil
}

type job struct {
	id         string
	webhookURL string
	creds      models.Credentials
}

// Manager owns the run queue and the single worker draining it.
type Manager struct {
	scraper    Scraper
	sender     Deliverer
	metrics    *metrics.RunMetrics
	store      *Store
	queue      chan *job
	runTimeout time.Duration
	busy       atomic.Bool
	done       chan struct{}

	mu      sync.Mutex // guards stopped and sends on queue
	stopped bool
	now        func() time.Time
}

// NewManager wires the queue. Call Start before submitting.
func NewManager(sc Scraper, sender Deliverer, m *metrics.RunMetrics, cfg config.RunsConfig, runTimeout time.Duration) *Manager {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	if runTimeout <= 0 {
		runTimeout = 15 * time.Minute
	}
	return &Manager{
		scraper:    sc,
		sender:     sender,
		metrics:    m,
		store:      NewStore(cfg.MaxEntries, cfg.RetainFor),
		queue:      make(chan *job, size),
		runTimeout: runTimeout,
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Start launches the worker and the store cleanup loop. Both stop when ctx
// is done; runs still queued at that point are marked failed.
func (m *Manager) Start(ctx context.Context) {
	go m.store.cleanupLoop(ctx)
	go func() {
		defer close(m.done)
		for {
			select {
			case <-ctx.Done():
				m.mu.Lock()
				m.stopped = true
				m.mu.Unlock()
				m.drain()
				return
			case j := <-m.queue:
				m.execute(ctx, j)
			}
		}
	}()
}

// Done is closed once the worker has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Submit records a queued run and hands it to the worker. Once the worker
// is stopping, new runs are refused.
func (m *Manager) Submit(req models.RunRequest) (models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return models.Run{}, models.NewScrapeError(models.ErrCodeShuttingDown, "server is shutting down", nil)
	}

	run := &models.Run{
		ID:          uuid.NewString(),
		Status:      models.RunQueued,
		WebhookHost: hostOf(req.Number),
		CreatedAt:   m.now(),
	}
	m.store.Put(run)
	snapshot, _ := m.store.Get(run.ID)

	select {
	case m.queue <- &job{id: run.ID, webhookURL: req.Number, creds: req.Credentials()}:
		slog.Info("run queued", "run_id", run.ID, "webhook_host", run.WebhookHost)
		return snapshot, nil
	default:
		m.store.Delete(run.ID)
		return models.Run{}, models.NewScrapeError(models.ErrCodeQueueFull,
			"a scraping run is already in progress and the queue is full", nil)
	}
}

// Get returns a copy of the run.
func (m *Manager) Get(id string) (models.Run, bool) {
	return m.store.Get(id)
}

// Busy reports whether a run is executing.
func (m *Manager) Busy() bool {
	return m.busy.Load()
}

// Queued returns the number of runs waiting for the worker.
func (m *Manager) Queued() int {
	return len(m.queue)
}

func (m *Manager) execute(ctx context.Context, j *job) {
	m.busy.Store(true)
	defer m.busy.Store(false)

	started := m.now()
	m.store.Update(j.id, func(r *models.Run) {
		r.Status = models.RunRunning
		r.StartedAt = &started
	})
	slog.Info("run started", "run_id", j.id)

	runCtx, cancel := context.WithTimeout(ctx, m.runTimeout)
	defer cancel()

	out, err := Process(runCtx, m.scraper, m.sender, j.creds, j.webhookURL)

	finished := m.now()
	status := models.RunCompleted
	var detail *models.ErrorDetail
	if err != nil {
		status = models.RunFailed
		detail = toDetail(err)
	}

	m.store.Update(j.id, func(r *models.Run) {
		r.Status = status
		r.FinishedAt = &finished
		r.Processed = len(out.Records)
		r.Resolved = len(out.Resolved)
		r.Failed = out.Failed()
		r.Delivered = out.Delivered
		r.Error = detail
	})

	m.metrics.ObserveRun(status, finished.Sub(started).Seconds())
	m.metrics.ObserveAppointments(len(out.Resolved), len(out.Records)-len(out.Resolved)-out.Failed(), out.Failed())
	if out.Attempted {
		m.metrics.ObserveWebhook(out.Delivered)
	}

	if err != nil {
		slog.Error("run failed",
			"run_id", j.id,
			"processed", len(out.Records),
			"error", err,
		)
		return
	}
	slog.Info("run finished",
		"run_id", j.id,
		"processed", len(out.Records),
		"resolved", len(out.Resolved),
		"delivered", out.Delivered,
		"duration", finished.Sub(started).Round(time.Millisecond).String(),
	)
}

// drain fails every run still waiting in the queue.
func (m *Manager) drain() {
	for {
		select {
		case j := <-m.queue:
			finished := m.now()
			m.store.Update(j.id, func(r *models.Run) {
				r.Status = models.RunFailed
				r.FinishedAt = &finished
				r.Error = &models.ErrorDetail{Code: models.ErrCodeInternal, Message: "server shutting down"}
			})
		default:
			return
		}
	}
}

func toDetail(err error) *models.ErrorDetail {
	var scrapeErr *models.ScrapeError
	if errors.As(err, &scrapeErr) {
		return scrapeErr.ToDetail()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.ErrorDetail{Code: models.ErrCodeTimeout, Message: "run exceeded its deadline"}
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
