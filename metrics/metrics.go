package metrics

import "github.com/prometheus/client_golang/prometheus"

// RunMetrics exposes counters/histograms for scraping runs.
type RunMetrics struct {
	runsTotal         *prometheus.CounterVec
	appointmentsTotal *prometheus.CounterVec
	webhookTotal      *prometheus.CounterVec
	runDuration       prometheus.Histogram
}

func NewRunMetrics(reg prometheus.Registerer) *RunMetrics {
	m := &RunMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptrelay",
			Subsystem: "runs",
			Name:      "total",
			Help:      "Finished scraping runs by status",
		}, []string{"status"}),
		appointmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptrelay",
			Subsystem: "runs",
			Name:      "appointments_total",
			Help:      "Appointments processed by outcome",
		}, []string{"outcome"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptrelay",
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by status",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "apptrelay",
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Wall time of a scraping run",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 900},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.appointmentsTotal, m.webhookTotal, m.runDuration)
	return m
}

func (m *RunMetrics) ObserveRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(seconds)
}

// ObserveAppointments records the outcome split of one run.
func (m *RunMetrics) ObserveAppointments(resolved, unresolved, failed int) {
	if m == nil {
		return
	}
	m.appointmentsTotal.WithLabelValues("resolved").Add(float64(resolved))
	m.appointmentsTotal.WithLabelValues("unresolved").Add(float64(unresolved))
	m.appointmentsTotal.WithLabelValues("error").Add(float64(failed))
}

func (m *RunMetrics) ObserveWebhook(ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	m.webhookTotal.WithLabelValues(status).Inc()
}
