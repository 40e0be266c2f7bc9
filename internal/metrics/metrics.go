package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "caixapdv"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

// NewServerMetrics registers the HTTP collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// LedgerMetrics counts register lifecycle events. A nil *LedgerMetrics is
// valid and records nothing.
type LedgerMetrics struct {
	Opened       prometheus.Counter
	Closed       *prometheus.CounterVec
	Reopened     prometheus.Counter
	Transactions *prometheus.CounterVec
	Conflicts    prometheus.Counter
	JobsFailed   *prometheus.CounterVec
	DLQDepth     *prometheus.GaugeVec
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		Opened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "register", Name: "opened_total",
			Help: "Registers opened.",
		}),
		Closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "register", Name: "closed_total",
			Help: "Registers closed, by deviation classification.",
		}, []string{"classification"}),
		Reopened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "register", Name: "reopened_total",
			Help: "Registers reopened.",
		}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "register", Name: "transactions_total",
			Help: "Manual transactions appended, by type.",
		}, []string{"type"}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "register", Name: "open_conflicts_total",
			Help: "Open or reopen attempts rejected because the store already had an open register.",
		}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "jobs_dead_lettered_total",
			Help: "Jobs moved to the dead-letter queue, by queue.",
		}, []string{"queue"}),
		DLQDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "worker", Name: "dead_letter_depth",
			Help: "Entries waiting in each dead-letter queue after the last redrive tick.",
		}, []string{"queue"}),
	}
	reg.MustRegister(m.Opened, m.Closed, m.Reopened, m.Transactions, m.Conflicts, m.JobsFailed, m.DLQDepth)
	return m
}

func (m *LedgerMetrics) ObserveOpen() {
	if m != nil {
		m.Opened.Inc()
	}
}

func (m *LedgerMetrics) ObserveClose(classification string) {
	if m != nil {
		m.Closed.WithLabelValues(classification).Inc()
	}
}

func (m *LedgerMetrics) ObserveReopen() {
	if m != nil {
		m.Reopened.Inc()
	}
}

func (m *LedgerMetrics) ObserveTransaction(typ string) {
	if m != nil {
		m.Transactions.WithLabelValues(typ).Inc()
	}
}

func (m *LedgerMetrics) ObserveConflict() {
	if m != nil {
		m.Conflicts.Inc()
	}
}

func (m *LedgerMetrics) ObserveDeadLetter(queue string) {
	if m != nil {
		m.JobsFailed.WithLabelValues(queue).Inc()
	}
}

func (m *LedgerMetrics) ObserveDeadLetterDepth(queue string, depth int64) {
	if m != nil {
		m.DLQDepth.WithLabelValues(queue).Set(float64(depth))
	}
}

// Handler serves the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
