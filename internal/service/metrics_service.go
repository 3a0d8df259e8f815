package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the roster
// API: request latency plus reconciliation outcome counters.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	reconcileTotal   *prometheus.CounterVec
	draftMatchTotal  *prometheus.CounterVec
	importRowsStaged prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	reconcileTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_reconcile_total",
		Help: "Reconciliation attempts by outcome",
	}, []string{"outcome"})

	draftMatchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_draft_match_total",
		Help: "Draft match lookups by result",
	}, []string{"result"})

	importRowsStaged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_import_rows_staged_total",
		Help: "Candidate rows staged as drafts by imports",
	})

	registry.MustRegister(requestDuration, requestTotal, reconcileTotal, draftMatchTotal, importRowsStaged)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		reconcileTotal:   reconcileTotal,
		draftMatchTotal:  draftMatchTotal,
		importRowsStaged: importRowsStaged,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records latency and volume for one request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

// ObserveReconcile counts one reconciliation outcome.
func (m *MetricsService) ObserveReconcile(outcome string) {
	m.reconcileTotal.WithLabelValues(outcome).Inc()
}

// ObserveDraftMatch counts matched and unmatched candidate emails.
func (m *MetricsService) ObserveDraftMatch(found, notFound int) {
	m.draftMatchTotal.WithLabelValues("found").Add(float64(found))
	m.draftMatchTotal.WithLabelValues("not_found").Add(float64(notFound))
}

// ObserveImportStaged counts staged import rows.
func (m *MetricsService) ObserveImportStaged(rows int) {
	m.importRowsStaged.Add(float64(rows))
}
