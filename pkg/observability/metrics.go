package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Governance metrics
	AuthorizeTotal     *prometheus.CounterVec
	CommitsTotal       prometheus.Counter
	QuotaRemaining     *prometheus.GaugeVec
	CredentialPoolSize prometheus.Gauge
	PoolRefreshesTotal *prometheus.CounterVec

	// Usage metrics
	UsageRecordsTotal   prometheus.Counter
	TokensRecordedTotal *prometheus.CounterVec

	// Billing metrics
	WebhookEventsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthorizeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_authorize_total",
				Help: "Authorization decisions by outcome",
			},
			[]string{"outcome"},
		),
		CommitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_commits_total",
				Help: "Committed governed requests",
			},
		),
		QuotaRemaining: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_quota_remaining",
				Help: "Remaining monthly calls at last check, by tier",
			},
			[]string{"tier"},
		),
		CredentialPoolSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_credential_pool_size",
				Help: "Number of upstream credentials currently in the pool",
			},
		),
		PoolRefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_credential_pool_refreshes_total",
				Help: "Credential pool refresh attempts by result",
			},
			[]string{"result"},
		),

		UsageRecordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_usage_records_total",
				Help: "Usage records appended to the in-memory log",
			},
		),
		TokensRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_tokens_recorded_total",
				Help: "Token counts recorded for cost metering",
			},
			[]string{"direction"},
		),

		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_billing_webhook_events_total",
				Help: "Inbound billing webhook events by result",
			},
			[]string{"result"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthorizeTotal,
		m.CommitsTotal,
		m.QuotaRemaining,
		m.CredentialPoolSize,
		m.PoolRefreshesTotal,
		m.UsageRecordsTotal,
		m.TokensRecordedTotal,
		m.WebhookEventsTotal,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request count/duration metrics.
// The path label is the route template, not the raw URL, to bound cardinality.
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// statusWriter captures the response status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
