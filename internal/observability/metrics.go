package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDuration        *prometheus.HistogramVec
	retriesScheduledTotal      *prometheus.CounterVec
	transactionsFinalizedTotal *prometheus.CounterVec
	gatewayCallDuration        *prometheus.HistogramVec
	gatewayFailuresTotal       *prometheus.CounterVec
	breakerTransitionsTotal    *prometheus.CounterVec
	workerInflight             prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "retry_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "retry_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		retriesScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "retry_engine",
				Name:      "retries_scheduled_total",
				Help:      "Total number of retry attempts scheduled grouped by error type.",
			},
			[]string{"error_type"},
		),
		transactionsFinalizedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "retry_engine",
				Name:      "transactions_finalized_total",
				Help:      "Total number of transactions that reached a terminal state.",
			},
			[]string{"status"},
		),
		gatewayCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "retry_engine",
				Name:      "gateway_call_duration_seconds",
				Help:      "Payment gateway call duration in seconds grouped by gateway.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"gateway"},
		),
		gatewayFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "retry_engine",
				Name:      "gateway_failures_total",
				Help:      "Total number of terminally failed gateway attempts by gateway.",
			},
			[]string{"gateway"},
		),
		breakerTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "retry_engine",
				Name:      "breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions by gateway and target state.",
			},
			[]string{"gateway", "to_state"},
		),
		workerInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "retry_engine",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight retry messages being processed.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.retriesScheduledTotal,
		m.transactionsFinalizedTotal,
		m.gatewayCallDuration,
		m.gatewayFailuresTotal,
		m.breakerTransitionsTotal,
		m.workerInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncRetryScheduled(errorType string) {
	if m == nil {
		return
	}
	m.retriesScheduledTotal.WithLabelValues(normalizeLabel(errorType)).Inc()
}

func (m *Metrics) IncTransactionFinalized(status string) {
	if m == nil {
		return
	}
	m.transactionsFinalizedTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) ObserveGatewayCallDuration(gateway string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.gatewayCallDuration.WithLabelValues(normalizeLabel(gateway)).Observe(seconds)
}

func (m *Metrics) IncGatewayFailure(gateway string) {
	if m == nil {
		return
	}
	m.gatewayFailuresTotal.WithLabelValues(normalizeLabel(gateway)).Inc()
}

func (m *Metrics) IncBreakerTransition(gateway string, toState string) {
	if m == nil {
		return
	}
	m.breakerTransitionsTotal.WithLabelValues(normalizeLabel(gateway), normalizeLabel(toState)).Inc()
}

func (m *Metrics) IncWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Inc()
}

func (m *Metrics) DecWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
