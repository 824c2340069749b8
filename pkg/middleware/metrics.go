package middleware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/ssrdata/internal/errors"
	"github.com/vango-dev/ssrdata/pkg/ssr"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "ssrdata").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the metrics and backs Handler. Default: a new
	// registry with the Go and process collectors.
	Registry *prometheus.Registry
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "ssrdata",
		Buckets:   prometheus.DefBuckets,
	}
}

// Metrics holds the Prometheus metrics of one app. It is an HTTP
// middleware source and an ssr.Observer.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	phaseDuration   *prometheus.HistogramVec
	phaseErrors     *prometheus.CounterVec
	snapshotRecords prometheus.Histogram
	liveMounts      *prometheus.CounterVec
	liveFetches     prometheus.Counter
	archiveErrors   prometheus.Counter
}

var _ ssr.Observer = (*Metrics)(nil)

// NewMetrics registers the metrics.
//
// Metrics collected (with the default namespace):
//   - ssrdata_http_requests_total: requests by route and status class
//   - ssrdata_http_request_duration_seconds: request duration by route
//   - ssrdata_phase_duration_seconds: initialization phase duration by phase
//   - ssrdata_phase_errors_total: failed phases by phase and error type
//   - ssrdata_snapshot_records: records per extracted snapshot
//   - ssrdata_live_mounts_total: live mounts by result
//   - ssrdata_live_network_fetches_total: fetches made by live mounts
//   - ssrdata_archive_errors_total: failed snapshot archive writes
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
		config.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		registry: config.Registry,

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests handled",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "phase_duration_seconds",
			Help:        "Page initialization phase duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"phase"}),

		phaseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "phase_errors_total",
			Help:        "Total number of failed initialization phases",
			ConstLabels: config.ConstLabels,
		}, []string{"phase", "error_type"}),

		snapshotRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "snapshot_records",
			Help:        "Number of normalized records per extracted snapshot",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		}),

		liveMounts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_mounts_total",
			Help:        "Total live mounts by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		liveFetches: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_network_fetches_total",
			Help:        "Network fetches made while rendering live mounts",
			ConstLabels: config.ConstLabels,
		}),

		archiveErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "archive_errors_total",
			Help:        "Total failed snapshot archive writes",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and durations labeled with the chi
// route pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := newStatusWriter(w)

		next.ServeHTTP(sw, r)

		route := routePattern(r)
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, statusClass(sw.Status())).Inc()
	})
}

// StartPhase implements ssr.Observer.
func (m *Metrics) StartPhase(ctx context.Context, _ string, phase ssr.Phase) (context.Context, func(error)) {
	start := time.Now()
	return ctx, func(err error) {
		m.phaseDuration.WithLabelValues(string(phase)).Observe(time.Since(start).Seconds())
		if err != nil {
			m.phaseErrors.WithLabelValues(string(phase), categorizeError(err)).Inc()
		}
	}
}

// SnapshotExtracted implements ssr.Observer.
func (m *Metrics) SnapshotExtracted(_ context.Context, _ string, records int) {
	m.snapshotRecords.Observe(float64(records))
}

// RecordLiveMount records a live mount and the network fetches its render
// needed.
func (m *Metrics) RecordLiveMount(err error, fetches int64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.liveMounts.WithLabelValues(result).Inc()
	m.liveFetches.Add(float64(fetches))
}

// RecordArchiveError records a failed snapshot archive write.
func (m *Metrics) RecordArchiveError() {
	m.archiveErrors.Inc()
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func statusClass(code int) string {
	if code == 0 {
		code = http.StatusOK
	}
	return strconv.Itoa(code/100) + "xx"
}

// categorizeError returns a low-cardinality label for err: its SSRError
// code when it has one, otherwise a coarse category.
func categorizeError(err error) string {
	if code := errors.Code(err); code != "" {
		return code
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "deadline exceeded"), strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "canceled"):
		return "canceled"
	case strings.Contains(errStr, "unauthorized"):
		return "unauthorized"
	case strings.Contains(errStr, "graphql"):
		return "graphql"
	default:
		return "internal"
	}
}

// statusWriter captures the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Status returns the written status, or 0 if nothing was written.
func (w *statusWriter) Status() int { return w.status }

// Hijack implements http.Hijacker for WebSocket upgrades.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("middleware: %T does not implement http.Hijacker", w.ResponseWriter)
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

// Flush implements http.Flusher.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying writer for http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
