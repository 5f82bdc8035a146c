package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	apiDurationBuckets  = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets     = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus instruments for workdesk. Every Record
// method is safe to call on a nil *Metrics, so components can run without
// a registry in tests and in the CLI.
type Metrics struct {
	// HTTP surface
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Maintenance API
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APICircuitBreaker  prometheus.Gauge
	APIContractMissing prometheus.Gauge

	// Work-order engine
	MutationsTotal   *prometheus.CounterVec
	ReloadsTotal     *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	KanbanDropsTotal *prometheus.CounterVec

	// Dashboard
	DashboardPollsTotal *prometheus.CounterVec

	// Caches
	CapabilityCacheHitsTotal   prometheus.Counter
	CapabilityCacheMissesTotal prometheus.Counter
	LookupCacheHitsTotal       *prometheus.CounterVec
	LookupCacheMissesTotal     *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workdesk_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workdesk_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		APIRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workdesk_api_requests_total",
			Help: "Total number of maintenance API requests.",
		}, []string{"operation", "status"}),
		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workdesk_api_request_duration_seconds",
			Help:    "Maintenance API request duration in seconds.",
			Buckets: apiDurationBuckets,
		}, []string{"operation"}),
		APICircuitBreaker: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workdesk_api_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		APIContractMissing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workdesk_api_contract_missing_operations",
			Help: "Required API operations absent from the configured OpenAPI document.",
		}),

		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workdesk_workorder_mutations_total",
			Help: "Total work-order mutations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workdesk_workorder_reloads_total",
			Help: "Total work-order reloads (applied, stale, error).",
		}, []string{"result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workdesk_active_sessions",
			Help: "Number of cached per-session engines.",
		}),
		KanbanDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workdesk_kanban_drops_total",
			Help: "Total resolved kanban gestures by outcome.",
		}, []string{"outcome"}),

		DashboardPollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workdesk_dashboard_polls_total",
			Help: "Total dashboard fetches (applied, stale, error).",
		}, []string{"result"}),

		CapabilityCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workdesk_capability_cache_hits_total",
			Help: "Total capability cache hits.",
		}),
		CapabilityCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workdesk_capability_cache_misses_total",
			Help: "Total capability cache misses.",
		}),
		LookupCacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workdesk_lookup_cache_hits_total",
			Help: "Total lookup cache hits.",
		}, []string{"lookup"}),
		LookupCacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workdesk_lookup_cache_misses_total",
			Help: "Total lookup cache misses.",
		}, []string{"lookup"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSizeBytes,
		m.APIRequestsTotal,
		m.APIRequestDuration,
		m.APICircuitBreaker,
		m.APIContractMissing,
		m.MutationsTotal,
		m.ReloadsTotal,
		m.ActiveSessions,
		m.KanbanDropsTotal,
		m.DashboardPollsTotal,
		m.CapabilityCacheHitsTotal,
		m.CapabilityCacheMissesTotal,
		m.LookupCacheHitsTotal,
		m.LookupCacheMissesTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, respSize int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordAPIRequest records one maintenance API call. status is 0 when no
// response was received.
func (m *Metrics) RecordAPIRequest(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.APIRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetCircuitBreakerState sets the API circuit breaker state.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetCircuitBreakerState(state float64) {
	if m == nil {
		return
	}
	m.APICircuitBreaker.Set(state)
}

// SetContractMissing sets the number of required API operations missing
// from the OpenAPI document.
func (m *Metrics) SetContractMissing(n int) {
	if m == nil {
		return
	}
	m.APIContractMissing.Set(float64(n))
}

// RecordMutation records a work-order mutation. outcome is "ok", "noop",
// "rejected" or "error".
func (m *Metrics) RecordMutation(kind, outcome string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordReload records a reload result: "applied", "stale" or "error".
func (m *Metrics) RecordReload(result string) {
	if m == nil {
		return
	}
	m.ReloadsTotal.WithLabelValues(result).Inc()
}

// SetActiveSessions sets the number of cached session engines.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RecordKanbanDrop records a resolved gesture outcome.
func (m *Metrics) RecordKanbanDrop(outcome string) {
	if m == nil {
		return
	}
	m.KanbanDropsTotal.WithLabelValues(outcome).Inc()
}

// RecordDashboardPoll records a dashboard fetch result: "applied", "stale"
// or "error".
func (m *Metrics) RecordDashboardPoll(result string) {
	if m == nil {
		return
	}
	m.DashboardPollsTotal.WithLabelValues(result).Inc()
}

// RecordCapabilityCacheHit records a capability cache hit.
func (m *Metrics) RecordCapabilityCacheHit() {
	if m == nil {
		return
	}
	m.CapabilityCacheHitsTotal.Inc()
}

// RecordCapabilityCacheMiss records a capability cache miss.
func (m *Metrics) RecordCapabilityCacheMiss() {
	if m == nil {
		return
	}
	m.CapabilityCacheMissesTotal.Inc()
}

// RecordLookupCacheHit records a lookup cache hit.
func (m *Metrics) RecordLookupCacheHit(lookup string) {
	if m == nil {
		return
	}
	m.LookupCacheHitsTotal.WithLabelValues(lookup).Inc()
}

// RecordLookupCacheMiss records a lookup cache miss.
func (m *Metrics) RecordLookupCacheMiss(lookup string) {
	if m == nil {
		return
	}
	m.LookupCacheMissesTotal.WithLabelValues(lookup).Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics
// labelled by chi's route pattern rather than the raw path.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start), sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	pattern = strings.ReplaceAll(pattern, "/*/", "/")
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	w.written = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Flush lets event streams pass through the wrapper.
func (w *metricsResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
