package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Upstream admin API metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec

	// Reference cache metrics
	RefCacheLookupsTotal     *prometheus.CounterVec
	RefCachePopulationsTotal *prometheus.CounterVec
	RefCacheEntries          *prometheus.GaugeVec

	// Snapshot store metrics
	SnapshotOperationsTotal *prometheus.CounterVec

	// Export metrics
	ExportsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pfcatalog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pfcatalog_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pfcatalog_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Upstream metrics
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pfcatalog_upstream_requests_total",
				Help: "Total number of admin API collection fetches",
			},
			[]string{"environment", "resource", "outcome"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pfcatalog_upstream_request_duration_seconds",
				Help:    "Admin API collection fetch duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"resource"},
		),

		// Reference cache metrics
		RefCacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pfcatalog_refcache_lookups_total",
				Help: "Total number of reference resolutions",
			},
			[]string{"kind", "result"},
		),
		RefCachePopulationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pfcatalog_refcache_populations_total",
				Help: "Total number of reference kind population attempts",
			},
			[]string{"kind", "result"},
		),
		RefCacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pfcatalog_refcache_entries",
				Help: "Number of cached id to name entries",
			},
			[]string{"environment", "kind"},
		),

		// Snapshot metrics
		SnapshotOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pfcatalog_snapshot_operations_total",
				Help: "Total number of shared snapshot store operations",
			},
			[]string{"operation", "status"},
		),

		// Export metrics
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pfcatalog_exports_total",
				Help: "Total number of spreadsheet exports",
			},
			[]string{"dataset", "status"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.RefCacheLookupsTotal,
		m.RefCachePopulationsTotal,
		m.RefCacheEntries,
		m.SnapshotOperationsTotal,
		m.ExportsTotal,
	)

	return m
}

// RecordUpstreamRequest records the outcome and latency of one collection fetch
func (m *Metrics) RecordUpstreamRequest(env, resource, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(env, resource, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(resource).Observe(d.Seconds())
}

// RecordLookup records a reference resolution result (hit, miss, unloaded, empty)
func (m *Metrics) RecordLookup(kind, result string) {
	if m == nil {
		return
	}
	m.RefCacheLookupsTotal.WithLabelValues(kind, result).Inc()
}

// RecordPopulation records where a reference kind was loaded from (upstream, snapshot, failed)
func (m *Metrics) RecordPopulation(kind, result string) {
	if m == nil {
		return
	}
	m.RefCachePopulationsTotal.WithLabelValues(kind, result).Inc()
}

// SetCacheEntries sets the entry count of one environment's reference kind
func (m *Metrics) SetCacheEntries(env, kind string, n int) {
	if m == nil {
		return
	}
	m.RefCacheEntries.WithLabelValues(env, kind).Set(float64(n))
}

// RecordSnapshotOperation records a snapshot store get or put
func (m *Metrics) RecordSnapshotOperation(operation, status string) {
	if m == nil {
		return
	}
	m.SnapshotOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordExport records a spreadsheet export
func (m *Metrics) RecordExport(dataset, status string) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(dataset, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// pathLabel maps a request to a bounded label; nil uses the raw URL path.
func HTTPMetricsMiddleware(metrics *Metrics, pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	if pathLabel == nil {
		pathLabel = func(r *http.Request) string { return r.URL.Path }
	}

	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := pathLabel(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
