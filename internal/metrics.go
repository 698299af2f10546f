package internal

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for HTTP traffic and repository
// writes, on a private registry.
type Metrics struct {
	reqTotal     *prometheus.CounterVec
	reqLatency   *prometheus.HistogramVec
	writeTotal   *prometheus.CounterVec
	rowsRejected prometheus.Counter
	registry     *prometheus.Registry
}

// NewMetrics creates a Metrics instance with a private Prometheus registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	reqTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	reqLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	writeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_writes_total",
			Help: "Repository write operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	rowsRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_rows_rejected_total",
		Help: "Input rows rejected by the normalizer",
	})

	registry.MustRegister(reqTotal, reqLatency, writeTotal, rowsRejected)

	return &Metrics{
		reqTotal:     reqTotal,
		reqLatency:   reqLatency,
		writeTotal:   writeTotal,
		rowsRejected: rowsRejected,
		registry:     registry,
	}
}

// ObserveWrite records the outcome of one repository write operation.
func (m *Metrics) ObserveWrite(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.writeTotal.WithLabelValues(operation, outcome).Inc()
}

// AddRejectedRows counts normalizer rejections.
func (m *Metrics) AddRejectedRows(n int) {
	if n > 0 {
		m.rowsRejected.Add(float64(n))
	}
}

// Middleware returns a chi middleware that collects HTTP metrics.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rw, r)

			// Use chi's route pattern so path labels stay low-cardinality.
			path := r.URL.Path
			if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil && len(chiCtx.RoutePatterns) > 0 {
				path = chiCtx.RoutePatterns[len(chiCtx.RoutePatterns)-1]
			}

			status := http.StatusText(rw.code)
			m.reqTotal.WithLabelValues(r.Method, path, status).Inc()
			m.reqLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler returns an http.Handler that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the HTTP status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	return sr.ResponseWriter.Write(b)
}
