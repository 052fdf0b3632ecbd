// Package metrics provides Prometheus metrics for the volume viewer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volumeviewer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "volumeviewer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Remote volume metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "volumeviewer_storage_operation_duration_seconds",
			Help:    "Remote volume operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volumeviewer_storage_operations_total",
			Help: "Total remote volume operations",
		},
		[]string{"backend", "operation", "status"},
	)

	bytesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "volumeviewer_bytes_fetched_total",
			Help: "Total bytes fetched from the remote volume",
		},
	)

	bytesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "volumeviewer_bytes_stored_total",
			Help: "Total bytes uploaded to the remote volume",
		},
	)

	// Preview metrics
	previewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volumeviewer_previews_total",
			Help: "Total previews rendered by file category",
		},
		[]string{"category", "status"},
	)

	listingSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "volumeviewer_listing_size",
			Help: "Size of the last listing fetched, by any session",
		},
	)

	// Session metrics
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "volumeviewer_sessions_active",
			Help: "Number of live browser sessions",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStorageOperation records a remote volume operation.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	storageOperationsTotal.WithLabelValues(backend, operation, statusLabel(success)).Inc()
}

// RecordFetch records bytes fetched from the volume.
func RecordFetch(bytes int) {
	bytesFetched.Add(float64(bytes))
}

// RecordStore records bytes uploaded to the volume.
func RecordStore(bytes int) {
	bytesStored.Add(float64(bytes))
}

// RecordPreview records a preview render for a file category.
func RecordPreview(category string, success bool) {
	previewsTotal.WithLabelValues(category, statusLabel(success)).Inc()
}

// SetListingSize records the size of the last listing fetched. The gauge is
// process-wide; sessions overwrite each other.
func SetListingSize(n int) {
	listingSize.Set(float64(n))
}

// SetSessionsActive sets the number of live sessions.
func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
// The route pattern is used as the path label to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
