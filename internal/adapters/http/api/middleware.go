package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hunterhub/hunter-ranking/pkg/metrics"
)

// statusClass labels a failed response in the error metrics.
type statusClass struct {
	errorType string
	severity  string
}

// classify maps an HTTP error status onto the labels used by the error
// counters. The 503 and 507 classes mark the two storage paths.
func classify(status int) statusClass {
	switch {
	case status == http.StatusServiceUnavailable:
		return statusClass{"remote_unavailable", "medium"}
	case status == http.StatusInsufficientStorage:
		return statusClass{"local_storage", "high"}
	case status >= http.StatusInternalServerError:
		return statusClass{"server_error", "high"}
	case status == http.StatusUnauthorized:
		return statusClass{"no_identity", "low"}
	case status == http.StatusNotFound:
		return statusClass{"not_found", "low"}
	default:
		return statusClass{"client_error", "medium"}
	}
}

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics under
// the endpoint label.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		durationMs := float64(time.Since(start).Milliseconds())
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, durationMs)

		if rec.status < http.StatusBadRequest {
			return
		}
		c := classify(rec.status)
		metrics.RecordErrorByEndpoint(endpoint, r.Method, c.errorType)
		metrics.RecordErrorByType(c.errorType, c.severity)
		metrics.RecordErrorLatency("http", c.errorType, durationMs)
	}
}

// statusRecorder remembers the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
