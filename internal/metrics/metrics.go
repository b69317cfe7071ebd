package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Solve outcomes.
const (
	OutcomeConverged           = "converged"
	OutcomeAcceptedUnconverged = "accepted_unconverged"
	OutcomeFailed              = "failed"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lighttime_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lighttime_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	solvesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lighttime_solves_total",
			Help: "Single-leg light-time solves by outcome.",
		},
		[]string{"outcome"},
	)

	solveIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lighttime_iterations",
			Help:    "Iterations used per single-leg light-time solve.",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 12, 20, 35, 50, 100},
		},
	)

	batchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lighttime_batch_duration_seconds",
			Help:    "Wall time of batch chain solves.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	batchEpochsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lighttime_batch_epochs_total",
			Help: "Epochs processed by batch solves, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(solvesTotal)
	prometheus.MustRegister(solveIterations)
	prometheus.MustRegister(batchDurationSeconds)
	prometheus.MustRegister(batchEpochsTotal)
}

// RecordSolve records one single-leg solve.
func RecordSolve(iterations int, outcome string) {
	solvesTotal.WithLabelValues(outcome).Inc()
	solveIterations.Observe(float64(iterations))
}

// RecordFailure records a solve that stopped before an iteration count was
// known, such as one hitting an invalid link-end state.
func RecordFailure() {
	solvesTotal.WithLabelValues(OutcomeFailed).Inc()
}

// RecordBatch records a finished batch run.
func RecordBatch(duration time.Duration, solved, failed int) {
	batchDurationSeconds.Observe(duration.Seconds())
	batchEpochsTotal.WithLabelValues("solved").Add(float64(solved))
	batchEpochsTotal.WithLabelValues("failed").Add(float64(failed))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

var knownRoutes = map[string]bool{
	"/":                         true,
	"/healthz":                  true,
	"/readyz":                   true,
	"/metrics":                  true,
	"/api/v1/lighttime":         true,
	"/api/v1/lighttime/series":  true,
	"/api/v1/lighttime/ranging": true,
}

// normalizeRoute collapses unknown paths to one label so scanners cannot
// blow up label cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if trimmed := strings.TrimSuffix(path, "/"); trimmed != path && knownRoutes[trimmed] {
		return trimmed
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
