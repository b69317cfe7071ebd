// Package api serves light-time solutions over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jo11he/my-tudat/internal/auth"
	"github.com/jo11he/my-tudat/internal/batch"
	"github.com/jo11he/my-tudat/internal/health"
	"github.com/jo11he/my-tudat/internal/lighttime"
	"github.com/jo11he/my-tudat/internal/metrics"
)

// Config holds the server settings.
type Config struct {
	Addr            string
	Auth            auth.Config
	Reference       lighttime.LinkEndType // default reference link end
	Workers         int                   // series workers; <= 0 means NumCPU
	MaxSeriesEpochs int
	WriteTimeout    time.Duration
}

// DefaultMaxSeriesEpochs bounds one series request.
const DefaultMaxSeriesEpochs = 10000

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. factory builds a fresh chain
// per request; calculators are never shared between requests.
func NewServer(cfg Config, factory batch.ChainFactory, logger *slog.Logger) *Server {
	if cfg.MaxSeriesEpochs <= 0 {
		cfg.MaxSeriesEpochs = DefaultMaxSeriesEpochs
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() error {
		_, _, err := factory()
		return err
	}))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/lighttime", lightTimeHandler(cfg, factory, logger))
	mux.HandleFunc("GET /api/v1/lighttime/series", seriesHandler(cfg, factory, logger))
	mux.HandleFunc("GET /api/v1/lighttime/ranging", rangingHandler(cfg, factory, logger))

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
