// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/askdesk/askdesk/internal/metrics"
	"github.com/askdesk/askdesk/internal/pipeline"
	apperrors "github.com/askdesk/askdesk/internal/pkg/errors"
	"github.com/askdesk/askdesk/internal/pkg/logger"
	"github.com/askdesk/askdesk/internal/pkg/middleware"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address.
	Addr string

	// MetricsPath serves the Prometheus scrape endpoint when metrics are
	// wired. Empty disables it.
	MetricsPath string

	// Version is reported by /v1/version.
	Version string

	// ReadTimeout and WriteTimeout bound request handling. WriteTimeout must
	// exceed the pipeline's total timeout or slow queries get cut off
	// mid-response.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "0.0.0.0:8080",
		MetricsPath:  "/metrics",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP front of the pipeline.
type Server struct {
	cfg      Config
	pipeline *pipeline.Service
	log      *logger.Logger
	httpSrv  *http.Server
}

// New creates the server. rateLimiter, m, and health entries may be nil.
func New(cfg Config, svc *pipeline.Service, log *logger.Logger, rateLimiter *middleware.RateLimiter, m *metrics.Metrics, health map[string]HealthChecker) *Server {
	if cfg.Addr == "" {
		cfg = DefaultConfig()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		pipeline: svc,
		log:      log,
	}

	mux := http.NewServeMux()

	var ask http.Handler = http.HandlerFunc(s.handleAsk)
	if rateLimiter != nil {
		ask = rateLimiter.Middleware(ask)
	}
	mux.Handle("POST /v1/ask", ask)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /readyz", s.handleReady(health))

	mux.HandleFunc("GET /v1/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": cfg.Version})
	})

	if m != nil && cfg.MetricsPath != "" {
		mux.Handle("GET "+cfg.MetricsPath, m.Handler())
	}

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", "addr", s.cfg.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleAsk handles POST /v1/ask.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, apperrors.New(apperrors.CodeInvalidRequest, "invalid request body"))
		return
	}

	resp, err := s.pipeline.Answer(r.Context(), req)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleReady checks every backing dependency; any failure reports 503.
func (s *Server) handleReady(health map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(health))
		for name, hc := range health {
			if hc == nil {
				continue
			}
			if err := hc.HealthCheck(ctx); err != nil {
				s.log.Warn("readiness check failed", "component", name, "error", err)
				components[name] = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "healthy"
		}

		writeJSON(w, status, map[string]any{
			"status":     statusWord(status),
			"components": components,
		})
	}
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ready"
	}
	return "unavailable"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
