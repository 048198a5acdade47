// Package api exposes the JSON control surface consumed by UIs and
// scripts: fleet status, blocking toggles (including the legacy one-URL
// GET endpoints), probes, health, and metrics.
//
// There is no caller authentication on this surface; the service is meant
// to be reachable only from a trusted network.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pifleet.dev/pifleet/internal/brand"
	"pifleet.dev/pifleet/internal/clock"
	"pifleet.dev/pifleet/internal/fleet"
	"pifleet.dev/pifleet/internal/health"
	"pifleet.dev/pifleet/internal/logging"
	"pifleet.dev/pifleet/internal/metrics"
	"pifleet.dev/pifleet/internal/probe"
)

// ServerConfig holds HTTP server hardening configuration.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// DefaultServerConfig returns secure default server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second, // fan-outs against slow fleets take a while
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
}

// Server handles API requests.
type Server struct {
	fleet     *fleet.Orchestrator
	prober    *probe.Prober
	checker   *health.Checker
	logger    *logging.Logger
	startTime time.Time

	mux  *http.ServeMux
	http *http.Server
}

// ServerOptions holds dependencies for the API server.
type ServerOptions struct {
	Fleet   *fleet.Orchestrator
	Prober  *probe.Prober
	Checker *health.Checker
	Logger  *logging.Logger
}

// NewServer creates a new API server with the provided options.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	s := &Server{
		fleet:     opts.Fleet,
		prober:    opts.Prober,
		checker:   opts.Checker,
		logger:    logger.WithComponent("api"),
		startTime: clock.Now(),
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/blocking/enable", s.handleEnable)
	s.mux.HandleFunc("POST /api/blocking/disable", s.handleDisable)

	// Legacy one-URL toggles, kept GET so they work from a bookmark or a
	// bare curl.
	s.mux.HandleFunc("GET /enable", s.handleEnable)
	s.mux.HandleFunc("GET /disable", s.handleDisable)

	s.mux.HandleFunc("GET /api/probe", s.handleProbe)
	s.mux.HandleFunc("GET /api/ws/status", s.handleStatusWS)
	s.mux.HandleFunc("GET /api/version", s.handleVersion)

	if s.checker != nil {
		s.mux.Handle("GET /health", s.checker.Handler())
	}
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the server's root handler with middleware applied.
// Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.instrument(s.mux)
}

// ListenAndServe starts the HTTP server on addr and blocks until shutdown.
func (s *Server) ListenAndServe(addr string) error {
	cfg := DefaultServerConfig()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	s.logger.Info("API server listening", "addr", addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Websocket upgrades need the raw ResponseWriter (Hijacker).
		if r.URL.Path == "/api/ws/status" {
			next.ServeHTTP(w, r)
			return
		}

		start := clock.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := clock.Since(start)
		metrics.Get().APIRequests.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.Get().APILatency.WithLabelValues(r.URL.Path).Observe(elapsed.Seconds())
		s.logger.Debug("Request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", elapsed)
	})
}

// --- Handlers ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.fleet.GetAllStatus(r.Context()))
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	results := s.fleet.SetAllBlocking(r.Context(), true, 0)
	WriteJSON(w, http.StatusOK, results)
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	timer := 0
	if raw := r.URL.Query().Get("timer"); raw != "" {
		t, err := strconv.Atoi(raw)
		if err != nil || t < 0 {
			WriteError(w, http.StatusBadRequest, "timer must be a non-negative number of seconds")
			return
		}
		timer = t
	}

	results := s.fleet.SetAllBlocking(r.Context(), false, timer)
	WriteJSON(w, http.StatusOK, results)
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if s.prober == nil {
		WriteError(w, http.StatusServiceUnavailable, "probe not configured")
		return
	}
	WriteJSON(w, http.StatusOK, s.prober.ProbeAll(r.Context(), s.fleet.Instances()))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"name":       brand.Name,
		"version":    brand.Version,
		"build_time": brand.BuildTime,
		"uptime":     clock.Since(s.startTime).Round(time.Second).String(),
	})
}
