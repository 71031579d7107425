// Package api provides the HTTP API server for the drift monitor.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/db/clickhouse"
	"vigil/internal/monitor"
	"vigil/pkg/errors"
	"vigil/pkg/platform"
)

// Server is the HTTP API server.
type Server struct {
	httpServer  *http.Server
	runner      *monitor.Runner
	reportStore *clickhouse.Store
	monitorCfg  monitor.Config
	config      *Config
	log         *slog.Logger

	// runMu serializes triggered runs so overlapping POST /run requests
	// cannot double-alert on the same window.
	runMu sync.Mutex
}

// Config holds server configuration.
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
	APIKey         string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxRequestSize: 1 * 1024 * 1024, // 1MB
	}
}

// NewServer creates a new API server.
func NewServer(runner *monitor.Runner, store *clickhouse.Store, monitorCfg monitor.Config, config *Config, log *slog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		runner:      runner,
		reportStore: store,
		monitorCfg:  monitorCfg,
		config:      config,
		log:         log,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/api/v1/run", platform.APIKeyMiddleware(s.config.APIKey, s.handleRun))
	mux.HandleFunc("/api/v1/reports/latest", s.handleLatestReport)
	mux.HandleFunc("/api/v1/reports", s.handleListReports)
	mux.Handle("/metrics", promhttp.Handler())

	handler := s.loggingMiddleware(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Info("api server starting", "port", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts the server and drains in-flight
// requests on SIGINT/SIGTERM.
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "duration", time.Since(start).String())
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.reportStore.Ping(ctx); err != nil {
		s.jsonError(w, http.StatusServiceUnavailable, "report store not ready")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// =============================================================================
// RUN ENDPOINT
// =============================================================================

// RunRequest optionally overrides the configured window for a single
// triggered run.
type RunRequest struct {
	ModelVersion string `json:"model_version,omitempty"`
	LookbackH    int    `json:"lookback_hours,omitempty"`
	WindowCount  int    `json:"window_count,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	cfg := s.monitorCfg
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !stderrors.Is(err, io.EOF) {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.ModelVersion != "" {
		cfg.ModelVersion = req.ModelVersion
	}
	if req.LookbackH > 0 {
		cfg.Lookback = time.Duration(req.LookbackH) * time.Hour
	}
	if req.WindowCount > 0 {
		cfg.WindowCount = req.WindowCount
	}

	s.runMu.Lock()
	report, err := s.runner.RunAnalysis(r.Context(), cfg)
	s.runMu.Unlock()
	if err != nil {
		switch {
		case errors.HasCode(err, errors.ErrCodeInsufficientData):
			s.jsonError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.HasCode(err, errors.ErrCodeInvalidConfiguration):
			s.jsonError(w, http.StatusBadRequest, err.Error())
		default:
			s.jsonError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.jsonResponse(w, http.StatusOK, report)
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()
	report, err := s.reportStore.LatestReport(ctx, r.URL.Query().Get("model_version"))
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load report: %v", err))
		return
	}
	if report == nil {
		s.jsonError(w, http.StatusNotFound, "no reports recorded")
		return
	}

	s.jsonResponse(w, http.StatusOK, report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit < 0 {
			s.jsonError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
	}

	ctx := r.Context()
	reports, err := s.reportStore.ReportHistory(ctx, r.URL.Query().Get("model_version"), limit)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list reports: %v", err))
		return
	}

	s.jsonResponse(w, http.StatusOK, reports)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
