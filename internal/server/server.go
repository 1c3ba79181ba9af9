// Package server exposes document upload, listing, download, deletion and
// streamed question answering over HTTP. Every /api/documents and /api/chat
// route is scoped to the owner named by the caller's bearer token.
// The server is started by the `docqa serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docqa-go/internal/logging"
)

const (
	defaultLocalOwner     = "local"
	defaultMaxUploadBytes = 32 << 20
)

// New constructs a Server from its collaborators and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Ingester == nil || deps.Extractor == nil || deps.Deleter == nil ||
		deps.Blobs == nil || deps.Documents == nil || deps.Chat == nil {
		return nil, fmt.Errorf("server: all dependencies are required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ChatTimeout > 0 && cfg.WriteTimeout <= cfg.ChatTimeout {
		cfg.WriteTimeout = cfg.ChatTimeout + 30*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.LocalOwner == "" {
		cfg.LocalOwner = defaultLocalOwner
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		deps:    deps,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.JWTSecret == "" {
		s.log.Warn("auth disabled: DOCQA_JWT_SECRET is not set, every request acts as the local owner",
			slog.String("owner", cfg.LocalOwner),
		)
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stop

	mux := http.NewServeMux()
	s.route(mux, "POST /api/documents", "upload", rl, s.handleUpload)
	s.route(mux, "GET /api/documents", "list", nil, s.handleList)
	s.route(mux, "GET /api/documents/{id}", "download", nil, s.handleDownload)
	s.route(mux, "GET /api/documents/{id}/text", "text", nil, s.handleText)
	s.route(mux, "DELETE /api/documents/{id}", "delete", nil, s.handleDelete)
	s.route(mux, "POST /api/chat", "chat", rl, s.handleChat)
	mux.Handle("GET /api/health", s.metrics.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.metrics.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// route registers an owner-scoped handler. rl, when non-nil, rate-limits
// the route per caller.
func (s *Server) route(mux *http.ServeMux, pattern, name string, rl *rateLimiter, h http.HandlerFunc) {
	var handler http.Handler = h
	if rl != nil {
		handler = rl.middleware(handler)
	}
	handler = authMiddleware(s.cfg.JWTSecret, s.cfg.LocalOwner, handler)
	mux.Handle(pattern, s.metrics.instrument(name, handler))
}

// Handler returns the root handler, including request logging.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	defer s.stopRL()

	go func() {
		s.log.Info("docqa server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("docqa server stopped")
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}
