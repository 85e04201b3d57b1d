// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/twin/internal/config"
	"github.com/jeranaias/twin/internal/model"
	"github.com/jeranaias/twin/internal/twin"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize bounds POST /api/chat bodies.
	MaxRequestBodySize = 64 * 1024

	// Version is the server version reported by /health.
	Version = "0.1.0"

	// ShutdownTimeout bounds graceful shutdown in Run.
	ShutdownTimeout = 10 * time.Second
)

// ============================================================================
// SERVER
// ============================================================================

// Server exposes the assistant proxy over HTTP.
type Server struct {
	cfg     config.ServerConfig
	proxy   *twin.Proxy
	router  *http.ServeMux
	limiter *RateLimiter
	logger  zerolog.Logger

	server *http.Server
}

// New creates a Server for the given proxy.
func New(cfg config.ServerConfig, proxy *twin.Proxy) *Server {
	s := &Server{
		cfg:     cfg,
		proxy:   proxy,
		router:  http.NewServeMux(),
		limiter: NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		logger:  zerolog.Nop(),
	}
	s.setupRoutes()
	return s
}

// WithLogger sets the logger for request and lifecycle lines.
func (s *Server) WithLogger(logger zerolog.Logger) *Server {
	s.logger = logger.With().Str("component", "server").Logger()
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /api/chat", s.handleChat)
	s.router.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(NewCORSConfig(s.cfg.AllowedOrigins)),
		RateLimitMiddleware(s.limiter, s.logger),
	)(s.router)
}

// ============================================================================
// HANDLERS
// ============================================================================

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, twin.MsgInvalidBody)
		return
	}

	reply, err := s.proxy.Handle(r.Context(), body)
	if err != nil {
		e := twin.Classify(err)
		writeError(w, e.Kind.Status(), e.Message)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Credential string `json:"credential"`
	Model      string `json:"model"`
}

// handleHealth handles GET /health. A missing credential reports
// "degraded" but still answers 200 so the process is seen as alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:     "ok",
		Version:    Version,
		Credential: "configured",
		Model:      s.proxy.Model(),
	}
	if !s.proxy.CredentialConfigured() {
		health.Status = "degraded"
		health.Credential = "missing"
	}
	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// LIFECYCLE
// ============================================================================

func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.server = s.httpServer()
	return s.serve(ln)
}

func (s *Server) serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Str("version", Version).Msg("SERVER_START")
	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Run listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	s.server = s.httpServer()
	errCh := make(chan error, 1)
	go func() { errCh <- s.serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("SERVER_SHUTDOWN")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.ErrorReply{Error: message})
}
