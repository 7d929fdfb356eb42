// Package http implements the REST API for the Chrono Performance Hub.
// The API is read-only: leaderboards, achievements, and health probes.
// Activity ingestion happens in the worker, not here.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chrono-hub/chrono-performance-hub/internal/application/query"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/achievement"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the listener and middleware settings of the API server.
type Config struct {
	// Host - bind address (default "0.0.0.0").
	Host string

	// Port - listen port (default 8080).
	Port int

	// ReadTimeout - limit on reading a full request.
	ReadTimeout time.Duration

	// WriteTimeout - limit on writing a response.
	WriteTimeout time.Duration

	// IdleTimeout - limit on keep-alive connections between requests.
	IdleTimeout time.Duration

	// MaxHeaderBytes - cap on request header size.
	MaxHeaderBytes int

	// EnableCORS - whether browser clients may call the API cross-origin.
	EnableCORS bool

	// AllowedOrigins - origins allowed by CORS; "*" allows any.
	AllowedOrigins []string

	// RateLimitPerMinute - per-IP request budget, 0 disables limiting.
	RateLimitPerMinute int
}

// DefaultConfig returns settings suitable for local runs and tests.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 100,
	}
}

// Address renders the host:port pair the server binds to.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// HealthStatus describes the health of the server's dependencies.
type HealthStatus struct {
	Healthy    bool              `json:"healthy"`
	Ready      bool              `json:"ready"`
	Message    string            `json:"message,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// HealthChecker reports dependency health for probes.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Dependencies lists everything the handlers need. A nil handler makes its
// route answer 501 instead of failing at startup, which keeps partial
// deployments observable.
type Dependencies struct {
	// GetLeaderboardHandler serves GET /api/v1/leaderboard.
	GetLeaderboardHandler *query.GetLeaderboardHandler

	// GetUserRankHandler serves GET /api/v1/users/{id}/rank.
	GetUserRankHandler *query.GetUserRankHandler

	// GetUserSummaryHandler serves GET /api/v1/users/{id}/summary.
	GetUserSummaryHandler *query.GetUserSummaryHandler

	// Achievements serves GET /api/v1/users/{id}/achievements.
	Achievements achievement.Repository

	// Logger for request and error logging.
	Logger *slog.Logger

	// HealthChecker backs /health and /ready (optional).
	HealthChecker HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP front of the hub. Routing uses the standard mux with
// method patterns; cross-cutting concerns live in the middleware chain.
type Server struct {
	config   Config
	deps     Dependencies
	inner    *http.Server
	mux      *http.ServeMux
	logger   *slog.Logger
	throttle *ipThrottle

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer wires routes, middleware and timeouts into a ready-to-start server.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		mux:    http.NewServeMux(),
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if config.RateLimitPerMinute > 0 {
		s.throttle = newIPThrottle(config.RateLimitPerMinute, time.Minute)
	}

	s.registerRoutes()

	s.inner = &http.Server{
		Addr:           config.Address(),
		Handler:        s.middleware(s.mux),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

func (s *Server) registerRoutes() {
	// Probes. /healthz is the Kubernetes-style alias of /health.
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.HandleFunc("GET /live", s.handleLive)
	s.mux.HandleFunc("GET /", s.handleRoot)

	s.mux.HandleFunc("GET /api/v1/leaderboard", s.handleGetLeaderboard)
	s.mux.HandleFunc("GET /api/v1/users/{id}/rank", s.handleGetUserRank)
	s.mux.HandleFunc("GET /api/v1/users/{id}/summary", s.handleGetUserSummary)
	s.mux.HandleFunc("GET /api/v1/users/{id}/achievements", s.handleGetUserAchievements)
}

// Handler returns the mux with the full middleware chain applied. Tests mount
// this on httptest servers instead of binding a port.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens and serves until Shutdown. A second Start on a running
// server is an error.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("http: server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "address", s.config.Address())

	if err := s.inner.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: serve: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The returned channel delivers the
// serve error, if any, and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests until ctx expires. Calling it on a
// stopped server is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.inner.Shutdown(ctx)
}

// Uptime reports how long the server has been serving, zero when stopped.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address returns the configured bind address.
func (s *Server) Address() string {
	return s.config.Address()
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope every endpoint answers with.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError carries a machine-readable code alongside the human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta is the envelope's timestamp and API version block.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

func respond(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	respond(w, status, JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    &ResponseMeta{Timestamp: time.Now().UTC(), Version: "v1"},
	})
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	respond(w, status, JSONResponse{
		Error: &APIError{Code: code, Message: message},
		Meta:  &ResponseMeta{Timestamp: time.Now().UTC()},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY PARAMETERS
// ══════════════════════════════════════════════════════════════════════════════

func getQueryParam(r *http.Request, key, defaultValue string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return defaultValue
}

// getQueryParamInt falls back to the default on absent or malformed values.
// Range checks belong to the query's own validation.
func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}
