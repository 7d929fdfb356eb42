package http

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// middleware wraps the mux. Listed outermost first: throttling and CORS run
// before recovery so that rejected requests never reach a handler, and
// recovery wraps logging so a panicking handler still produces a log line.
func (s *Server) middleware(next http.Handler) http.Handler {
	h := next
	h = s.withRequestID(h)
	h = s.withRequestLog(h)
	h = s.withRecovery(h)
	if s.config.EnableCORS {
		h = s.withCORS(h)
	}
	if s.throttle != nil {
		h = s.withThrottle(h)
	}
	return h
}

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// withRequestID honours an incoming X-Request-ID and mints one otherwise.
// The ID is echoed in the response header and stored on the context for
// log correlation.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), contextKeyRequestID, id)))
	})
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"ip", clientIP(r),
			"request_id", requestIDFrom(r.Context()),
		)
	})
}

// withRecovery converts handler panics into 500 responses with a stack in
// the log, keeping the process alive.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("panic recovered",
					"error", v,
					"stack", string(debug.Stack()),
					"path", r.URL.Path,
					"request_id", requestIDFrom(r.Context()),
				)
				writeJSONError(w, http.StatusInternalServerError,
					"internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) withThrottle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.throttle.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests,
				"rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// statusRecorder captures the status code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// clientIP prefers proxy headers over the socket address, taking the first
// hop of X-Forwarded-For.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// PER-IP THROTTLE
// ══════════════════════════════════════════════════════════════════════════════

// ipThrottle is a fixed-window counter per client IP. Counters reset when
// their window ends; a background sweep evicts idle IPs so the map does not
// grow with one entry per client forever.
type ipThrottle struct {
	mu      sync.Mutex
	buckets map[string]*throttleBucket
	limit   int
	window  time.Duration
}

type throttleBucket struct {
	count    int
	windowAt time.Time
}

func newIPThrottle(limit int, window time.Duration) *ipThrottle {
	t := &ipThrottle{
		buckets: make(map[string]*throttleBucket),
		limit:   limit,
		window:  window,
	}
	go t.sweep()
	return t
}

// Allow reports whether the client may make another request in the current
// window, counting the request when it does.
func (t *ipThrottle) Allow(key string) bool {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.buckets[key]
	if b == nil || now.Sub(b.windowAt) >= t.window {
		t.buckets[key] = &throttleBucket{count: 1, windowAt: now}
		return true
	}
	if b.count >= t.limit {
		return false
	}
	b.count++
	return true
}

func (t *ipThrottle) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-2 * t.window)
		t.mu.Lock()
		for key, b := range t.buckets {
			if b.windowAt.Before(cutoff) {
				delete(t.buckets, key)
			}
		}
		t.mu.Unlock()
	}
}
