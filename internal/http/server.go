// Package http exposes the ledger over a JSON API: registration, login,
// transaction create/delete and the dashboard read.
package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/YanRho/alky-wallet/internal/auth"
	"github.com/YanRho/alky-wallet/internal/ledger"
	"github.com/YanRho/alky-wallet/internal/log"
)

type contextKey string

// principalKey carries the authenticated principal email through the
// request context.
const principalKey contextKey = "principal"

// requestIDKey carries the per-request trace id.
const requestIDKey contextKey = "request_id"

// Server wires the handlers, middleware and lifecycle of the API.
type Server struct {
	http.Server

	ledger  *ledger.Service
	auth    *auth.Service
	logger  *log.Logger
	limiter *rateLimiter
	now     func() time.Time
}

// NewServer builds the API server listening on addr.
func NewServer(addr string, ledgerSvc *ledger.Service, authSvc *auth.Service, logger *log.Logger) *Server {
	s := &Server{
		ledger:  ledgerSvc,
		auth:    authSvc,
		logger:  logger.WithComponent(log.ComponentHTTP),
		limiter: newRateLimiter(),
		now:     time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/register", s.withRateLimit(s.handleRegister))
	mux.HandleFunc("POST /api/login", s.withRateLimit(s.handleLogin))
	mux.HandleFunc("POST /api/transactions", s.requireAuth(s.handleCreateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.requireAuth(s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/dashboard", s.requireAuth(s.handleDashboard))

	s.Server = http.Server{
		Addr:           addr,
		Handler:        s.withTrace(mux),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s
}

// Shutdown stops the listener and the rate limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withTrace tags every request with an id and logs start/completion.
func (s *Server) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", clientIP(r))

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.logger.InfoContext(ctx, "request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// requireAuth resolves the bearer token into a principal email. Requests
// without a valid token answer 401 before the handler runs.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}
		email, err := s.auth.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, email)
		next(w, r.WithContext(ctx))
	}
}

// withRateLimit caps per-IP request rates on the credential endpoints.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(w, r)
	}
}

// principal returns the authenticated email attached by requireAuth, or
// empty when the request carried none.
func principal(r *http.Request) string {
	email, _ := r.Context().Value(principalKey).(string)
	return email
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
