// Package api exposes the HTTP interface for the rankings service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courtside/rankings/internal/auth"
	"github.com/courtside/rankings/internal/scheduler"
	"github.com/courtside/rankings/internal/scraper"
	"github.com/courtside/rankings/internal/store"
	"github.com/courtside/rankings/internal/telemetry"
)

// SchedulerControl is the scheduler surface the API needs. The scheduler
// package's Scheduler satisfies it.
type SchedulerControl interface {
	TriggerNow(ctx context.Context) scraper.Outcome
	Jobs() []scheduler.JobInfo
	PendingRetry() (time.Time, bool)
	Running() bool
}

// Config controls server behavior.
type Config struct {
	// AuthEnabled gates the bearer-token middleware. Disabled is for local
	// development only.
	AuthEnabled bool
	// RequestTimeout bounds ordinary read requests. Admin update requests
	// get UpdateTimeout instead, since a cycle can legitimately take a
	// couple of minutes of browser waits.
	RequestTimeout time.Duration
	UpdateTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.UpdateTimeout <= 0 {
		c.UpdateTimeout = 5 * time.Minute
	}
	return c
}

// Server wires HTTP handlers to the store and the scheduler.
type Server struct {
	router   chi.Router
	store    store.Store
	sched    SchedulerControl
	verifier *auth.Verifier
	cfg      Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	st store.Store,
	sched SchedulerControl,
	verifier *auth.Verifier,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:    st,
		sched:    sched,
		verifier: verifier,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(s.cfg.RequestTimeout))
			if s.cfg.AuthEnabled {
				r.Use(s.verifier.Middleware)
			}
			r.Get("/rankings/players", s.listPlayers)
		})
		r.Group(func(r chi.Router) {
			if s.cfg.AuthEnabled {
				r.Use(s.verifier.AdminMiddleware)
			}
			r.With(timeoutMiddleware(s.cfg.UpdateTimeout)).
				Post("/admin/update", s.triggerUpdate)
			r.With(timeoutMiddleware(s.cfg.RequestTimeout)).
				Get("/admin/scheduler", s.schedulerStatus)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
