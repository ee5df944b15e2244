package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ay9334524-ux/mecfinder-backend/internal/auth"
	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
)

// Dispatcher is the subset of dispatch.Manager the API drives.
type Dispatcher interface {
	Start(ctx context.Context, bookingID string, candidates []booking.Candidate) error
	Accept(ctx context.Context, bookingID, workerID string) error
	Reject(ctx context.Context, bookingID, workerID, reason string) error
	Cancel(ctx context.Context, bookingID, reason string) error
	Get(bookingID string) (dispatch.JobView, bool)
	Active() []dispatch.JobView
}

// EventSource feeds the /events stream.
type EventSource interface {
	Subscribe(topics ...string) (<-chan events.Event, func())
	SnapshotSince(lastID int64, topics ...string) []events.Event
	Subscribers() int
}

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// KeepAlive is the SSE comment interval. Zero means 15s.
	KeepAlive time.Duration
}

// Server represents the HTTP API server
type Server struct {
	config     Config
	dispatcher Dispatcher
	records    dispatch.RecordStore
	events     EventSource
	verifier   TokenVerifier
	metrics    http.Handler
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
}

// New creates a new API server instance. metricsHandler may be nil, in which
// case /metrics is not mounted.
func New(config Config, d Dispatcher, records dispatch.RecordStore, ev EventSource, verifier TokenVerifier, metricsHandler http.Handler, logger *slog.Logger) *Server {
	if config.KeepAlive <= 0 {
		config.KeepAlive = 15 * time.Second
	}
	return &Server{
		config:     config,
		dispatcher: d,
		records:    records,
		events:     ev,
		verifier:   verifier,
		metrics:    metricsHandler,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     s.setupRoutes(),
		ReadTimeout: 10 * time.Second,
		// SSE streams stay open; the per-write deadline is left to the client.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/events", s.handleEvents)

		r.Route("/v1", func(r chi.Router) {
			r.With(s.requireRoles(auth.RoleService, auth.RoleAdmin)).Get("/dispatches", s.handleListDispatches)

			r.Route("/bookings/{bookingID}", func(r chi.Router) {
				r.Get("/", s.handleGetBooking)
				r.With(s.requireRoles(auth.RoleService, auth.RoleAdmin)).Post("/dispatch", s.handleStartDispatch)
				r.With(s.requireRoles(auth.RoleWorker)).Post("/accept", s.handleAccept)
				r.With(s.requireRoles(auth.RoleWorker)).Post("/reject", s.handleReject)
				r.With(s.requireRoles(auth.RoleCustomer, auth.RoleAdmin)).Post("/cancel", s.handleCancel)
			})
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
