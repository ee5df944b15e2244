package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
)

// Server receives booking.created events from the booking service.
type Server struct {
	config     Config
	records    Records
	dispatcher Dispatcher
	logger     *slog.Logger
	server     *http.Server
}

// New creates a webhook server. Zero MaxBodySize and SignatureHeader take
// their defaults.
func New(config Config, records Records, d Dispatcher, logger *slog.Logger) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.SignatureHeader == "" {
		config.SignatureHeader = DefaultSignatureHeader
	}
	return &Server{
		config:     config,
		records:    records,
		dispatcher: d,
		logger:     logger,
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "path", s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post(s.config.Path, s.handleIntake)
	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if err := verifySignature(body, r.Header.Get(s.config.SignatureHeader), s.config.Secret); err != nil {
		s.logger.Warn("webhook signature rejected", "path", r.URL.Path, "header", s.config.SignatureHeader)
		s.respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	var ev IntakeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if ev.Event != EventBookingCreated {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported event %q", ev.Event))
		return
	}
	if ev.Booking.ID == "" || ev.Booking.CustomerID == "" {
		s.respondError(w, http.StatusBadRequest, "booking.id and booking.customer_id are required")
		return
	}
	for i, c := range ev.Candidates {
		if c.WorkerID == "" {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("candidates[%d].worker_id is required", i))
			return
		}
	}

	logger := s.logger.With("booking_id", ev.Booking.ID)
	resp := IntakeResponse{BookingID: ev.Booking.ID}

	existing, err := s.records.Get(ctx, ev.Booking.ID)
	switch {
	case errors.Is(err, booking.ErrNotFound):
		rec := ev.Booking
		rec.Status = booking.StatusPending
		rec.AssignedWorkerID = nil
		rec.History = nil
		if err := s.records.Create(ctx, &rec); err != nil {
			logger.Error("failed to store booking", "error", err)
			s.respondError(w, http.StatusInternalServerError, "failed to store booking")
			return
		}
		resp.Created = true
	case err != nil:
		logger.Error("failed to load booking", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load booking")
		return
	case existing.CustomerID != ev.Booking.CustomerID:
		logger.Warn("booking id already used by another customer")
		s.respondError(w, http.StatusConflict, "booking id conflict")
		return
	}

	err = s.dispatcher.Start(ctx, ev.Booking.ID, ev.Candidates)
	switch {
	case err == nil:
	case errors.Is(err, dispatch.ErrAlreadyDispatching):
		resp.Redelivered = true
	case errors.Is(err, dispatch.ErrNotDispatchable):
		s.respondError(w, http.StatusConflict, "booking is no longer dispatchable")
		return
	default:
		logger.Error("failed to start dispatch", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to start dispatch")
		return
	}

	logger.Info("booking accepted from webhook",
		"created", resp.Created,
		"candidates", len(ev.Candidates),
		"redelivered", resp.Redelivered,
	)
	s.respondJSON(w, http.StatusAccepted, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
