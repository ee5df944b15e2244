package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ay9334524-ux/mecfinder-backend/internal/auth"
	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
)

const maxBodyBytes = 1 << 20

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:           "ok",
		UptimeSeconds:    int64(time.Since(s.startedAt).Seconds()),
		ActiveDispatches: len(s.dispatcher.Active()),
		Subscribers:      s.events.Subscribers(),
	})
}

// handleStartDispatch handles POST /v1/bookings/{bookingID}/dispatch.
func (s *Server) handleStartDispatch(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	var req StartDispatchRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for i, c := range req.Candidates {
		if strings.TrimSpace(c.WorkerID) == "" {
			s.writeError(w, http.StatusBadRequest, "candidates["+strconv.Itoa(i)+"].worker_id is required")
			return
		}
	}

	if err := s.dispatcher.Start(r.Context(), bookingID, req.Candidates); err != nil {
		s.writeDispatchError(w, err)
		return
	}

	resp := DispatchResponse{BookingID: bookingID}
	if view, ok := s.dispatcher.Get(bookingID); ok {
		resp.Status = booking.StatusSearching
		resp.Job = &view
	} else if rec, err := s.records.Get(r.Context(), bookingID); err == nil {
		// No candidates, or the dispatch already ended.
		resp.Status = rec.Status
	}
	respondJSON(w, http.StatusAccepted, resp)
}

// handleAccept handles POST /v1/bookings/{bookingID}/accept. The worker is
// always the token subject.
func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")
	principal, _ := auth.PrincipalFromContext(r.Context())

	if err := s.dispatcher.Accept(r.Context(), bookingID, principal.Subject); err != nil {
		s.writeDispatchError(w, err)
		return
	}

	resp := DispatchResponse{BookingID: bookingID, Status: booking.StatusAccepted}
	if rec, err := s.records.Get(r.Context(), bookingID); err == nil {
		resp.Booking = rec
	} else {
		s.logger.Warn("accepted booking could not be reloaded", "booking_id", bookingID, "error", err)
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleReject handles POST /v1/bookings/{bookingID}/reject. Stale rejects
// succeed without effect.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req ReasonRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.dispatcher.Reject(r.Context(), bookingID, principal.Subject, req.Reason); err != nil {
		s.writeDispatchError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCancel handles POST /v1/bookings/{bookingID}/cancel. The record is
// moved to CANCELLED with the same conditional update the arbiter uses, so a
// cancel racing an accept has exactly one winner. The live dispatch, if this
// process holds it, is torn down afterwards.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req ReasonRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := s.records.Get(r.Context(), bookingID)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	if principal.Role == auth.RoleCustomer && rec.CustomerID != principal.Subject {
		s.writeError(w, http.StatusNotFound, "booking not found")
		return
	}

	moved, err := s.records.CompareAndSet(r.Context(), booking.Transition{
		BookingID:         bookingID,
		From:              []booking.Status{booking.StatusPending, booking.StatusSearching},
		RequireUnassigned: true,
		To:                booking.StatusCancelled,
	})
	if err != nil {
		s.logger.Error("cancel update failed", "booking_id", bookingID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to cancel booking")
		return
	}
	if !moved {
		writeCodedError(w, http.StatusConflict, "too_late", "booking can no longer be cancelled")
		return
	}

	note := req.Reason
	if note == "" {
		note = "cancelled by " + string(principal.Role)
	}
	if err := s.records.AppendHistory(r.Context(), bookingID, booking.HistoryEntry{
		Action: booking.ActionCancelled,
		Note:   note,
	}); err != nil {
		s.logger.Warn("failed to append cancel history", "booking_id", bookingID, "error", err)
	}

	if err := s.dispatcher.Cancel(r.Context(), bookingID, req.Reason); err != nil && !errors.Is(err, dispatch.ErrUnknownJob) {
		s.logger.Warn("failed to stop dispatch after cancel", "booking_id", bookingID, "error", err)
	}

	s.logger.Info("booking cancelled", "booking_id", bookingID, "by", principal.Subject, "role", principal.Role)
	respondJSON(w, http.StatusOK, DispatchResponse{BookingID: bookingID, Status: booking.StatusCancelled})
}

// handleGetBooking handles GET /v1/bookings/{bookingID}. Customers see their
// own bookings and workers see the bookings assigned to them.
func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")
	principal, _ := auth.PrincipalFromContext(r.Context())

	rec, err := s.records.Get(r.Context(), bookingID)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	if !canRead(principal, rec) {
		s.writeError(w, http.StatusNotFound, "booking not found")
		return
	}

	resp := DispatchResponse{BookingID: bookingID, Status: rec.Status, Booking: rec}
	if principal.Is(auth.RoleService, auth.RoleAdmin) {
		if view, ok := s.dispatcher.Get(bookingID); ok {
			resp.Job = &view
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func canRead(p auth.Principal, rec *booking.Record) bool {
	switch p.Role {
	case auth.RoleService, auth.RoleAdmin:
		return true
	case auth.RoleCustomer:
		return rec.CustomerID == p.Subject
	case auth.RoleWorker:
		return rec.AssignedWorkerID != nil && *rec.AssignedWorkerID == p.Subject
	}
	return false
}

// handleListDispatches handles GET /v1/dispatches.
func (s *Server) handleListDispatches(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, DispatchListResponse{Dispatches: s.dispatcher.Active()})
}

// writeDispatchError maps engine errors onto HTTP statuses.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrNotYourTurn):
		writeCodedError(w, http.StatusConflict, "not_your_turn", err.Error())
	case errors.Is(err, dispatch.ErrTooLate):
		writeCodedError(w, http.StatusConflict, "too_late", err.Error())
	case errors.Is(err, dispatch.ErrAlreadyDispatching):
		writeCodedError(w, http.StatusConflict, "already_dispatching", err.Error())
	case errors.Is(err, dispatch.ErrNotDispatchable):
		writeCodedError(w, http.StatusConflict, "not_dispatchable", err.Error())
	case errors.Is(err, booking.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, dispatch.ErrShuttingDown):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("dispatch request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes an optional JSON body.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeCodedError(w http.ResponseWriter, statusCode int, code, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
