package api

import (
	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
)

// StartDispatchRequest is the body of POST /v1/bookings/{id}/dispatch.
type StartDispatchRequest struct {
	Candidates []booking.Candidate `json:"candidates"`
}

// ReasonRequest is the optional body of reject and cancel.
type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

// DispatchResponse reports the booking state after a dispatch action.
type DispatchResponse struct {
	BookingID string            `json:"booking_id"`
	Status    booking.Status    `json:"status"`
	Job       *dispatch.JobView `json:"job,omitempty"`
	Booking   *booking.Record   `json:"booking,omitempty"`
}

type DispatchListResponse struct {
	Dispatches []dispatch.JobView `json:"dispatches"`
}

// ErrorResponse is returned on errors. Code is a stable machine-readable
// reason for the 409s.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	ActiveDispatches int    `json:"active_dispatches"`
	Subscribers      int    `json:"subscribers"`
}
