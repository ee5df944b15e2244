package webhook

import (
	"context"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
)

// Records is the slice of the booking store the intake needs.
type Records interface {
	Get(ctx context.Context, bookingID string) (*booking.Record, error)
	Create(ctx context.Context, rec *booking.Record) error
}

// Dispatcher starts dispatch for a stored booking.
type Dispatcher interface {
	Start(ctx context.Context, bookingID string, candidates []booking.Candidate) error
}

// Config holds webhook server configuration.
type Config struct {
	Listen string
	// Path is the URL path the booking service posts to.
	Path            string
	Secret          string
	SignatureHeader string
	MaxBodySize     int64
}

// EventBookingCreated is the only event type the intake accepts.
const EventBookingCreated = "booking.created"

// IntakeEvent is the signed body posted by the booking service.
type IntakeEvent struct {
	Event      string              `json:"event"`
	Booking    booking.Record      `json:"booking"`
	Candidates []booking.Candidate `json:"candidates"`
}

// IntakeResponse is the JSON response for an accepted event.
type IntakeResponse struct {
	BookingID string `json:"booking_id"`
	Created   bool   `json:"created"`
	// Redelivered is set when dispatch was already running for the booking.
	Redelivered bool `json:"redelivered,omitempty"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	DefaultMaxBodySize     = 1048576 // 1 MB
	DefaultSignatureHeader = "X-Mecfinder-Signature"
)
