package dispatch

import (
	"math"
	"time"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
)

// Client-facing event types.
const (
	EventOffer          = "job:offer"
	EventOfferWithdrawn = "job:offer-withdrawn"
	EventQueueStatus    = "job:queue-status"
	EventAssigned       = "job:assigned"
	EventUnavailable    = "job:unavailable"
	EventCancelled      = "job:cancelled"
)

// Ops mirror event types.
const (
	OpsStarted   = "dispatch.started"
	OpsOffered   = "dispatch.offered"
	OpsAdvanced  = "dispatch.advanced"
	OpsAccepted  = "dispatch.accepted"
	OpsExhausted = "dispatch.exhausted"
	OpsCancelled = "dispatch.cancelled"
)

// Withdrawal reasons.
const (
	WithdrawnTimeout   = "timeout"
	WithdrawnPreempted = "preempted"
	WithdrawnCancelled = "cancelled"
)

// OfferPayload is sent to the one candidate holding the offer. Coordinates
// are approximate.
type OfferPayload struct {
	BookingID       string           `json:"booking_id"`
	OfferSeq        int64            `json:"offer_seq"`
	ServiceType     string           `json:"service_type"`
	VehicleType     string           `json:"vehicle_type,omitempty"`
	Location        booking.Location `json:"location"`
	EstimatedPayout float64          `json:"estimated_payout"`
	Currency        string           `json:"currency,omitempty"`
	DistanceKM      float64          `json:"distance_km"`
	TimeoutSeconds  int              `json:"timeout_seconds"`
	Position        int              `json:"position"`
	Total           int              `json:"total"`
}

// WithdrawnPayload tells a candidate its offer is no longer open.
type WithdrawnPayload struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

// QueueStatusPayload keeps the customer informed while offers rotate.
type QueueStatusPayload struct {
	BookingID            string `json:"booking_id"`
	Position             int    `json:"position"`
	Total                int    `json:"total"`
	EstimatedWaitSeconds int    `json:"estimated_wait_seconds"`
}

// AssignedPayload tells the customer who accepted.
type AssignedPayload struct {
	BookingID   string  `json:"booking_id"`
	WorkerID    string  `json:"worker_id"`
	DisplayName string  `json:"display_name,omitempty"`
	DistanceKM  float64 `json:"distance_km"`
}

// OutcomePayload carries job:unavailable and job:cancelled.
type OutcomePayload struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

// OpsPayload is the body of every dispatch.* event.
type OpsPayload struct {
	BookingID  string `json:"booking_id"`
	CustomerID string `json:"customer_id,omitempty"`
	WorkerID   string `json:"worker_id,omitempty"`
	Position   int    `json:"position,omitempty"`
	Total      int    `json:"total,omitempty"`
	Reason     string `json:"reason,omitempty"`
	OfferSeq   int64  `json:"offer_seq,omitempty"`
	Fallback   bool   `json:"fallback,omitempty"`
}

// summary is the part of the booking record shown to a candidate.
type summary struct {
	ServiceType     string
	VehicleType     string
	Location        booking.Location
	EstimatedPayout float64
	Currency        string
}

func summarize(rec *booking.Record) summary {
	return summary{
		ServiceType:     rec.ServiceType,
		VehicleType:     rec.VehicleType,
		Location:        approximate(rec.Location),
		EstimatedPayout: rec.EstimatedPayout,
		Currency:        rec.Currency,
	}
}

// approximate rounds coordinates to three decimals (about 100 m).
func approximate(l booking.Location) booking.Location {
	round := func(v float64) float64 { return math.Round(v*1000) / 1000 }
	return booking.Location{Lat: round(l.Lat), Lng: round(l.Lng), Address: l.Address}
}

type fanout struct {
	pub     Publisher
	timeout time.Duration
}

func (f fanout) offer(bookingID string, s summary, c booking.Candidate, seq int64, position, total int) {
	f.pub.Publish(events.WorkerTopic(c.WorkerID), EventOffer, OfferPayload{
		BookingID:       bookingID,
		OfferSeq:        seq,
		ServiceType:     s.ServiceType,
		VehicleType:     s.VehicleType,
		Location:        s.Location,
		EstimatedPayout: s.EstimatedPayout,
		Currency:        s.Currency,
		DistanceKM:      c.Distance,
		TimeoutSeconds:  int(f.timeout.Round(time.Second) / time.Second),
		Position:        position,
		Total:           total,
	})
}

func (f fanout) withdrawn(bookingID, workerID, reason string) {
	f.pub.Publish(events.WorkerTopic(workerID), EventOfferWithdrawn, WithdrawnPayload{
		BookingID: bookingID,
		Reason:    reason,
	})
}

// queueStatus estimates the wait as every candidate from position onward
// using its full window.
func (f fanout) queueStatus(bookingID, customerID string, position, total int) {
	remaining := total - position + 1
	f.pub.Publish(events.CustomerTopic(customerID), EventQueueStatus, QueueStatusPayload{
		BookingID:            bookingID,
		Position:             position,
		Total:                total,
		EstimatedWaitSeconds: int((time.Duration(remaining) * f.timeout).Seconds()),
	})
}

func (f fanout) assigned(bookingID, customerID string, c booking.Candidate) {
	f.pub.Publish(events.CustomerTopic(customerID), EventAssigned, AssignedPayload{
		BookingID:   bookingID,
		WorkerID:    c.WorkerID,
		DisplayName: c.DisplayName,
		DistanceKM:  c.Distance,
	})
}

func (f fanout) unavailable(bookingID, customerID, reason string) {
	f.pub.Publish(events.CustomerTopic(customerID), EventUnavailable, OutcomePayload{
		BookingID: bookingID,
		Reason:    reason,
	})
}

func (f fanout) cancelled(bookingID string, workers []booking.Candidate, reason string) {
	for _, c := range workers {
		f.pub.Publish(events.WorkerTopic(c.WorkerID), EventCancelled, OutcomePayload{
			BookingID: bookingID,
			Reason:    reason,
		})
	}
}

func (f fanout) ops(eventType string, p OpsPayload) {
	f.pub.Publish(events.OpsTopic, eventType, p)
}
