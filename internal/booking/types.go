// Package booking holds the external job record the dispatch engine
// resolves, along with its SQLite and MongoDB stores.
package booking

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusSearching         Status = "SEARCHING"
	StatusAccepted          Status = "ACCEPTED"
	StatusNoWorkerAvailable Status = "NO_WORKER_AVAILABLE"
	StatusCancelled         Status = "CANCELLED"
)

// Open reports whether a booking can still be assigned.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusSearching
}

// History actions.
const (
	ActionDispatchStarted = "dispatch_started"
	ActionAccepted        = "accepted"
	ActionExhausted       = "no_worker_available"
	ActionCancelled       = "cancelled"
)

var ErrNotFound = errors.New("booking not found")

type Location struct {
	Lat     float64 `json:"lat" bson:"lat"`
	Lng     float64 `json:"lng" bson:"lng"`
	Address string  `json:"address,omitempty" bson:"address,omitempty"`
}

// Candidate is one ranked worker. Slice order is dispatch priority.
type Candidate struct {
	WorkerID    string  `json:"worker_id" bson:"worker_id"`
	DisplayName string  `json:"display_name,omitempty" bson:"display_name,omitempty"`
	Distance    float64 `json:"distance_km" bson:"distance_km"`
}

type HistoryEntry struct {
	ID       string    `json:"id" bson:"id"`
	Action   string    `json:"action" bson:"action"`
	WorkerID string    `json:"worker_id,omitempty" bson:"worker_id,omitempty"`
	Position int       `json:"position,omitempty" bson:"position,omitempty"`
	Note     string    `json:"note,omitempty" bson:"note,omitempty"`
	At       time.Time `json:"at" bson:"at"`
}

type Record struct {
	ID               string         `json:"id" bson:"_id"`
	CustomerID       string         `json:"customer_id" bson:"customer_id"`
	ServiceType      string         `json:"service_type" bson:"service_type"`
	VehicleType      string         `json:"vehicle_type,omitempty" bson:"vehicle_type,omitempty"`
	Location         Location       `json:"location" bson:"location"`
	EstimatedPayout  float64        `json:"estimated_payout" bson:"estimated_payout"`
	Currency         string         `json:"currency,omitempty" bson:"currency,omitempty"`
	Status           Status         `json:"status" bson:"status"`
	AssignedWorkerID *string        `json:"assigned_worker_id" bson:"assigned_worker_id"`
	CreatedAt        time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" bson:"updated_at"`
	History          []HistoryEntry `json:"history,omitempty" bson:"history,omitempty"`
}

// Assignable reports whether the record would pass the accept precondition.
func (r *Record) Assignable() bool {
	return r.Status.Open() && r.AssignedWorkerID == nil
}

// Transition describes a conditional update. The update applies only when
// the stored status is one of From and, if RequireUnassigned is set, no
// worker is assigned yet.
type Transition struct {
	BookingID         string
	From              []Status
	RequireUnassigned bool
	To                Status
	// AssignTo sets assigned_worker_id when non-empty.
	AssignTo string
}

func (t Transition) validate() error {
	if t.BookingID == "" {
		return fmt.Errorf("booking id is empty")
	}
	if len(t.From) == 0 {
		return fmt.Errorf("transition has no source status")
	}
	if t.To == "" {
		return fmt.Errorf("transition has no target status")
	}
	return nil
}

func (t Transition) fromStrings() []string {
	out := make([]string, 0, len(t.From))
	for _, s := range t.From {
		out = append(out, string(s))
	}
	return out
}
