// Package state is the TTL-bounded mirror of in-flight dispatches used for
// crash recovery, plus the transient "current offer" markers.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
)

var ErrCorrupt = errors.New("state entry failed checksum")

// Snapshot is enough to rebuild a dispatch job at its persisted cursor.
type Snapshot struct {
	JobID      string              `json:"job_id"`
	CustomerID string              `json:"customer_id"`
	Candidates []booking.Candidate `json:"candidates"`
	Cursor     int                 `json:"cursor"`
	StartedAt  time.Time           `json:"started_at"`
	SavedAt    time.Time           `json:"saved_at"`
}

func (s Snapshot) Validate() error {
	if s.JobID == "" {
		return fmt.Errorf("snapshot job id is empty")
	}
	if len(s.Candidates) == 0 {
		return fmt.Errorf("snapshot %q has no candidates", s.JobID)
	}
	if s.Cursor < 0 || s.Cursor > len(s.Candidates) {
		return fmt.Errorf("snapshot %q cursor %d out of range [0,%d]", s.JobID, s.Cursor, len(s.Candidates))
	}
	return nil
}

// OfferMarker names the worker currently holding the exclusive offer.
type OfferMarker struct {
	JobID       string    `json:"job_id"`
	WorkerID    string    `json:"worker_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Distance    float64   `json:"distance_km"`
	Position    int       `json:"position"`
	Total       int       `json:"total"`
	Seq         int64     `json:"seq"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// DefaultSeqRetention bounds how long an offer sequence counter outlives its
// last increment.
const DefaultSeqRetention = 24 * time.Hour
