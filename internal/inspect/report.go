// Package inspect renders one booking's dispatch picture for operators: the
// authoritative record, the persisted dispatch snapshot and the live offer.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
	"github.com/ay9334524-ux/mecfinder-backend/internal/state"
)

// Candidate states in a report.
const (
	CandidatePassed   = "passed"
	CandidateOffered  = "offered"
	CandidateCurrent  = "current"
	CandidateUpcoming = "upcoming"
)

// Report is the structured JSON representation of an inspect report.
type Report struct {
	BookingID        string                 `json:"booking_id"`
	CustomerID       string                 `json:"customer_id"`
	ServiceType      string                 `json:"service_type,omitempty"`
	Status           booking.Status         `json:"status"`
	AssignedWorkerID string                 `json:"assigned_worker_id,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	Dispatch         *DispatchState         `json:"dispatch,omitempty"`
	Offer            *state.OfferMarker     `json:"offer,omitempty"`
	History          []booking.HistoryEntry `json:"history"`
}

// DispatchState is the persisted snapshot, if one is still alive.
type DispatchState struct {
	Cursor     int         `json:"cursor"`
	Total      int         `json:"total"`
	StartedAt  time.Time   `json:"started_at"`
	SavedAt    time.Time   `json:"saved_at"`
	Candidates []Candidate `json:"candidates"`
}

type Candidate struct {
	Position    int     `json:"position"`
	WorkerID    string  `json:"worker_id"`
	DisplayName string  `json:"display_name,omitempty"`
	Distance    float64 `json:"distance_km"`
	State       string  `json:"state"`
}

// Gather reads everything known about bookingID. A missing record is an
// error; a missing snapshot or offer is not.
func Gather(ctx context.Context, records dispatch.RecordStore, st dispatch.StateStore, bookingID string) (*Report, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, fmt.Errorf("booking id is required")
	}

	rec, err := records.Get(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	report := &Report{
		BookingID:   rec.ID,
		CustomerID:  rec.CustomerID,
		ServiceType: rec.ServiceType,
		Status:      rec.Status,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		History:     rec.History,
	}
	if rec.AssignedWorkerID != nil {
		report.AssignedWorkerID = *rec.AssignedWorkerID
	}
	if report.History == nil {
		report.History = []booking.HistoryEntry{}
	}

	offer, err := st.GetOffer(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load offer marker: %w", err)
	}
	report.Offer = offer

	snaps, err := st.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dispatch snapshots: %w", err)
	}
	for _, snap := range snaps {
		if snap.JobID == bookingID {
			report.Dispatch = dispatchState(snap, offer)
			break
		}
	}
	return report, nil
}

func dispatchState(snap state.Snapshot, offer *state.OfferMarker) *DispatchState {
	ds := &DispatchState{
		Cursor:     snap.Cursor,
		Total:      len(snap.Candidates),
		StartedAt:  snap.StartedAt,
		SavedAt:    snap.SavedAt,
		Candidates: make([]Candidate, 0, len(snap.Candidates)),
	}
	for i, c := range snap.Candidates {
		row := Candidate{
			Position:    i + 1,
			WorkerID:    c.WorkerID,
			DisplayName: c.DisplayName,
			Distance:    c.Distance,
		}
		switch {
		case i < snap.Cursor:
			row.State = CandidatePassed
		case i == snap.Cursor && offer != nil && offer.WorkerID == c.WorkerID:
			row.State = CandidateOffered
		case i == snap.Cursor:
			row.State = CandidateCurrent
		default:
			row.State = CandidateUpcoming
		}
		ds.Candidates = append(ds.Candidates, row)
	}
	return ds
}

// Render returns a terminal-friendly report.
func Render(r *Report, now time.Time) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Booking Report\n")
	fmt.Fprintf(&out, "Booking ID  : %s\n", r.BookingID)
	fmt.Fprintf(&out, "Customer    : %s\n", r.CustomerID)
	fmt.Fprintf(&out, "Service     : %s\n", renderUnset(r.ServiceType, "<none>"))
	fmt.Fprintf(&out, "Status      : %s\n", r.Status)
	fmt.Fprintf(&out, "Assigned to : %s\n", renderUnset(r.AssignedWorkerID, "<nobody>"))
	fmt.Fprintf(&out, "\n")

	if r.Dispatch == nil {
		fmt.Fprintf(&out, "Dispatch    : <no live snapshot>\n")
	} else {
		d := r.Dispatch
		fmt.Fprintf(&out, "Dispatch    : position %d of %d, running %s\n",
			min(d.Cursor+1, d.Total), d.Total, now.Sub(d.StartedAt).Truncate(time.Second))
		for _, c := range d.Candidates {
			name := c.WorkerID
			if c.DisplayName != "" {
				name = fmt.Sprintf("%s (%s)", c.WorkerID, c.DisplayName)
			}
			fmt.Fprintf(&out, "  [%d] %-30s %6.2f km  %s\n", c.Position, name, c.Distance, c.State)
		}
	}
	if r.Offer != nil {
		fmt.Fprintf(&out, "Offer       : %s (seq %d), expires in %s\n",
			r.Offer.WorkerID, r.Offer.Seq, r.Offer.ExpiresAt.Sub(now).Truncate(time.Second))
	}
	fmt.Fprintf(&out, "\n")

	if len(r.History) == 0 {
		fmt.Fprintf(&out, "History     : <none>\n")
	} else {
		fmt.Fprintf(&out, "History     :\n")
		for _, h := range r.History {
			line := fmt.Sprintf("  %s  %s", h.At.UTC().Format(time.RFC3339), h.Action)
			if h.WorkerID != "" {
				line += " worker=" + h.WorkerID
			}
			if h.Position > 0 {
				line += fmt.Sprintf(" position=%d", h.Position)
			}
			if h.Note != "" {
				line += " note=" + h.Note
			}
			fmt.Fprintln(&out, line)
		}
	}
	return out.String()
}

// RenderJSON returns the machine-readable report.
func RenderJSON(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func renderUnset(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
