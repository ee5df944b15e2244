package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/state"
)

// Recovery decisions for a persisted snapshot.
const (
	RecoveryResume  = "resume"
	RecoveryDiscard = "discard"
	RecoveryExhaust = "exhaust"
	RecoverySkip    = "skip"
	RecoveryFailed  = "failed"
)

// RecoveryDecision is what recovery does (or would do) with one snapshot.
type RecoveryDecision struct {
	BookingID string         `json:"booking_id"`
	Cursor    int            `json:"cursor"`
	Total     int            `json:"total"`
	Status    booking.Status `json:"status,omitempty"`
	Action    string         `json:"action"`
	Error     string         `json:"error,omitempty"`
}

// RecoveryReport summarises one recovery scan.
type RecoveryReport struct {
	Scanned   int                `json:"scanned"`
	Resumed   int                `json:"resumed"`
	Discarded int                `json:"discarded"`
	Exhausted int                `json:"exhausted"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
	Decisions []RecoveryDecision `json:"decisions"`
}

func (r *RecoveryReport) add(d RecoveryDecision) {
	r.Decisions = append(r.Decisions, d)
	switch d.Action {
	case RecoveryResume:
		r.Resumed++
	case RecoveryDiscard:
		r.Discarded++
	case RecoveryExhaust:
		r.Exhausted++
	case RecoverySkip:
		r.Skipped++
	default:
		r.Failed++
	}
}

// classify decides a snapshot's fate from the authoritative booking record.
func (m *Manager) classify(ctx context.Context, snap state.Snapshot) (RecoveryDecision, *booking.Record) {
	d := RecoveryDecision{BookingID: snap.JobID, Cursor: snap.Cursor, Total: len(snap.Candidates)}

	if m.lookup(snap.JobID) != nil {
		d.Action = RecoverySkip
		return d, nil
	}

	ioCtx, cancel := m.ioContext(ctx)
	rec, err := m.records.Get(ioCtx, snap.JobID)
	cancel()
	if errors.Is(err, booking.ErrNotFound) {
		d.Action = RecoveryDiscard
		return d, nil
	}
	if err != nil {
		d.Action = RecoveryFailed
		d.Error = err.Error()
		return d, nil
	}
	d.Status = rec.Status

	switch {
	case rec.Status != booking.StatusSearching || rec.AssignedWorkerID != nil:
		d.Action = RecoveryDiscard
	case snap.Cursor >= len(snap.Candidates):
		d.Action = RecoveryExhaust
	default:
		d.Action = RecoveryResume
	}
	return d, rec
}

// PlanRecovery reports what Recover would do without changing anything.
func (m *Manager) PlanRecovery(ctx context.Context) (RecoveryReport, error) {
	return m.scan(ctx, false)
}

// Recover resumes every snapshot whose booking is still SEARCHING at its
// persisted cursor, re-offering to the same candidate. Candidates before the
// cursor are never offered again. Other snapshots are discarded.
func (m *Manager) Recover(ctx context.Context) (RecoveryReport, error) {
	return m.scan(ctx, true)
}

func (m *Manager) scan(ctx context.Context, apply bool) (RecoveryReport, error) {
	var report RecoveryReport

	ioCtx, cancel := m.ioContext(ctx)
	snaps, err := m.state.ListSnapshots(ioCtx)
	cancel()
	if err != nil {
		return report, fmt.Errorf("list snapshots: %w", err)
	}
	report.Scanned = len(snaps)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.RecoveryConcurrency)
	for _, snap := range snaps {
		g.Go(func() error {
			d, rec := m.classify(gctx, snap)
			if apply {
				d = m.applyRecovery(gctx, snap, d, rec)
			}
			mu.Lock()
			report.add(d)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	sort.Slice(report.Decisions, func(a, b int) bool {
		return report.Decisions[a].BookingID < report.Decisions[b].BookingID
	})

	m.logger.Info("recovery scan complete",
		"apply", apply, "scanned", report.Scanned, "resumed", report.Resumed,
		"discarded", report.Discarded, "exhausted", report.Exhausted,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (m *Manager) applyRecovery(ctx context.Context, snap state.Snapshot, d RecoveryDecision, rec *booking.Record) RecoveryDecision {
	logger := m.logger.With("booking_id", snap.JobID)

	switch d.Action {
	case RecoveryDiscard:
		m.clearState(ctx, snap.JobID)
		m.metrics.Recovered("discarded")
		logger.Info("discarded stale dispatch snapshot", "status", d.Status)

	case RecoveryExhaust:
		m.clearState(ctx, snap.JobID)
		m.exhaust(ctx, snap.JobID, rec.CustomerID, ReasonExhausted)
		m.metrics.Recovered("exhausted")

	case RecoveryResume:
		cur, err := NewCursor(snap.Candidates, snap.Cursor)
		if err != nil {
			d.Action, d.Error = RecoveryFailed, err.Error()
			break
		}
		customerID := snap.CustomerID
		if customerID == "" {
			customerID = rec.CustomerID
		}
		j := &job{
			bookingID:  snap.JobID,
			customerID: customerID,
			summary:    summarize(rec),
			cursor:     cur,
			startedAt:  snap.StartedAt,
		}
		j.mu.Lock()
		if err := m.register(j); err != nil {
			j.mu.Unlock()
			d.Action = RecoverySkip
			if !errors.Is(err, ErrAlreadyDispatching) {
				d.Action, d.Error = RecoveryFailed, err.Error()
			}
			break
		}
		logger.Info("resuming dispatch", "cursor", snap.Cursor, "total", cur.Len())
		m.saveSnapshotLocked(ctx, j)
		m.offerLocked(ctx, j)
		j.mu.Unlock()
		m.metrics.Recovered("resumed")
	}

	if d.Action == RecoveryFailed {
		m.metrics.Recovered("failed")
		logger.Warn("failed to recover dispatch", "error", d.Error)
	}
	return d
}
