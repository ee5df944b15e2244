package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
)

// Arbiter settles acceptance with one conditional update against the
// booking record.
type Arbiter struct {
	records RecordStore
	logger  *slog.Logger
}

// NewArbiter returns an arbiter that decides acceptance through records.
func NewArbiter(records RecordStore, logger *slog.Logger) *Arbiter {
	return &Arbiter{records: records, logger: logger}
}

// TryAccept assigns bookingID to workerID if the record is still PENDING or
// SEARCHING with no assignee. It reports whether this call made the
// assignment. position is the 1-based queue position recorded in history.
func (a *Arbiter) TryAccept(ctx context.Context, bookingID, workerID string, position int) (bool, error) {
	won, err := a.records.CompareAndSet(ctx, booking.Transition{
		BookingID:         bookingID,
		From:              []booking.Status{booking.StatusPending, booking.StatusSearching},
		RequireUnassigned: true,
		To:                booking.StatusAccepted,
		AssignTo:          workerID,
	})
	if err != nil {
		return false, fmt.Errorf("conditional accept: %w", err)
	}
	if !won {
		return false, nil
	}

	err = a.records.AppendHistory(ctx, bookingID, booking.HistoryEntry{
		Action:   booking.ActionAccepted,
		WorkerID: workerID,
		Position: position,
	})
	if err != nil {
		// The assignment stands; only the audit trail is short.
		a.logger.Warn("failed to append accept history",
			"booking_id", bookingID, "worker_id", workerID, "position", position, "error", err)
	}
	return true, nil
}
