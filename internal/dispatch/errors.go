package dispatch

import (
	"errors"

	"github.com/ygrebnov/errorc"
)

const Namespace = "dispatch"

var (
	ErrNotYourTurn        = errors.New(Namespace + ": offer is held by another worker")
	ErrTooLate            = errors.New(Namespace + ": booking is no longer available")
	ErrAlreadyDispatching = errors.New(Namespace + ": booking is already being dispatched")
	ErrNotDispatchable    = errors.New(Namespace + ": booking cannot be dispatched in its current state")
	ErrUnknownJob         = errors.New(Namespace + ": no active dispatch for booking")
	ErrShuttingDown       = errors.New(Namespace + ": manager is shutting down")
)

func bookingErr(err error, bookingID string) error {
	return errorc.With(err, errorc.String("booking_id", bookingID))
}

func workerErr(err error, bookingID, workerID string) error {
	return errorc.With(err, errorc.String("booking_id", bookingID), errorc.String("worker_id", workerID))
}
