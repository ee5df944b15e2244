package dispatch

import (
	"sync/atomic"
	"time"
)

// Stopper is the cancel handle returned by an AfterFunc.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f after d. Tests swap in a manual clock.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

const (
	timerArmed int32 = iota
	timerFired
	timerCancelled
)

// Timer is a single-shot countdown. Fire and Cancel race on one CAS, so
// exactly one of them wins and a cancelled timer never runs its callback.
type Timer struct {
	state atomic.Int32
	stop  Stopper
}

func startTimer(after AfterFunc, d time.Duration, fire func()) *Timer {
	t := &Timer{}
	t.stop = after(d, func() {
		if t.state.CompareAndSwap(timerArmed, timerFired) {
			fire()
		}
	})
	return t
}

// Cancel reports whether it stopped an armed timer.
func (t *Timer) Cancel() bool {
	if t == nil {
		return false
	}
	if !t.state.CompareAndSwap(timerArmed, timerCancelled) {
		return false
	}
	if t.stop != nil {
		t.stop.Stop()
	}
	return true
}
