package dispatch

import (
	"fmt"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
)

// Cursor is an ordered candidate list with a forward-only position.
// Position == Len means exhausted.
type Cursor struct {
	candidates []booking.Candidate
	pos        int
}

// NewCursor copies candidates and starts at pos, which may equal
// len(candidates) for a job that was exhausted before a crash.
func NewCursor(candidates []booking.Candidate, pos int) (*Cursor, error) {
	if pos < 0 || pos > len(candidates) {
		return nil, fmt.Errorf("cursor position %d out of range [0,%d]", pos, len(candidates))
	}
	for i, c := range candidates {
		if c.WorkerID == "" {
			return nil, fmt.Errorf("candidate %d has no worker id", i)
		}
	}
	cp := make([]booking.Candidate, len(candidates))
	copy(cp, candidates)
	return &Cursor{candidates: cp, pos: pos}, nil
}

// Current returns the candidate holding the offer, if any.
func (c *Cursor) Current() (booking.Candidate, bool) {
	if c.Exhausted() {
		return booking.Candidate{}, false
	}
	return c.candidates[c.pos], true
}

// Holds reports whether workerID is the current candidate.
func (c *Cursor) Holds(workerID string) bool {
	cur, ok := c.Current()
	return ok && cur.WorkerID == workerID
}

// Position is the 0-based index of the current candidate.
func (c *Cursor) Position() int   { return c.pos }
func (c *Cursor) Len() int        { return len(c.candidates) }
func (c *Cursor) Exhausted() bool { return c.pos >= len(c.candidates) }

// Advance moves to the next candidate. It never moves past Len.
func (c *Cursor) Advance() bool {
	if c.Exhausted() {
		return false
	}
	c.pos++
	return true
}

// Upcoming returns the candidates after the current one, which have not been
// offered yet.
func (c *Cursor) Upcoming() []booking.Candidate {
	return c.from(c.pos + 1)
}

// Remaining returns the current candidate and everything after it.
func (c *Cursor) Remaining() []booking.Candidate {
	return c.from(c.pos)
}

func (c *Cursor) from(i int) []booking.Candidate {
	if i >= len(c.candidates) {
		return nil
	}
	out := make([]booking.Candidate, len(c.candidates)-i)
	copy(out, c.candidates[i:])
	return out
}

// Candidates returns a copy of the full list, in dispatch order.
func (c *Cursor) Candidates() []booking.Candidate {
	return c.from(0)
}
