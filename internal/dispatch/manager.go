package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/metrics"
	"github.com/ay9334524-ux/mecfinder-backend/internal/state"
)

// Outcome reasons carried by job:unavailable and job:cancelled.
const (
	ReasonExhausted         = "no_worker_available"
	ReasonNoCandidates      = "no_candidates"
	ReasonAssigned          = "assigned_to_another_worker"
	ReasonResolvedElsewhere = "booking_resolved"
)

// Config tunes a Manager. Zero values take the service defaults.
type Config struct {
	OfferTimeout        time.Duration
	SnapshotTTL         time.Duration
	StoreTimeout        time.Duration
	RecoveryConcurrency int

	// AfterFunc and Now default to the wall clock.
	AfterFunc AfterFunc
	Now       func() time.Time
}

func (c *Config) applyDefaults() {
	if c.OfferTimeout <= 0 {
		c.OfferTimeout = 10 * time.Second
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = 10 * time.Minute
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.RecoveryConcurrency <= 0 {
		c.RecoveryConcurrency = 4
	}
	if c.AfterFunc == nil {
		c.AfterFunc = realAfterFunc
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

type job struct {
	mu sync.Mutex

	bookingID  string
	customerID string
	summary    summary
	cursor     *Cursor
	startedAt  time.Time
	timer      *Timer
	offerSeq   int64
	gen        uint64
	// done is set once the job has left the table.
	done bool
}

// stopTimerLocked cancels the live timer and invalidates any callback that
// already fired but has not yet taken the job lock.
func (j *job) stopTimerLocked() {
	j.timer.Cancel()
	j.timer = nil
	j.gen++
}

// JobView is a read-only copy of an active dispatch.
type JobView struct {
	BookingID     string            `json:"booking_id"`
	CustomerID    string            `json:"customer_id"`
	Position      int               `json:"position"`
	Total         int               `json:"total"`
	CurrentWorker booking.Candidate `json:"current_worker"`
	OfferSeq      int64             `json:"offer_seq"`
	StartedAt     time.Time         `json:"started_at"`
}

// Manager owns the in-memory table of active dispatch jobs.
type Manager struct {
	cfg     Config
	records RecordStore
	state   StateStore
	arbiter *Arbiter
	fan     fanout
	metrics *metrics.Collector
	logger  *slog.Logger

	mu     sync.RWMutex
	jobs   map[string]*job
	closed bool
}

// NewManager returns an empty Manager. m may be nil.
func NewManager(cfg Config, records RecordStore, st StateStore, pub Publisher, m *metrics.Collector, logger *slog.Logger) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:     cfg,
		records: records,
		state:   st,
		arbiter: NewArbiter(records, logger),
		fan:     fanout{pub: pub, timeout: cfg.OfferTimeout},
		metrics: m,
		logger:  logger,
		jobs:    make(map[string]*job),
	}
}

// ioContext bounds a store call. Store writes outlive the caller's request
// so a client disconnect cannot leave a half-applied advance.
func (m *Manager) ioContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.cfg.StoreTimeout)
}

func (m *Manager) lookup(bookingID string) *job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[bookingID]
}

// register adds j to the table. The caller holds j.mu.
func (m *Manager) register(j *job) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	if _, exists := m.jobs[j.bookingID]; exists {
		m.mu.Unlock()
		return bookingErr(ErrAlreadyDispatching, j.bookingID)
	}
	m.jobs[j.bookingID] = j
	n := len(m.jobs)
	m.mu.Unlock()

	m.metrics.SetActiveJobs(n)
	return nil
}

// teardownLocked stops the timer before anything else, then removes the job.
func (m *Manager) teardownLocked(j *job) {
	j.stopTimerLocked()
	j.done = true

	m.mu.Lock()
	if m.jobs[j.bookingID] == j {
		delete(m.jobs, j.bookingID)
	}
	n := len(m.jobs)
	m.mu.Unlock()

	m.metrics.SetActiveJobs(n)
}

// Start begins dispatching bookingID to candidates in order.
func (m *Manager) Start(ctx context.Context, bookingID string, candidates []booking.Candidate) error {
	if bookingID == "" {
		return fmt.Errorf("booking id is empty")
	}
	logger := m.logger.With("booking_id", bookingID)

	if m.lookup(bookingID) != nil {
		return bookingErr(ErrAlreadyDispatching, bookingID)
	}

	ioCtx, cancel := m.ioContext(ctx)
	rec, err := m.records.Get(ioCtx, bookingID)
	cancel()
	if err != nil {
		return fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	if !rec.Assignable() {
		return bookingErr(ErrNotDispatchable, bookingID)
	}

	if len(candidates) == 0 {
		logger.Info("no candidates; dispatch ends immediately")
		m.exhaust(ctx, bookingID, rec.CustomerID, ReasonNoCandidates)
		return nil
	}

	cur, err := NewCursor(candidates, 0)
	if err != nil {
		return fmt.Errorf("booking %s: %w", bookingID, err)
	}
	j := &job{
		bookingID:  bookingID,
		customerID: rec.CustomerID,
		summary:    summarize(rec),
		cursor:     cur,
		startedAt:  m.cfg.Now().UTC(),
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := m.register(j); err != nil {
		return err
	}

	ioCtx, cancel = m.ioContext(ctx)
	moved, err := m.records.CompareAndSet(ioCtx, booking.Transition{
		BookingID:         bookingID,
		From:              []booking.Status{booking.StatusPending, booking.StatusSearching},
		RequireUnassigned: true,
		To:                booking.StatusSearching,
	})
	if err == nil && moved {
		if herr := m.records.AppendHistory(ioCtx, bookingID, booking.HistoryEntry{
			Action: booking.ActionDispatchStarted,
			Note:   fmt.Sprintf("%d candidates", cur.Len()),
		}); herr != nil {
			logger.Warn("failed to append dispatch history", "error", herr)
		}
	}
	cancel()
	if err != nil {
		m.teardownLocked(j)
		return fmt.Errorf("mark booking %s searching: %w", bookingID, err)
	}
	if !moved {
		m.teardownLocked(j)
		return bookingErr(ErrNotDispatchable, bookingID)
	}

	logger.Info("dispatch started", "candidates", cur.Len())
	m.metrics.DispatchStarted()
	m.fan.ops(OpsStarted, OpsPayload{BookingID: bookingID, CustomerID: j.customerID, Total: cur.Len()})

	m.saveSnapshotLocked(ctx, j)
	m.offerLocked(ctx, j)
	return nil
}

// offerLocked makes the exclusive offer to the current candidate, or ends
// the job when the cursor is exhausted or the booking was resolved through
// another path.
func (m *Manager) offerLocked(ctx context.Context, j *job) {
	c, ok := j.cursor.Current()
	if !ok {
		m.exhaustLocked(ctx, j)
		return
	}
	logger := m.logger.With("booking_id", j.bookingID)

	ioCtx, cancel := m.ioContext(ctx)
	defer cancel()

	rec, err := m.records.Get(ioCtx, j.bookingID)
	switch {
	case errors.Is(err, booking.ErrNotFound):
		logger.Warn("booking disappeared during dispatch")
		m.resolvedElsewhereLocked(ctx, j, "")
		return
	case err != nil:
		logger.Warn("failed to re-read booking before offer; continuing", "error", err)
	case !rec.Assignable():
		logger.Info("booking resolved outside this dispatch", "status", rec.Status)
		m.resolvedElsewhereLocked(ctx, j, rec.Status)
		return
	default:
		j.summary = summarize(rec)
	}

	seq, err := m.state.NextOfferSeq(ioCtx, j.bookingID)
	if err != nil {
		logger.Warn("failed to allocate offer sequence", "error", err)
		seq = j.offerSeq + 1
	}
	j.offerSeq = seq

	position, total := j.cursor.Position()+1, j.cursor.Len()
	marker := state.OfferMarker{
		JobID:       j.bookingID,
		WorkerID:    c.WorkerID,
		DisplayName: c.DisplayName,
		Distance:    c.Distance,
		Position:    position,
		Total:       total,
		Seq:         seq,
	}
	if err := m.state.SetOffer(ioCtx, marker, m.cfg.OfferTimeout); err != nil {
		m.metrics.SnapshotError()
		logger.Warn("failed to write offer marker", "worker_id", c.WorkerID, "error", err)
	}

	j.timer.Cancel()
	j.gen++
	gen := j.gen
	bookingID := j.bookingID
	j.timer = startTimer(m.cfg.AfterFunc, m.cfg.OfferTimeout, func() {
		m.onTimeout(bookingID, gen)
	})

	m.fan.offer(j.bookingID, j.summary, c, seq, position, total)
	m.fan.queueStatus(j.bookingID, j.customerID, position, total)
	m.fan.ops(OpsOffered, OpsPayload{
		BookingID: j.bookingID, CustomerID: j.customerID, WorkerID: c.WorkerID,
		Position: position, Total: total, OfferSeq: seq,
	})
	m.metrics.OfferSent()
	logger.Debug("offer sent", "worker_id", c.WorkerID, "position", position, "total", total, "offer_seq", seq)
}

// advanceLocked moves past the current candidate. withdrawnReason, when set,
// is sent to the skipped candidate.
func (m *Manager) advanceLocked(ctx context.Context, j *job, reason, withdrawnReason string) {
	prev, _ := j.cursor.Current()
	j.stopTimerLocked()
	if !j.cursor.Advance() {
		m.exhaustLocked(ctx, j)
		return
	}

	if withdrawnReason != "" {
		m.fan.withdrawn(j.bookingID, prev.WorkerID, withdrawnReason)
	}

	m.metrics.Advanced(reason)
	m.fan.ops(OpsAdvanced, OpsPayload{
		BookingID: j.bookingID, CustomerID: j.customerID, WorkerID: prev.WorkerID,
		Position: j.cursor.Position(), Total: j.cursor.Len(), Reason: reason,
	})
	m.logger.Info("dispatch advanced",
		"booking_id", j.bookingID, "worker_id", prev.WorkerID, "reason", reason,
		"cursor", j.cursor.Position(), "total", j.cursor.Len())

	ioCtx, cancel := m.ioContext(ctx)
	if err := m.state.ClearOffer(ioCtx, j.bookingID); err != nil {
		m.logger.Warn("failed to clear offer marker", "booking_id", j.bookingID, "error", err)
	}
	cancel()

	m.saveSnapshotLocked(ctx, j)
	m.offerLocked(ctx, j)
}

// Reject advances past workerID if it holds the current offer. Rejects from
// anyone else, or for jobs this process does not hold, are ignored.
func (m *Manager) Reject(ctx context.Context, bookingID, workerID, reason string) error {
	j := m.lookup(bookingID)
	if j == nil {
		m.logger.Debug("reject for unknown dispatch ignored", "booking_id", bookingID, "worker_id", workerID)
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done || !j.cursor.Holds(workerID) {
		m.logger.Info("stale reject ignored", "booking_id", bookingID, "worker_id", workerID)
		return nil
	}

	m.logger.Info("offer rejected", "booking_id", bookingID, "worker_id", workerID, "reason", reason)
	m.advanceLocked(ctx, j, metrics.ReasonRejected, "")
	return nil
}

func (m *Manager) onTimeout(bookingID string, gen uint64) {
	j := m.lookup(bookingID)
	if j == nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done || j.gen != gen {
		return
	}
	ctx := context.Background()
	if m.closedElsewhereLocked(ctx, j) {
		return
	}
	m.advanceLocked(ctx, j, metrics.ReasonTimeout, WithdrawnTimeout)
}

// closedElsewhereLocked re-reads the booking when an offer times out. The
// holder may have won on another process through the offer marker; in that
// case it must not hear that its offer closed. The job ends and only the
// upcoming candidates are told. A read error leaves the decision to the
// advance.
func (m *Manager) closedElsewhereLocked(ctx context.Context, j *job) bool {
	ioCtx, cancel := m.ioContext(ctx)
	rec, err := m.records.Get(ioCtx, j.bookingID)
	cancel()

	var status booking.Status
	switch {
	case errors.Is(err, booking.ErrNotFound):
	case err != nil:
		return false
	case rec.Assignable():
		return false
	default:
		status = rec.Status
	}

	holder, _ := j.cursor.Current()
	upcoming := j.cursor.Upcoming()
	m.teardownLocked(j)
	m.clearState(ctx, j.bookingID)

	won := rec != nil && rec.AssignedWorkerID != nil && *rec.AssignedWorkerID == holder.WorkerID
	if !won {
		m.fan.withdrawn(j.bookingID, holder.WorkerID, WithdrawnPreempted)
	}
	m.fan.cancelled(j.bookingID, upcoming, ReasonResolvedElsewhere)
	m.fan.ops(OpsCancelled, OpsPayload{
		BookingID: j.bookingID, CustomerID: j.customerID, WorkerID: holder.WorkerID,
		Reason: ReasonResolvedElsewhere + ":" + string(status),
	})
	m.metrics.Cancelled()
	m.logger.Info("offer expired on a booking resolved elsewhere",
		"booking_id", j.bookingID, "worker_id", holder.WorkerID, "status", status, "holder_won", won)
	return true
}

// Accept lets the current candidate claim the booking. It returns
// ErrNotYourTurn for anyone else and ErrTooLate when the booking was
// already resolved.
func (m *Manager) Accept(ctx context.Context, bookingID, workerID string) error {
	j := m.lookup(bookingID)
	if j == nil {
		return m.fallbackAccept(ctx, bookingID, workerID)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done {
		return workerErr(ErrTooLate, bookingID, workerID)
	}
	c, ok := j.cursor.Current()
	if !ok {
		return workerErr(ErrTooLate, bookingID, workerID)
	}
	if c.WorkerID != workerID {
		return workerErr(ErrNotYourTurn, bookingID, workerID)
	}

	j.stopTimerLocked()
	position := j.cursor.Position() + 1

	ioCtx, cancel := m.ioContext(ctx)
	won, err := m.arbiter.TryAccept(ioCtx, bookingID, workerID, position)
	cancel()
	if err != nil {
		m.logger.Error("arbiter failed; treating as contention loss",
			"booking_id", bookingID, "worker_id", workerID, "error", err)
	}
	if !won {
		m.metrics.ArbiterConflict()
		m.logger.Info("accept lost the conditional update", "booking_id", bookingID, "worker_id", workerID)
		m.advanceLocked(ctx, j, metrics.ReasonPreempted, WithdrawnPreempted)
		return workerErr(ErrTooLate, bookingID, workerID)
	}

	upcoming := j.cursor.Upcoming()
	m.teardownLocked(j)
	m.clearState(ctx, bookingID)

	m.fan.assigned(bookingID, j.customerID, c)
	m.fan.cancelled(bookingID, upcoming, ReasonAssigned)
	m.fan.ops(OpsAccepted, OpsPayload{
		BookingID: bookingID, CustomerID: j.customerID, WorkerID: workerID,
		Position: position, Total: j.cursor.Len(),
	})
	m.metrics.Accepted(m.cfg.Now().Sub(j.startedAt))
	m.logger.Info("booking assigned", "booking_id", bookingID, "worker_id", workerID, "position", position)
	return nil
}

// fallbackAccept serves an accept that reached a process without the job.
// The offer marker says whose turn it is; the arbiter decides the outcome.
// The owning process notices the resolution at its next offer.
func (m *Manager) fallbackAccept(ctx context.Context, bookingID, workerID string) error {
	ioCtx, cancel := m.ioContext(ctx)
	defer cancel()

	marker, err := m.state.GetOffer(ioCtx, bookingID)
	if err != nil {
		return fmt.Errorf("read offer marker for %s: %w", bookingID, err)
	}
	if marker == nil {
		return workerErr(ErrTooLate, bookingID, workerID)
	}
	if marker.WorkerID != workerID {
		return workerErr(ErrNotYourTurn, bookingID, workerID)
	}

	won, err := m.arbiter.TryAccept(ioCtx, bookingID, workerID, marker.Position)
	if err != nil {
		return fmt.Errorf("fallback accept %s: %w", bookingID, err)
	}
	if !won {
		m.metrics.ArbiterConflict()
		return workerErr(ErrTooLate, bookingID, workerID)
	}

	if err := m.state.ClearOffer(ioCtx, bookingID); err != nil {
		m.logger.Warn("failed to clear offer marker", "booking_id", bookingID, "error", err)
	}
	if err := m.state.DeleteSnapshot(ioCtx, bookingID); err != nil {
		m.logger.Warn("failed to delete snapshot", "booking_id", bookingID, "error", err)
	}

	customerID := ""
	if rec, err := m.records.Get(ioCtx, bookingID); err == nil {
		customerID = rec.CustomerID
		m.fan.assigned(bookingID, customerID, booking.Candidate{
			WorkerID:    workerID,
			DisplayName: marker.DisplayName,
			Distance:    marker.Distance,
		})
	} else {
		m.logger.Warn("assigned via fallback but could not load customer", "booking_id", bookingID, "error", err)
	}
	m.fan.ops(OpsAccepted, OpsPayload{
		BookingID: bookingID, CustomerID: customerID, WorkerID: workerID,
		Position: marker.Position, Total: marker.Total, Fallback: true,
	})
	m.metrics.Accepted(0)
	m.logger.Info("booking assigned via fallback path", "booking_id", bookingID, "worker_id", workerID)
	return nil
}

// Cancel ends an active dispatch without touching the booking status.
func (m *Manager) Cancel(ctx context.Context, bookingID, reason string) error {
	j := m.lookup(bookingID)
	if j == nil {
		return bookingErr(ErrUnknownJob, bookingID)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done {
		return bookingErr(ErrUnknownJob, bookingID)
	}
	if reason == "" {
		reason = WithdrawnCancelled
	}

	cur, holding := j.cursor.Current()
	upcoming := j.cursor.Upcoming()
	m.teardownLocked(j)
	m.clearState(ctx, bookingID)

	if holding {
		m.fan.withdrawn(bookingID, cur.WorkerID, WithdrawnCancelled)
	}
	m.fan.cancelled(bookingID, upcoming, reason)
	m.fan.ops(OpsCancelled, OpsPayload{BookingID: bookingID, CustomerID: j.customerID, Reason: reason})
	m.metrics.Cancelled()
	m.logger.Info("dispatch cancelled", "booking_id", bookingID, "reason", reason)
	return nil
}

// resolvedElsewhereLocked tears down a job whose booking left the open
// states through another path. Not-yet-offered candidates, including the
// one about to be offered, get job:cancelled.
func (m *Manager) resolvedElsewhereLocked(ctx context.Context, j *job, status booking.Status) {
	remaining := j.cursor.Remaining()
	m.teardownLocked(j)
	m.clearState(ctx, j.bookingID)

	m.fan.cancelled(j.bookingID, remaining, ReasonResolvedElsewhere)
	m.fan.ops(OpsCancelled, OpsPayload{
		BookingID: j.bookingID, CustomerID: j.customerID, Reason: ReasonResolvedElsewhere + ":" + string(status),
	})
	m.metrics.Cancelled()
}

func (m *Manager) exhaustLocked(ctx context.Context, j *job) {
	m.teardownLocked(j)
	m.clearState(ctx, j.bookingID)
	m.exhaust(ctx, j.bookingID, j.customerID, ReasonExhausted)
}

// exhaust marks the booking NO_WORKER_AVAILABLE and tells the customer. A
// failed write is an operational alert and is not retried. If the booking
// was already resolved the customer is not told anything.
func (m *Manager) exhaust(ctx context.Context, bookingID, customerID, reason string) {
	ioCtx, cancel := m.ioContext(ctx)
	defer cancel()

	ok, err := m.records.CompareAndSet(ioCtx, booking.Transition{
		BookingID:         bookingID,
		From:              []booking.Status{booking.StatusSearching, booking.StatusPending},
		RequireUnassigned: true,
		To:                booking.StatusNoWorkerAvailable,
	})
	switch {
	case err != nil:
		m.logger.Error("failed to mark booking as no worker available; needs reconciliation",
			"booking_id", bookingID, "alert", true, "error", err)
	case !ok:
		m.logger.Warn("booking resolved before exhaustion was recorded", "booking_id", bookingID)
		return
	default:
		if herr := m.records.AppendHistory(ioCtx, bookingID, booking.HistoryEntry{
			Action: booking.ActionExhausted,
			Note:   reason,
		}); herr != nil {
			m.logger.Warn("failed to append exhaustion history", "booking_id", bookingID, "error", herr)
		}
	}

	m.fan.unavailable(bookingID, customerID, reason)
	m.fan.ops(OpsExhausted, OpsPayload{BookingID: bookingID, CustomerID: customerID, Reason: reason})
	m.metrics.Exhausted()
	m.logger.Info("dispatch exhausted", "booking_id", bookingID, "reason", reason)
}

func (m *Manager) saveSnapshotLocked(ctx context.Context, j *job) {
	ioCtx, cancel := m.ioContext(ctx)
	defer cancel()

	err := m.state.SaveSnapshot(ioCtx, state.Snapshot{
		JobID:      j.bookingID,
		CustomerID: j.customerID,
		Candidates: j.cursor.Candidates(),
		Cursor:     j.cursor.Position(),
		StartedAt:  j.startedAt,
	}, m.cfg.SnapshotTTL)
	if err != nil {
		m.metrics.SnapshotError()
		m.logger.Warn("failed to persist dispatch snapshot", "booking_id", j.bookingID, "error", err)
	}
}

func (m *Manager) clearState(ctx context.Context, bookingID string) {
	ioCtx, cancel := m.ioContext(ctx)
	defer cancel()

	if err := m.state.DeleteSnapshot(ioCtx, bookingID); err != nil {
		m.logger.Warn("failed to delete snapshot", "booking_id", bookingID, "error", err)
	}
	if err := m.state.ClearOffer(ioCtx, bookingID); err != nil {
		m.logger.Warn("failed to clear offer marker", "booking_id", bookingID, "error", err)
	}
}

// Get returns a view of the active dispatch for bookingID.
func (m *Manager) Get(bookingID string) (JobView, bool) {
	j := m.lookup(bookingID)
	if j == nil {
		return JobView{}, false
	}
	return j.view()
}

// Active lists every active dispatch ordered by start time.
func (m *Manager) Active() []JobView {
	m.mu.RLock()
	jobs := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.RUnlock()

	out := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		if v, ok := j.view(); ok {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].StartedAt.Equal(out[b].StartedAt) {
			return out[a].BookingID < out[b].BookingID
		}
		return out[a].StartedAt.Before(out[b].StartedAt)
	})
	return out
}

func (j *job) view() (JobView, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done {
		return JobView{}, false
	}
	cur, _ := j.cursor.Current()
	return JobView{
		BookingID:     j.bookingID,
		CustomerID:    j.customerID,
		Position:      j.cursor.Position() + 1,
		Total:         j.cursor.Len(),
		CurrentWorker: cur,
		OfferSeq:      j.offerSeq,
		StartedAt:     j.startedAt,
	}, true
}

// Shutdown stops every timer and refuses new work. Snapshots are left in
// place so another process can resume the jobs.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	jobs := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.jobs = make(map[string]*job)
	m.mu.Unlock()

	for _, j := range jobs {
		j.mu.Lock()
		j.stopTimerLocked()
		j.done = true
		j.mu.Unlock()
	}
	m.metrics.SetActiveJobs(0)
	m.logger.Info("dispatch manager stopped", "abandoned_jobs", len(jobs))
}
