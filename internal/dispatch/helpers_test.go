package dispatch

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
	"github.com/ay9334524-ux/mecfinder-backend/internal/metrics"
	"github.com/ay9334524-ux/mecfinder-backend/internal/state"
	"github.com/ay9334524-ux/mecfinder-backend/internal/storage"
)

const testTimeout = 10 * time.Second

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due timers outside the clock lock.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, keep []*manualTimer
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.stopped = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	c.timers = keep
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type TestLogBuffer struct {
	mu sync.Mutex
	bytes.Buffer
}

func (b *TestLogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Buffer.Write(p)
}

func (b *TestLogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Buffer.String()
}

// NewTestSlogger creates a debug-level JSON logger writing to a buffer.
func NewTestSlogger() (*slog.Logger, *TestLogBuffer) {
	var buf TestLogBuffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), &buf
}

type testEngine struct {
	t       *testing.T
	db      *sql.DB
	records *booking.SQLStore
	state   *state.SQLiteStore
	hub     *events.Hub
	clock   *manualClock
	metrics *metrics.Collector
	mgr     *Manager
	logs    *TestLogBuffer
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "mecfinder.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	return newTestEngineOn(t, openTestDB(t), newManualClock())
}

// newTestEngineOn builds a second "process" sharing db and clock.
func newTestEngineOn(t *testing.T, db *sql.DB, clock *manualClock) *testEngine {
	t.Helper()

	logger, logs := NewTestSlogger()
	e := &testEngine{
		t:       t,
		db:      db,
		records: booking.NewSQLStore(db),
		state:   state.NewSQLiteStore(db),
		hub:     events.NewHub(1024),
		clock:   clock,
		metrics: metrics.NewCollector(),
		logs:    logs,
	}
	e.mgr = NewManager(Config{
		OfferTimeout: testTimeout,
		SnapshotTTL:  10 * time.Minute,
		AfterFunc:    clock.AfterFunc,
		Now:          clock.Now,
	}, e.records, e.state, e.hub, e.metrics, logger)
	t.Cleanup(e.mgr.Shutdown)
	return e
}

func (e *testEngine) createBooking(id string) {
	e.t.Helper()
	require.NoError(e.t, e.records.Create(context.Background(), &booking.Record{
		ID:              id,
		CustomerID:      "cust-" + id,
		ServiceType:     "battery_jumpstart",
		VehicleType:     "car",
		Location:        booking.Location{Lat: 12.971941, Lng: 77.593691, Address: "MG Road"},
		EstimatedPayout: 350,
		Currency:        "INR",
	}))
}

func (e *testEngine) record(id string) *booking.Record {
	e.t.Helper()
	rec, err := e.records.Get(context.Background(), id)
	require.NoError(e.t, err)
	return rec
}

func (e *testEngine) events(topic string) []events.Event {
	return e.hub.SnapshotSince(0, topic)
}

func (e *testEngine) eventTypes(topic string) []string {
	var out []string
	for _, ev := range e.events(topic) {
		out = append(out, ev.Type)
	}
	return out
}

func (e *testEngine) lastEvent(topic string) events.Event {
	e.t.Helper()
	evs := e.events(topic)
	require.NotEmpty(e.t, evs, "no events on %s", topic)
	return evs[len(evs)-1]
}

func candidates(ids ...string) []booking.Candidate {
	out := make([]booking.Candidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, booking.Candidate{WorkerID: id, DisplayName: "Mechanic " + id, Distance: float64(i+1) * 1.5})
	}
	return out
}

func decode[T any](t *testing.T, ev events.Event) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(ev.Data, &v))
	return v
}

func worker(id string) string   { return events.WorkerTopic(id) }
func customer(id string) string { return events.CustomerTopic("cust-" + id) }
