package watch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func opsEvent(t *testing.T, id int64, typ string, p dispatch.OpsPayload) events.Event {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return events.Event{ID: id, Topic: events.OpsTopic, Type: typ, At: t0.Add(time.Duration(id) * time.Second), Data: raw}
}

func TestApplyEventLifecycle(t *testing.T) {
	live := map[string]*DispatchState{}
	var out Outcomes

	applyEvent(live, &out, opsEvent(t, 1, dispatch.OpsStarted, dispatch.OpsPayload{BookingID: "bk-1", Total: 3}))
	applyEvent(live, &out, opsEvent(t, 2, dispatch.OpsOffered, dispatch.OpsPayload{BookingID: "bk-1", WorkerID: "A", Position: 1, Total: 3}))
	applyEvent(live, &out, opsEvent(t, 3, dispatch.OpsAdvanced, dispatch.OpsPayload{BookingID: "bk-1", WorkerID: "A", Reason: "timeout"}))
	applyEvent(live, &out, opsEvent(t, 4, dispatch.OpsOffered, dispatch.OpsPayload{BookingID: "bk-1", WorkerID: "B", Position: 2, Total: 3}))

	require.Contains(t, live, "bk-1")
	d := live["bk-1"]
	assert.Equal(t, "B", d.WorkerID)
	assert.Equal(t, 2, d.Position)
	assert.Equal(t, 1, d.Advances)
	assert.Equal(t, t0.Add(time.Second), d.StartedAt)

	applyEvent(live, &out, opsEvent(t, 5, dispatch.OpsAccepted, dispatch.OpsPayload{BookingID: "bk-1", WorkerID: "B", Fallback: true}))
	assert.Empty(t, live)
	assert.Equal(t, Outcomes{Accepted: 1, Fallback: 1}, out)
}

func TestApplyEventCountsTerminalOutcomes(t *testing.T) {
	live := map[string]*DispatchState{}
	var out Outcomes

	applyEvent(live, &out, opsEvent(t, 1, dispatch.OpsStarted, dispatch.OpsPayload{BookingID: "bk-1", Total: 1}))
	applyEvent(live, &out, opsEvent(t, 2, dispatch.OpsExhausted, dispatch.OpsPayload{BookingID: "bk-1", Reason: "no_worker_available"}))
	applyEvent(live, &out, opsEvent(t, 3, dispatch.OpsCancelled, dispatch.OpsPayload{BookingID: "bk-2"}))
	applyEvent(live, &out, events.Event{ID: 4, Type: dispatch.OpsStarted, Data: []byte(`not json`)})

	assert.Empty(t, live)
	assert.Equal(t, Outcomes{Exhausted: 1, Cancelled: 1}, out)
}

func TestSeedDispatches(t *testing.T) {
	live := map[string]*DispatchState{}
	seedDispatches(live, []dispatch.JobView{{
		BookingID:     "bk-9",
		Position:      2,
		Total:         4,
		CurrentWorker: booking.Candidate{WorkerID: "C"},
		StartedAt:     t0,
	}})

	rows := dispatchRows(live, t0.Add(90*time.Second))
	require.Len(t, rows, 1)
	assert.Equal(t, "bk-9", rows[0][0])
	assert.Equal(t, "2/4", rows[0][1])
	assert.Equal(t, "C", rows[0][2])
	assert.Equal(t, "1m 30s", rows[0][4])
}

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"",
		"id: 7",
		"event: dispatch.started",
		`data: {"booking_id":"bk-1","total":2}`,
		"",
		"id: 8",
		"event: dispatch.offered",
		`data: {"booking_id":"bk-1","worker_id":"A","position":1,"total":2}`,
		"",
	}, "\n")

	ch := make(chan events.Event, 4)
	last := readSSE(strings.NewReader(stream), 3, ch)
	close(ch)

	assert.Equal(t, int64(8), last)
	var got []events.Event
	for e := range ch {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, dispatch.OpsStarted, got[0].Type)
	assert.Equal(t, int64(8), got[1].ID)
	assert.JSONEq(t, `{"booking_id":"bk-1","worker_id":"A","position":1,"total":2}`, string(got[1].Data))
}

func TestModelUpdate(t *testing.T) {
	m := New("http://localhost:8080", "token")
	m.now = func() time.Time { return t0.Add(time.Minute) }

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model := next.(Model)

	next, cmd := model.Update(eventMsg(opsEvent(t, 11, dispatch.OpsOffered, dispatch.OpsPayload{BookingID: "bk-1", WorkerID: "A", Position: 1, Total: 2})))
	model = next.(Model)
	assert.NotNil(t, cmd, "keeps reading events")
	assert.Equal(t, int64(11), model.lastID)
	assert.True(t, model.health.Connected)
	assert.Len(t, model.eventLog, 1)

	view := model.View()
	assert.Contains(t, view, "MECFINDER DISPATCH")
	assert.Contains(t, view, "bk-1")

	next, _ = model.Update(sseDisconnectedMsg{lastID: 15})
	model = next.(Model)
	assert.False(t, model.health.Connected)
	assert.Equal(t, int64(15), model.lastID, "reconnect resumes after the last event")

	next, _ = model.Update(healthMsg{Status: "ok", ActiveDispatches: 1})
	model = next.(Model)
	assert.True(t, model.health.Connected)
	assert.Empty(t, model.lastError)
}

func TestPulseDecay(t *testing.T) {
	var p Pulse
	p.OnEvent(t0)
	p.Decay(t0.Add(3 * time.Second))
	assert.Equal(t, 4, p.dots)
	p.Decay(t0.Add(11 * time.Second))
	assert.Equal(t, 0, p.dots)
}
