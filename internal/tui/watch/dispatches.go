package watch

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
)

// DispatchState is one live dispatch as seen from the ops stream.
type DispatchState struct {
	BookingID string
	WorkerID  string
	Position  int
	Total     int
	Advances  int
	StartedAt time.Time
	OfferedAt time.Time
}

// Outcomes counts finished dispatches since the dashboard started.
type Outcomes struct {
	Accepted  int
	Exhausted int
	Cancelled int
	Fallback  int
}

// applyEvent folds an ops event into the live set. Finished dispatches are
// removed and counted.
func applyEvent(live map[string]*DispatchState, out *Outcomes, e events.Event) {
	var p dispatch.OpsPayload
	if err := json.Unmarshal(e.Data, &p); err != nil || p.BookingID == "" {
		return
	}

	get := func() *DispatchState {
		d, ok := live[p.BookingID]
		if !ok {
			d = &DispatchState{BookingID: p.BookingID, StartedAt: e.At}
			live[p.BookingID] = d
		}
		return d
	}

	switch e.Type {
	case dispatch.OpsStarted:
		d := get()
		d.Total = p.Total
	case dispatch.OpsOffered:
		d := get()
		d.WorkerID = p.WorkerID
		d.Position = p.Position
		d.Total = p.Total
		d.OfferedAt = e.At
	case dispatch.OpsAdvanced:
		get().Advances++
	case dispatch.OpsAccepted:
		delete(live, p.BookingID)
		out.Accepted++
		if p.Fallback {
			out.Fallback++
		}
	case dispatch.OpsExhausted:
		delete(live, p.BookingID)
		out.Exhausted++
	case dispatch.OpsCancelled:
		delete(live, p.BookingID)
		out.Cancelled++
	}
}

// seedDispatches merges a /v1/dispatches listing into the live set.
func seedDispatches(live map[string]*DispatchState, views []dispatch.JobView) {
	for _, v := range views {
		d, ok := live[v.BookingID]
		if !ok {
			d = &DispatchState{BookingID: v.BookingID}
			live[v.BookingID] = d
		}
		d.WorkerID = v.CurrentWorker.WorkerID
		d.Position = v.Position
		d.Total = v.Total
		d.StartedAt = v.StartedAt
	}
}

func sortedDispatches(live map[string]*DispatchState) []*DispatchState {
	out := make([]*DispatchState, 0, len(live))
	for _, d := range live {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].BookingID < out[j].BookingID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func newDispatchTable(theme Theme) table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Booking", Width: 20},
			{Title: "Offer", Width: 7},
			{Title: "Worker", Width: 18},
			{Title: "Skipped", Width: 8},
			{Title: "Age", Width: 8},
		}),
		table.WithHeight(10),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(theme.Header.GetForeground()).Bold(true)
	styles.Selected = theme.Highlight.Bold(true)
	t.SetStyles(styles)
	return t
}

func dispatchRows(live map[string]*DispatchState, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(live))
	for _, d := range sortedDispatches(live) {
		offer := "-"
		if d.Position > 0 {
			offer = fmt.Sprintf("%d/%d", d.Position, d.Total)
		}
		worker := d.WorkerID
		if worker == "" {
			worker = "-"
		}
		age := "-"
		if !d.StartedAt.IsZero() {
			age = formatDuration(now.Sub(d.StartedAt))
		}
		rows = append(rows, table.Row{d.BookingID, offer, worker, fmt.Sprintf("%d", d.Advances), age})
	}
	return rows
}
