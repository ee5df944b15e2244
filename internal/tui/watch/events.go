package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
)

const maxEventLines = 10

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENTS"),
			theme.Dim.Render("  Waiting for dispatch activity..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	lines := make([]string, 0, maxEventLines)
	for i, e := range eventLog {
		if i >= maxEventLines {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENTS"),
		lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")),
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	var style lipgloss.Style
	switch e.Type {
	case dispatch.OpsAccepted:
		style = theme.StatusOK
	case dispatch.OpsExhausted:
		style = theme.StatusFailed
	case dispatch.OpsAdvanced, dispatch.OpsOffered:
		style = theme.StatusPending
	case dispatch.OpsCancelled:
		style = theme.StatusMuted
	default:
		style = theme.Dim
	}

	return fmt.Sprintf("%s %s %s",
		theme.Dim.Render(e.At.Format("15:04:05")),
		style.Render(fmt.Sprintf("%-20s", e.Type)),
		describe(e))
}

func describe(e events.Event) string {
	var p dispatch.OpsPayload
	if err := json.Unmarshal(e.Data, &p); err != nil || p.BookingID == "" {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}

	parts := []string{"[" + p.BookingID + "]"}
	if p.WorkerID != "" {
		parts = append(parts, p.WorkerID)
	}
	if p.Position > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d", p.Position, p.Total))
	}
	if p.Reason != "" {
		parts = append(parts, p.Reason)
	}
	if p.Fallback {
		parts = append(parts, "(fallback)")
	}
	return strings.Join(parts, " ")
}
