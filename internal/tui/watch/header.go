package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState tracks service health from /healthz polling.
type HealthState struct {
	Status           string
	UptimeSeconds    int64
	ActiveDispatches int
	Subscribers      int
	Connected        bool
	LastCheck        time.Time
}

// Pulse lights up on events and fades over ten seconds.
type Pulse struct {
	dots      int
	lastEvent time.Time
}

func (p *Pulse) OnEvent(now time.Time) {
	p.dots = 5
	p.lastEvent = now
}

func (p *Pulse) Decay(now time.Time) {
	if p.dots == 0 {
		return
	}
	p.dots = max(0, 5-int(now.Sub(p.lastEvent)/(2*time.Second)))
}

func (p Pulse) Render(theme Theme) string {
	var b strings.Builder
	for i := range 5 {
		if i < p.dots {
			b.WriteString(theme.PulseOn.Render("●"))
		} else {
			b.WriteString(theme.PulseOff.Render("○"))
		}
	}
	return b.String()
}

func renderHeader(health HealthState, outcomes Outcomes, pulse Pulse, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	statusText := theme.StatusOK.Render("HEALTHY")
	if !health.Connected {
		statusText = theme.StatusFailed.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.StatusFailed.Render("DEGRADED")
	}

	lastEvent := "never"
	if !pulse.lastEvent.IsZero() {
		lastEvent = fmt.Sprintf("%s ago", now.Sub(pulse.lastEvent).Round(time.Second))
	}

	title := " MECFINDER DISPATCH"
	clock := theme.Dim.Render(now.Format("15:04:05"))
	pad := max(1, innerWidth-lipgloss.Width(title)-lipgloss.Width(clock)-4)
	titleLine := title + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s  up %s  active: %d  watchers: %d",
		statusText,
		formatDuration(time.Duration(health.UptimeSeconds)*time.Second),
		health.ActiveDispatches,
		health.Subscribers,
	)
	outcomeLine := fmt.Sprintf(" %s %d  %s %d  %s %d  (fallback %d)",
		theme.StatusOK.Render("assigned"), outcomes.Accepted,
		theme.StatusFailed.Render("no worker"), outcomes.Exhausted,
		theme.StatusMuted.Render("cancelled"), outcomes.Cancelled,
		outcomes.Fallback,
	)
	activityLine := fmt.Sprintf(" last event: %s %s", lastEvent, pulse.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, outcomeLine, activityLine)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
