// Package watch implements the live dispatch dashboard fed by the ops
// event stream.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the watch TUI.
type Theme struct {
	StatusOK      lipgloss.Style
	StatusPending lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusMuted   lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	PulseOn  lipgloss.Style
	PulseOff lipgloss.Style
}

func NewDefaultTheme() Theme {
	accent := lipgloss.Color("#F28C28")

	return Theme{
		StatusOK:      lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950")),
		StatusPending: lipgloss.NewStyle().Foreground(lipgloss.Color("#E3B341")),
		StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149")),
		StatusMuted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#8B949E")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#58A6FF")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#8B949E")),
		Highlight: lipgloss.NewStyle().Foreground(accent),

		PulseOn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950")),
		PulseOff: lipgloss.NewStyle().Foreground(lipgloss.Color("#30363D")),
	}
}
