package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
)

const maxEventLog = 50

// Model is the BubbleTea model for the dispatch dashboard.
type Model struct {
	apiURL string
	token  string

	width  int
	height int

	health   HealthState
	live     map[string]*DispatchState
	outcomes Outcomes
	eventLog []events.Event
	lastID   int64

	pulse Pulse
	table table.Model
	theme Theme

	hubEvents chan events.Event
	now       func() time.Time

	lastError string
}

// New creates a dashboard model for the service at apiURL. token must carry
// the service or admin role.
func New(apiURL, token string) *Model {
	theme := NewDefaultTheme()
	return &Model{
		apiURL:    apiURL,
		token:     token,
		live:      make(map[string]*DispatchState),
		hubEvents: make(chan events.Event, 100),
		table:     newDispatchTable(theme),
		theme:     theme,
		now:       time.Now,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.token, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.apiURL, m.token) },
		func() tea.Msg { return fetchDispatches(m.apiURL, m.token) },
		tick(),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(max(20, msg.Width-6))

	case tickMsg:
		m.pulse.Decay(m.now())
		m.table.SetRows(dispatchRows(m.live, m.now()))
		return m, tick()

	case eventMsg:
		e := events.Event(msg)
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}
		if e.ID > m.lastID {
			m.lastID = e.ID
		}
		m.pulse.OnEvent(m.now())
		applyEvent(m.live, &m.outcomes, e)
		m.table.SetRows(dispatchRows(m.live, m.now()))
		m.health.Connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case dispatchesMsg:
		seedDispatches(m.live, msg)
		m.table.SetRows(dispatchRows(m.live, m.now()))

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.ActiveDispatches = msg.ActiveDispatches
		m.health.Subscribers = msg.Subscribers
		m.health.Connected = true
		m.health.LastCheck = m.now()
		m.lastError = ""
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.token)
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		if msg.lastID > m.lastID {
			m.lastID = msg.lastID
		}
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		// The pending receiveNextEvent keeps reading the same channel.
		return m, subscribeToEvents(m.apiURL, m.token, m.lastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.token)
		})
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to mecfinder..."
	}
	now := m.now()

	header := renderHeader(m.health, m.outcomes, m.pulse, m.theme, m.width, now)

	var body string
	if len(m.live) == 0 {
		body = m.theme.Dim.Render("  No active dispatches")
	} else {
		body = m.table.View()
	}
	dispatches := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.theme.Title.Render("ACTIVE DISPATCHES"), body),
	)
	stream := renderEventStream(m.eventLog, m.theme, m.width)

	parts := []string{header, dispatches, stream}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(fmt.Sprintf(" ! %s", m.lastError)))
	}
	parts = append(parts, m.theme.Dim.Render(" [q] quit  [↑/↓] scroll"))

	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
