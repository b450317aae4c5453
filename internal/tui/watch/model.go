package watch

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattjoyce/feedbackd/internal/events"
)

const maxEventLog = 200

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	status   StatusState
	config   map[string]any
	eventLog []events.Event

	ticker   Ticker
	activity Activity
	theme    Theme

	configTable table.Model
	stream      viewport.Model

	hubEvents chan events.Event
	lastError string
}

// New creates a new watch TUI model.
func New(apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Key", Width: 20},
			{Title: "Value", Width: 40},
		}),
		table.WithHeight(6),
	)
	return &Model{
		apiURL:      strings.TrimRight(apiURL, "/"),
		apiKey:      apiKey,
		hubEvents:   make(chan events.Event, 100),
		ticker:      NewTicker(),
		theme:       NewDefaultTheme(),
		configTable: t,
		stream:      viewport.Model{Width: 80, Height: 10},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchStatus(m.apiURL, m.apiKey) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
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
		m.stream, cmd = m.stream.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.stream.Width = max(msg.Width-8, 20)
		m.stream.Height = max(msg.Height/3, 5)
		m.configTable.SetColumns([]table.Column{
			{Title: "Key", Width: 20},
			{Title: "Value", Width: max(msg.Width-36, 20)},
		})
		m.refreshStream()

	case tickMsg:
		m.activity.Decay(time.Time(msg))
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}
		m.activity.OnEvent(time.Now())
		m.applyEvent(e)
		m.refreshStream()
		m.status.Connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case statusMsg:
		m.ticker.Tick()
		m.status = StatusState{
			Connected:     true,
			Feedback:      msg.Feedback,
			Default:       msg.Default,
			Declared:      msg.Declared,
			Playing:       msg.Playing,
			Plays:         msg.Plays,
			LastCommand:   msg.LastCommand,
			Received:      msg.SignalsReceived,
			Dropped:       msg.SignalsDropped,
			Faults:        msg.Faults,
			Hooks:         msg.Hooks,
			Feedbacks:     msg.Feedbacks,
			Fingerprint:   msg.ConfigFingerprint,
			UptimeSeconds: msg.UptimeSeconds,
			LastCheck:     time.Now(),
		}
		m.setConfig(msg.ControllerConfig)
		m.lastError = ""
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg {
			return fetchStatus(m.apiURL, m.apiKey)
		})

	case sseDisconnectedMsg:
		m.status.Connected = false
		m.lastError = "SSE disconnected, reconnecting..."
		// The pending receiveNextEvent keeps waiting on the channel and
		// picks up events from the new subscription.
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchStatus(m.apiURL, m.apiKey)
		})
	}

	return m, nil
}

// applyEvent updates the cached status from an event so the header reacts
// before the next poll.
func (m *Model) applyEvent(e events.Event) {
	switch {
	case e.Type == events.PlayStarted:
		m.status.Playing = true
		m.status.Plays++
	case e.Type == events.PlayFinished:
		m.status.Playing = false
	case e.Type == events.SignalDropped:
		m.status.Dropped++
	case e.Type == events.PluginFault:
		m.status.Faults++
	case strings.HasPrefix(e.Type, events.LifecyclePrefix):
		m.status.LastCommand = strings.TrimPrefix(e.Type, events.LifecyclePrefix)
	}
}

func (m *Model) setConfig(cfg map[string]any) {
	m.config = cfg
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]table.Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, table.Row{k, fmt.Sprint(cfg[k])})
	}
	m.configTable.SetRows(rows)
}

func (m *Model) refreshStream() {
	lines := make([]string, 0, len(m.eventLog))
	for _, e := range m.eventLog {
		lines = append(lines, formatEvent(e, m.theme))
	}
	if len(lines) == 0 {
		lines = append(lines, m.theme.Dim.Render("Waiting for events..."))
	}
	m.stream.SetContent(strings.Join(lines, "\n"))
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing feedbackd watch..."
	}
	innerWidth := m.width - 4

	header := renderHeader(m.status, m.ticker, m.activity, m.theme, m.width)

	configBody := m.theme.Dim.Render("  no controller config received")
	if len(m.config) > 0 {
		configBody = m.configTable.View()
	}
	configPanel := m.theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render("CONTROLLER CONFIG"),
		configBody,
	))

	streamPanel := m.theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render("EVENT STREAM"),
		m.stream.View(),
	))

	parts := []string{header, configPanel, streamPanel}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Scroll events"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
