package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/saddatahmad19/deepdomain/internal/dispatch"
	"github.com/saddatahmad19/deepdomain/internal/events"
)

type tickMsg time.Time
type eventMsg events.Event

// refreshInterval paces snapshot redraws between hub events.
const refreshInterval = 250 * time.Millisecond

// Model is the main BubbleTea model for the scan view.
type Model struct {
	domain string
	mode   string

	state *dispatch.State

	width  int
	height int

	progress progress.Model
	viewport viewport.Model
	ready    bool

	theme Theme

	hubEvents chan events.Event
	cancelSub func()

	// subDone stops the hub forwarder once the model quits and stops
	// draining hubEvents; forwarderDone closes when the forwarder exits.
	subDone       chan struct{}
	forwarderDone chan struct{}

	// onQuit is invoked once when the user asks to leave; it should stop
	// running commands and unwind the scan.
	onQuit    func()
	quitAsked bool
}

// New creates the scan view. The hub subscription drives immediate
// redraws; the state snapshot is the single source of render truth.
func New(domain, mode string, state *dispatch.State, hub *events.Hub, onQuit func()) *Model {
	ch, cancel := hub.Subscribe()
	m := &Model{
		domain:    domain,
		mode:      mode,
		state:     state,
		progress:  progress.New(progress.WithDefaultGradient()),
		theme:     NewDefaultTheme(),
		hubEvents: make(chan events.Event, 100),
		cancelSub: cancel,
		onQuit:    onQuit,

		subDone:       make(chan struct{}),
		forwarderDone: make(chan struct{}),
	}
	go func() {
		defer close(m.forwarderDone)
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				select {
				case m.hubEvents <- ev:
				case <-m.subDone:
					return
				}
			case <-m.subDone:
				return
			}
		}
	}()
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		receiveNextEvent(m.hubEvents),
		tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func receiveNextEvent(ch chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.quitAsked {
				m.quitAsked = true
				close(m.subDone)
				if m.onQuit != nil {
					m.onQuit()
				}
			}
			m.cancelSub()
			return m, tea.Quit
		case "up", "k":
			m.viewport.ScrollUp(1)
		case "down", "j":
			m.viewport.ScrollDown(1)
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 30
		if m.progress.Width < 10 {
			m.progress.Width = 10
		}
		m.resizeViewport()
		m.ready = true

	case tickMsg:
		m.refreshViewport()
		return m, tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		m.refreshViewport()
		return m, receiveNextEvent(m.hubEvents)
	}

	return m, nil
}

func (m *Model) resizeViewport() {
	// Status panel height grows with the message log; the output panel
	// takes the rest of the screen.
	outputHeight := m.height - m.statusPanelHeight() - 4
	if outputHeight < 3 {
		outputHeight = 3
	}
	if !m.ready {
		m.viewport = viewport.New(m.width-6, outputHeight)
	} else {
		m.viewport.Width = m.width - 6
		m.viewport.Height = outputHeight
	}
}

func (m *Model) statusPanelHeight() int {
	snap := m.state.Snapshot()
	return len(snap.Messages) + 5
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	snap := m.state.Snapshot()
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(strings.Join(snap.Output, "\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) View() string {
	if !m.ready {
		return "Starting scan view..."
	}

	snap := m.state.Snapshot()
	innerWidth := m.width - 4

	status := m.renderStatus(snap, innerWidth)
	output := m.renderOutput(snap, innerWidth)
	help := m.theme.Dim.Render(" [q] Quit • [↑/↓] Scroll output • [g/G] Top/Bottom")

	return lipgloss.NewStyle().Margin(0, 1).Render(
		lipgloss.JoinVertical(lipgloss.Left, status, output, help),
	)
}

func (m *Model) renderStatus(snap dispatch.Snapshot, width int) string {
	title := m.theme.Title.Render(fmt.Sprintf("DEEPDOMAIN — %s (%s)", m.domain, m.mode))

	var phase string
	if snap.PhaseLabel != "" {
		phase = fmt.Sprintf("%s %s",
			m.theme.Highlight.Render(snap.PhaseLabel),
			m.progress.ViewAs(float64(snap.PhasePercent)/100.0))
	} else {
		phase = m.theme.Dim.Render("Waiting for first phase...")
	}

	lines := snap.Messages
	if len(lines) == 0 {
		lines = []string{m.theme.Dim.Render("No status messages yet.")}
	}

	body := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left, title, phase, body)
	return m.theme.Border.Width(width).Render(content)
}

func (m *Model) renderOutput(snap dispatch.Snapshot, width int) string {
	var title string
	switch {
	case snap.Running:
		title = m.theme.Title.Render("RUNNING ") +
			m.theme.StatusRunning.Render(truncate(snap.Command, width-12))
	case snap.Command != "":
		title = m.theme.Title.Render("DONE ") +
			m.theme.StatusOK.Render(truncate(snap.Command, width-9))
	default:
		title = m.theme.Title.Render("OUTPUT")
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.viewport.View())
	return m.theme.Border.Width(width).Render(content)
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
