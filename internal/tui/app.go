// Package tui is a terminal dashboard showing what the daemon does to the
// browser's tabs as it happens.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabgruppen/internal/stats"
)

// maxActions bounds the activity history kept in memory.
const maxActions = 500

const statusInterval = time.Second

// --- Messages ---

type feedMsg stats.Event

type feedClosedMsg struct{}

type statusMsg struct{ connected bool }

// Source is what the dashboard reads from.
type Source struct {
	Feed      *stats.Feed
	Counters  func() (map[string]int, error) // initial values; may be nil
	Connected func() bool
	Port      int
}

// --- Model ---

type Model struct {
	src Source

	counters  map[string]int
	actions   []stats.Action // newest last
	connected bool
	err       error

	view   ViewType
	offset int // rows scrolled back from the newest action
	width  int
	height int
}

func NewModel(src Source) Model {
	m := Model{src: src, counters: make(map[string]int)}
	if src.Counters != nil {
		counters, err := src.Counters()
		if err != nil {
			m.err = err
		}
		for k, v := range counters {
			m.counters[k] = v
		}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(listenFeed(m.src.Feed), m.pollStatus())
}

func listenFeed(feed *stats.Feed) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-feed.Events()
		if !ok {
			return feedClosedMsg{}
		}
		return feedMsg(ev)
	}
}

func (m Model) pollStatus() tea.Cmd {
	return tea.Tick(statusInterval, func(time.Time) tea.Msg {
		if m.src.Connected == nil {
			return statusMsg{}
		}
		return statusMsg{connected: m.src.Connected()}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "1":
			m.view = ViewActivity
		case "2":
			m.view = ViewCounters
		case "tab":
			m.view = (m.view + 1) % ViewType(len(viewNames))
		case "up", "k":
			if m.offset < len(m.actions)-1 {
				m.offset++
			}
		case "down", "j":
			if m.offset > 0 {
				m.offset--
			}
		case "g":
			m.offset = 0
		}
		return m, nil

	case feedMsg:
		m.apply(stats.Event(msg))
		return m, listenFeed(m.src.Feed)

	case feedClosedMsg:
		return m, nil

	case statusMsg:
		m.connected = msg.connected
		return m, m.pollStatus()
	}
	return m, nil
}

func (m *Model) apply(ev stats.Event) {
	if ev.Counter != "" {
		m.counters[ev.Counter]++
	}
	if ev.Action != nil {
		m.actions = append(m.actions, *ev.Action)
		if len(m.actions) > maxActions {
			m.actions = m.actions[len(m.actions)-maxActions:]
		}
		if m.offset > 0 {
			// keep the scrolled position anchored
			m.offset++
		}
	}
}

func (m Model) View() string {
	counts := [2]int{len(m.actions), len(m.counters)}
	navbar := renderNavbar(m.view, m.connected, m.src.Port, counts, m.width)

	bodyHeight := m.height - 3
	if bodyHeight < 1 {
		bodyHeight = 10
	}

	var body string
	switch m.view {
	case ViewCounters:
		body = m.viewCounters()
	default:
		body = m.viewActivity(bodyHeight)
	}
	if m.err != nil {
		body = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("Error: "+m.err.Error()) + "\n" + body
	}

	paneStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62"))
	if m.width > 2 {
		paneStyle = paneStyle.Width(m.width - 2)
	}

	bottomBarStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	bottomBar := bottomBarStyle.Render("1-2/tab switch view · ↑↓/jk scroll · g newest · q quit")

	return lipgloss.JoinVertical(lipgloss.Left, navbar, paneStyle.Render(body), bottomBar)
}

var kindStyles = map[string]lipgloss.Style{
	stats.KindGroupCreated: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	stats.KindGroupJoined:  lipgloss.NewStyle().Foreground(lipgloss.Color("36")),
	stats.KindGroupRenamed: lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
	stats.KindGroupUngroup: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	stats.KindDeduplicated: lipgloss.NewStyle().Foreground(lipgloss.Color("170")),
	stats.KindUndoReopen:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	stats.KindUndoUngroup:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
}

func (m Model) viewActivity(height int) string {
	if len(m.actions) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("No activity yet.")
	}
	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	end := len(m.actions) - m.offset
	start := end - height
	if start < 0 {
		start = 0
	}
	var lines []string
	for i := end - 1; i >= start; i-- {
		a := m.actions[i]
		style, ok := kindStyles[a.Kind]
		if !ok {
			style = lipgloss.NewStyle()
		}
		lines = append(lines, fmt.Sprintf("%s  %s  %s",
			timeStyle.Render(a.At.Format("15:04:05")),
			style.Width(18).Render(a.Kind),
			a.Detail))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewCounters() string {
	if len(m.counters) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("No counters yet.")
	}
	names := make([]string, 0, len(m.counters))
	width := 0
	for name := range m.counters {
		names = append(names, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(names)

	nameStyle := lipgloss.NewStyle().Width(width + 2)
	valueStyle := lipgloss.NewStyle().Bold(true)
	var lines []string
	for _, name := range names {
		lines = append(lines, nameStyle.Render(name)+valueStyle.Render(fmt.Sprint(m.counters[name])))
	}
	return strings.Join(lines, "\n")
}
