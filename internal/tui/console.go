// internal/tui/console.go
//
// Live status console for a running matchwarden session. Follows the same
// bubbletea shape as the rest of the charmbracelet ecosystem: a model holds
// all state, Update reacts to messages, View renders a string.

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/matchwarden/internal/lobby"
)

const refreshInterval = 2 * time.Second

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

type refreshMsg struct{}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

type statusItem struct {
	line string
}

func (i statusItem) Title() string       { return i.line }
func (i statusItem) Description() string { return "" }
func (i statusItem) FilterValue() string { return i.line }

// Console is the bubbletea model for the live status view.
type Console struct {
	session *lobby.Session

	plugins list.Model
	recent  []string
	roster  []lobby.Participant
	active  bool

	width  int
	height int
}

// NewConsole builds the console bound to a session.
func NewConsole(session *lobby.Session) *Console {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	l := list.New(nil, delegate, 0, 8)
	l.Title = "Coordinators"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	c := &Console{
		session: session,
		plugins: l,
	}
	c.snapshot()
	return c
}

// Init implements tea.Model.
func (c *Console) Init() tea.Cmd {
	return scheduleRefresh()
}

// Update implements tea.Model.
func (c *Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return c, tea.Quit
		}
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.plugins.SetSize(msg.Width, 8)
	case refreshMsg:
		c.snapshot()
		return c, scheduleRefresh()
	}
	var cmd tea.Cmd
	c.plugins, cmd = c.plugins.Update(msg)
	return c, cmd
}

func (c *Console) snapshot() {
	lines := c.session.StatusLines()
	items := make([]list.Item, 0, len(lines))
	for _, line := range lines {
		items = append(items, statusItem{line: line})
	}
	c.plugins.SetItems(items)
	c.recent = c.session.RecentEvents()
	c.roster = c.session.Roster()
	c.active = c.session.MatchActive()
}

// View implements tea.Model.
func (c *Console) View() string {
	var b strings.Builder

	state := "waiting"
	if c.active {
		state = "match in progress"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("matchwarden · %s · %s", c.session.Name(), state)))
	b.WriteString("\n")

	b.WriteString(c.plugins.View())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Roster (%d)", len(c.roster))))
	b.WriteString("\n")
	if len(c.roster) == 0 {
		b.WriteString(eventStyle.Render("  (empty)"))
		b.WriteString("\n")
	}
	for _, p := range c.roster {
		b.WriteString("  " + p.Handle + "\n")
	}

	b.WriteString(sectionStyle.Render("Recent events"))
	b.WriteString("\n")
	recent := c.recent
	if max := 10; len(recent) > max {
		recent = recent[len(recent)-max:]
	}
	for _, line := range recent {
		b.WriteString(eventStyle.Render("  " + line))
		b.WriteString("\n")
	}

	b.WriteString(footerStyle.Render("q to quit"))
	return b.String()
}
