package session

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"bbsgate/internal/app"
	"bbsgate/internal/nodes"
	"bbsgate/internal/terminal"
)

const monitorInterval = time.Second

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(monitorInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// monitorModel is a live view of the occupied nodes. It refreshes once a
// second and follows the caller's terminal size.
type monitorModel struct {
	self   int
	state  *terminal.State
	nodes  []*nodes.Node
	cursor int
	header lipgloss.Style
	mine   lipgloss.Style
}

func newMonitor(self int, state *terminal.State, r *lipgloss.Renderer) monitorModel {
	m := monitorModel{
		self:   self,
		state:  state,
		header: r.NewStyle().Bold(true),
		mine:   r.NewStyle().Reverse(true),
	}
	m.refresh()
	return m
}

func (m *monitorModel) refresh() {
	if app.Nodes == nil {
		m.nodes = nil
	} else {
		m.nodes = app.Nodes.Active()
	}
	if m.cursor >= len(m.nodes) {
		m.cursor = max(len(m.nodes)-1, 0)
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tick()
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.nodes)-1 {
				m.cursor++
			}
		}
	case tickMsg:
		m.refresh()
		return m, tick()
	}
	return m, nil
}

func (m monitorModel) View() string {
	var b strings.Builder
	b.WriteString(m.header.Render(fmt.Sprintf("Nodes online: %d", len(m.nodes))))
	b.WriteString("\n\n")

	for i, n := range m.nodes {
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}
		ttype, size := "-", "-"
		if n.Conn != nil {
			info := n.Conn.TerminalInfo()
			if info.Type != "" {
				ttype = info.Type
			}
			if info.Width > 0 || info.Height > 0 {
				size = fmt.Sprintf("%dx%d", info.Width, info.Height)
			}
		}
		row := fmt.Sprintf("%s %3d  %-7s %-16s %-9s %s", cursor, n.ID, n.Transport, ttype, size, humanize.Time(n.ConnectedAt))
		if n.ID == m.self {
			row = m.mine.Render(row)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}

	b.WriteString("\nPress q to go back.\n")

	if width, _ := m.state.Size(); width > 0 {
		return lipgloss.NewStyle().MaxWidth(width).Render(b.String())
	}
	return b.String()
}

func (s *Session) monitor(string) bool {
	self := 0
	if s.node != nil {
		self = s.node.ID
	}

	stop := make(chan struct{})
	p := tea.NewProgram(newMonitor(self, s.state, s.display.renderer),
		tea.WithInput(s.input.reader(stop)),
		tea.WithOutput(s.rw),
		tea.WithoutSignalHandler(),
	)

	go func() {
		select {
		case <-s.input.done():
			p.Quit()
		case <-stop:
		}
	}()

	_, err := p.Run()
	close(stop)
	if err != nil {
		s.logger.Error("Monitor failed", "err", err)
	}
	return false
}
