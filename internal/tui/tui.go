// Package tui implements the optional live status dashboard, a Bubble
// Tea program showing one row per tailed file: its current offset, its
// distance from end-of-file, and how many records are queued behind it.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Row is one file's status at a point in time.
type Row struct {
	Path    string
	Offset  int64
	Lag     int64 // bytes between offset and current file size
	Backlog int   // records queued for the sink but not yet committed
}

// Snapshot is polled by the dashboard on every refresh tick.
type Snapshot interface {
	Snapshot() []Row
}

const refreshInterval = 500 * time.Millisecond

type tickMsg time.Time

type model struct {
	source Snapshot
	table  table.Model
}

// New builds a dashboard program polling source every 500ms.
func New(source Snapshot) *tea.Program {
	return tea.NewProgram(newModel(source))
}

func newModel(source Snapshot) model {
	columns := []table.Column{
		{Title: "File", Width: 40},
		{Title: "Offset", Width: 12},
		{Title: "Lag", Width: 10},
		{Title: "Backlog", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(20),
	)
	style := table.DefaultStyles()
	style.Header = style.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	style.Selected = lipgloss.NewStyle()
	t.SetStyles(style)

	return model{source: source, table: t}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.table.SetRows(renderRows(m.source.Snapshot()))
		return m, tick()
	}
	return m, nil
}

func renderRows(rows []Row) []table.Row {
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = table.Row{
			r.Path,
			fmt.Sprintf("%d", r.Offset),
			fmt.Sprintf("%d", r.Lag),
			fmt.Sprintf("%d", r.Backlog),
		}
	}
	return out
}

func (m model) View() string {
	return m.table.View() + "\n(q to quit)\n"
}
