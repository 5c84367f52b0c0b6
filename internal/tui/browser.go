// Package tui is the interactive history browser behind `eqviz browse`.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/eqviz/internal/session"
)

// opTimeout bounds each network call started from the browser.
const opTimeout = 30 * time.Second

var (
	accent = lipgloss.Color("#50E3C2")
	muted  = lipgloss.Color("#8CA1AE")
	warn   = lipgloss.Color("#FF6B6B")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	helpStyle  = lipgloss.NewStyle().Foreground(muted)
	errorStyle = lipgloss.NewStyle().Foreground(warn).Bold(true)
	infoStyle  = lipgloss.NewStyle().Foreground(accent)
	tableBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted)
)

// Session is the part of the orchestrator the browser needs.
type Session interface {
	Snapshot() session.State
	Load(ctx context.Context, id int64) error
	RefreshHistory(ctx context.Context) error
}

type refreshedMsg struct{ err error }

type loadedMsg struct {
	id  int64
	err error
}

// Model is the Bubble Tea model of the browser.
type Model struct {
	sess  Session
	table table.Model
	state session.State

	busy   string
	status string
	width  int
}

var columns = []table.Column{
	{Title: "ID", Width: 6},
	{Title: "Filename", Width: 28},
	{Title: "Uploaded", Width: 17},
	{Title: "Count", Width: 7},
	{Title: "Avg Flowrate", Width: 12},
}

// New creates a browser over sess.
func New(sess Session) Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(7),
	)
	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#05090C")).Background(accent)
	t.SetStyles(styles)

	m := Model{sess: sess, table: t}
	m.sync()
	return m
}

// Init refreshes the history.
func (m Model) Init() tea.Cmd {
	return refreshCmd(m.sess)
}

func refreshCmd(s Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return refreshedMsg{err: s.RefreshHistory(ctx)}
	}
}

func loadCmd(s Session, id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return loadedMsg{id: id, err: s.Load(ctx, id)}
	}
}

// Update handles keys and finished operations.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetHeight(max(3, msg.Height-8))
		return m, nil

	case refreshedMsg:
		m.busy = ""
		m.status = ""
		if msg.err != nil {
			m.status = "History refresh failed; showing cached entries"
		}
		m.sync()
		return m, nil

	case loadedMsg:
		m.busy = ""
		m.status = ""
		m.sync()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.busy = "Refreshing history..."
			return m, refreshCmd(m.sess)
		case "enter":
			id, ok := m.selectedID()
			if !ok {
				return m, nil
			}
			m.busy = fmt.Sprintf("Loading dataset %d...", id)
			return m, loadCmd(m.sess, id)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// selectedID returns the id of the highlighted row.
func (m Model) selectedID() (int64, bool) {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(row[0], 10, 64)
	return id, err == nil
}

// sync rebuilds the rows from the session.
func (m *Model) sync() {
	m.state = m.sess.Snapshot()
	rows := make([]table.Row, 0, len(m.state.History))
	for _, s := range m.state.History {
		rows = append(rows, table.Row{
			strconv.FormatInt(s.ID, 10),
			s.Filename,
			s.UploadedAt.Short(),
			strconv.Itoa(s.TotalCount),
			strconv.FormatFloat(s.AvgFlowrate, 'f', 2, 64),
		})
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// View renders the browser.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("eqviz · upload history"))
	b.WriteString("\n")

	if len(m.state.History) == 0 {
		b.WriteString(helpStyle.Render("  No uploads yet."))
		b.WriteString("\n")
	} else {
		b.WriteString(tableBox.Render(m.table.View()))
		b.WriteString("\n")
	}

	current := "none"
	if d := m.state.Dataset; d != nil {
		current = fmt.Sprintf("%d %s (%d rows)", d.ID, d.Filename, d.TotalCount)
	}
	b.WriteString(" Current: " + current + "\n")

	switch {
	case m.busy != "":
		b.WriteString(" " + infoStyle.Render(m.busy) + "\n")
	case m.state.Notice.IsError():
		b.WriteString(" " + errorStyle.Render(m.state.Notice.Text) + "\n")
	case m.state.Notice != nil:
		b.WriteString(" " + infoStyle.Render(m.state.Notice.Text) + "\n")
	}
	if m.status != "" {
		b.WriteString(" " + helpStyle.Render(m.status) + "\n")
	}

	b.WriteString(helpStyle.Render(" ↑/↓ move · enter load · r refresh · q quit"))
	return b.String()
}

// Run starts the browser on the terminal and returns the final model.
func Run(sess Session, opts ...tea.ProgramOption) (Model, error) {
	final, err := tea.NewProgram(New(sess), opts...).Run()
	if err != nil {
		return Model{}, err
	}
	m, _ := final.(Model)
	return m, nil
}
