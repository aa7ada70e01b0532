// Package tui renders the live loop status view behind
// `loop status --watch`.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/planloop/planloop/internal/loop"
	"github.com/planloop/planloop/internal/plan"
	"github.com/planloop/planloop/internal/util"
)

const pollInterval = 500 * time.Millisecond

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(12)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type tickMsg time.Time

// stateMsg carries one store poll result.
type stateMsg struct {
	state      *loop.State
	tasksDone  int
	tasksTotal int
	err        error
}

// StatusModel polls the loop store on a tick and renders the current
// state. It is read-only; the watch view never mutates the loop.
type StatusModel struct {
	store *loop.Store

	spinner    spinner.Model
	state      *loop.State
	tasksDone  int
	tasksTotal int
	width      int
	err        error
	quitting   bool
}

// NewStatusModel creates the watch model over the given store.
func NewStatusModel(store *loop.Store) StatusModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return StatusModel{store: store, spinner: sp}
}

func (m StatusModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll(), tick())
}

func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.poll(), tick())

	case stateMsg:
		m.state = msg.state
		m.tasksDone = msg.tasksDone
		m.tasksTotal = msg.tasksTotal
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("planloop status"))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("error: %v", m.err)))
		b.WriteString("\n")
	case m.state == nil:
		b.WriteString(idleStyle.Render("No active loop."))
		b.WriteString("\n")
	default:
		st := m.state
		b.WriteString(m.spinner.View())
		b.WriteString(row("mode", string(st.Mode)))
		b.WriteString(row("iteration", iterationLabel(st)))
		if st.SessionID != "" {
			b.WriteString(row("session", st.SessionID))
		}
		if st.HasTask() {
			b.WriteString(row("task", fmt.Sprintf("%s (#%d)", st.CurrentTaskID, st.CurrentTaskOrdinal)))
		}
		if m.tasksTotal > 0 {
			b.WriteString(row("plan", fmt.Sprintf("%d/%d tasks done", m.tasksDone, m.tasksTotal)))
		}
		b.WriteString(row("started", st.StartedAt.Format(time.Stamp)))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q to quit"))
	b.WriteString("\n")

	if m.width > 0 {
		lines := strings.Split(b.String(), "\n")
		for i, line := range lines {
			lines[i] = util.TruncateANSI(line, m.width)
		}
		return strings.Join(lines, "\n")
	}
	return b.String()
}

func (m StatusModel) poll() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		st, err := store.Load()
		msg := stateMsg{state: st, err: err}
		if err == nil && st != nil && st.PlanPath != "" {
			if doc, derr := plan.Load(st.PlanPath); derr == nil {
				msg.tasksDone = doc.CountByStatus(plan.StatusCompleted)
				msg.tasksTotal = len(doc.Tasks)
			}
		}
		return msg
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func row(label, value string) string {
	return fmt.Sprintf("\n%s %s", labelStyle.Render(label), valueStyle.Render(value))
}

func iterationLabel(st *loop.State) string {
	if st.MaxIterations > 0 {
		return fmt.Sprintf("%d of %d", st.Iteration, st.MaxIterations)
	}
	return fmt.Sprintf("%d (unbounded)", st.Iteration)
}
