package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/rayjob/jobs"
	"github.com/justapithecus/rayjob/types"
)

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "stop waiting"),
	),
}

// statusMsg carries one poll result into the model.
type statusMsg struct {
	details *types.JobDetails
	elapsed time.Duration
}

// doneMsg ends the view with the wait's outcome.
type doneMsg struct {
	details *types.JobDetails
	err     error
}

// WaitModel shows a live view of one job while it is polled.
type WaitModel struct {
	id      string
	limit   time.Duration
	spinner spinner.Model

	status  types.JobStatus
	message string
	elapsed time.Duration
	polls   int

	result   *types.JobDetails
	err      error
	done     bool
	quitting bool
}

// NewWaitModel creates the view for submission id with an optional limit.
func NewWaitModel(id string, limit time.Duration) WaitModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = WarningStyle
	return WaitModel{id: id, limit: limit, spinner: s}
}

// Init implements tea.Model.
func (m WaitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m WaitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	case statusMsg:
		m.polls++
		m.elapsed = msg.elapsed
		m.status = msg.details.Status
		m.message = msg.details.MessageText()
		return m, nil
	case doneMsg:
		m.done = true
		m.result = msg.details
		m.err = msg.err
		if msg.details != nil {
			m.status = msg.details.Status
			m.message = msg.details.MessageText()
		}
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m WaitModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Job " + m.id))
	b.WriteString("\n")

	status := string(m.status)
	if status == "" {
		status = "…"
	}
	indicator := m.spinner.View()
	if m.done || m.status.IsTerminal() {
		indicator = " "
	}
	b.WriteString(row("Status", indicator+" "+StatusStyle(status).Render(status)))

	elapsed := m.elapsed.Truncate(100 * time.Millisecond).String()
	if m.limit > 0 {
		elapsed += " / " + m.limit.String()
	}
	b.WriteString(row("Elapsed", elapsed))
	b.WriteString(row("Polls", fmt.Sprintf("%d", m.polls)))
	if m.message != "" {
		b.WriteString(row("Message", m.message))
	}
	if m.err != nil {
		b.WriteString(row("Error", ErrorStyle.Render(m.err.Error())))
	}

	out := BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
	if !m.done {
		out += "\n" + HelpStyle.Render("Press q or Ctrl+C to stop waiting (the job keeps running)")
	}
	return out + "\n"
}

func row(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value) + "\n"
}

// WaitFunc runs a wait, reporting each poll to observer.
type WaitFunc func(ctx context.Context, observer jobs.Observer) (*types.JobDetails, error)

// RunWait shows the live view while wait runs. Quitting the view cancels
// the wait and returns context.Canceled.
func RunWait(ctx context.Context, id string, limit time.Duration, wait WaitFunc) (*types.JobDetails, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewWaitModel(id, limit), tea.WithContext(ctx))
	go func() {
		details, err := wait(ctx, func(d *types.JobDetails, elapsed time.Duration) {
			p.Send(statusMsg{details: d, elapsed: elapsed})
		})
		p.Send(doneMsg{details: details, err: err})
	}()

	final, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("run TUI: %w", err)
	}

	m, ok := final.(WaitModel)
	if !ok || m.quitting || !m.done {
		return nil, context.Canceled
	}
	return m.result, m.err
}
