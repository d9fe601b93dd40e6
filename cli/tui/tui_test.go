package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/rayjob/types"
)

func details(status types.JobStatus, message string) *types.JobDetails {
	id := "raysubmit_1"
	d := &types.JobDetails{SubmissionID: &id, Status: status}
	if message != "" {
		d.Message = &message
	}
	return d
}

func TestWaitModel_TracksPolls(t *testing.T) {
	var m tea.Model = NewWaitModel("raysubmit_1", 30*time.Second)

	m, _ = m.Update(statusMsg{details: details(types.JobStatusPending, ""), elapsed: 0})
	m, _ = m.Update(statusMsg{details: details(types.JobStatusRunning, "driver started"), elapsed: 500 * time.Millisecond})

	wm := m.(WaitModel)
	if wm.polls != 2 || wm.status != types.JobStatusRunning {
		t.Errorf("model = %+v", wm)
	}
	view := wm.View()
	for _, want := range []string{"raysubmit_1", "RUNNING", "driver started", "500ms / 30s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestWaitModel_DoneQuits(t *testing.T) {
	var m tea.Model = NewWaitModel("raysubmit_1", 0)

	m, cmd := m.Update(doneMsg{details: details(types.JobStatusFailed, "exit code 1")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("done should quit")
	}

	wm := m.(WaitModel)
	if !wm.done || wm.result.Status != types.JobStatusFailed {
		t.Errorf("model = %+v", wm)
	}
	if strings.Contains(wm.View(), "Press q") {
		t.Error("help shown after completion")
	}
}

func TestWaitModel_ErrorShown(t *testing.T) {
	var m tea.Model = NewWaitModel("raysubmit_1", 0)
	m, _ = m.Update(doneMsg{err: errors.New("connection refused")})

	if !strings.Contains(m.View(), "connection refused") {
		t.Errorf("view = %s", m.View())
	}
}

func TestWaitModel_QuitKey(t *testing.T) {
	var m tea.Model = NewWaitModel("raysubmit_1", 0)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || !m.(WaitModel).quitting {
		t.Error("q should quit")
	}
}

func TestStatusStyle(t *testing.T) {
	for _, status := range []string{"PENDING", "RUNNING", "SUCCEEDED", "FAILED", "STOPPED", "other"} {
		if got := StatusStyle(status).Render(status); !strings.Contains(got, status) {
			t.Errorf("StatusStyle(%q) lost text: %q", status, got)
		}
	}
}
