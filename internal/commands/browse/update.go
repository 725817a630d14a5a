package browse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/review"
)

// lines taken by everything but the detail pane
const chromeLines = 8

// Update handles messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-m.listHeight()-chromeLines, 3)
		m.ready = true
		m.refreshDetail()
		return m, nil

	case decisionMsg:
		if msg.err != nil {
			m.statusMessage = ""
			m.errorMsg = describeError(msg.err, msg.index)
			loggy.Warn("violation decision failed", "index", msg.index, "error", msg.err)
			return m, nil
		}
		if msg.result != nil {
			m.result = msg.result
		}
		m.errorMsg = ""
		m.statusMessage = fmt.Sprintf("Violation %d %s", msg.index, msg.status)
		m.refreshDetail()
		return m, nil

	case tea.KeyMsg:
		if m.pending != "" {
			return m.updateNote(msg)
		}
		switch {
		case key.Matches(msg, Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, Keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, Keys.Next):
			m.move(1)
			return m, nil
		case key.Matches(msg, Keys.Prev):
			m.move(-1)
			return m, nil
		case key.Matches(msg, Keys.Approve):
			return m.startDecision(review.StatusApproved)
		case key.Matches(msg, Keys.Reject):
			return m.startDecision(review.StatusRejected)
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) move(delta int) {
	n := len(m.result.Violations)
	if n == 0 {
		return
	}
	m.cursor = (m.cursor + delta + n) % n
	m.statusMessage = ""
	m.errorMsg = ""
	m.refreshDetail()
	m.viewport.GotoTop()
}

func (m Model) startDecision(status review.ViolationStatus) (tea.Model, tea.Cmd) {
	if len(m.result.Violations) == 0 {
		return m, nil
	}
	v := m.result.Violations[m.cursor]
	if v.Status != review.StatusPending && v.Status != status {
		m.errorMsg = fmt.Sprintf("Violation %d is already %s", m.cursor, v.Status)
		return m, nil
	}
	m.pending = status
	m.errorMsg = ""
	m.statusMessage = ""
	m.note.SetValue(v.ReviewNote)
	return m, m.note.Focus()
}

func (m Model) updateNote(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, Keys.Confirm):
		status := m.pending
		m.pending = ""
		m.note.Blur()
		m.statusMessage = "Saving..."
		return m, decideCmd(m.ctx, m.store, m.result.ID, m.cursor, status, strings.TrimSpace(m.note.Value()))
	case key.Matches(msg, Keys.Cancel):
		m.pending = ""
		m.note.Blur()
		m.statusMessage = "Decision cancelled"
		return m, nil
	}
	var cmd tea.Cmd
	m.note, cmd = m.note.Update(msg)
	return m, cmd
}

func describeError(err error, index int) string {
	switch {
	case errors.Is(err, review.ErrReviewNotFound):
		return "The review no longer exists"
	case errors.Is(err, review.ErrIndexOutOfRange):
		return fmt.Sprintf("The review has no violation %d", index)
	default:
		return err.Error()
	}
}
