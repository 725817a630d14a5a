package browse

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/review"
	"github.com/tildaslashalef/critiq/internal/storage"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newBrowser(t *testing.T) (Model, *review.Store) {
	t.Helper()
	store := review.NewStore(storage.NewMemoryBackend(), review.WithLogger(loggy.NewNoopLogger()))
	r := review.NewResult("/src/app/main.go", testNow)
	r.Summary = "two findings"
	r.Violations = []review.Violation{
		{Line: 3, Severity: review.SeverityHigh, Message: "unchecked error", Status: review.StatusPending},
		{Line: 9, Severity: review.SeverityLow, Message: "shadowed variable", Suggestion: "rename it", Status: review.StatusPending},
	}
	require.True(t, store.Save(context.Background(), r))

	m := NewModel(context.Background(), store, r)
	m = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, store
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// confirm presses enter on the open note and delivers the stored decision
func confirm(t *testing.T, m Model) Model {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(decisionMsg)
	require.True(t, ok)
	next, _ = next.(Model).Update(msg)
	return next.(Model)
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewBeforeSize(t *testing.T) {
	m := NewModel(context.Background(), nil, review.NewResult("x.go", testNow))
	assert.Equal(t, "Initializing...\n", m.View())
}

func TestNavigation(t *testing.T) {
	m, _ := newBrowser(t)
	assert.Contains(t, m.View(), "unchecked error")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.viewport.View(), "shadowed variable")

	m = send(t, m, keys("n"))
	assert.Equal(t, 0, m.cursor, "wraps to the first violation")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.cursor)
}

func TestApproveWithNote(t *testing.T) {
	m, store := newBrowser(t)

	m = send(t, m, keys("a"))
	assert.Equal(t, review.StatusApproved, m.pending)
	assert.Contains(t, m.View(), "approved, note:")

	m = send(t, m, keys("real bug"))
	m = confirm(t, m)

	assert.Empty(t, m.pending)
	assert.Equal(t, "Violation 0 approved", m.statusMessage)
	assert.Equal(t, review.StatusApproved, m.Result().Violations[0].Status)

	stored := store.LoadByID(context.Background(), m.Result().ID)
	require.NotNil(t, stored)
	assert.Equal(t, review.StatusApproved, stored.Violations[0].Status)
	assert.Equal(t, "real bug", stored.Violations[0].ReviewNote)
	assert.Contains(t, m.viewport.View(), "real bug")
}

func TestRejectThenApproveIsRefused(t *testing.T) {
	m, store := newBrowser(t)
	m = send(t, m, keys("j"))

	m = send(t, m, keys("x"))
	m = confirm(t, m)
	assert.Equal(t, review.StatusRejected, m.Result().Violations[1].Status)

	m = send(t, m, keys("a"))
	assert.Empty(t, m.pending)
	assert.Equal(t, "Violation 1 is already rejected", m.errorMsg)

	stored := store.LoadByID(context.Background(), m.Result().ID)
	assert.Equal(t, review.StatusRejected, stored.Violations[1].Status)
	assert.Equal(t, review.StatusPending, stored.Violations[0].Status)
}

func TestCancelDecision(t *testing.T) {
	m, store := newBrowser(t)

	m = send(t, m, keys("x"))
	m = send(t, m, keys("q"))
	assert.Equal(t, "q", m.note.Value(), "keys go to the note while it is open")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, m.pending)
	assert.Equal(t, "Decision cancelled", m.statusMessage)

	stored := store.LoadByID(context.Background(), m.Result().ID)
	assert.Equal(t, review.StatusPending, stored.Violations[0].Status)
}

func TestDecisionOnDeletedReview(t *testing.T) {
	m, store := newBrowser(t)
	require.True(t, store.ClearAll(context.Background()))

	m = send(t, m, keys("a"))
	m = confirm(t, m)
	assert.Equal(t, "The review no longer exists", m.errorMsg)
	assert.Equal(t, review.StatusPending, m.Result().Violations[0].Status)
}

func TestQuit(t *testing.T) {
	m, _ := newBrowser(t)
	_, cmd := m.Update(keys("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
