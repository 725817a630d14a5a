// Package browse is the interactive violation browser: step through the
// findings of one review and approve or reject them with a note.
package browse

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tildaslashalef/critiq/internal/review"
)

// Model is the browser state
type Model struct {
	ctx    context.Context
	store  *review.Store
	result *review.ReviewResult
	cursor int

	// pending is the decision waiting for its note, empty when none
	pending review.ViolationStatus
	note    textinput.Model

	viewport viewport.Model
	help     help.Model
	showHelp bool
	styles   Styles

	width         int
	height        int
	statusMessage string
	errorMsg      string
	ready         bool
}

// NewModel creates a browser over result, writing decisions to store
func NewModel(ctx context.Context, store *review.Store, result *review.ReviewResult) Model {
	note := textinput.New()
	note.Placeholder = "optional note"
	note.CharLimit = 200

	h := help.New()
	h.ShowAll = false

	return Model{
		ctx:      ctx,
		store:    store,
		result:   result,
		note:     note,
		viewport: viewport.New(10, 10),
		help:     h,
		styles:   DefaultStyles(),
	}
}

// Result returns the review as last loaded from the store
func (m Model) Result() *review.ReviewResult {
	return m.result
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Run starts the browser in the alternate screen and blocks until it quits
func Run(ctx context.Context, store *review.Store, result *review.ReviewResult) error {
	p := tea.NewProgram(NewModel(ctx, store, result), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running violation browser: %w", err)
	}
	return nil
}

// decisionMsg reports the outcome of a stored decision
type decisionMsg struct {
	index  int
	status review.ViolationStatus
	result *review.ReviewResult
	err    error
}

// decideCmd stores the decision and reloads the review
func decideCmd(ctx context.Context, store *review.Store, id string, index int, status review.ViolationStatus, note string) tea.Cmd {
	return func() tea.Msg {
		if err := store.UpdateViolationStatus(ctx, id, index, status, note); err != nil {
			return decisionMsg{index: index, status: status, err: err}
		}
		return decisionMsg{index: index, status: status, result: store.LoadByID(ctx, id)}
	}
}
