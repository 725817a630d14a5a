package browse

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings for the browser
type KeyMap struct {
	Help    key.Binding
	Quit    key.Binding
	Next    key.Binding
	Prev    key.Binding
	Approve key.Binding
	Reject  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap returns the default key map
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Next: key.NewBinding(
			key.WithKeys("n", "j", "down"),
			key.WithHelp("n/↓", "next violation"),
		),
		Prev: key.NewBinding(
			key.WithKeys("p", "k", "up"),
			key.WithHelp("p/↑", "previous violation"),
		),
		Approve: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "approve"),
		),
		Reject: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "reject"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "save decision"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// Keys is the key map used by the model
var Keys = DefaultKeyMap()

// ShortHelp returns the short help text for the help bubble
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Approve, k.Reject, k.Quit, k.Help}
}

// FullHelp returns the full help text for the help bubble
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev},
		{k.Approve, k.Reject, k.Confirm, k.Cancel},
		{k.Help, k.Quit},
	}
}
