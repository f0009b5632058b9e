package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings for the TUI.
type KeyMap struct {
	// Session
	Start  key.Binding
	Stop   key.Binding
	Detect key.Binding

	// Manual playback
	Prev     key.Binding
	Next     key.Binding
	Play     key.Binding
	Pause    key.Binding
	VolUp    key.Binding
	VolDown  key.Binding
	NewQuote key.Binding

	// Global
	Quit key.Binding
	Help key.Binding
	Back key.Binding
}

// ShortHelp returns a short help message.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Prev, k.Next, k.Play, k.Help, k.Quit}
}

// FullHelp returns a full help message.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Stop, k.Detect},
		{k.Prev, k.Next, k.Play, k.NewQuote},
		{k.Pause, k.VolUp, k.VolDown},
		{k.Help, k.Back, k.Quit},
	}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop"),
		),
		Detect: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "toggle detection"),
		),
		Prev: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "prev mood"),
		),
		Next: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next mood"),
		),
		Play: key.NewBinding(
			key.WithKeys("enter", "p"),
			key.WithHelp("enter", "play mood"),
		),
		Pause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "pause"),
		),
		VolUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "volume up"),
		),
		VolDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "volume down"),
		),
		NewQuote: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "replay current mood"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
	}
}
