// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	// Quit exits the application.
	Quit key.Binding

	// Send submits the question or query being typed.
	Send key.Binding

	// SwitchView toggles between the chat and search views.
	SwitchView key.Binding

	// ScrollUp and ScrollDown page through the transcript.
	ScrollUp   key.Binding
	ScrollDown key.Binding

	// Up and Down move through search results.
	Up   key.Binding
	Down key.Binding

	// Reset forgets the conversation.
	Reset key.Binding

	// ToggleSources shows or hides source URLs under answers.
	ToggleSources key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		SwitchView: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "chat/search"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "down"),
		),
		Reset: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "new conversation"),
		),
		ToggleSources: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "sources"),
		),
	}
}

// ChatHelp returns the keybindings shown in the chat view.
func (k *KeyMap) ChatHelp() []key.Binding {
	return []key.Binding{k.Send, k.SwitchView, k.Reset, k.Quit}
}

// SearchHelp returns the keybindings shown in the search view.
func (k *KeyMap) SearchHelp() []key.Binding {
	return []key.Binding{k.Send, k.Up, k.Down, k.SwitchView, k.Quit}
}

// FullHelp returns the full list of keybindings.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.SwitchView, k.Quit},
		{k.ScrollUp, k.ScrollDown, k.Up, k.Down},
		{k.Reset, k.ToggleSources},
	}
}

// Matches checks if a key string matches a binding.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
