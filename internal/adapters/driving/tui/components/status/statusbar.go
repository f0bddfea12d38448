// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
)

// State represents the current application state for display.
type State string

const (
	StateReady     State = "ready"
	StateThinking  State = "thinking"
	StateSearching State = "searching"
	StateError     State = "error"
)

// Bar displays application status and keybinding hints.
type Bar struct {
	styles   *styles.Styles
	bindings []key.Binding
	state    State
	message  string
	session  string
	width    int
}

// NewBar creates a status bar that shows hints for the given bindings.
func NewBar(s *styles.Styles, bindings []key.Binding) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &Bar{
		styles:   s,
		bindings: bindings,
		state:    StateReady,
		width:    80,
	}
}

// View renders the status bar.
func (b *Bar) View() string {
	left := b.renderLeft()
	right := b.renderRight()

	padding := max(b.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)

	return b.styles.StatusBar.Width(b.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (b *Bar) renderLeft() string {
	var parts []string
	if b.session != "" {
		parts = append(parts, b.styles.Muted.Render("session "+b.session))
	}

	switch b.state {
	case StateThinking:
		parts = append(parts, b.styles.Warning.Render("Thinking..."))
	case StateSearching:
		parts = append(parts, b.styles.Warning.Render("Searching..."))
	case StateError:
		if b.message != "" {
			parts = append(parts, b.styles.Error.Render(fmt.Sprintf("Error: %s", b.message)))
		} else {
			parts = append(parts, b.styles.Error.Render("Error"))
		}
	case StateReady:
		if b.message != "" {
			parts = append(parts, b.styles.Normal.Render(b.message))
		} else {
			parts = append(parts, b.styles.Muted.Render("Ready"))
		}
	}
	return strings.Join(parts, "  ")
}

func (b *Bar) renderRight() string {
	hints := make([]string, 0, len(b.bindings))
	for _, binding := range b.bindings {
		h := binding.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (b *Bar) SetState(state State) {
	b.state = state
}

// State returns the current state.
func (b *Bar) State() State {
	return b.state
}

// SetMessage sets a message shown next to the state.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

// Message returns the current message.
func (b *Bar) Message() string {
	return b.message
}

// SetSession sets the session ID shown on the left.
func (b *Bar) SetSession(id string) {
	b.session = id
}

// SetWidth sets the status bar width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}

// Width returns the current width.
func (b *Bar) Width() int {
	return b.width
}

// Clear resets the status bar to the ready state.
func (b *Bar) Clear() {
	b.state = StateReady
	b.message = ""
}
