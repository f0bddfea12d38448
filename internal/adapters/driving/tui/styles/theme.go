// Package styles provides colour themes and styling for the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colour palette for the TUI.
type Theme struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color

	// StatusBackground fills the status bar.
	StatusBackground lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:          lipgloss.Color("#7C3AED"), // Purple
		Secondary:        lipgloss.Color("#06B6D4"), // Cyan
		Foreground:       lipgloss.Color("#CDD6F4"),
		Muted:            lipgloss.Color("#6C7086"),
		Success:          lipgloss.Color("#A6E3A1"),
		Warning:          lipgloss.Color("#F9E2AF"),
		Error:            lipgloss.Color("#F38BA8"),
		Border:           lipgloss.Color("#45475A"),
		StatusBackground: lipgloss.Color("#181825"),
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style

	// Question labels the user's turns in the transcript.
	Question lipgloss.Style

	// Answer labels the assistant's turns in the transcript.
	Answer lipgloss.Style

	// Source renders the URLs an answer was built from.
	Source lipgloss.Style

	// Tab and ActiveTab render the view switcher.
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style

	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Help       lipgloss.Style
	Border     lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme: theme,

		Title:    lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Subtitle: lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary),
		Normal:   lipgloss.NewStyle().Foreground(theme.Foreground),
		Muted:    lipgloss.NewStyle().Foreground(theme.Muted),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Foreground).
			Background(theme.Primary),
		Error:   lipgloss.NewStyle().Foreground(theme.Error),
		Success: lipgloss.NewStyle().Foreground(theme.Success),
		Warning: lipgloss.NewStyle().Foreground(theme.Warning),

		Question: lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary),
		Answer:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Source:   lipgloss.NewStyle().Italic(true).Foreground(theme.Muted),

		Tab: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),
		ActiveTab: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Foreground).
			Background(theme.Primary).
			Padding(0, 1),

		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Background(theme.StatusBackground).
			Padding(0, 1),

		Help: lipgloss.NewStyle().Foreground(theme.Muted),

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}
