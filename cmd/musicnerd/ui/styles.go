// Package ui provides the visual styling for the musicnerd questionnaire.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	// Light Mode Colors (Default)
	LightForeground = lipgloss.Color("#101F38")
	LightMuted      = lipgloss.Color("#6b7280")
	LightBorder     = lipgloss.Color("#dce0e5")

	// Dark Mode Colors
	DarkForeground = lipgloss.Color("#f2f2f2")
	DarkMuted      = lipgloss.Color("#8a94a6")
	DarkBorder     = lipgloss.Color("#2a3850")

	// Same in both modes
	ButtonColor    = lipgloss.Color("#92C6E0") // choice buttons
	ButtonText     = lipgloss.Color("#101F38")
	Recommendation = lipgloss.Color("#006400") // dark green
	Destructive    = lipgloss.Color("#e53935")
	Warning        = lipgloss.Color("#FFC107")
)

// Theme holds the current color scheme
type Theme struct {
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Foreground: LightForeground,
		Muted:      LightMuted,
		Border:     LightBorder,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Foreground: DarkForeground,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		IsDark:     true,
	}
}

// DetectTheme picks the dark theme when the terminal reports a dark
// background (COLORFGBG) or MUSICNERD_DARK_MODE=1, light otherwise.
func DetectTheme() Theme {
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
				if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
					return DarkTheme()
				}
			}
		}
	}
	if os.Getenv("MUSICNERD_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Layout
	Frame  lipgloss.Style
	Header lipgloss.Style
	Footer lipgloss.Style

	// Text
	Title          lipgloss.Style
	Question       lipgloss.Style
	Recommendation lipgloss.Style
	Muted          lipgloss.Style
	Notice         lipgloss.Style
	Divider        lipgloss.Style

	// Buttons
	Button        lipgloss.Style
	ButtonFocused lipgloss.Style

	// Dialogs
	Dialog      lipgloss.Style
	DialogTitle lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	button := lipgloss.NewStyle().
		Background(ButtonColor).
		Foreground(ButtonText).
		Padding(0, 2).
		MarginRight(1)

	return Styles{
		Theme: theme,

		Frame: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Padding(0, 1),

		Header: lipgloss.NewStyle().
			Align(lipgloss.Center).
			MarginBottom(1),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			MarginTop(1),

		Title: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),

		Question: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true).
			Align(lipgloss.Center),

		Recommendation: lipgloss.NewStyle().
			Foreground(Recommendation).
			Italic(true).
			Align(lipgloss.Center),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Notice: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),

		Button: button,

		ButtonFocused: button.
			Bold(true).
			Underline(true),

		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Destructive).
			Padding(1, 2),

		DialogTitle: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),
	}
}

// DefaultStyles returns styles for the detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	return s.Divider.Render(strings.Repeat("─", width))
}
