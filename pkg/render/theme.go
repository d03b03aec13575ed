package render

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme defines colors and icons for terminal rendering.
type Theme struct {
	Name    string
	Primary lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Icons   ThemeIcons
}

// ThemeIcons defines the icon set for a theme.
type ThemeIcons struct {
	Pass    string
	Fail    string
	Warn    string
	Skip    string
	Context string
}

// DefaultTheme returns the color theme.
func DefaultTheme() Theme {
	return Theme{
		Name:    "default",
		Primary: lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true), // blue
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),            // green
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),           // orange
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),           // red
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),           // gray
		Bold:    lipgloss.NewStyle().Bold(true),
		Icons: ThemeIcons{
			Pass:    "✓",
			Fail:    "✗",
			Warn:    "⚠",
			Skip:    "·",
			Context: "○",
		},
	}
}

// MonoTheme returns a monochrome theme (no colors).
func MonoTheme() Theme {
	return Theme{
		Name:    "mono",
		Primary: lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Muted:   lipgloss.NewStyle(),
		Bold:    lipgloss.NewStyle(),
		Icons: ThemeIcons{
			Pass:    "+",
			Fail:    "x",
			Warn:    "!",
			Skip:    "-",
			Context: "o",
		},
	}
}

// ThemeFor picks the color theme for terminals and the mono theme for
// pipes, files and NO_COLOR.
func ThemeFor(w io.Writer) Theme {
	if os.Getenv("NO_COLOR") != "" {
		return MonoTheme()
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return DefaultTheme()
	}
	return MonoTheme()
}

// WidthFor returns the terminal width of w, or 80.
func WidthFor(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			return tw
		}
	}
	return 80
}
