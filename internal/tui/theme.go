package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorMuted   = ac("240", "243")
	colorSurface = ac("235", "252")
	colorAccent  = ac("27", "62")
	colorOK      = ac("28", "78")
	colorError   = ac("160", "203")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorSurface)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	accentStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(colorOK)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)
	ruleStyle   = lipgloss.NewStyle().Foreground(colorMuted)
)

// plainTerminal reports whether escape sequences are off, in which case markdown is
// rendered without styling too.
func plainTerminal() bool {
	return lipgloss.ColorProfile() == termenv.Ascii
}
