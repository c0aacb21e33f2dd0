// Package tui provides Bubble Tea TUI components for the rawzeo CLI.
//
// The views are opt-in (--tui) and read-only. They render the same payloads
// the plain renderers print.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#3B82F6")
	textColor      = lipgloss.Color("#FFFFFF")
)

// statBoxWidth fits an eight digit counter and the longest reason name.
const statBoxWidth = 18

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func rounded(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)
}

var (
	TitleStyle   = fg(primaryColor).Bold(true).MarginBottom(1)
	SectionStyle = fg(highlightColor).Bold(true)
	LabelStyle   = fg(mutedColor).Width(20)
	ValueStyle   = fg(textColor)
	HelpStyle    = fg(mutedColor).MarginTop(1)
	BoxStyle     = rounded(mutedColor).Padding(1, 2)

	// Stat boxes take their border color per counter; see renderStatBox.
	StatBoxStyle   = rounded(highlightColor).Padding(0, 2).Width(statBoxWidth).Align(lipgloss.Center)
	StatLabelStyle = fg(mutedColor).Align(lipgloss.Center)
	StatValueStyle = fg(textColor).Bold(true).Align(lipgloss.Center)
)

// ReasonColor picks the box color for a rejection reason.
func ReasonColor(reason string) lipgloss.Color {
	switch reason {
	case "overflow":
		return errorColor
	case "checksum", "length_mismatch":
		return warningColor
	default:
		return mutedColor
	}
}
