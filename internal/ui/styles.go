package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette. Everything in the package is drawn from these six colors.
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // borders, dividers, spinner
	SuccessColor = lipgloss.Color("#43BF6D")
	ErrorColor   = lipgloss.Color("#FF5555")
	WarningColor = lipgloss.Color("#FFA500")
	MutedColor   = lipgloss.Color("#626262")
	TextColor    = lipgloss.Color("#FFFFFF")
)

// Content is never narrower than MinTerminalWidth nor wider than
// MaxContentWidth columns.
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func bold(c lipgloss.Color) lipgloss.Style { return fg(c).Bold(true) }

var (
	textStyle        = fg(TextColor)
	mutedStyle       = fg(MutedColor)
	noteStyle        = mutedStyle.Italic(true)
	keyStyle         = mutedStyle.Width(15)
	indentMutedStyle = mutedStyle.PaddingLeft(2)
	labelStyle       = textStyle.PaddingLeft(2)
	titleStyle       = bold(TextColor).PaddingLeft(2)
	headingStyle     = bold(MutedColor)

	doneStyle      = fg(SuccessColor)
	activeStyle    = fg(WarningColor)
	errorTextStyle = fg(ErrorColor)
	successStyle   = bold(SuccessColor)
	warnStyle      = bold(WarningColor)
	failStyle      = bold(ErrorColor)
)

// Markers
const (
	StepMarkerComplete = "✓"
	StepMarkerRunning  = "●"
	StepMarkerPending  = "·"
	StepMarkerSkipped  = "⊘"
	SuccessMarker      = "✓"
	FailureMarker      = "✗"
	WarningMarker      = "⚠"
)

// GetTerminalWidth returns the current terminal width, with fallback
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// boxStyle returns a double-bordered result box in the given color.
func boxStyle(width int, color lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 2)
}

// RenderHorizontalDivider creates a horizontal line of the specified width
func RenderHorizontalDivider(width int, char string) string {
	return lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Render(repeat(char, width))
}

func repeat(s string, n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func clampWidth(width int) int {
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}
