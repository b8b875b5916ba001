package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header represents a command header with title, command, and parameters.
type Header struct {
	Title   string            // e.g., "DEPLOY LAYOUT"
	Command string            // e.g., "deskpanel-cfg deploy"
	Params  map[string]string // e.g., {"Device": "http://192.168.4.1", "SSID": "DeskPanel-Setup"}
	Width   int               // Terminal width for responsive rendering
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params map[string]string) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string. Parameters are listed in
// key order.
func (h *Header) Render() string {
	width := clampWidth(h.Width)

	titleLine := titleStyle.Render(strings.ToUpper(h.Title))
	commandLine := indentMutedStyle.Render(h.Command)
	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	if len(h.Params) > 0 {
		dividerWidth := width - 6 // Account for border and padding
		if dividerWidth < 10 {
			dividerWidth = 10
		}
		divider := RenderHorizontalDivider(dividerWidth, "─")

		keys := make([]string, 0, len(h.Params))
		for k := range h.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		lines := make([]string, len(keys))
		for i, k := range keys {
			lines[i] = indentMutedStyle.Render(k+":") + " " + textStyle.Render(h.Params[k])
		}
		content = lipgloss.JoinVertical(lipgloss.Left, content, divider, strings.Join(lines, "\n"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2). // Account for border characters
		Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}
