package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Panel shows preformatted content, such as a directory listing or an
// image header dump, in a titled rounded box.
type Panel struct {
	Title    string
	Content  string
	Width    int
	MaxLines int // Truncate after this many lines (0 = unlimited)
}

// NewPanel creates a panel with the detected terminal width
func NewPanel(title, content string) *Panel {
	return &Panel{
		Title:   title,
		Content: content,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (p *Panel) SetWidth(width int) *Panel {
	p.Width = width
	return p
}

// SetMaxLines limits the number of content lines rendered
func (p *Panel) SetMaxLines(n int) *Panel {
	p.MaxLines = n
	return p
}

// Render returns the styled panel
func (p *Panel) Render() string {
	width := clampWidth(p.Width)

	content := strings.TrimRight(p.Content, "\n")
	if p.MaxLines > 0 {
		lines := strings.Split(content, "\n")
		if len(lines) > p.MaxLines {
			hidden := len(lines) - p.MaxLines
			lines = append(lines[:p.MaxLines], noteStyle.Render(fmt.Sprintf("... %d more lines", hidden)))
			content = strings.Join(lines, "\n")
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		headingStyle.Render(p.Title),
		"",
		textStyle.Render(content),
	)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(width-2).
		Padding(0, 1).
		Render(body)
}

// String implements fmt.Stringer
func (p *Panel) String() string {
	return p.Render()
}

// Table formats rows into left-aligned columns separated by two spaces.
func Table(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, 0)
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			b.WriteString(cell)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
