package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type            ResultType        // Success, failure, or warning
	Title           string            // e.g., "Layout deployed"
	Details         map[string]string // Key-value details to display
	Notes           []string          // Bulleted notes, e.g. images that were not uploaded
	Error           error             // Error (for failure results)
	Troubleshooting []string          // Troubleshooting tips (for failure results)
	Width           int               // Terminal width
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details map[string]string) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details map[string]string) *Result {
	return &Result{
		Type:    ResultWarning,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail adds a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = value
	return r
}

// AddNote appends a bulleted note.
func (r *Result) AddNote(note string) *Result {
	r.Notes = append(r.Notes, note)
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	var (
		marker, label string
		title         lipgloss.Style
		color         lipgloss.Color
	)
	switch r.Type {
	case ResultFailure:
		marker, label, title, color = FailureMarker, "FAILED", failStyle, ErrorColor
	case ResultWarning:
		marker, label, title, color = WarningMarker, "WARNING", warnStyle, WarningColor
	default:
		marker, label, title, color = SuccessMarker, "SUCCESS", successStyle, SuccessColor
	}

	lines := []string{
		"",
		title.Render(fmt.Sprintf("   %s  %s  ─  %s", marker, label, r.Title)),
		"",
	}

	if r.Error != nil {
		lines = append(lines, errorTextStyle.Render("   Error: "+r.Error.Error()), "")
	}

	if len(r.Details) > 0 {
		lines = append(lines, r.renderDetails()...)
		lines = append(lines, "")
	}

	if len(r.Notes) > 0 {
		for _, note := range r.Notes {
			lines = append(lines, textStyle.Render("   • "+note))
		}
		lines = append(lines, "")
	}

	if len(r.Troubleshooting) > 0 {
		lines = append(lines, r.renderTroubleshootingBox(width), "")
	}

	return boxStyle(width, color).Render(strings.Join(lines, "\n"))
}

func (r *Result) renderDetails() []string {
	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = keyStyle.Render("   "+k+":") + " " + textStyle.Render(r.Details[k])
	}
	return lines
}

// renderTroubleshootingBox renders the inner troubleshooting box
func (r *Result) renderTroubleshootingBox(width int) string {
	lines := []string{headingStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, mutedStyle.Render("  • "+tip))
	}

	innerWidth := width - 12 // Indent within outer box
	if innerWidth < 40 {
		innerWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(innerWidth).
		Padding(0, 1).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// SplitHint turns a multi-line troubleshooting hint into bullet items,
// dropping blank lines, headings and existing bullet prefixes.
func SplitHint(hint string) []string {
	var tips []string
	for _, line := range strings.Split(hint, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "•")
		line = strings.TrimSpace(line)
		if line == "" || line == "Troubleshooting:" {
			continue
		}
		tips = append(tips, line)
	}
	return tips
}
