package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Skipped
)

// Step represents a single step in a multi-step operation
type Step struct {
	Number  int        // Step number (1-based)
	Name    string     // Step description
	Status  StepStatus // Current status
	Message string     // Optional status message (e.g., "2 warnings", "attempt 2")
}

// Progress represents a progress display with bar and step list
type Progress struct {
	Label     string  // e.g., "Deploying layout..."
	Steps     []Step  // List of steps
	Current   int     // Current step (1-based)
	Total     int     // Total steps
	Percent   float64 // Progress percentage (0.0 - 1.0)
	Width     int     // Terminal width
	ShowBar   bool    // Whether to show progress bar
	ShowSteps bool    // Whether to show step list
	bar       progress.Model
}

// NewProgress creates a progress display with one pending step per name
func NewProgress(label string, names []string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Number: i + 1, Name: name, Status: StepPending}
	}

	p := &Progress{
		Label:     label,
		Steps:     steps,
		Total:     len(names),
		ShowBar:   true,
		ShowSteps: true,
	}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := width - 20 // Leave room for percentage and step count
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// UpdateStep updates a specific step's status and optional message
func (p *Progress) UpdateStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(p.Steps) {
		return
	}
	idx := stepNumber - 1
	p.Steps[idx].Status = status
	p.Steps[idx].Message = message

	if status == StepRunning {
		p.Current = stepNumber
		return
	}

	completed := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete || s.Status == StepSkipped {
			completed++
		}
	}
	if p.Total > 0 {
		p.Percent = float64(completed) / float64(p.Total)
	}
}

// Render returns the styled progress display as a string
func (p *Progress) Render() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString(labelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}
	if p.ShowBar {
		b.WriteString(p.renderProgressBar())
		b.WriteString("\n\n")
	}
	if p.ShowSteps {
		lines := make([]string, len(p.Steps))
		for i, step := range p.Steps {
			lines[i] = p.renderStepLine(step)
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}

func (p *Progress) renderProgressBar() string {
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]", p.bar.ViewAs(p.Percent), p.Percent*100, p.Current, p.Total))
}

// stepLooks maps a status to its marker and style. Unknown statuses render
// as pending.
var stepLooks = map[StepStatus]struct {
	marker string
	style  lipgloss.Style
}{
	StepPending:  {StepMarkerPending, mutedStyle},
	StepRunning:  {StepMarkerRunning, activeStyle},
	StepComplete: {StepMarkerComplete, doneStyle},
	StepFailed:   {FailureMarker, failStyle},
	StepSkipped:  {StepMarkerSkipped, mutedStyle},
}

// renderStepLine renders "  [n/N] Name          ✓  (message)"
func (p *Progress) renderStepLine(step Step) string {
	look, ok := stepLooks[step.Status]
	if !ok {
		look = stepLooks[StepPending]
	}
	marker, style := look.marker, look.style

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", step.Number, p.Total)
	b.WriteString(style.Render(step.Name))

	// Align markers in one column
	const nameColumn = 36
	padding := nameColumn - lipgloss.Width(step.Name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(style.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(noteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
