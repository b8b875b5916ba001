package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/deskpanel/deskpanel/internal/deploy"
)

type deployEventMsg deploy.Event

// eventsClosedMsg is sent once the run's event channel is drained.
type eventsClosedMsg struct{}

// LiveModel is a Bubble Tea model that animates a deployment run: a
// spinner next to the active step above the step list and progress bar.
// Pressing ctrl+c cancels the run; the model keeps draining events until
// cleanup has finished so the terminal result is always shown.
type LiveModel struct {
	events     <-chan deploy.Event
	cancel     context.CancelFunc
	tracker    *deployTracker
	spinner    spinner.Model
	active     string
	cancelling bool
	done       bool
}

// NewLiveModel creates a model reading from events. cancel may be nil.
func NewLiveModel(events <-chan deploy.Event, cancel context.CancelFunc) LiveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = fg(PrimaryColor)

	return LiveModel{
		events:  events,
		cancel:  cancel,
		tracker: newDeployTracker("Deploying layout..."),
		spinner: s,
	}
}

func waitForEvent(events <-chan deploy.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return deployEventMsg(ev)
	}
}

// Init implements tea.Model
func (m LiveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update implements tea.Model
func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.cancelling {
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.tracker.progress.SetWidth(clampWidth(msg.Width))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case deployEventMsg:
		ev := deploy.Event(msg)
		m.tracker.apply(ev)
		switch ev.Kind {
		case deploy.EventStepStarted:
			m.active = ev.Step.Label()
		case deploy.EventStepDone, deploy.EventStepFailed:
			m.active = ""
		}
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model
func (m LiveModel) View() string {
	var b strings.Builder
	b.WriteString(m.tracker.progress.Render())
	b.WriteString("\n\n")

	switch {
	case m.done:
	case m.cancelling:
		b.WriteString(warnStyle.Render("  Cancelling; waiting for cleanup to finish..."))
		b.WriteString("\n")
	case m.active != "":
		b.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), m.active))
	}
	return b.String()
}

// Result returns the run result once the terminal event has arrived.
func (m LiveModel) Result() *deploy.Result {
	return m.tracker.result
}

// RunLive animates a run until its event channel closes and returns the
// run result.
func RunLive(events <-chan deploy.Event, cancel context.CancelFunc, in io.Reader, out io.Writer) (*deploy.Result, error) {
	p := tea.NewProgram(NewLiveModel(events, cancel), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress display failed: %w", err)
	}
	return final.(LiveModel).Result(), nil
}
