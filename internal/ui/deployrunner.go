package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/deskpanel/deskpanel/internal/deploy"
)

// deployTracker folds deploy events into a Progress display.
type deployTracker struct {
	progress *Progress
	index    map[deploy.StepKey]int // step key -> 1-based step number
	failures int                    // image uploads that failed so far
	result   *deploy.Result
}

func newDeployTracker(label string) *deployTracker {
	steps := deploy.Steps()
	names := make([]string, len(steps))
	index := make(map[deploy.StepKey]int, len(steps))
	for i, s := range steps {
		names[i] = s.Label
		index[s.Key] = i + 1
	}
	return &deployTracker{
		progress: NewProgress(label, names),
		index:    index,
	}
}

// StepStatusFor maps an orchestrator step state onto a display status.
func StepStatusFor(state deploy.StepState) StepStatus {
	switch state {
	case deploy.StateActive:
		return StepRunning
	case deploy.StateDone:
		return StepComplete
	case deploy.StateError:
		return StepFailed
	default:
		return StepPending
	}
}

func (t *deployTracker) apply(ev deploy.Event) {
	n := t.index[ev.Step]
	switch ev.Kind {
	case deploy.EventStepStarted:
		t.progress.UpdateStep(n, StepRunning, "")
	case deploy.EventStepDone:
		msg := ""
		if ev.Step == deploy.StepImages && t.failures > 0 {
			msg = fmt.Sprintf("%d failed", t.failures)
		}
		t.progress.UpdateStep(n, StepComplete, msg)
	case deploy.EventStepFailed:
		t.progress.UpdateStep(n, StepFailed, shortError(ev.Err))
	case deploy.EventUploadFailed:
		t.failures++
	case deploy.EventSucceeded, deploy.EventFailed:
		t.result = ev.Result
		if ev.Result != nil {
			t.sync(ev.Result.Steps)
		}
	}
}

// sync copies the final step states, which also covers steps that never
// emitted an event because the run stopped before them.
func (t *deployTracker) sync(steps []deploy.DeployStep) {
	for _, s := range steps {
		n := t.index[s.Key]
		if n == 0 {
			continue
		}
		status := StepStatusFor(s.State)
		if status == StepPending && t.result != nil && !t.result.Succeeded() {
			status = StepSkipped
		}
		if t.progress.Steps[n-1].Status != status {
			t.progress.UpdateStep(n, status, t.progress.Steps[n-1].Message)
		}
	}
}

func shortError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 48 {
		msg = msg[:45] + "..."
	}
	return msg
}

// DeployRunner prints deployment progress as plain lines, one per event
// that changes what the user should know. It is used when stdout is not a
// terminal or --plain is given.
type DeployRunner struct {
	printer *Printer
	tracker *deployTracker
}

// NewDeployRunner creates a runner writing to w (os.Stdout when nil).
func NewDeployRunner(w io.Writer) *DeployRunner {
	return &DeployRunner{
		printer: NewPrinter(w),
		tracker: newDeployTracker("Deploying layout..."),
	}
}

// SetWidth overrides the detected terminal width
func (r *DeployRunner) SetWidth(width int) *DeployRunner {
	r.printer.SetWidth(width)
	r.tracker.progress.SetWidth(width)
	return r
}

// PrintHeader prints the command header box.
func (r *DeployRunner) PrintHeader(command string, params map[string]string) {
	r.printer.PrintHeader("Deploy Layout", command, params)
	r.printer.Newline()
}

// Handle prints the line for one event.
func (r *DeployRunner) Handle(ev deploy.Event) {
	t := r.tracker
	t.apply(ev)

	switch ev.Kind {
	case deploy.EventRunStarted:
		r.printer.Println(labelStyle.Render(t.progress.Label))
		r.printer.Newline()
	case deploy.EventStepStarted:
		n := t.index[ev.Step]
		r.printer.Println(mutedStyle.Render(fmt.Sprintf("  [%d/%d] %s...", n, t.progress.Total, ev.Step.Label())))
	case deploy.EventStepDone, deploy.EventStepFailed:
		n := t.index[ev.Step]
		r.printer.Println(t.progress.renderStepLine(t.progress.Steps[n-1]))
	case deploy.EventUploadFailed:
		r.printer.Println(warnStyle.Render("        "+WarningMarker+" ") + ev.Message)
	case deploy.EventDeviceMayBeStuck:
		r.printer.Println(failStyle.Render("  "+WarningMarker+" ") + ev.Message)
	}
}

// Consume handles events until the channel closes and returns the result
// carried by the terminal event.
func (r *DeployRunner) Consume(events <-chan deploy.Event) *deploy.Result {
	for ev := range events {
		r.Handle(ev)
	}
	return r.tracker.result
}

// PrintResult prints the final result box for res.
func (r *DeployRunner) PrintResult(res *deploy.Result) {
	if res == nil {
		return
	}
	r.printer.Newline()
	r.printer.PrintResult(DeployResultBox(res))
}

// DeployResultBox builds the success, warning or failure box for a run.
func DeployResultBox(res *deploy.Result) *Result {
	details := map[string]string{
		"Run":      res.RunID,
		"Duration": res.Duration.Round(time.Millisecond).String(),
	}

	if !res.Succeeded() {
		title := "Deployment failed"
		if step, ok := deploy.FailedStep(res.Err); ok {
			title = "Deployment failed at: " + step.Label()
		}
		box := NewFailureResult(title, res.Err, SplitHint(deploy.GetTroubleshootingHint(res.Err)))
		box.Details = details
		if res.DeviceMayBeStuck {
			box.AddNote("The display may still be in config mode; power-cycle it before retrying")
		}
		for _, w := range res.Warnings {
			box.AddNote(w.String())
		}
		return box
	}

	if res.ConfigAttempts > 0 {
		details["Attempts"] = fmt.Sprintf("%d", res.ConfigAttempts)
	}

	if len(res.Warnings) == 0 && !res.DeviceMayBeStuck {
		return NewSuccessResult("Layout deployed", details)
	}

	box := NewWarningResult("Layout deployed with warnings", details)
	if res.DeviceMayBeStuck {
		box.AddNote("The display may still be in config mode; power-cycle it")
	}
	for _, w := range res.Warnings {
		box.AddNote(w.String())
	}
	return box
}
