package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deskpanel/deskpanel/internal/deploy"
)

func finalSteps(failAt deploy.StepKey, failed bool) []deploy.DeployStep {
	steps := deploy.Steps()
	for i := range steps {
		switch {
		case !failed || steps[i].Key < failAt:
			steps[i].State = deploy.StateDone
		case steps[i].Key == failAt:
			steps[i].State = deploy.StateError
		}
	}
	return steps
}

func successEvents() []deploy.Event {
	res := &deploy.Result{
		RunID:          "run-1",
		Steps:          finalSteps(0, false),
		ConfigAttempts: 2,
		Duration:       1500 * time.Millisecond,
		Warnings:       []deploy.Warning{{Filename: "b.png", Kind: "icon", Err: errors.New("rejected")}},
	}
	evs := []deploy.Event{{Kind: deploy.EventRunStarted, RunID: "run-1"}}
	for _, s := range deploy.Steps() {
		evs = append(evs, deploy.Event{Kind: deploy.EventStepStarted, Step: s.Key})
		if s.Key == deploy.StepImages {
			evs = append(evs, deploy.Event{Kind: deploy.EventUploadFailed, Step: s.Key, Message: "icon b.png: rejected"})
		}
		evs = append(evs, deploy.Event{Kind: deploy.EventStepDone, Step: s.Key})
	}
	return append(evs, deploy.Event{Kind: deploy.EventSucceeded, Result: res})
}

func feed(evs []deploy.Event) <-chan deploy.Event {
	ch := make(chan deploy.Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestDeployRunnerConsume(t *testing.T) {
	var out strings.Builder
	r := NewDeployRunner(&out).SetWidth(90)

	res := r.Consume(feed(successEvents()))
	if res == nil || res.RunID != "run-1" {
		t.Fatalf("Consume() result = %+v, want run-1", res)
	}

	text := out.String()
	for _, want := range []string{
		"[1/9] Open USB control channel",
		"[9/9] Restore WiFi",
		"icon b.png: rejected",
		"(1 failed)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	for _, s := range r.tracker.progress.Steps {
		if s.Status != StepComplete {
			t.Errorf("step %q status = %v, want complete", s.Name, s.Status)
		}
	}
	if r.tracker.progress.Percent != 1 {
		t.Errorf("Percent = %v, want 1", r.tracker.progress.Percent)
	}
}

func TestDeployRunnerFailureMarksSkipped(t *testing.T) {
	stepErr := &deploy.StepError{Step: deploy.StepHealth, Err: deploy.ErrDeviceUnhealthy}
	res := &deploy.Result{RunID: "run-2", Steps: finalSteps(deploy.StepHealth, true), Err: stepErr}

	evs := []deploy.Event{{Kind: deploy.EventRunStarted}}
	for _, s := range deploy.Steps() {
		evs = append(evs, deploy.Event{Kind: deploy.EventStepStarted, Step: s.Key})
		if s.Key == deploy.StepHealth {
			evs = append(evs, deploy.Event{Kind: deploy.EventStepFailed, Step: s.Key, Err: stepErr})
			break
		}
		evs = append(evs, deploy.Event{Kind: deploy.EventStepDone, Step: s.Key})
	}
	evs = append(evs, deploy.Event{Kind: deploy.EventFailed, Result: res})

	var out strings.Builder
	r := NewDeployRunner(&out).SetWidth(90)
	r.Consume(feed(evs))

	steps := r.tracker.progress.Steps
	if got := steps[int(deploy.StepHealth)].Status; got != StepFailed {
		t.Errorf("health status = %v, want failed", got)
	}
	if got := steps[int(deploy.StepImages)].Status; got != StepSkipped {
		t.Errorf("images status = %v, want skipped", got)
	}
	if got := steps[int(deploy.StepBridge)].Status; got != StepComplete {
		t.Errorf("bridge status = %v, want complete", got)
	}
}

func TestDeployResultBox(t *testing.T) {
	tests := []struct {
		name string
		res  *deploy.Result
		typ  ResultType
		want []string
	}{
		{
			name: "clean success",
			res:  &deploy.Result{RunID: "r", ConfigAttempts: 1},
			typ:  ResultSuccess,
			want: []string{"Layout deployed", "Attempts:"},
		},
		{
			name: "success with warnings",
			res: &deploy.Result{RunID: "r", Warnings: []deploy.Warning{
				{Filename: "a.png", Kind: "icon", Err: errors.New("too large")},
			}},
			typ:  ResultWarning,
			want: []string{"with warnings", "icon a.png: too large"},
		},
		{
			name: "failure names step",
			res: &deploy.Result{
				RunID:            "r",
				Err:              &deploy.StepError{Step: deploy.StepAPWait, Err: errors.New("no ap")},
				DeviceMayBeStuck: true,
			},
			typ:  ResultFailure,
			want: []string{"Wait for setup access point", "power-cycle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := DeployResultBox(tt.res)
			if box.Type != tt.typ {
				t.Errorf("Type = %v, want %v", box.Type, tt.typ)
			}
			out := box.SetWidth(100).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("Render() missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestStepStatusFor(t *testing.T) {
	tests := []struct {
		state deploy.StepState
		want  StepStatus
	}{
		{deploy.StatePending, StepPending},
		{deploy.StateActive, StepRunning},
		{deploy.StateDone, StepComplete},
		{deploy.StateError, StepFailed},
	}
	for _, tt := range tests {
		if got := StepStatusFor(tt.state); got != tt.want {
			t.Errorf("StepStatusFor(%v) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestLiveModelUpdate(t *testing.T) {
	cancelled := false
	m := NewLiveModel(nil, func() { cancelled = true })

	var model = m
	for _, ev := range successEvents() {
		next, _ := model.Update(deployEventMsg(ev))
		model = next.(LiveModel)
		if ev.Kind == deploy.EventStepStarted && model.active != ev.Step.Label() {
			t.Errorf("active = %q, want %q", model.active, ev.Step.Label())
		}
	}
	if model.Result() == nil || model.Result().RunID != "run-1" {
		t.Errorf("Result() = %+v, want run-1", model.Result())
	}

	next, cmd := model.Update(eventsClosedMsg{})
	model = next.(LiveModel)
	if !model.done || cmd == nil {
		t.Errorf("closed channel should quit: done=%v cmd=%v", model.done, cmd)
	}
	if cancelled {
		t.Errorf("cancel called without ctrl+c")
	}
}
