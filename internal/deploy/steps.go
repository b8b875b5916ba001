package deploy

import (
	"fmt"
	"strings"
	"time"
)

// StepKey identifies one stage of a deployment run.
type StepKey int

const (
	StepBridge StepKey = iota
	StepConfigMode
	StepAPWait
	StepWiFiConnect
	StepHealth
	StepImages
	StepConfig
	StepConfigDone
	StepWiFiRestore
)

// stepOrder is the fixed execution order of a run.
var stepOrder = []StepKey{
	StepBridge,
	StepConfigMode,
	StepAPWait,
	StepWiFiConnect,
	StepHealth,
	StepImages,
	StepConfig,
	StepConfigDone,
	StepWiFiRestore,
}

func (k StepKey) String() string {
	switch k {
	case StepBridge:
		return "bridge"
	case StepConfigMode:
		return "config_mode"
	case StepAPWait:
		return "ap_wait"
	case StepWiFiConnect:
		return "wifi_connect"
	case StepHealth:
		return "health"
	case StepImages:
		return "images"
	case StepConfig:
		return "config"
	case StepConfigDone:
		return "config_done"
	case StepWiFiRestore:
		return "wifi_restore"
	default:
		return fmt.Sprintf("step(%d)", int(k))
	}
}

// Label returns the human-readable name shown in progress output.
func (k StepKey) Label() string {
	switch k {
	case StepBridge:
		return "Open USB control channel"
	case StepConfigMode:
		return "Enter config mode"
	case StepAPWait:
		return "Wait for setup access point"
	case StepWiFiConnect:
		return "Join setup access point"
	case StepHealth:
		return "Wait for device API"
	case StepImages:
		return "Upload images"
	case StepConfig:
		return "Upload layout"
	case StepConfigDone:
		return "Exit config mode"
	case StepWiFiRestore:
		return "Restore WiFi"
	default:
		return k.String()
	}
}

// StepState is the display state of one step.
type StepState int

const (
	StatePending StepState = iota
	StateActive
	StateDone
	StateError
)

func (s StepState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DeployStep is one entry of the progress list.
type DeployStep struct {
	Key   StepKey
	Label string
	State StepState
}

// Steps returns a fresh, all-pending step list in execution order.
func Steps() []DeployStep {
	steps := make([]DeployStep, len(stepOrder))
	for i, k := range stepOrder {
		steps[i] = DeployStep{Key: k, Label: k.Label(), State: StatePending}
	}
	return steps
}

// EventKind classifies an Event.
type EventKind int

const (
	EventRunStarted EventKind = iota
	EventStepStarted
	EventStepDone
	EventStepFailed
	EventUploadFailed
	EventWarning
	EventDeviceMayBeStuck
	EventSucceeded
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventRunStarted:
		return "run_started"
	case EventStepStarted:
		return "step_started"
	case EventStepDone:
		return "step_done"
	case EventStepFailed:
		return "step_failed"
	case EventUploadFailed:
		return "upload_failed"
	case EventWarning:
		return "warning"
	case EventDeviceMayBeStuck:
		return "device_may_be_stuck"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Terminal reports whether no further events follow this one.
func (k EventKind) Terminal() bool {
	return k == EventSucceeded || k == EventFailed
}

// Event is one progress notification from a run.
type Event struct {
	RunID   string
	Kind    EventKind
	Step    StepKey
	Message string
	Err     error
	Time    time.Time

	// Warnings is set on EventWarning.
	Warnings []Warning

	// Result is set on terminal events.
	Result *Result
}

func (e Event) String() string {
	switch e.Kind {
	case EventStepStarted, EventStepDone:
		return fmt.Sprintf("%s %s", e.Kind, e.Step)
	case EventStepFailed:
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Step, e.Err)
	default:
		if e.Message != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Message)
		}
		return e.Kind.String()
	}
}

// Warning records a cosmetic failure that did not stop the run.
type Warning struct {
	Filename string
	Kind     string // "icon" or "background"
	Err      error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %v", w.Kind, w.Filename, w.Err)
}

// summarizeWarnings joins warnings into one message naming every file.
func summarizeWarnings(ws []Warning) string {
	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.Filename
	}
	noun := "images"
	if len(ws) == 1 {
		noun = "image"
	}
	return fmt.Sprintf("%d %s not uploaded: %s", len(ws), noun, strings.Join(names, ", "))
}

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Steps    []DeployStep
	Warnings []Warning
	Err      error
	Duration time.Duration

	// ConfigAttempts is how many config uploads were made before success.
	ConfigAttempts int

	// DeviceMayBeStuck is set when the exit-config-mode report could not
	// be delivered during cleanup.
	DeviceMayBeStuck bool

	// ExitSkipped is set when cleanup had no bridge handle to send the
	// exit report on.
	ExitSkipped bool
}

// Succeeded reports whether the run completed every step.
func (r *Result) Succeeded() bool {
	return r.Err == nil
}
