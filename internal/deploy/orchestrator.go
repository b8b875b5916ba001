package deploy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deskpanel/deskpanel/internal/deviceapi"
	"github.com/deskpanel/deskpanel/internal/logging"
	"github.com/deskpanel/deskpanel/internal/wifi"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ControlChannel toggles the display's configuration mode.
// *hidbridge.Bridge satisfies it.
type ControlChannel interface {
	SendEnterConfigMode() error
	SendExitConfigMode() error
	Close()
}

// BridgeOpener opens the control channel at the start of a run.
type BridgeOpener func() (ControlChannel, error)

// NetworkSwitcher moves the host onto the display's access point and
// back. *wifi.Switcher satisfies it.
type NetworkSwitcher interface {
	WaitForAP(ctx context.Context, ssid string, timeout time.Duration) bool
	ConnectTo(ctx context.Context, ssid string, timeout time.Duration) error
	RestorePrevious(ctx context.Context)
}

// DeviceAPI is the subset of the device HTTP client a run uses.
// *deviceapi.Client satisfies it.
type DeviceAPI interface {
	WaitForDevice(ctx context.Context, timeout, interval time.Duration) bool
	UploadImage(ctx context.Context, filename string, data []byte) (*deviceapi.ImageUploadResult, error)
	UploadBackground(ctx context.Context, filename string, data []byte) (*deviceapi.ImageUploadResult, error)
	UploadConfig(ctx context.Context, configJSON string) (*deviceapi.ConfigUploadResult, error)
}

const (
	DefaultConfigModeDelay = 2 * time.Second
	DefaultAPWait          = 15 * time.Second
	DefaultWiFiVerify      = 15 * time.Second
	DefaultHealthWait      = 10 * time.Second
	DefaultHealthInterval  = 500 * time.Millisecond
)

// Options configures an Orchestrator.
type Options struct {
	SSID string // setup access point of the display

	ConfigModeDelay time.Duration // pause after the enter-config-mode report
	APWait          time.Duration
	WiFiVerify      time.Duration
	HealthWait      time.Duration
	HealthInterval  time.Duration

	Logger *zap.Logger
}

func (o *Options) fillDefaults() {
	if o.ConfigModeDelay == 0 {
		o.ConfigModeDelay = DefaultConfigModeDelay
	}
	if o.APWait == 0 {
		o.APWait = DefaultAPWait
	}
	if o.WiFiVerify == 0 {
		o.WiFiVerify = DefaultWiFiVerify
	}
	if o.HealthWait == 0 {
		o.HealthWait = DefaultHealthWait
	}
	if o.HealthInterval == 0 {
		o.HealthInterval = DefaultHealthInterval
	}
}

// Status is a snapshot of the orchestrator.
type Status struct {
	Running bool
	RunID   string
	Steps   []DeployStep
}

// Orchestrator runs deployment plans against one display, one at a time.
type Orchestrator struct {
	openBridge BridgeOpener
	network    NetworkSwitcher
	api        DeviceAPI
	opts       Options
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	runID   string
	steps   []DeployStep
}

// New creates an Orchestrator over its three collaborators.
func New(openBridge BridgeOpener, network NetworkSwitcher, api DeviceAPI, opts Options) *Orchestrator {
	opts.fillDefaults()
	return &Orchestrator{
		openBridge: openBridge,
		network:    network,
		api:        api,
		opts:       opts,
		logger:     logging.Or(opts.Logger),
		steps:      Steps(),
	}
}

// Status returns the current or most recent run's progress.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	steps := make([]DeployStep, len(o.steps))
	copy(steps, o.steps)
	return Status{Running: o.running, RunID: o.runID, Steps: steps}
}

// Start begins a run in the background. The returned channel carries
// every event of the run and is closed after the terminal event. The
// caller must drain it.
func (o *Orchestrator) Start(ctx context.Context, plan *Plan) (<-chan Event, error) {
	runID, err := o.acquire()
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 4*len(stepOrder))
	go func() {
		defer close(events)
		o.execute(ctx, runID, plan, func(ev Event) { events <- ev })
	}()
	return events, nil
}

// Deploy runs plan synchronously, passing every event to onEvent (which
// may be nil). The returned error is a *StepError for a failed run.
func (o *Orchestrator) Deploy(ctx context.Context, plan *Plan, onEvent func(Event)) (*Result, error) {
	runID, err := o.acquire()
	if err != nil {
		return nil, err
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	res := o.execute(ctx, runID, plan, onEvent)
	return res, res.Err
}

func (o *Orchestrator) acquire() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return "", ErrRunInProgress
	}
	o.running = true
	o.runID = uuid.NewString()
	o.steps = Steps()
	return o.runID, nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

func (o *Orchestrator) setState(key StepKey, state StepState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.steps {
		if o.steps[i].Key == key {
			o.steps[i].State = state
			return
		}
	}
}

// execute owns the guard from acquire and always releases it.
func (o *Orchestrator) execute(ctx context.Context, runID string, plan *Plan, emit func(Event)) *Result {
	defer o.release()

	r := &run{
		o:      o,
		id:     runID,
		plan:   plan,
		emit:   emit,
		logger: o.logger.With(zap.String("run_id", runID)),
		start:  time.Now(),
	}
	r.warnings = append(r.warnings, plan.Warnings...)
	return r.execute(ctx)
}

// run holds the state of one execution.
type run struct {
	o      *Orchestrator
	id     string
	plan   *Plan
	emit   func(Event)
	logger *zap.Logger
	start  time.Time

	bridge         ControlChannel
	warnings       []Warning
	configAttempts int
}

func (r *run) event(kind EventKind, step StepKey, msg string, err error) Event {
	return Event{RunID: r.id, Kind: kind, Step: step, Message: msg, Err: err, Time: time.Now()}
}

func (r *run) execute(ctx context.Context) *Result {
	r.logger.Info("Deployment started", zap.Stringer("plan", r.plan))
	r.emit(r.event(EventRunStarted, StepBridge, r.plan.String(), nil))

	// Calls made inside a step are not interrupted by cancellation; it is
	// observed at the next step boundary.
	stepCtx := context.WithoutCancel(ctx)

	res := &Result{RunID: r.id}
	for _, key := range stepOrder {
		if err := ctx.Err(); err != nil {
			res.Err = &StepError{Step: key, Err: err}
			r.logger.Warn("Deployment cancelled", zap.Stringer("step", key))
			r.o.setState(key, StateError)
			r.emit(r.event(EventStepFailed, key, "cancelled", err))
			break
		}

		r.o.setState(key, StateActive)
		r.emit(r.event(EventStepStarted, key, key.Label(), nil))

		if err := r.runStep(stepCtx, key); err != nil {
			res.Err = &StepError{Step: key, Err: err}
			r.logger.Error("Deployment step failed", zap.Stringer("step", key), zap.Error(err))
			r.o.setState(key, StateError)
			r.emit(r.event(EventStepFailed, key, err.Error(), err))
			break
		}

		r.o.setState(key, StateDone)
		r.emit(r.event(EventStepDone, key, key.Label(), nil))
	}

	if res.Err != nil {
		r.cleanup(stepCtx, res)
	} else if r.bridge != nil {
		r.bridge.Close()
	}

	res.Steps = r.o.Status().Steps
	res.Warnings = r.warnings
	res.ConfigAttempts = r.configAttempts
	res.Duration = time.Since(r.start)

	if len(r.warnings) > 0 {
		ev := r.event(EventWarning, StepImages, summarizeWarnings(r.warnings), nil)
		ev.Warnings = r.warnings
		r.emit(ev)
	}

	if res.Err != nil {
		r.logger.Error("Deployment failed", zap.Error(res.Err), zap.Duration("duration", res.Duration))
		ev := r.event(EventFailed, 0, res.Err.Error(), res.Err)
		if step, ok := FailedStep(res.Err); ok {
			ev.Step = step
		}
		ev.Result = res
		r.emit(ev)
		return res
	}

	r.logger.Info("Deployment complete",
		zap.Int("warnings", len(r.warnings)),
		zap.Duration("duration", res.Duration),
	)
	ev := r.event(EventSucceeded, StepWiFiRestore, "deployment complete", nil)
	ev.Result = res
	r.emit(ev)
	return res
}

func (r *run) runStep(ctx context.Context, key StepKey) error {
	switch key {
	case StepBridge:
		b, err := r.o.openBridge()
		if err != nil {
			return err
		}
		r.bridge = b
		return nil

	case StepConfigMode:
		if err := r.bridge.SendEnterConfigMode(); err != nil {
			return err
		}
		// The display needs a moment before its AP starts broadcasting.
		time.Sleep(r.o.opts.ConfigModeDelay)
		return nil

	case StepAPWait:
		if !r.o.network.WaitForAP(ctx, r.o.opts.SSID, r.o.opts.APWait) {
			return &wifi.NetworkError{Kind: wifi.ErrAPNotFound, SSID: r.o.opts.SSID}
		}
		return nil

	case StepWiFiConnect:
		return r.o.network.ConnectTo(ctx, r.o.opts.SSID, r.o.opts.WiFiVerify)

	case StepHealth:
		if !r.o.api.WaitForDevice(ctx, r.o.opts.HealthWait, r.o.opts.HealthInterval) {
			return ErrDeviceUnhealthy
		}
		return nil

	case StepImages:
		r.uploadImages(ctx)
		return nil

	case StepConfig:
		result, err := r.o.api.UploadConfig(ctx, r.plan.ConfigJSON)
		if err != nil {
			return err
		}
		r.configAttempts = result.Attempts
		return nil

	case StepConfigDone:
		return r.bridge.SendExitConfigMode()

	case StepWiFiRestore:
		r.o.network.RestorePrevious(ctx)
		return nil

	default:
		return fmt.Errorf("unknown step %s", key)
	}
}

// uploadImages sends icons then backgrounds, one at a time. Failures are
// collected as warnings.
func (r *run) uploadImages(ctx context.Context) {
	upload := func(kind string, names []string, data map[string][]byte, send func(context.Context, string, []byte) (*deviceapi.ImageUploadResult, error)) {
		for _, name := range names {
			if _, err := send(ctx, name, data[name]); err != nil {
				r.logger.Warn("Image upload failed",
					zap.String("filename", name),
					zap.String("kind", kind),
					zap.Error(err),
				)
				w := Warning{Filename: name, Kind: kind, Err: err}
				r.warnings = append(r.warnings, w)
				r.emit(r.event(EventUploadFailed, StepImages, w.String(), err))
				continue
			}
			r.logger.Debug("Image uploaded", zap.String("filename", name), zap.String("kind", kind))
		}
	}

	upload(kindIcon, r.plan.IconNames(), r.plan.Icons, r.o.api.UploadImage)
	upload(kindBackground, r.plan.BackgroundNames(), r.plan.Backgrounds, r.o.api.UploadBackground)
}

// cleanup undoes host-side and device-mode side effects after a fatal
// failure. Each action runs exactly once and none can fail the run
// further.
func (r *run) cleanup(ctx context.Context, res *Result) {
	r.logger.Info("Running deployment cleanup")

	if r.bridge == nil {
		res.ExitSkipped = true
		r.logger.Warn("No control channel; cannot send exit-config-mode")
	} else {
		if err := r.bridge.SendExitConfigMode(); err != nil {
			res.DeviceMayBeStuck = true
			r.logger.Error("Cleanup could not exit config mode", zap.Error(err))
			r.emit(r.event(EventDeviceMayBeStuck, StepConfigDone,
				"the display may be stuck in config mode; power-cycle it to recover", err))
		}
	}

	r.o.network.RestorePrevious(ctx)

	if r.bridge != nil {
		r.bridge.Close()
	}
}

// IsCancelled reports whether a run ended because its context was
// cancelled.
func IsCancelled(err error) bool {
	var se *StepError
	return errors.As(err, &se) && (se.Err == context.Canceled || se.Err == context.DeadlineExceeded)
}
