package deploy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deskpanel/deskpanel/internal/deviceapi"
	"github.com/deskpanel/deskpanel/internal/hidbridge"
	"github.com/deskpanel/deskpanel/internal/imagecodec"
	"github.com/deskpanel/deskpanel/internal/wifi"
)

var (
	// ErrRunInProgress is returned when a run is requested while another
	// is still active.
	ErrRunInProgress = errors.New("deployment already in progress")

	// ErrDeviceUnhealthy is returned when the device API never answers its
	// health probe.
	ErrDeviceUnhealthy = errors.New("device API did not become healthy")

	// ErrInvalidConfig is returned by BuildPlan for a layout that is not
	// valid JSON.
	ErrInvalidConfig = errors.New("layout is not valid JSON")
)

// StepError wraps the fatal failure of one step.
type StepError struct {
	Step StepKey
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step.Label(), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step a run failed at, if err came from a run.
func FailedStep(err error) (StepKey, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return 0, false
}

// GetTroubleshootingHint returns user guidance for a failed run. It
// defers to the package that owns the underlying error.
func GetTroubleshootingHint(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrRunInProgress) {
		return "Another deployment is still running. Wait for it to finish."
	}
	if errors.Is(err, ErrDeviceUnhealthy) {
		return strings.Join([]string{
			"The host joined the setup access point but the display's HTTP server never answered.",
			"  • Check device.api_base in your profile",
			"  • Raise timing.health_wait if the display is slow to start",
		}, "\n")
	}
	if errors.Is(err, ErrInvalidConfig) {
		return "Fix the layout JSON before deploying."
	}

	for _, hint := range []func(error) string{
		hidbridge.GetTroubleshootingHint,
		wifi.GetTroubleshootingHint,
		deviceapi.GetTroubleshootingHint,
	} {
		if h := hint(err); h != "" {
			return h
		}
	}

	if imagecodec.IsUnopenable(err) {
		return "The source image could not be decoded. Supported formats: PNG, JPEG, GIF, BMP, WebP, SVG."
	}
	return ""
}
