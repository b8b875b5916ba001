package hidbridge

import (
	"errors"
	"fmt"
)

// BridgeErrorKind categorizes control channel failures.
type BridgeErrorKind int

const (
	ErrNotFound BridgeErrorKind = iota
	ErrOpenFailed
	ErrWriteFailed
)

// String returns a human-readable error kind name
func (k BridgeErrorKind) String() string {
	switch k {
	case ErrNotFound:
		return "not found"
	case ErrOpenFailed:
		return "open failed"
	case ErrWriteFailed:
		return "write failed"
	default:
		return "unknown"
	}
}

// BridgeError is returned by every failing Bridge operation.
type BridgeError struct {
	Kind    BridgeErrorKind
	Device  string // hidraw node, empty when none was found
	Message string
	Err     error
}

func (e *BridgeError) Error() string {
	msg := fmt.Sprintf("hid bridge %s", e.Kind)
	if e.Device != "" {
		msg += fmt.Sprintf(" (%s)", e.Device)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a BridgeError of kind ErrNotFound.
func IsNotFound(err error) bool {
	return kindOf(err) == ErrNotFound
}

// IsOpenFailed reports whether err is a BridgeError of kind ErrOpenFailed.
func IsOpenFailed(err error) bool {
	return kindOf(err) == ErrOpenFailed
}

// IsWriteFailed reports whether err is a BridgeError of kind ErrWriteFailed.
func IsWriteFailed(err error) bool {
	return kindOf(err) == ErrWriteFailed
}

func kindOf(err error) BridgeErrorKind {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Kind
	}
	return -1
}

// GetTroubleshootingHint returns user guidance for a bridge failure.
func GetTroubleshootingHint(err error) string {
	switch kindOf(err) {
	case ErrNotFound:
		return "Check the display is plugged in over USB and the profile's usb.vendor_id, usb.product_id and usb.product_name match it (see `deskpanel-cfg mode list`)."
	case ErrOpenFailed:
		return "The hidraw node exists but could not be opened. Add a udev rule granting your user access, or run with sufficient privileges."
	case ErrWriteFailed:
		return "The display stopped accepting reports. Re-plug the USB cable and try again."
	default:
		return ""
	}
}
