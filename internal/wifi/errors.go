package wifi

import (
	"errors"
	"fmt"
	"strings"
)

// NetworkErrorKind categorizes access point handover failures.
type NetworkErrorKind int

const (
	ErrAPNotFound NetworkErrorKind = iota
	ErrConnectFailed
	ErrVerifyTimeout
)

// String returns a human-readable error kind name
func (k NetworkErrorKind) String() string {
	switch k {
	case ErrAPNotFound:
		return "access point not found"
	case ErrConnectFailed:
		return "connect failed"
	case ErrVerifyTimeout:
		return "association not verified"
	default:
		return "unknown"
	}
}

// NetworkError is returned by ConnectTo.
type NetworkError struct {
	Kind NetworkErrorKind
	SSID string
	Err  error
}

func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("wifi %s: %q", e.Kind, e.SSID)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsAPNotFound reports whether err is a NetworkError of kind ErrAPNotFound.
func IsAPNotFound(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Kind == ErrAPNotFound
}

// IsConnectFailed reports whether err is a NetworkError of kind ErrConnectFailed.
func IsConnectFailed(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Kind == ErrConnectFailed
}

// IsVerifyTimeout reports whether err is a NetworkError of kind ErrVerifyTimeout.
func IsVerifyTimeout(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Kind == ErrVerifyTimeout
}

// GetTroubleshootingHint returns user guidance for a handover failure.
func GetTroubleshootingHint(err error) string {
	var ne *NetworkError
	if !errors.As(err, &ne) {
		return ""
	}
	switch ne.Kind {
	case ErrAPNotFound:
		return fmt.Sprintf("The display never started broadcasting %q. Check the SSID in your profile, and that the display received the config-mode command (its screen should show the setup banner).", ne.SSID)
	case ErrConnectFailed:
		return "NetworkManager refused the connection. Check ap_password in your profile and that your user may change WiFi connections."
	case ErrVerifyTimeout:
		return "The host did not finish joining the access point in time. Move closer to the display or raise timing.wifi_verify."
	default:
		return ""
	}
}

// CommandError reports a host command that exited unsuccessfully.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	if e.Err != nil && e.ExitCode < 0 {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a host command killed after its deadline.
type TimeoutError struct {
	Command string
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Command, e.Timeout)
}
