package deviceapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout ErrorType = iota
	// ErrTypeConnectionFailed indicates the device could not be reached
	ErrTypeConnectionFailed
	// ErrTypeValidationRejected indicates the device rejected the payload
	ErrTypeValidationRejected
	// ErrTypeForbidden indicates the device refused to touch a protected path
	ErrTypeForbidden
	// ErrTypeExhausted indicates every retry attempt failed
	ErrTypeExhausted
	// ErrTypeStatus indicates any other unexpected HTTP status
	ErrTypeStatus
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
)

// NetworkErrorSubtype provides more specific connection failure classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionFailed:
		return "Connection Failed"
	case ErrTypeValidationRejected:
		return "Validation Rejected"
	case ErrTypeForbidden:
		return "Forbidden"
	case ErrTypeExhausted:
		return "Retries Exhausted"
	case ErrTypeStatus:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// HTTPError represents an error that occurred talking to the device API
type HTTPError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	StatusCode     int                 // HTTP status code (if applicable)
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific connection failure
	DeviceURL      string              // Base URL (for context)
	Retryable      bool                // Whether the error is retryable
	Attempts       int                 // Attempts made (ErrTypeExhausted only)
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport error onto ErrTypeTimeout or
// ErrTypeConnectionFailed.
func ClassifyNetworkError(err error, deviceURL string) *HTTPError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &HTTPError{
			Type:      ErrTypeTimeout,
			Message:   "Request timed out",
			Err:       err,
			DeviceURL: deviceURL,
			Retryable: true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &HTTPError{
			Type:           ErrTypeConnectionFailed,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			DeviceURL:      deviceURL,
			// .local names resolve late right after joining the AP
			Retryable: true,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		subtype := NetworkErrorGeneral
		message := "Connection failed"
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			subtype, message = NetworkErrorConnectionRefused, "Device refused connection"
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			subtype, message = NetworkErrorHostUnreachable, "Host unreachable"
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			subtype, message = NetworkErrorNetworkUnreachable, "Network unreachable"
		}
		return &HTTPError{
			Type:           ErrTypeConnectionFailed,
			Message:        message,
			Err:            err,
			NetworkSubtype: subtype,
			DeviceURL:      deviceURL,
			Retryable:      true,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return ClassifyNetworkError(urlErr.Err, deviceURL)
	}

	// EOF, connection reset and similar mid-request failures
	return &HTTPError{
		Type:      ErrTypeConnectionFailed,
		Message:   "Connection failed",
		Err:       err,
		DeviceURL: deviceURL,
		Retryable: true,
	}
}

// NewNetworkError creates a transport-level error with automatic classification
func NewNetworkError(message string, err error, deviceURL string) *HTTPError {
	classified := ClassifyNetworkError(err, deviceURL)
	classified.Message = message + ": " + strings.ToLower(classified.Message)
	return classified
}

// NewStatusError creates an error for an unexpected HTTP status
func NewStatusError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		Type:       ErrTypeStatus,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewValidationError creates an error for a payload the device rejected
func NewValidationError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		Type:       ErrTypeValidationRejected,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *HTTPError {
	return &HTTPError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

func typeOf(err error) (ErrorType, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Type, true
	}
	return 0, false
}

func isType(err error, want ErrorType) bool {
	t, ok := typeOf(err)
	return ok && t == want
}

// IsTimeout checks if an error is a request timeout
func IsTimeout(err error) bool { return isType(err, ErrTypeTimeout) }

// IsConnectionFailed checks if an error is a connection failure
func IsConnectionFailed(err error) bool { return isType(err, ErrTypeConnectionFailed) }

// IsValidationRejected checks if the device rejected the payload
func IsValidationRejected(err error) bool { return isType(err, ErrTypeValidationRejected) }

// IsForbidden checks if the device refused a protected path
func IsForbidden(err error) bool { return isType(err, ErrTypeForbidden) }

// IsExhausted checks if every retry attempt failed
func IsExhausted(err error) bool { return isType(err, ErrTypeExhausted) }

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var he *HTTPError
	if !errors.As(err, &he) {
		return ""
	}

	switch he.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The display did not respond in time.",
			"Troubleshooting:",
			"  • Check the host is still joined to the display's access point",
			"  • Move closer to the display to improve signal strength",
			"  • Raise timing.http_timeout in your profile",
		}, "\n")

	case ErrTypeConnectionFailed:
		hint := []string{"Could not reach the display's HTTP server."}
		switch he.NetworkSubtype {
		case NetworkErrorConnectionRefused:
			hint = append(hint, "  • The server may still be starting; wait a few seconds and retry")
		case NetworkErrorNetworkUnreachable, NetworkErrorHostUnreachable:
			hint = append(hint, "  • The host is not on the display's access point")
		case NetworkErrorDNS:
			hint = append(hint, "  • Use the IP address (default http://192.168.4.1) instead of a hostname")
		}
		hint = append(hint, "  • Check device.api_base in your profile")
		return strings.Join(hint, "\n")

	case ErrTypeValidationRejected:
		return "The display rejected the payload. Fix the layout JSON and deploy again; resending the same data will fail the same way."

	case ErrTypeForbidden:
		return "That path is protected by the firmware and cannot be deleted."

	case ErrTypeExhausted:
		return "Every attempt failed. " + GetTroubleshootingHint(he.Err)

	case ErrTypeStatus:
		if he.StatusCode >= 500 {
			return fmt.Sprintf("The display returned HTTP %d. Power-cycle it and try again.", he.StatusCode)
		}
		return fmt.Sprintf("The display returned HTTP %d.", he.StatusCode)

	case ErrTypeParse:
		return "The display's response could not be parsed. Its firmware may be incompatible with this tool."

	default:
		return ""
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var he *HTTPError
	if !errors.As(err, &he) {
		return err.Error()
	}

	switch he.Type {
	case ErrTypeTimeout:
		return "Display not responding (timeout)"
	case ErrTypeConnectionFailed:
		return "Display unreachable"
	case ErrTypeValidationRejected:
		return "Display rejected payload: " + he.Message
	case ErrTypeForbidden:
		return "Protected path: " + he.Message
	case ErrTypeExhausted:
		return fmt.Sprintf("Gave up after %d attempts", he.Attempts)
	case ErrTypeStatus:
		return fmt.Sprintf("Display error (HTTP %d)", he.StatusCode)
	default:
		return he.Message
	}
}
