//go:build !linux

package hidbridge

import (
	"errors"
	"io"

	"go.uber.org/zap"
)

var errUnsupported = errors.New("hidraw enumeration requires linux")

// Enumerate lists the HID interfaces currently visible through hidraw.
func Enumerate() ([]Interface, error) {
	return nil, errUnsupported
}

func enumerate(sysRoot, devRoot string) ([]Interface, error) {
	return nil, errUnsupported
}

func openDevice(iface Interface, logger *zap.Logger) (io.WriteCloser, error) {
	return nil, &BridgeError{Kind: ErrOpenFailed, Device: iface.DevPath, Err: errUnsupported}
}
