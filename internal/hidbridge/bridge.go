package hidbridge

import (
	"fmt"
	"io"
	"sync"

	"github.com/deskpanel/deskpanel/internal/logging"
	"go.uber.org/zap"
)

// Control report layout
const (
	ReportID   = 0x06
	ReportSize = 64

	MsgEnterConfigMode = 0x09
	MsgExitConfigMode  = 0x0A
)

// Config identifies the display's HID interface.
type Config struct {
	VendorID    uint16
	ProductID   uint16
	ProductName string

	// SysRoot and DevRoot default to /sys and /dev.
	SysRoot string
	DevRoot string

	Logger *zap.Logger
}

// Bridge is an open control channel to the display.
type Bridge struct {
	iface  Interface
	dev    io.WriteCloser
	logger *zap.Logger

	closeOnce sync.Once
}

// Open locates the display's control interface and opens it for writing.
func Open(cfg Config) (*Bridge, error) {
	logger := logging.Or(cfg.Logger)

	ifaces, err := enumerate(cfg.SysRoot, cfg.DevRoot)
	if err != nil {
		return nil, &BridgeError{Kind: ErrNotFound, Message: "cannot enumerate HID devices", Err: err}
	}
	logger.Debug("Enumerated HID interfaces", zap.Int("count", len(ifaces)))

	iface, err := selectInterface(ifaces, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Selected HID interface",
		zap.String("device", iface.DevPath),
		zap.String("name", iface.Name),
		zap.Bool("vendor_page", iface.VendorPage),
	)

	dev, err := openDevice(iface, logger)
	if err != nil {
		return nil, err
	}

	return newBridge(iface, dev, logger), nil
}

func newBridge(iface Interface, dev io.WriteCloser, logger *zap.Logger) *Bridge {
	return &Bridge{iface: iface, dev: dev, logger: logging.Or(logger)}
}

// Interface returns the interface this bridge was opened on.
func (b *Bridge) Interface() Interface {
	return b.iface
}

// BuildReport returns the control report for msgType.
func BuildReport(msgType byte) [ReportSize]byte {
	var report [ReportSize]byte
	report[0] = ReportID
	report[1] = msgType
	return report
}

// SendEnterConfigMode asks the display to start its configuration AP.
func (b *Bridge) SendEnterConfigMode() error {
	return b.send(MsgEnterConfigMode)
}

// SendExitConfigMode asks the display to leave config mode and reload.
func (b *Bridge) SendExitConfigMode() error {
	return b.send(MsgExitConfigMode)
}

func (b *Bridge) send(msgType byte) error {
	report := BuildReport(msgType)
	logging.LogHIDReport(b.logger, b.iface.DevPath, report[:])

	n, err := b.dev.Write(report[:])
	if err != nil {
		return &BridgeError{Kind: ErrWriteFailed, Device: b.iface.DevPath, Err: err}
	}
	if n != ReportSize {
		return &BridgeError{
			Kind:    ErrWriteFailed,
			Device:  b.iface.DevPath,
			Message: fmt.Sprintf("short write: %d of %d bytes", n, ReportSize),
		}
	}
	return nil
}

// Close releases the device. Errors are logged, never returned.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		if err := b.dev.Close(); err != nil {
			b.logger.Debug("Closing HID device failed", zap.String("device", b.iface.DevPath), zap.Error(err))
		}
	})
}
