package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type displays and the simulator
	// advertise
	ServiceType = "_deskpanel._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the default HTTP port of the device API
	DefaultPort = 80
)

// TXT record keys
const (
	TXTSerial   = "serial"
	TXTModel    = "model"
	TXTFirmware = "fw"
	TXTSim      = "sim"
)

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForDevices browses for Timeout and returns every device seen,
// sorted by serial.
func (s *Scanner) ScanForDevices(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan []*Device)

	go func() {
		seen := make(map[string]*Device)
		for entry := range entries {
			if device := parseServiceEntry(entry); device != nil {
				seen[device.Instance] = device
			}
		}
		devices := make([]*Device, 0, len(seen))
		for _, d := range seen {
			devices = append(devices, d)
		}
		sort.Slice(devices, func(i, j int) bool { return devices[i].Serial < devices[j].Serial })
		done <- devices
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// The resolver closes entries once ctx expires.
	<-ctx.Done()
	return <-done, nil
}

// WaitForDevice returns the first device advertising serial, or an error
// if none appears within Timeout.
func (s *Scanner) WaitForDevice(ctx context.Context, serial string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Device, 1)

	go func() {
		for entry := range entries {
			device := parseServiceEntry(entry)
			if device != nil && strings.EqualFold(device.Serial, serial) {
				select {
				case found <- device:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case device := <-found:
		return device, nil
	case <-ctx.Done():
		select {
		case device := <-found:
			return device, nil
		default:
		}
		return nil, fmt.Errorf("device with serial %s not found within %s", serial, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Entries without a serial TXT record or an address are ignored.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	if entry == nil {
		return nil
	}

	metadata := parseTXT(entry.Text)
	serial := metadata[TXTSerial]
	if serial == "" {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Device{
		Serial:       serial,
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Model:        metadata[TXTModel],
		Firmware:     metadata[TXTFirmware],
		Simulated:    metadata[TXTSim] == "1",
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// parseTXT splits "key=value" records. A bare key maps to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}

// QuickScan performs a fast scan with a 2-second timeout
func QuickScan(ctx context.Context) ([]*Device, error) {
	scanner := NewScanner()
	scanner.Timeout = 2 * time.Second
	return scanner.ScanForDevices(ctx)
}
