package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device represents a display (or simulator) discovered on the network
type Device struct {
	// Serial is the display serial number from the TXT record (e.g., "DP0042")
	Serial string

	// Instance is the mDNS instance name (e.g., "DeskPanel DP0042")
	Instance string

	// Hostname is the mDNS hostname (e.g., "deskpanel-dp0042.local.")
	Hostname string

	// IP is the IPv4 address (e.g., "192.168.4.1")
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Model and Firmware come from the "model" and "fw" TXT records
	Model    string
	Firmware string

	// Simulated is set when the advertiser is deskpanel-sim
	Simulated bool

	// Metadata contains every TXT record
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	kind := "DeskPanel"
	if d.Simulated {
		kind = "DeskPanel simulator"
	}
	return fmt.Sprintf("%s %s at %s:%d", kind, d.Serial, d.IP, d.Port)
}

// BaseURL returns the HTTP base URL for the device. Port 80 is omitted.
func (d *Device) BaseURL() string {
	if d.Port == DefaultPort {
		return "http://" + d.IP
	}
	return "http://" + net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
