package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the only profile schema version this build understands.
const CurrentVersion = 1

// Profile is the on-disk description of one display and how to reach it.
type Profile struct {
	Version int          `yaml:"version"`
	Device  DeviceConfig `yaml:"device"`
	USB     USBConfig    `yaml:"usb"`
	Display Display      `yaml:"display"`
	Timing  Timing       `yaml:"timing"`
}

// DeviceConfig describes the device's configuration access point.
type DeviceConfig struct {
	APIBase    string `yaml:"api_base"`              // Base URL of the device API while in AP mode
	APSSID     string `yaml:"ap_ssid"`               // SSID the device broadcasts in config mode
	APPassword string `yaml:"ap_password,omitempty"` // Empty for an open AP
}

// USBConfig identifies the device's HID control interface.
type USBConfig struct {
	VendorID    uint16 `yaml:"vendor_id"`
	ProductID   uint16 `yaml:"product_id"`
	ProductName string `yaml:"product_name"`
}

// Display holds the target geometry for rendered images.
type Display struct {
	Width      int `yaml:"width"`
	Height     int `yaml:"height"`
	IconWidth  int `yaml:"icon_width"`
	IconHeight int `yaml:"icon_height"`
}

// Timing holds every wait and timeout used by a deployment run.
type Timing struct {
	ConfigModeDelay Duration `yaml:"config_mode_delay"`
	APWait          Duration `yaml:"ap_wait"`
	WiFiVerify      Duration `yaml:"wifi_verify"`
	HealthWait      Duration `yaml:"health_wait"`
	HealthInterval  Duration `yaml:"health_interval"`
	HealthTimeout   Duration `yaml:"health_timeout"`
	HTTPTimeout     Duration `yaml:"http_timeout"`
	RetryDelay      Duration `yaml:"retry_delay"`
}

// Duration is a time.Duration that reads and writes as a Go duration
// string ("15s", "500ms") in YAML.
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// MarshalJSON writes the duration string, matching the YAML form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q at line %d: %w", s, value.Line, err)
	}
	d.Duration = parsed
	return nil
}

// NewProfile returns a profile populated with factory defaults.
func NewProfile() *Profile {
	return &Profile{
		Version: CurrentVersion,
		Device: DeviceConfig{
			APIBase: "http://192.168.4.1",
			APSSID:  "DeskPanel-Setup",
		},
		USB: USBConfig{
			VendorID:    0x303a,
			ProductID:   0x1001,
			ProductName: "DeskPanel",
		},
		Display: Display{
			Width:      800,
			Height:     480,
			IconWidth:  64,
			IconHeight: 64,
		},
		Timing: Timing{
			ConfigModeDelay: D(2 * time.Second),
			APWait:          D(15 * time.Second),
			WiFiVerify:      D(15 * time.Second),
			HealthWait:      D(10 * time.Second),
			HealthInterval:  D(500 * time.Millisecond),
			HealthTimeout:   D(3 * time.Second),
			HTTPTimeout:     D(10 * time.Second),
			RetryDelay:      D(1 * time.Second),
		},
	}
}

// Validate checks that every field needed for a deployment is usable.
func (p *Profile) Validate() error {
	if p.Version != CurrentVersion {
		return fmt.Errorf("unsupported profile version: %d (expected %d)", p.Version, CurrentVersion)
	}
	if p.Device.APIBase == "" {
		return fmt.Errorf("device.api_base must be set")
	}
	if p.Device.APSSID == "" {
		return fmt.Errorf("device.ap_ssid must be set")
	}
	if p.USB.ProductName == "" {
		return fmt.Errorf("usb.product_name must be set")
	}
	if p.Display.Width <= 0 || p.Display.Height <= 0 || p.Display.Width > 0xFFFF || p.Display.Height > 0xFFFF {
		return fmt.Errorf("display size %dx%d out of range", p.Display.Width, p.Display.Height)
	}
	if p.Display.IconWidth <= 0 || p.Display.IconHeight <= 0 {
		return fmt.Errorf("icon size %dx%d out of range", p.Display.IconWidth, p.Display.IconHeight)
	}
	return nil
}

// fillDefaults replaces zero timing values with the factory defaults so a
// hand-written profile may omit the timing section.
func (p *Profile) fillDefaults() {
	def := NewProfile()
	fill := func(dst *Duration, src Duration) {
		if dst.Duration <= 0 {
			*dst = src
		}
	}
	fill(&p.Timing.ConfigModeDelay, def.Timing.ConfigModeDelay)
	fill(&p.Timing.APWait, def.Timing.APWait)
	fill(&p.Timing.WiFiVerify, def.Timing.WiFiVerify)
	fill(&p.Timing.HealthWait, def.Timing.HealthWait)
	fill(&p.Timing.HealthInterval, def.Timing.HealthInterval)
	fill(&p.Timing.HealthTimeout, def.Timing.HealthTimeout)
	fill(&p.Timing.HTTPTimeout, def.Timing.HTTPTimeout)
	fill(&p.Timing.RetryDelay, def.Timing.RetryDelay)

	if p.Display.IconWidth == 0 {
		p.Display.IconWidth = def.Display.IconWidth
	}
	if p.Display.IconHeight == 0 {
		p.Display.IconHeight = def.Display.IconHeight
	}
}
