package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/deskpanel/deskpanel/internal/config"
	"github.com/deskpanel/deskpanel/internal/deviceapi"
	"github.com/deskpanel/deskpanel/internal/logging"
)

// Global flags
var (
	profilePath  string
	deviceURL    string
	ssidOverride string
	outputFormat string
	logLevel     string
	assumeYes    bool
	plainOutput  bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&profilePath, "profile", "", "Profile path (default: $"+config.ProfileEnvVar+" or the user config dir)")
	pf.StringVar(&deviceURL, "device", "", "Device API base URL (overrides device.api_base)")
	pf.StringVar(&ssidOverride, "ssid", "", "Setup access point SSID (overrides device.ap_ssid)")
	pf.StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default: $"+logging.LogLevelEnvVar)
	pf.BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	pf.BoolVar(&plainOutput, "plain", false, "Plain line output instead of the live progress display")
}

// loadProfile reads the profile and applies --device and --ssid.
func loadProfile() (*config.Profile, error) {
	p, err := config.LoadProfile(profilePath)
	if err != nil {
		return nil, err
	}
	if deviceURL != "" {
		p.Device.APIBase = deviceURL
	}
	if ssidOverride != "" {
		p.Device.APSSID = ssidOverride
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

// newClient builds a device API client from the profile timing.
func newClient(p *config.Profile) *deviceapi.Client {
	c := deviceapi.NewClient(p.Device.APIBase, logging.GetLogger())
	c.SetTimeout(p.Timing.HTTPTimeout.Duration)
	c.HealthTimeout = p.Timing.HealthTimeout.Duration
	c.SetRetry(deviceapi.DefaultMaxAttempts, p.Timing.RetryDelay.Duration)
	return c
}

func jsonOutput() bool {
	return outputFormat == "json"
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// withHint appends a troubleshooting hint to err's message when one exists.
func withHint(err error, hint string) error {
	if hint == "" {
		return err
	}
	return fmt.Errorf("%w\n\n%s", err, hint)
}
