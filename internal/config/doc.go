// Package config loads and saves the deskpanel device profile.
//
// The profile is a small YAML file naming the display's USB identity, the
// SSID and base URL of its configuration access point, the display geometry
// images are rendered for, and the timeouts a deployment run uses. Durations
// are written as Go duration strings:
//
//	version: 1
//	device:
//	    api_base: http://192.168.4.1
//	    ap_ssid: DeskPanel-Setup
//	usb:
//	    vendor_id: 0x303a
//	    product_id: 0x1001
//	    product_name: DeskPanel
//	timing:
//	    ap_wait: 15s
//
// # Profile Location
//
//   - Linux: $XDG_CONFIG_HOME/deskpanel/profile.yaml or $HOME/.config/deskpanel/profile.yaml
//   - macOS: $HOME/.config/deskpanel/profile.yaml
//   - Windows: %LOCALAPPDATA%\deskpanel\profile.yaml
//
// DESKPANEL_PROFILE overrides the location. A missing file yields the
// factory defaults; Save writes through a temporary file and rename.
package config
