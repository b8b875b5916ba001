package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName     = "deskpanel"
	profileFile = "profile.yaml"

	// ProfileEnvVar overrides the profile location.
	ProfileEnvVar = "DESKPANEL_PROFILE"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
//   - Linux: $XDG_CONFIG_HOME/deskpanel or $HOME/.config/deskpanel
//   - macOS: $HOME/.config/deskpanel
//   - Windows: %LOCALAPPDATA%\deskpanel
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetProfilePath returns the profile location, honouring DESKPANEL_PROFILE.
func GetProfilePath() (string, error) {
	if p := os.Getenv(ProfileEnvVar); p != "" {
		return p, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, profileFile), nil
}

// LoadProfile reads the profile at path. An empty path means GetProfilePath.
// A missing file is not an error: the factory defaults are returned.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		var err error
		path, err = GetProfilePath()
		if err != nil {
			return nil, fmt.Errorf("failed to get profile path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewProfile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	return ParseProfile(data)
}

// ParseProfile decodes and validates profile YAML. Keys absent from data
// keep their factory defaults.
func ParseProfile(data []byte) (*Profile, error) {
	profile := NewProfile()
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	profile.fillDefaults()
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

// Save writes the profile to path atomically. An empty path means
// GetProfilePath. The parent directory is created if needed.
func (p *Profile) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		var err error
		path, err = GetProfilePath()
		if err != nil {
			return fmt.Errorf("failed to get profile path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	header := []byte(`# DeskPanel device profile
# Describes how the host finds the display over USB and reaches it
# while it is in configuration AP mode.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	// ap_password may be set, so keep the file user-only
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary profile: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save profile: %w", err)
	}

	return nil
}
