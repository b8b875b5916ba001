// Package version reports the build version of the deskpanel binaries.
//
// Release builds set the values with ldflags:
//
//	go build -ldflags="-X github.com/deskpanel/deskpanel/internal/version.Version=v0.3.0 \
//	                   -X github.com/deskpanel/deskpanel/internal/version.Commit=abc1234"
//
// Otherwise they are derived from the VCS stamp Go embeds in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

var (
	// Version is the release version, e.g. "v0.3.0"
	Version = ""
	// Commit is the short git revision, suffixed "-dirty" for modified trees
	Commit = ""
)

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			fromSettings(info.Settings)
		}
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromSettings fills unset values from the vcs.* build settings.
func fromSettings(settings []debug.BuildSetting) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = s.Value
	}

	if rev := vcs["vcs.revision"]; Commit == "" && rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if vcs["vcs.modified"] == "true" {
			rev += "-dirty"
		}
		Commit = rev
	}

	if Version == "" {
		if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
			Version = "dev-" + t.UTC().Format("20060102")
		}
	}
}

// Full returns the version with commit and Go toolchain.
func Full() string {
	return fmt.Sprintf("%s (commit: %s, %s)", Version, Commit, runtime.Version())
}
