package version

import (
	"runtime"
	"runtime/debug"
)

var (
	// Set via ldflags at build time
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info returns version information. Binaries built with go install carry no
// ldflags, so the module version and VCS revision are used instead.
func Info() map[string]string {
	version, commit := Version, Commit
	if bi, ok := debug.ReadBuildInfo(); ok {
		if version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			version = bi.Main.Version
		}
		if commit == "none" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					commit = s.Value
				}
			}
		}
	}

	return map[string]string{
		"version": version,
		"commit":  commit,
		"built":   BuildDate,
		"go":      runtime.Version(),
		"os/arch": runtime.GOOS + "/" + runtime.GOARCH,
	}
}
