// Package version reports build information injected at link time.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the semantic version (set by ldflags during build)
	Version = "dev"
	// Commit is the git commit hash (set by ldflags during build)
	Commit = "unknown"
	// Date is the build date (set by ldflags during build)
	Date = "unknown"
)

// Info contains complete version information
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns complete version information. A binary built with
// `go install` and no ldflags reports its module version and VCS revision.
func GetInfo() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	return info
}

func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		}
	}
}

// String returns a formatted version string
func (i Info) String() string {
	commitShort := i.Commit
	if len(commitShort) > 8 {
		commitShort = commitShort[:8]
	}
	return fmt.Sprintf("orchestra %s (%s) built %s with %s for %s",
		i.Version, commitShort, i.Date, i.GoVersion, i.Platform)
}

// Short returns just the version number
func (i Info) Short() string {
	return i.Version
}
