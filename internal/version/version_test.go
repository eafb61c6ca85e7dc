package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	})

	Version = "1.0.0"
	Commit = "abc123def456"
	Date = "2026-01-01T12:00:00Z"

	info := GetInfo()
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "abc123def456", info.Commit)
	assert.Equal(t, "2026-01-01T12:00:00Z", info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestFillFromBuildInfo(t *testing.T) {
	tests := []struct {
		name   string
		start  Info
		bi     debug.BuildInfo
		expect Info
	}{
		{
			name:  "module version and vcs settings fill defaults",
			start: Info{Version: "dev", Commit: "unknown", Date: "unknown"},
			bi: debug.BuildInfo{
				Main: debug.Module{Version: "v0.3.0"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "deadbeefcafe"},
					{Key: "vcs.time", Value: "2026-02-03T04:05:06Z"},
				},
			},
			expect: Info{Version: "v0.3.0", Commit: "deadbeefcafe", Date: "2026-02-03T04:05:06Z"},
		},
		{
			name:   "devel builds keep dev",
			start:  Info{Version: "dev", Commit: "unknown", Date: "unknown"},
			bi:     debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			expect: Info{Version: "dev", Commit: "unknown", Date: "unknown"},
		},
		{
			name:  "ldflags win",
			start: Info{Version: "1.2.3", Commit: "abc", Date: "today"},
			bi: debug.BuildInfo{
				Main:     debug.Module{Version: "v0.3.0"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "deadbeef"}},
			},
			expect: Info{Version: "1.2.3", Commit: "abc", Date: "today"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.start
			fillFromBuildInfo(&info, &tt.bi)
			assert.Equal(t, tt.expect, info)
		})
	}
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:   "1.0.0",
		Commit:    "abc123def456",
		Date:      "2026-01-01",
		GoVersion: "go1.24.6",
		Platform:  "linux/amd64",
	}
	assert.Equal(t, "orchestra 1.0.0 (abc123de) built 2026-01-01 with go1.24.6 for linux/amd64", info.String())

	info.Commit = "abc123"
	assert.Contains(t, info.String(), "(abc123)")
	assert.Equal(t, "1.0.0", info.Short())
}
