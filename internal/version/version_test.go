package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "release",
			info: Info{Version: "1.2.0", Commit: "abc123def456", Date: "2026-01-01", GoVersion: "go1.24.6", Platform: "linux/amd64"},
			want: "cadence 1.2.0 (abc123de) built 2026-01-01 with go1.24.6 for linux/amd64",
		},
		{
			name: "dirty tree",
			info: Info{Version: "dev", Commit: "abc", Modified: true, Date: "unknown", GoVersion: "go1.24.6", Platform: "darwin/arm64"},
			want: "cadence dev (abc-dirty) built unknown with go1.24.6 for darwin/arm64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-02-03T04:05:06Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	got := fromBuildInfo(Info{Version: "dev", Commit: "unknown", Date: "unknown"}, bi)
	assert.Equal(t, "v0.3.1", got.Version)
	assert.Equal(t, "0123456789abcdef", got.Commit)
	assert.Equal(t, "2026-02-03T04:05:06Z", got.Date)
	assert.True(t, got.Modified)

	ldflags := fromBuildInfo(Info{Version: "1.0.0", Commit: "feedface", Date: "today"}, bi)
	assert.Equal(t, "1.0.0", ldflags.Version)
	assert.Equal(t, "feedface", ldflags.Commit)
	assert.Equal(t, "today", ldflags.Date)
}

func TestGetInfoRuntime(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Equal(t, info.Version, info.Short())
}
