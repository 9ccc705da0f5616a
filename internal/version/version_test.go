package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = version, commit, date
	t.Cleanup(func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	})
}

func TestGetInfo(t *testing.T) {
	withBuild(t, "1.2.0", "abc123def456", "2026-01-01T12:00:00Z")

	info := GetInfo()

	assert.Equal(t, "1.2.0", info.Version)
	assert.Equal(t, "abc123def456", info.Commit)
	assert.Equal(t, "2026-01-01T12:00:00Z", info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name    string
		info    Info
		want    []string
		notWant string
	}{
		{
			name:    "long commit is shortened",
			info:    Info{Version: "1.2.0", Commit: "abc123def456", Date: "2026-01-01", GoVersion: "go1.24.6", Platform: "linux/amd64"},
			want:    []string{"tenderdesk 1.2.0", "(abc123de)", "built 2026-01-01", "go1.24.6", "linux/amd64"},
			notWant: "abc123def456",
		},
		{
			name: "short commit is kept",
			info: Info{Version: "dev", Commit: "abc", Date: "unknown", GoVersion: "go1.24.6", Platform: "darwin/arm64"},
			want: []string{"tenderdesk dev", "(abc)", "darwin/arm64"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.info.String()
			for _, want := range tt.want {
				assert.Contains(t, got, want)
			}
			if tt.notWant != "" {
				assert.NotContains(t, got, tt.notWant)
			}
		})
	}
}

func TestInfoShort(t *testing.T) {
	assert.Equal(t, "1.2.0", Info{Version: "1.2.0", Commit: "abc"}.Short())
}
