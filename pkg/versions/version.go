// Package versions exposes build information of the fetch-tool-versions binary.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const (
	unknownStr = "unknown"
)

// Set at build time with -ldflags "-X .../pkg/versions.Version=..."
var (
	// Version is the release of fetch-tool-versions
	Version = "dev"
	// Commit is the git commit of the build
	Commit = unknownStr //nolint:goconst // placeholder
	// BuildDate is when the binary was built
	BuildDate = unknownStr //nolint:goconst // placeholder
)

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// String renders the info the way `version` prints it
func (b BuildInfo) String() string {
	return fmt.Sprintf("fetch-tool-versions %s\nCommit: %s\nBuilt: %s\nGo: %s\nPlatform: %s\n",
		b.Version, b.Commit, b.BuildDate, b.GoVersion, b.Platform)
}

// GetBuildInfo returns the build information of this binary
func GetBuildInfo() BuildInfo {
	return buildInfo(Version, Commit, BuildDate, vcsSettings())
}

func vcsSettings() map[string]string {
	settings := map[string]string{}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return settings
	}
	for _, s := range info.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			settings[s.Key] = s.Value
		}
	}
	return settings
}

// buildInfo fills unknown fields from vcs settings for dev builds
func buildInfo(version, commit, buildDate string, vcs map[string]string) BuildInfo {
	if strings.HasPrefix(version, "dev") {
		if commit == unknownStr && vcs["vcs.revision"] != "" {
			commit = vcs["vcs.revision"]
		}
		if buildDate == unknownStr && vcs["vcs.time"] != "" {
			buildDate = vcs["vcs.time"]
		}
	}

	if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
		buildDate = t.UTC().Format("2006-01-02 15:04:05 MST")
	}

	if version == "dev" && commit != unknownStr {
		version = fmt.Sprintf("build-%.8s", commit)
	}

	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
