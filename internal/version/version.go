// Package version holds build metadata set with -ldflags:
//
//	-X 'github.com/janekbaraniewski/loginswap/internal/version.Version=v0.4.0'
//	-X 'github.com/janekbaraniewski/loginswap/internal/version.CommitHash=abc1234'
//	-X 'github.com/janekbaraniewski/loginswap/internal/version.BuildDate=2026-10-01'
package version

import "runtime/debug"

var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// Current returns Version, falling back to the module version recorded by
// `go install` when no ldflags were given.
func Current() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

func String() string {
	return Current() + " (" + CommitHash + ") built " + BuildDate
}
