// Package version carries build-time version information for the
// sessionpool tools.
//
// The values are set with ldflags:
//
//	go build -ldflags "-X github.com/go-i2p/sessionpool/version.Version=1.0.0 \
//	  -X github.com/go-i2p/sessionpool/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds report "dev".
package version

import "runtime"

var (
	// Version is the release version.
	Version = "dev"
	// GitCommit is the short commit hash.
	GitCommit = ""
	// BuildTime is an RFC 3339 timestamp.
	BuildTime = ""
)

// Full returns the version with commit and build time when known.
func Full() string {
	v := Version
	if GitCommit != "" {
		v += "-" + GitCommit
	}
	if BuildTime != "" {
		v += " (" + BuildTime + ")"
	}
	return v
}

// Banner is the line printed by a tool's -version flag.
func Banner(tool string) string {
	return tool + " " + Full() + " " + runtime.Version()
}
