// Package version provides build-time version information.
package version

// These variables are set at build time using -ldflags
var (
	// Version is the semantic version
	Version = "0.3.0"

	// BuildTime is the UTC time when the binary was built
	BuildTime = "unknown"

	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// String returns a one-line description for log banners.
func String() string {
	return Version + " (" + GitCommit + ", built " + BuildTime + ")"
}
