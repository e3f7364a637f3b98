// Package version exposes build metadata stamped via -ldflags.
package version

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the git revision the binary was built from.
	Commit = "unknown"
	// BuildDate records when the binary was built.
	BuildDate = "unknown"
)
