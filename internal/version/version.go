// Package version exposes build metadata injected at link time.
package version

// Set via -ldflags "-X github.com/uxlens/uxlens/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
)
