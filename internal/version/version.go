// Package version holds build metadata injected at link time.
package version

import "fmt"

// Set via -ldflags "-X oddsfeed/internal/version.Version=..." at build
// time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a single-line version string.
func Info() string {
	return fmt.Sprintf("oddsfeed %s (commit %s, built %s)", Version, Commit, Date)
}
