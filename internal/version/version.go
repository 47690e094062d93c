// Package version reports the build the binary was made from.
package version

import "fmt"

// Set via -ldflags "-X github.com/GoCodeAlone/showroom/internal/version.Version=..." at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String formats the build information for display.
func String() string {
	return fmt.Sprintf("showroom %s (commit %s, built %s)", Version, Commit, BuildDate)
}
