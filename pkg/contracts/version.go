package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the release of the pixelqc binary
	Version = "1.0.0"

	// DataFormatVersion identifies the layout of the cleaned workbook, the
	// scatter CSV and the run manifest. It changes when a column or field
	// is renamed or removed.
	DataFormatVersion = "v1"
)

// Set during build with -ldflags "-X pixelqc/pkg/contracts.GitCommit=..."
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersionString returns the short version banner
func GetVersionString() string {
	return fmt.Sprintf("pixelqc v%s", Version)
}

// GetFullVersionString returns the banner printed by -version
func GetFullVersionString() string {
	return fmt.Sprintf("%s (data format %s, built %s, commit %s, %s %s/%s)",
		GetVersionString(), DataFormatVersion, BuildTime, GitCommit,
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
