// Package version holds build metadata, overridden at link time:
//
//	go build -ldflags "-X decipher/pkg/version.Version=1.2.0 -X decipher/pkg/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "0.1.0"
	GitCommit = "development"
	BuildDate = "unknown"
)

// String returns a one-line summary of the build.
func String() string {
	return fmt.Sprintf("decipher %s (commit %s, built %s, %s %s/%s)",
		Version, GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
