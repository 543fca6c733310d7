// Package version exposes build information stamped in at link time.
package version

import "runtime"

// Populated via -ldflags at build time, e.g.:
//
//	go build -ldflags "-X github.com/proseforge/redline/version.GitRelease=v0.3.0"
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain used for the build.
var GoInfo = runtime.Version()
