// Package buildinfo carries the version stamped in at link time:
//
//	go build -ldflags "-X github.com/m3rciful/tarotbot/core/buildinfo.Version=v1.4.0 \
//	  -X github.com/m3rciful/tarotbot/core/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "local"
)

// String renders version, commit and Go runtime, e.g. "v1.4.0 (3f2a9c1, go1.24.0)".
func String() string {
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, runtime.Version())
}
