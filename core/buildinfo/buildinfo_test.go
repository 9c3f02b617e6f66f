package buildinfo

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	Version, Commit = "v1.4.0", "3f2a9c1"
	defer func() { Version, Commit = "dev", "local" }()

	if got := String(); !strings.HasPrefix(got, "v1.4.0 (3f2a9c1, go") {
		t.Fatalf("String() = %q", got)
	}
}
