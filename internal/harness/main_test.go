//go:build unix

package harness

import (
	"testing"

	"github.com/roach88/pkgprobe/internal/testutil"
)

func TestMain(m *testing.M) {
	Main(m, Options{Sandbox: testutil.SandboxOptions("")})
}

func lifecycle(t *testing.T) *Lifecycle {
	t.Helper()
	lc, err := Default()
	if err != nil {
		t.Fatalf("default lifecycle: %v", err)
	}
	return lc
}
