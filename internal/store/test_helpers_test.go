package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/pkgprobe/internal/harness"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestResult builds an install/uninstall result with two steps.
func createTestResult() *harness.Result {
	res := harness.NewResult()
	res.AddStep(harness.TraceStep{
		Run:     []string{"pip", "install", "Foo"},
		Created: []string{"env/site-packages/Foo.egg-link", "scratch/src/foo"},
		Deleted: []string{},
		Updated: []string{"env/site-packages/easy-install.pth"},
		Stdout:  "installed\n",
		Sizes: map[string]int64{
			"env/site-packages/Foo.egg-link":     42,
			"scratch/src/foo":                    0,
			"env/site-packages/easy-install.pth": 57,
		},
	})
	res.AddStep(harness.TraceStep{
		Run:      []string{"pip", "uninstall", "-y", "Foo"},
		Cwd:      "scratch",
		ExitCode: 1,
		Created:  []string{},
		Deleted:  []string{"env/site-packages/Foo.egg-link"},
		Updated:  []string{},
		Stderr:   "boom\n",
		Failure:  "pip exited with code 1",
	})
	res.AddError("steps[1]: pip exited with code 1")
	return res
}
