package testutil

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/roach88/pkgprobe/internal/sandbox"
)

// PythonVersion is the lib/ subdirectory the fake runtime creates.
const PythonVersion = "python3.11"

// FakeRuntime is a provisioner that lays out a virtualenv-shaped tree
// whose tools are shell scripts. It needs /bin/sh.
//
// Thread-safety: FakeRuntime is immutable after construction.
type FakeRuntime struct {
	// Scripts maps a bin/ name to its script body, without the shebang.
	Scripts map[string]string
}

// NewFakeRuntime returns a runtime with the default fake tools.
// Entries in overrides replace or add scripts.
func NewFakeRuntime(overrides map[string]string) *FakeRuntime {
	scripts := DefaultScripts()
	maps.Copy(scripts, overrides)
	return &FakeRuntime{Scripts: scripts}
}

// Provision writes the scripts to dir/bin and creates
// dir/lib/python3.11/site-packages with an empty easy-install.pth.
func (f *FakeRuntime) Provision(_ context.Context, dir string) (sandbox.Paths, error) {
	paths := sandbox.Paths{
		Home:    dir,
		Lib:     filepath.Join(dir, "lib", PythonVersion),
		Include: filepath.Join(dir, "include", PythonVersion),
		Bin:     filepath.Join(dir, "bin"),
	}
	site := filepath.Join(paths.Lib, "site-packages")
	for _, d := range []string{paths.Bin, site, paths.Include} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return sandbox.Paths{}, fmt.Errorf("fake runtime: %w", err)
		}
	}
	if err := os.WriteFile(filepath.Join(site, "easy-install.pth"), nil, 0o644); err != nil {
		return sandbox.Paths{}, fmt.Errorf("fake runtime: %w", err)
	}
	for name, body := range f.Scripts {
		script := "#!/bin/sh\n" + body + "\n"
		if err := os.WriteFile(filepath.Join(paths.Bin, name), []byte(script), 0o755); err != nil {
			return sandbox.Paths{}, fmt.Errorf("fake runtime: %w", err)
		}
	}
	return paths, nil
}

// DefaultScripts returns the fake python, easy_install and pip.
//
// The fake pip understands:
//
//	pip install NAME            editable-style install into scratch/src/<name>
//	pip install --no-link NAME  plain install into site-packages/<name>
//	pip uninstall [-y] NAME     reverse either install
//	pip leak                    leave a file in $TMPDIR
//	pip fail                    exit 1
func DefaultScripts() map[string]string {
	return map[string]string{
		"python":       fakePython,
		"easy_install": `exit 0`,
		"pip":          fakePip,
	}
}

// fakePython answers the interpreter probe with its own path and succeeds
// for anything else.
const fakePython = `if [ "$1" = "-c" ] && [ "$2" = "import sys; print(sys.executable)" ]; then
  echo "$0"
fi
exit 0`

const fakePip = `root=$(cd "$(dirname "$0")/../.." && pwd)
site=$(echo "$root"/env/lib/python*/site-packages)
cmd=$1
[ $# -gt 0 ] && shift
case "$cmd" in
install)
  link=1
  if [ "$1" = "--no-link" ]; then link=0; shift; fi
  name=$1
  lower=$(echo "$name" | tr 'A-Z' 'a-z')
  if [ $link = 1 ]; then
    pkg="$root/scratch/src/$lower"
    mkdir -p "$pkg"
    printf 'from setuptools import setup\nsetup(name="%s")\n' "$name" > "$pkg/setup.py"
    printf '%s\n.' "$pkg" > "$site/$name.egg-link"
    echo "$pkg" >> "$site/easy-install.pth"
  else
    mkdir -p "$site/$lower"
    echo "__version__ = '1.0'" > "$site/$lower/__init__.py"
  fi
  echo "Successfully installed $name"
  ;;
uninstall)
  [ "$1" = "-y" ] && shift
  name=$1
  lower=$(echo "$name" | tr 'A-Z' 'a-z')
  if [ -f "$site/$name.egg-link" ]; then
    rm -f "$site/$name.egg-link"
    rm -rf "$root/scratch/src/$lower"
    grep -v "/src/$lower\$" "$site/easy-install.pth" > "$site/easy-install.pth.new"
    mv "$site/easy-install.pth.new" "$site/easy-install.pth"
  else
    rm -rf "$site/$lower"
  fi
  echo "Successfully uninstalled $name"
  ;;
leak)
  echo leftover > "$TMPDIR/pip-leak.txt"
  ;;
fail)
  echo "ERROR: simulated failure" >&2
  exit 1
  ;;
*)
  echo "unknown command: $cmd" >&2
  exit 2
  ;;
esac`

// SandboxOptions returns sandbox options wired to a fresh FakeRuntime, with
// the sandbox root under a test temp dir and the host environment replaced
// by a minimal one.
func SandboxOptions(tempRoot string) sandbox.Options {
	return sandbox.Options{
		Provisioner: NewFakeRuntime(nil),
		TempRoot:    tempRoot,
		Environ:     map[string]string{"PATH": "/usr/bin:/bin"},
	}
}
