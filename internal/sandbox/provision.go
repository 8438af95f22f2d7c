package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// Paths are the directories of a provisioned runtime.
type Paths struct {
	Home    string
	Lib     string
	Include string
	Bin     string
}

// Provisioner creates a runtime installation in dir.
type Provisioner interface {
	Provision(ctx context.Context, dir string) (Paths, error)
}

// ProvisionerFunc adapts a function to Provisioner.
type ProvisionerFunc func(ctx context.Context, dir string) (Paths, error)

// Provision calls f.
func (f ProvisionerFunc) Provision(ctx context.Context, dir string) (Paths, error) {
	return f(ctx, dir)
}

// Virtualenv provisions with the virtualenv command found on the host PATH.
type Virtualenv struct {
	Command string   // default "virtualenv"
	Args    []string // default --quiet --no-site-packages
}

// Provision runs virtualenv against dir and locates the created directories.
func (v Virtualenv) Provision(ctx context.Context, dir string) (Paths, error) {
	command := v.Command
	if command == "" {
		command = "virtualenv"
	}
	args := v.Args
	if args == nil {
		args = []string{"--quiet", "--no-site-packages"}
	}

	cmd := exec.CommandContext(ctx, command, append(slices.Clone(args), dir)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Paths{}, fmt.Errorf("%s %s: %w\n%s", command, dir, err, strings.TrimSpace(string(out)))
	}
	return VirtualenvLayout(dir)
}

// VirtualenvLayout computes the directories of an existing virtualenv the
// way virtualenv lays them out: bin, lib/pythonX.Y and include/pythonX.Y,
// or Scripts, Lib and Include on windows.
func VirtualenvLayout(dir string) (Paths, error) {
	home, err := filepath.Abs(dir)
	if err != nil {
		return Paths{}, err
	}

	if runtime.GOOS == "windows" {
		return Paths{
			Home:    home,
			Lib:     filepath.Join(home, "Lib"),
			Include: filepath.Join(home, "Include"),
			Bin:     filepath.Join(home, "Scripts"),
		}, nil
	}

	matches, err := filepath.Glob(filepath.Join(home, "lib", "python*"))
	if err != nil {
		return Paths{}, err
	}
	if len(matches) == 0 {
		return Paths{}, fmt.Errorf("no lib/python* directory in %s", home)
	}
	slices.Sort(matches)
	version := filepath.Base(matches[len(matches)-1])

	return Paths{
		Home:    home,
		Lib:     filepath.Join(home, "lib", version),
		Include: filepath.Join(home, "include", version),
		Bin:     filepath.Join(home, "bin"),
	}, nil
}
