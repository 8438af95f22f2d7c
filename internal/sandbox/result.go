package sandbox

import (
	"path"

	"github.com/roach88/pkgprobe/internal/fsstate"
	"github.com/roach88/pkgprobe/internal/runner"
)

// Layout locates the parts of a sandbox that assertions refer to.
// Relative fields are slash-separated and relative to Root, matching the
// keys of result entry maps.
type Layout struct {
	Root    string
	Scratch string
	Env     string
	Paths   Paths

	SitePackages string
	BinDir       string
	EditableBase string
	LinkSuffix   string
	IndexFile    string
}

// Result is a runner result bound to the sandbox that produced it.
type Result struct {
	raw    *runner.Result
	layout Layout
}

func (r *Result) Command() string               { return r.raw.CommandLine() }
func (r *Result) Stdout() string                { return r.raw.Stdout }
func (r *Result) Stderr() string                { return r.raw.Stderr }
func (r *Result) ExitCode() int                 { return r.raw.ExitCode }
func (r *Result) FilesCreated() fsstate.Entries { return r.raw.Created }
func (r *Result) FilesDeleted() fsstate.Entries { return r.raw.Deleted }
func (r *Result) FilesUpdated() fsstate.Entries { return r.raw.Updated }
func (r *Result) Layout() Layout                { return r.layout }

// SitePackagesPath returns the entry key of name inside site-packages.
func (r *Result) SitePackagesPath(name string) string {
	return path.Join(r.layout.SitePackages, name)
}

// BinPath returns the entry key of name inside the runtime's bin directory.
func (r *Result) BinPath(name string) string {
	return path.Join(r.layout.BinDir, name)
}
