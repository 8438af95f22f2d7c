package harness

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/pkgprobe/internal/fsstate"
	"github.com/roach88/pkgprobe/internal/runner"
	"github.com/roach88/pkgprobe/internal/sandbox"
)

// CurrentDir in WithoutFiles expects the package directory itself to be
// absent from the created files.
const CurrentDir = "."

// linkMarker terminates every link file after the path line.
const linkMarker = "."

// Installed is the view of a command result AssertInstalled needs.
// *sandbox.Result implements it.
type Installed interface {
	FilesCreated() fsstate.Entries
	FilesUpdated() fsstate.Entries
	Layout() sandbox.Layout
}

// AssertionFailure is returned when observed state does not match the
// expectation. It is distinct from infrastructure errors.
type AssertionFailure struct {
	Check    string   // which check failed
	Expected string   // human-readable expected outcome
	Actual   string   // human-readable actual outcome
	Created  []string // created paths, for diagnosis; may be empty
}

// Error implements the error interface.
func (e *AssertionFailure) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Check)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)

	if len(e.Created) > 0 {
		fmt.Fprintf(&buf, "\n\nActually created:\n")
		for _, p := range e.Created {
			fmt.Fprintf(&buf, "  %s\n", p)
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

// IsAssertionFailure reports whether err means the tool under test
// misbehaved rather than the harness: an AssertionFailure, a nonzero exit
// that was not expected, or files left in the temp-capture directory.
func IsAssertionFailure(err error) bool {
	var af *AssertionFailure
	var exitErr *runner.NonZeroExitError
	var tempErr *runner.LeftoverTempError
	return errors.As(err, &af) || errors.As(err, &exitErr) || errors.As(err, &tempErr)
}

type installConfig struct {
	withFiles       []string
	withoutFiles    []string
	withoutLinkFile bool
}

// InstallOption adjusts AssertInstalled.
type InstallOption func(*installConfig)

// WithFiles requires each path, relative to the package directory, among
// the created files.
func WithFiles(files ...string) InstallOption {
	return func(c *installConfig) { c.withFiles = append(c.withFiles, files...) }
}

// WithoutFiles forbids each path, relative to the package directory, among
// the created files. CurrentDir forbids the package directory itself.
func WithoutFiles(files ...string) InstallOption {
	return func(c *installConfig) { c.withoutFiles = append(c.withoutFiles, files...) }
}

// WithoutLinkFile expects no link file and no index file update.
func WithoutLinkFile() InstallOption {
	return func(c *installConfig) { c.withoutLinkFile = true }
}

// AssertInstalled checks that res installed pkg in editable form:
//
//   - <site-packages>/<pkg>.egg-link is created, and its bytes are the
//     package directory, a newline and the "." marker
//   - <site-packages>/easy-install.pth is updated
//   - <editable base>/src/<lower(pkg)> is created
//   - every WithFiles path exists under it, no WithoutFiles path does
//
// WithoutLinkFile inverts the first two checks. The first violated check is
// returned as an *AssertionFailure. Failing to read the link file is an
// infrastructure error.
func AssertInstalled(res Installed, pkg string, opts ...InstallOption) error {
	var cfg installConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	layout := res.Layout()
	created := res.FilesCreated()
	pkgDir := path.Join(layout.EditableBase, "src", strings.ToLower(pkg))

	linkPath := path.Join(layout.SitePackages, pkg+layout.LinkSuffix)
	if cfg.withoutLinkFile {
		if created.Has(linkPath) {
			return &AssertionFailure{
				Check:    "link_file",
				Expected: fmt.Sprintf("%s not created", linkPath),
				Actual:   "unexpected link file created",
			}
		}
	} else if err := checkLinkFile(created, linkPath, pkgDir); err != nil {
		return err
	}

	indexPath := path.Join(layout.SitePackages, layout.IndexFile)
	if res.FilesUpdated().Has(indexPath) == cfg.withoutLinkFile {
		expected, actual := "updated", "not updated"
		if cfg.withoutLinkFile {
			expected, actual = "not updated", "updated"
		}
		return &AssertionFailure{
			Check:    "index_file",
			Expected: fmt.Sprintf("%s %s", indexPath, expected),
			Actual:   fmt.Sprintf("%s %s by install", indexPath, actual),
		}
	}

	excludeDir := slices.Contains(cfg.withoutFiles, CurrentDir)
	if created.Has(pkgDir) == excludeDir {
		expected := fmt.Sprintf("package directory %s created", pkgDir)
		if excludeDir {
			expected = fmt.Sprintf("package directory %s not created", pkgDir)
		}
		return &AssertionFailure{
			Check:    "package_dir",
			Expected: expected,
			Actual:   fmt.Sprintf("%d paths created", len(created)),
			Created:  created.Paths(),
		}
	}

	for _, f := range cfg.withFiles {
		p := path.Join(pkgDir, filepath.ToSlash(f))
		if !created.Has(p) {
			return &AssertionFailure{
				Check:    "with_files",
				Expected: fmt.Sprintf("%s created", p),
				Actual:   fmt.Sprintf("package directory %s missing expected content %s", pkgDir, f),
				Created:  created.Paths(),
			}
		}
	}

	for _, f := range cfg.withoutFiles {
		p := path.Join(pkgDir, filepath.ToSlash(f))
		if created.Has(p) {
			return &AssertionFailure{
				Check:    "without_files",
				Expected: fmt.Sprintf("%s not created", p),
				Actual:   fmt.Sprintf("package directory %s has unexpected content %s", pkgDir, f),
				Created:  created.Paths(),
			}
		}
	}

	return nil
}

// checkLinkFile requires the link file among created and compares its
// bytes exactly: everything before the trailing marker must end with the
// package directory, in platform form, and a newline.
func checkLinkFile(created fsstate.Entries, linkPath, pkgDir string) error {
	entry, ok := created[linkPath]
	if !ok {
		return &AssertionFailure{
			Check:    "link_file",
			Expected: fmt.Sprintf("%s created", linkPath),
			Actual:   "link file not created",
			Created:  created.Paths(),
		}
	}

	data, err := entry.Contents()
	if err != nil {
		return fmt.Errorf("read link file %s: %w", linkPath, err)
	}

	want := []byte(filepath.FromSlash(pkgDir) + "\n")
	body, hasMarker := bytes.CutSuffix(data, []byte(linkMarker))
	if !hasMarker || !bytes.HasSuffix(body, want) {
		return &AssertionFailure{
			Check:    "link_contents",
			Expected: fmt.Sprintf("%s ending with %q", linkPath, string(want)+linkMarker),
			Actual:   fmt.Sprintf("%q", data),
		}
	}
	return nil
}
