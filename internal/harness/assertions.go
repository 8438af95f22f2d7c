package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/pkgprobe/internal/fsstate"
)

// StepResult is the view of a command result that step assertions read.
// *sandbox.Result implements it.
type StepResult interface {
	Installed
	FilesDeleted() fsstate.Entries
	Stdout() string
	Stderr() string
	ExitCode() int
}

// EvaluateAssertions checks every assertion against res and returns the
// failure messages, in assertion order. A non-nil error means an assertion
// could not be evaluated at all.
func EvaluateAssertions(res StepResult, assertions []Assertion) ([]string, error) {
	var failures []string
	for i, a := range assertions {
		err := evaluateAssertion(res, a)
		if err == nil {
			continue
		}
		var af *AssertionFailure
		if !errors.As(err, &af) {
			return failures, fmt.Errorf("assertions[%d] (%s): %w", i, a.Type, err)
		}
		failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
	}
	return failures, nil
}

func evaluateAssertion(res StepResult, a Assertion) error {
	switch a.Type {
	case AssertExitCode:
		if res.ExitCode() != a.Code {
			return &AssertionFailure{
				Check:    AssertExitCode,
				Expected: fmt.Sprintf("exit code %d", a.Code),
				Actual:   fmt.Sprintf("exit code %d", res.ExitCode()),
			}
		}
	case AssertStdoutContains:
		return assertContains(AssertStdoutContains, "stdout", res.Stdout(), a.Text)
	case AssertStderrContains:
		return assertContains(AssertStderrContains, "stderr", res.Stderr(), a.Text)
	case AssertCreated:
		return assertPresent(AssertCreated, res.FilesCreated(), expandPaths(res, a.Paths))
	case AssertDeleted:
		return assertPresent(AssertDeleted, res.FilesDeleted(), expandPaths(res, a.Paths))
	case AssertUpdated:
		return assertPresent(AssertUpdated, res.FilesUpdated(), expandPaths(res, a.Paths))
	case AssertNotCreated:
		created := res.FilesCreated()
		for _, p := range expandPaths(res, a.Paths) {
			if created.Has(p) {
				return &AssertionFailure{
					Check:    AssertNotCreated,
					Expected: fmt.Sprintf("%s not created", p),
					Actual:   "created",
					Created:  created.Paths(),
				}
			}
		}
	case AssertInstalledType:
		opts := []InstallOption{WithFiles(a.WithFiles...), WithoutFiles(a.WithoutFiles...)}
		if a.WithoutLinkFile {
			opts = append(opts, WithoutLinkFile())
		}
		return AssertInstalled(res, a.Package, opts...)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func assertContains(check, stream, output, text string) error {
	if strings.Contains(output, text) {
		return nil
	}
	return &AssertionFailure{
		Check:    check,
		Expected: fmt.Sprintf("%s containing %q", stream, text),
		Actual:   fmt.Sprintf("%q", output),
	}
}

func assertPresent(check string, entries fsstate.Entries, paths []string) error {
	var missing []string
	for _, p := range paths {
		if !entries.Has(p) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &AssertionFailure{
		Check:    check,
		Expected: fmt.Sprintf("%s %s", check, strings.Join(paths, ", ")),
		Actual:   fmt.Sprintf("missing %s; %s: [%s]", strings.Join(missing, ", "), check, strings.Join(entries.Paths(), ", ")),
	}
}

// expandPaths substitutes the runtime directory placeholders.
func expandPaths(res Installed, paths []string) []string {
	layout := res.Layout()
	r := strings.NewReplacer("{site_packages}", layout.SitePackages, "{bin}", layout.BinDir)
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = r.Replace(p)
	}
	return out
}
