package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pkgprobe/internal/fsstate"
	"github.com/roach88/pkgprobe/internal/sandbox"
)

func entries(paths ...string) fsstate.Entries {
	es := make(fsstate.Entries, len(paths))
	for _, p := range paths {
		es[p] = fsstate.NewEntry(p, 1, false)
	}
	return es
}

func stepResult() *fakeInstall {
	return &fakeInstall{
		created: entries("scratch/out.txt", site+"/foo/__init__.py"),
		deleted: entries("scratch/old.txt"),
		updated: entries(site + "/easy-install.pth"),
		layout: sandbox.Layout{
			SitePackages: site,
			BinDir:       "env/bin",
			EditableBase: "scratch",
			LinkSuffix:   ".egg-link",
			IndexFile:    "easy-install.pth",
		},
		stdout: "Successfully installed foo\n",
		stderr: "warning: deprecated\n",
		exit:   0,
	}
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	failures, err := EvaluateAssertions(stepResult(), []Assertion{
		{Type: AssertExitCode, Code: 0},
		{Type: AssertStdoutContains, Text: "Successfully installed"},
		{Type: AssertStderrContains, Text: "deprecated"},
		{Type: AssertCreated, Paths: []string{"scratch/out.txt", "{site_packages}/foo/__init__.py"}},
		{Type: AssertDeleted, Paths: []string{"scratch/old.txt"}},
		{Type: AssertUpdated, Paths: []string{"{site_packages}/easy-install.pth"}},
		{Type: AssertNotCreated, Paths: []string{"{bin}/foo"}},
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	failures, err := EvaluateAssertions(stepResult(), []Assertion{
		{Type: AssertExitCode, Code: 2},
		{Type: AssertStdoutContains, Text: "Successfully installed"},
		{Type: AssertCreated, Paths: []string{"scratch/out.txt", "scratch/missing.txt"}},
		{Type: AssertNotCreated, Paths: []string{"scratch/out.txt"}},
	})
	require.NoError(t, err)
	require.Len(t, failures, 3)

	assert.Contains(t, failures[0], "assertions[0]")
	assert.Contains(t, failures[0], "exit code 2")
	assert.Contains(t, failures[1], "assertions[2]")
	assert.Contains(t, failures[1], "missing scratch/missing.txt")
	assert.Contains(t, failures[2], "assertions[3]")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	_, err := EvaluateAssertions(stepResult(), []Assertion{{Type: "bogus"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown assertion type "bogus"`)
}

func TestEvaluateAssertions_InstalledWithoutLinkFile(t *testing.T) {
	res := stepResult()
	res.updated = fsstate.Entries{}

	failures, err := EvaluateAssertions(res, []Assertion{{
		Type:            AssertInstalledType,
		Package:         "foo",
		WithoutFiles:    []string{CurrentDir},
		WithoutLinkFile: true,
	}})
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestEvaluateAssertions_UnreadableLinkFile(t *testing.T) {
	res := stepResult()
	// entries without a backing file cannot be read
	res.created[site+"/foo.egg-link"] = fsstate.NewEntry(site+"/foo.egg-link", 10, false)
	res.created["scratch/src/foo"] = fsstate.NewEntry("scratch/src/foo", 0, true)

	_, err := EvaluateAssertions(res, []Assertion{{Type: AssertInstalledType, Package: "foo"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fsstate.ErrNoSource))
	assert.False(t, IsAssertionFailure(err))
}

func TestAssertionFailure_ErrorFormat(t *testing.T) {
	err := &AssertionFailure{
		Check:    "package_dir",
		Expected: "package directory scratch/src/foo created",
		Actual:   "2 paths created",
		Created:  []string{"a", "b"},
	}

	assert.Equal(t, `Assertion failed: package_dir
  Expected: package directory scratch/src/foo created
  Actual: 2 paths created

Actually created:
  a
  b`, err.Error())
}

func TestAssertionFailure_ErrorFormatWithoutCreated(t *testing.T) {
	err := &AssertionFailure{Check: "exit_code", Expected: "exit code 0", Actual: "exit code 1"}
	assert.Equal(t, "Assertion failed: exit_code\n  Expected: exit code 0\n  Actual: exit code 1", err.Error())
}
