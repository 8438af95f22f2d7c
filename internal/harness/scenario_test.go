package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `name: install_editable
description: "pip install creates an egg-link"
env_file: test.env
env:
  PIP_VERBOSE: "1"
files:
  pkg/setup.py: "setup()\n"
steps:
  - run: [pip, install, Foo]
    cwd: pkg
    assertions:
      - type: exit_code
        code: 0
      - type: installed
        package: Foo
        with_files: [setup.py]
  - run: [pip, fail]
    expect_error: true
    assertions:
      - type: stderr_contains
        text: simulated
`

func TestLoadScenario_YAML(t *testing.T) {
	path := writeScenario(t, "install.yaml", validYAML)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "install_editable", s.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "test.env"), s.EnvFile)
	assert.Equal(t, map[string]string{"PIP_VERBOSE": "1"}, s.Env)
	assert.Equal(t, "setup()\n", s.Files["pkg/setup.py"])
	require.Len(t, s.Steps, 2)
	assert.Equal(t, []string{"pip", "install", "Foo"}, s.Steps[0].Run)
	assert.Equal(t, "pkg", s.Steps[0].Cwd)
	assert.Equal(t, []string{"setup.py"}, s.Steps[0].Assertions[1].WithFiles)
	assert.True(t, s.Steps[1].ExpectError)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, "typo.yaml", `name: x
description: y
steps:
  - run: [pip]
    assertion:
      - type: exit_code
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing name", "description: d\nsteps: [{run: [pip]}]\n", "name is required"},
		{"missing description", "name: n\nsteps: [{run: [pip]}]\n", "description is required"},
		{"no steps", "name: n\ndescription: d\n", "steps list is required"},
		{"empty run", "name: n\ndescription: d\nsteps: [{run: []}]\n", "steps[0]: run is required"},
		{"escaping fixture", "name: n\ndescription: d\nfiles: {../x: y}\nsteps: [{run: [pip]}]\n", "inside scratch"},
		{"unknown assertion", "name: n\ndescription: d\nsteps: [{run: [pip], assertions: [{type: nope}]}]\n", `unknown assertion type "nope"`},
		{"contains without text", "name: n\ndescription: d\nsteps: [{run: [pip], assertions: [{type: stdout_contains}]}]\n", "text is required"},
		{"created without paths", "name: n\ndescription: d\nsteps: [{run: [pip], assertions: [{type: created}]}]\n", "paths list is required"},
		{"installed without package", "name: n\ndescription: d\nsteps: [{run: [pip], assertions: [{type: installed}]}]\n", "package is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_CUE(t *testing.T) {
	path := writeScenario(t, "install.cue", `
name:        "install_editable"
description: "pip install creates an egg-link"
steps: [{
	run: ["pip", "install", "Foo"]
	assertions: [{type: "installed", package: "Foo"}]
}, {
	run: ["pip", "uninstall", "-y", "Foo"]
	assertions: [{type: "deleted", paths: ["{site_packages}/Foo.egg-link"]}]
}]
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "install_editable", s.Name)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, "Foo", s.Steps[0].Assertions[0].Package)
	assert.Equal(t, []string{"{site_packages}/Foo.egg-link"}, s.Steps[1].Assertions[0].Paths)
}

func TestLoadScenario_CUERejectsUnknownField(t *testing.T) {
	path := writeScenario(t, "typo.cue", `
name:        "x"
description: "y"
steps: [{run: ["pip"], expect_eror: true}]
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestLoadScenario_CUERejectsBadAssertionType(t *testing.T) {
	path := writeScenario(t, "bad.cue", `
name:        "x"
description: "y"
steps: [{run: ["pip"], assertions: [{type: "nope"}]}]
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenario_NotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
