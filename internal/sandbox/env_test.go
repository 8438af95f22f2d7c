package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripTool_CaseInsensitivePrefix(t *testing.T) {
	env := map[string]string{
		"PIP_INDEX_URL":    "http://host",
		"pip_download":     "x",
		"Pip_Require_Venv": "1",
		"PYTHONPATH":       "/host/lib",
		"PIPX_HOME":        "/keep",
		"HOME":             "/home/u",
	}

	out := StripTool(env, "PIP_", []string{"PYTHONPATH"})

	assert.Equal(t, map[string]string{"PIPX_HOME": "/keep", "HOME": "/home/u"}, out)
	assert.Len(t, env, 6, "input is not modified")
}

func TestPrependPath(t *testing.T) {
	env := map[string]string{"PATH": "/usr/bin"}
	prependPath(env, "/sb/env/bin")
	assert.Equal(t, "/sb/env/bin"+string(os.PathListSeparator)+"/usr/bin", env["PATH"])

	empty := map[string]string{}
	prependPath(empty, "/sb/env/bin")
	assert.Equal(t, "/sb/env/bin", empty["PATH"])
}

func TestSitePackages(t *testing.T) {
	root := t.TempDir()

	site, err := sitePackages(root, filepath.Join(root, "env", "lib", "python3.11"), "site-packages")
	require.NoError(t, err)
	assert.Equal(t, "env/lib/python3.11/site-packages", site)

	_, err = sitePackages(root, t.TempDir(), "site-packages")
	assert.ErrorIs(t, err, ErrLayoutEscapesRoot)

	_, err = sitePackages(root, root, "site-packages")
	assert.ErrorIs(t, err, ErrLayoutEscapesRoot)
}

func TestSameExecutable(t *testing.T) {
	assert.True(t, sameExecutable("/sb/env/bin/python", "/sb/env/bin/python"))
	assert.True(t, sameExecutable("/sb/env/bin/python.exe", "/sb/env/bin/python"))
	assert.False(t, sameExecutable("/usr/bin/python", "/sb/env/bin/python"))
}

func TestExpandSource(t *testing.T) {
	argv := expandSource([]string{"python", "-c", "sys.path.insert(0, {source})"}, `/src/it's`)
	assert.Equal(t, []string{"python", "-c", `sys.path.insert(0, '/src/it\'s')`}, argv)
}

func TestProfile_WithDefaults(t *testing.T) {
	p := Profile{EditableBase: "env", Bootstrap: []string{}}.WithDefaults()

	assert.Equal(t, "env", p.EditableBase)
	assert.Equal(t, "PIP_", p.EnvPrefix)
	assert.Equal(t, ".egg-link", p.LinkSuffix)
	assert.Empty(t, p.Bootstrap, "explicit empty list skips bootstrap")
	assert.Equal(t, PipProfile().Install, p.Install)
}

func TestVirtualenvLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib", "python3.11", "site-packages"), 0o755))

	paths, err := VirtualenvLayout(dir)
	if err != nil {
		t.Skipf("layout differs on this platform: %v", err)
	}
	assert.Equal(t, dir, paths.Home)
	assert.Contains(t, paths.Lib, dir)
	assert.Contains(t, paths.Bin, dir)
}
