package sandbox

import "strings"

// Profile describes the tool under test: its naming conventions and the
// commands that bring a fresh runtime to a known baseline.
type Profile struct {
	Name string `yaml:"name"`

	// EnvPrefix marks the tool's configuration variables. Host variables
	// with this prefix (compared case-insensitively) are removed.
	EnvPrefix string `yaml:"env_prefix"`
	// StripVars are further host variables removed from the environment.
	StripVars []string `yaml:"strip_vars"`

	CacheVar   string `yaml:"cache_var"`
	NoInputVar string `yaml:"no_input_var"`
	LogFileVar string `yaml:"log_file_var"`
	LogFile    string `yaml:"log_file"`

	Interpreter     string `yaml:"interpreter"`
	LinkSuffix      string `yaml:"link_suffix"`
	IndexFile       string `yaml:"index_file"`
	SitePackagesDir string `yaml:"site_packages_dir"`

	// Bootstrap installs the pinned baseline package manager. The first
	// element is resolved in the runtime's bin directory.
	Bootstrap []string `yaml:"bootstrap"`
	// Uninstall removes the tool version shipped with the runtime.
	// "{source}" is replaced with a quoted literal of the candidate path.
	Uninstall []string `yaml:"uninstall"`
	// Install installs the candidate, run from the candidate directory.
	Install []string `yaml:"install"`

	// EditableBase is the directory, relative to the root, whose src/
	// holds editable checkouts.
	EditableBase string `yaml:"editable_base"`
}

// PipProfile returns the profile for pip.
func PipProfile() Profile {
	return Profile{
		Name:            "pip",
		EnvPrefix:       "PIP_",
		StripVars:       []string{"PYTHONPATH"},
		CacheVar:        "PIP_DOWNLOAD_CACHE",
		NoInputVar:      "PIP_NO_INPUT",
		LogFileVar:      "PIP_LOG_FILE",
		LogFile:         "pip-log.txt",
		Interpreter:     "python",
		LinkSuffix:      ".egg-link",
		IndexFile:       "easy-install.pth",
		SitePackagesDir: "site-packages",
		Bootstrap:       []string{"easy_install", "setuptools==0.6c11"},
		Uninstall: []string{
			"python", "-c",
			"import sys;sys.path.insert(0, {source});import pip;sys.exit(pip.main());",
			"uninstall", "-y", "pip",
		},
		Install:      []string{"python", "setup.py", "install"},
		EditableBase: "scratch",
	}
}

// WithDefaults fills empty fields from PipProfile. Command slices are only
// defaulted when nil, so an explicit empty list skips that step.
func (p Profile) WithDefaults() Profile {
	d := PipProfile()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&p.Name, d.Name)
	fill(&p.EnvPrefix, d.EnvPrefix)
	fill(&p.CacheVar, d.CacheVar)
	fill(&p.NoInputVar, d.NoInputVar)
	fill(&p.LogFileVar, d.LogFileVar)
	fill(&p.LogFile, d.LogFile)
	fill(&p.Interpreter, d.Interpreter)
	fill(&p.LinkSuffix, d.LinkSuffix)
	fill(&p.IndexFile, d.IndexFile)
	fill(&p.SitePackagesDir, d.SitePackagesDir)
	fill(&p.EditableBase, d.EditableBase)
	if p.StripVars == nil {
		p.StripVars = d.StripVars
	}
	if p.Bootstrap == nil {
		p.Bootstrap = d.Bootstrap
	}
	if p.Uninstall == nil {
		p.Uninstall = d.Uninstall
	}
	if p.Install == nil {
		p.Install = d.Install
	}
	return p
}

// expandSource substitutes the candidate path into a command template.
func expandSource(argv []string, source string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, "{source}", pyQuote(source))
	}
	return out
}

// pyQuote renders s as a single-quoted Python string literal.
func pyQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
