package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Scenario defines an acceptance test: fixtures to write into a fresh
// sandbox, then commands to run with assertions on each result.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// EnvFile is a dotenv file whose variables override the sandbox
	// environment. Relative to the scenario file.
	EnvFile string `yaml:"env_file,omitempty" json:"env_file,omitempty"`

	// Env overrides sandbox variables; applied after EnvFile.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Files are fixtures written into scratch before the first step.
	// Keys are slash-separated paths relative to scratch.
	Files map[string]string `yaml:"files,omitempty" json:"files,omitempty"`

	// Steps run sequentially in the same sandbox.
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is one command and the checks on its result.
type Step struct {
	// Run is the literal argument vector; Run[0] is resolved on the
	// sandbox PATH.
	Run []string `yaml:"run" json:"run"`

	// Cwd is relative to scratch. Empty means scratch.
	Cwd string `yaml:"cwd,omitempty" json:"cwd,omitempty"`

	Stdin string `yaml:"stdin,omitempty" json:"stdin,omitempty"`

	// ExpectError tolerates a nonzero exit.
	ExpectError bool `yaml:"expect_error,omitempty" json:"expect_error,omitempty"`

	// AllowTemp tolerates files left in the temp-capture directory.
	AllowTemp bool `yaml:"allow_temp,omitempty" json:"allow_temp,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty" json:"assertions,omitempty"`
}

// Assertion validates one step result.
type Assertion struct {
	// Type specifies the assertion type:
	// - "exit_code": exit status equals Code
	// - "stdout_contains", "stderr_contains": output contains Text
	// - "created", "deleted", "updated": every path in Paths is in that set
	// - "not_created": no path in Paths was created
	// - "installed": Package installed, see AssertInstalled
	Type string `yaml:"type" json:"type"`

	Code int    `yaml:"code,omitempty" json:"code,omitempty"`
	Text string `yaml:"text,omitempty" json:"text,omitempty"`

	// Paths are relative to the sandbox root. "{site_packages}" and "{bin}"
	// expand to the runtime's directories.
	Paths []string `yaml:"paths,omitempty" json:"paths,omitempty"`

	// Used by installed.
	Package         string   `yaml:"package,omitempty" json:"package,omitempty"`
	WithFiles       []string `yaml:"with_files,omitempty" json:"with_files,omitempty"`
	WithoutFiles    []string `yaml:"without_files,omitempty" json:"without_files,omitempty"`
	WithoutLinkFile bool     `yaml:"without_link_file,omitempty" json:"without_link_file,omitempty"`
}

// Assertion type constants.
const (
	AssertExitCode       = "exit_code"
	AssertStdoutContains = "stdout_contains"
	AssertStderrContains = "stderr_contains"
	AssertCreated        = "created"
	AssertDeleted        = "deleted"
	AssertUpdated        = "updated"
	AssertNotCreated     = "not_created"
	AssertInstalledType  = "installed"
)

//go:embed schema.cue
var cueSchema string

// LoadScenario reads and parses a scenario file. Files ending in .cue are
// unified with a closed CUE schema; anything else is decoded as YAML.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative EnvFile is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		scenario, err = parseCUE(path, data)
	} else {
		scenario, err = ParseScenario(data)
	}
	if err != nil {
		return nil, err
	}

	if scenario.EnvFile != "" && !filepath.IsAbs(scenario.EnvFile) {
		scenario.EnvFile = filepath.Join(filepath.Dir(path), scenario.EnvFile)
	}
	return scenario, nil
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func parseCUE(path string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(cueSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling scenario schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	var scenario Scenario
	if err := unified.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("decoding CUE scenario: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for name := range s.Files {
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return fmt.Errorf("files: %q must be a relative path inside scratch", name)
		}
	}

	for i, step := range s.Steps {
		if len(step.Run) == 0 || step.Run[0] == "" {
			return fmt.Errorf("steps[%d]: run is required", i)
		}
		for j := range step.Assertions {
			if err := validateAssertion(i, j, &step.Assertions[j]); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(step, index int, a *Assertion) error {
	where := fmt.Sprintf("steps[%d].assertions[%d]", step, index)
	if a.Type == "" {
		return fmt.Errorf("%s: type is required", where)
	}

	switch a.Type {
	case AssertExitCode:
	case AssertStdoutContains, AssertStderrContains:
		if a.Text == "" {
			return fmt.Errorf("%s: text is required for %s", where, a.Type)
		}
	case AssertCreated, AssertDeleted, AssertUpdated, AssertNotCreated:
		if len(a.Paths) == 0 {
			return fmt.Errorf("%s: paths list is required for %s", where, a.Type)
		}
	case AssertInstalledType:
		if a.Package == "" {
			return fmt.Errorf("%s: package is required for installed", where)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
	}

	return nil
}
