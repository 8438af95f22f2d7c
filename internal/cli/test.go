package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pkgprobe/internal/harness"
	"github.com/roach88/pkgprobe/internal/sandbox"
	"github.com/roach88/pkgprobe/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update  bool   // regenerate golden files
	Filter  string // scenario filter (glob pattern)
	DB      string // run history database
	EnvFile string // variables applied to every sandbox
	Source  string // tool source tree to install
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	RunID  string   `json:"run_id,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// scenarioExts are the file extensions loaded as scenarios.
var scenarioExts = []string{".yaml", ".yml", ".cue"}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run acceptance scenarios",
		Long: `Run every scenario in a directory, each in a fresh sandbox.

Scenarios are YAML (.yaml, .yml) or CUE (.cue) files. When a golden
trace exists at golden/<file>.golden next to the scenario, the run's
trace must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  pkgprobe test ./scenarios
  pkgprobe test ./scenarios --filter "install-*"
  pkgprobe test ./scenarios --update
  pkgprobe test ./scenarios --source ../pip --db runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record runs in this SQLite database")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file applied to every sandbox")
	cmd.Flags().StringVar(&opts.Source, "source", "", "tool source tree installed into every sandbox")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(cmd, opts.RootOptions)
	logger := opts.logger(out.GetErrWriter())

	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if out.JSON() {
			return out.Respond(TestResult{Scenarios: []ScenarioResult{}}, "", "")
		}
		fmt.Fprintln(out.Writer, "No scenarios found.")
		return nil
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.EnvFile != "" {
		cfg.EnvFile = opts.EnvFile
	}
	if opts.Source != "" {
		cfg.Source = opts.Source
	}
	if opts.DB != "" {
		cfg.Database = opts.DB
	}

	env, err := cfg.Env()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load env file", err)
	}

	var st *store.Store
	if cfg.Database != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create database directory", err)
		}
		st, err = store.Open(cfg.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}

	lcOpts := cfg.LifecycleOptions(env, logger)
	if opts.configure != nil {
		opts.configure(&lcOpts)
	}
	lc, err := harness.Setup(lcOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up harness", err)
	}
	defer lc.Close()
	stop := sandbox.InstallSignalHandler(lc.Close)
	defer stop()

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(ctx, lc, st, scenarioFile, opts, logger)
		result.Scenarios = append(result.Scenarios, scenResult)

		if !out.JSON() {
			printScenario(out, scenResult, opts.Update)
		}
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if out.JSON() {
		code, message := "", ""
		if result.Failed > 0 {
			code, message = CodeTestFailed, fmt.Sprintf("%d scenario(s) failed", result.Failed)
		}
		if err := out.Respond(result, code, message); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out.Writer)
		fmt.Fprintf(out.Writer, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		if result.Failed == 0 {
			fmt.Fprintln(out.Writer, "✓ All scenarios passed")
		}
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles finds all scenario files under dir, sorted by path.
// filter is matched against the file name without its extension.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if !slices.Contains(scenarioExts, strings.ToLower(ext)) {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if matched, _ := filepath.Match(filter, name); !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	slices.Sort(files)
	return files, err
}

// runScenario executes a single scenario, records it when st is set, and
// checks or updates its golden trace.
func runScenario(ctx context.Context, lc *harness.Lifecycle, st *store.Store, scenarioFile string, opts *TestOptions, logger *slog.Logger) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(scenarioFile), File: scenarioFile}
	fail := func(format string, args ...any) ScenarioResult {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf(format, args...))
		return sr
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	sr.Name = scenario.Name

	result, err := harness.Run(ctx, lc, scenario)
	if err != nil {
		return fail("execution failed: %v", err)
	}

	if st != nil {
		runID, err := st.RecordRun(ctx, scenario.Name, result)
		if err != nil {
			logger.Warn("failed to record run", slog.String("scenario", scenario.Name), slog.Any("error", err))
		} else {
			sr.RunID = runID
		}
	}

	sr.Pass = result.Pass
	sr.Errors = append(sr.Errors, result.Errors...)

	trace, err := harness.MarshalTrace(scenario.Name, result)
	if err != nil {
		return fail("failed to marshal trace: %v", err)
	}

	goldenPath := goldenFilePath(scenarioFile)
	if opts.Update {
		if err := writeGolden(goldenPath, trace); err != nil {
			return fail("failed to update golden file: %v", err)
		}
		return sr
	}

	golden, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return sr
	}
	if err != nil {
		return fail("golden comparison failed: %v", err)
	}
	if !bytes.Equal(golden, trace) {
		return fail("trace does not match golden file %s (run with --update to regenerate)", goldenPath)
	}
	return sr
}

func printScenario(out *OutputFormatter, sr ScenarioResult, updated bool) {
	w := out.Writer
	if !sr.Pass {
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
		}
		return
	}
	suffix := ""
	if updated {
		suffix = " (golden updated)"
	}
	fmt.Fprintf(w, "✓ %s%s\n", sr.Name, suffix)
	if out.Verbose && sr.RunID != "" {
		fmt.Fprintf(w, "  run %s\n", sr.RunID)
	}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// writeGolden writes the current trace as the golden file.
func writeGolden(goldenPath string, trace []byte) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, trace, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
