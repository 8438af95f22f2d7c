package harness

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/joho/godotenv"

	"github.com/roach88/pkgprobe/internal/fsstate"
	"github.com/roach88/pkgprobe/internal/sandbox"
)

// Run executes a scenario in a fresh sandbox from lc and returns the result.
//
// Execution flow:
// 1. Resolve environment overrides (env_file, then env)
// 2. Create the sandbox and write fixture files into scratch
// 3. Run each step, recording its trace and evaluating its assertions
// 4. Close the sandbox
//
// A step the tool fails (unexpected nonzero exit, leftover temp files)
// is recorded as an error and stops the remaining steps. Infrastructure
// failures abort the run with an error.
func Run(ctx context.Context, lc *Lifecycle, scenario *Scenario) (*Result, error) {
	overrides, err := scenarioEnv(scenario)
	if err != nil {
		return nil, err
	}

	sb, err := lc.NewSandboxWithEnv(ctx, overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}
	defer sb.Close()

	logger := lc.logger.With(slog.String("scenario", scenario.Name))

	for _, name := range slices.Sorted(maps.Keys(scenario.Files)) {
		if err := sb.WriteFile(name, scenario.Files[name]); err != nil {
			return nil, fmt.Errorf("failed to write fixture: %w", err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		res, runErr := sb.RunWith(ctx, sandbox.RunOptions{
			Dir:         step.Cwd,
			ExpectError: step.ExpectError,
			AllowTemp:   step.AllowTemp,
			Stdin:       step.Stdin,
		}, step.Run[0], step.Run[1:]...)

		if runErr != nil && !IsAssertionFailure(runErr) {
			return nil, fmt.Errorf("step %d: %w", i, runErr)
		}

		trace := traceStep(step, res)
		if runErr != nil {
			trace.Failure = runErr.Error()
			result.AddStep(trace)
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, runErr))
			logger.Info("step failed", slog.Int("step", i), slog.String("error", runErr.Error()))
			break
		}

		failures, err := EvaluateAssertions(res, step.Assertions)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		for _, f := range failures {
			result.AddError(fmt.Sprintf("steps[%d] %s", i, f))
		}
		result.AddStep(trace)

		logger.Info("step completed",
			slog.Int("step", i),
			slog.Any("run", step.Run),
			slog.Int("exit_code", res.ExitCode()),
			slog.Int("failures", len(failures)),
		)
	}

	return result, nil
}

// scenarioEnv merges the env file and inline env of a scenario.
func scenarioEnv(s *Scenario) (map[string]string, error) {
	env := make(map[string]string)
	if s.EnvFile != "" {
		fromFile, err := godotenv.Read(s.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
		maps.Copy(env, fromFile)
	}
	maps.Copy(env, s.Env)
	return env, nil
}

// traceStep summarizes a step result; res may be nil.
func traceStep(step Step, res *sandbox.Result) TraceStep {
	t := TraceStep{
		Run:     slices.Clone(step.Run),
		Cwd:     step.Cwd,
		Created: []string{},
		Deleted: []string{},
		Updated: []string{},
		Sizes:   map[string]int64{},
	}
	if res == nil {
		return t
	}
	t.ExitCode = res.ExitCode()
	t.Stdout = res.Stdout()
	t.Stderr = res.Stderr()
	t.Created = res.FilesCreated().Paths()
	t.Deleted = res.FilesDeleted().Paths()
	t.Updated = res.FilesUpdated().Paths()
	for _, entries := range []fsstate.Entries{res.FilesCreated(), res.FilesDeleted(), res.FilesUpdated()} {
		for p, e := range entries {
			t.Sizes[p] = e.Size
		}
	}
	return t
}
