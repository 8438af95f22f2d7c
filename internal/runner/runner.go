package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/roach88/pkgprobe/internal/fsstate"
)

const (
	// DefaultTimeout bounds every command unless overridden.
	DefaultTimeout = 5 * time.Minute

	// DefaultTempDir is the temp-capture directory name under the root.
	DefaultTempDir = "tmp"

	// DefaultLogFile is the tool's per-sandbox log file name under the root.
	DefaultLogFile = "pip-log.txt"

	// waitDelay bounds how long Wait blocks on output pipes after a kill.
	waitDelay = 5 * time.Second
)

// Config configures a Runner.
type Config struct {
	Timeout time.Duration
	TempDir string // relative to the root
	LogFile string // relative to the root
	Logger  *slog.Logger
}

// Runner executes commands against a sandbox root.
type Runner struct {
	timeout time.Duration
	tempDir string
	ignore  []string // path prefixes
	exact   []string // whole paths
	logger  *slog.Logger
}

// New creates a Runner. Zero config fields take their defaults.
func New(cfg Config) *Runner {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TempDir == "" {
		cfg.TempDir = DefaultTempDir
	}
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultLogFile
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tempDir := strings.TrimSuffix(filepath.ToSlash(cfg.TempDir), "/")
	return &Runner{
		timeout: cfg.Timeout,
		tempDir: tempDir,
		ignore:  []string{tempDir + "/"},
		exact:   []string{filepath.ToSlash(cfg.LogFile), tempDir},
		logger:  cfg.Logger,
	}
}

// TempDir returns the absolute temp-capture directory for root.
func (r *Runner) TempDir(root string) string {
	return filepath.Join(root, filepath.FromSlash(r.tempDir))
}

// Ignore returns the default ignore prefixes. The log file and the temp
// dir entry itself are matched exactly, not by prefix.
func (r *Runner) Ignore() []string {
	return slices.Clone(r.ignore)
}

// dropExact removes the exactly-ignored paths from every side of d.
func (r *Runner) dropExact(d fsstate.StateDiff) {
	for _, p := range r.exact {
		delete(d.Created, p)
		delete(d.Deleted, p)
		delete(d.Updated, p)
	}
}

// Spec describes one command invocation.
type Spec struct {
	Root    string
	Dir     string // defaults to Root
	Command string
	Args    []string
	Env     map[string]string
	Stdin   string

	// ExpectError tolerates a nonzero exit status.
	ExpectError bool
	// AllowTemp disables leftover temp file detection for this call.
	AllowTemp bool
	// Ignore adds prefixes to the default ignore set.
	Ignore  []string
	Timeout time.Duration
}

// Run executes spec and diffs the root around it.
//
// Errors, in the order they are checked:
//   - ErrOutsideRoot if Dir escapes Root (nothing runs)
//   - *LaunchError if the executable cannot be resolved or started
//   - *TimeoutError if the process outlives the timeout
//   - *NonZeroExitError on a nonzero exit without ExpectError
//   - *LeftoverTempError if files remain in the temp dir without AllowTemp
//
// NonZeroExitError and LeftoverTempError carry the full Result, which is
// also returned alongside them.
func (r *Runner) Run(ctx context.Context, spec Spec) (*Result, error) {
	root, dir, err := resolveDirs(spec.Root, spec.Dir)
	if err != nil {
		return nil, err
	}

	path, err := lookPath(spec.Command, dir, spec.Env)
	if err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}

	tmp := r.TempDir(root)
	if err := resetDir(tmp); err != nil {
		return nil, fmt.Errorf("prepare temp dir: %w", err)
	}

	before, err := fsstate.Take(root, fsstate.TakeOptions{})
	if err != nil {
		return nil, err
	}

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = r.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, spec.Args...)
	cmd.Dir = dir
	cmd.Env = buildEnv(spec.Env, tmp)
	cmd.WaitDelay = waitDelay
	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running command",
		slog.String("command", spec.Command),
		slog.Any("args", spec.Args),
		slog.String("dir", dir),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("run %s: %w", spec.Command, ctx.Err())
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			r.logger.Warn("command timed out",
				slog.String("command", spec.Command),
				slog.Duration("timeout", timeout),
			)
			return nil, &TimeoutError{
				Command: spec.Command,
				Timeout: timeout,
				Stdout:  stdout.String(),
				Stderr:  stderr.String(),
			}
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, &LaunchError{Command: spec.Command, Err: runErr}
		}
		exitCode = exitErr.ExitCode()
	}

	after, err := fsstate.Take(root, fsstate.TakeOptions{})
	if err != nil {
		return nil, err
	}
	diff := fsstate.Diff(before, after, append(r.Ignore(), spec.Ignore...))
	r.dropExact(diff)

	res := &Result{
		Command:  spec.Command,
		Args:     slices.Clone(spec.Args),
		Dir:      dir,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: duration,
		Created:  diff.Created,
		Deleted:  diff.Deleted,
		Updated:  diff.Updated,
		Before:   before,
		After:    after,
	}

	r.logger.Debug("command completed",
		slog.String("command", spec.Command),
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", duration),
		slog.Int("created", len(diff.Created)),
		slog.Int("deleted", len(diff.Deleted)),
		slog.Int("updated", len(diff.Updated)),
	)

	if exitCode != 0 && !spec.ExpectError {
		return res, &NonZeroExitError{Result: res}
	}

	if leftovers := r.leftovers(after); len(leftovers) > 0 {
		if err := resetDir(tmp); err != nil {
			r.logger.Warn("failed to clear temp dir",
				slog.String("dir", tmp),
				slog.String("error", err.Error()),
			)
		}
		if !spec.AllowTemp {
			return res, &LeftoverTempError{Paths: leftovers, Result: res}
		}
	}

	return res, nil
}

// leftovers lists entries under the temp dir, taken from the post-run snapshot.
func (r *Runner) leftovers(after fsstate.Snapshot) []string {
	prefix := r.tempDir + "/"
	var paths []string
	for _, p := range after.Paths() {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	return paths
}

// resolveDirs cleans root and dir and checks that dir is inside root.
func resolveDirs(root, dir string) (string, string, error) {
	if root == "" {
		return "", "", fmt.Errorf("sandbox root is required")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", "", fmt.Errorf("resolve root: %w", err)
	}
	if dir == "" {
		return root, root, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s: %w", dir, ErrOutsideRoot)
	}
	return root, dir, nil
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// buildEnv renders the mapping in sorted order with the temp variables
// pointed at the capture directory.
func buildEnv(env map[string]string, tmp string) []string {
	merged := make(map[string]string, len(env)+3)
	for k, v := range env {
		merged[k] = v
	}
	for _, k := range []string{"TMPDIR", "TEMP", "TMP"} {
		merged[k] = tmp
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}
