package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roach88/pkgprobe/internal/fsstate"
	"github.com/roach88/pkgprobe/internal/runner"
)

const (
	scratchDir   = "scratch"
	envDir       = "env"
	candidateDir = "candidate"
)

// Options configures New.
type Options struct {
	Profile     Profile
	Provisioner Provisioner

	// Source is the tool's source tree to install. Empty skips the
	// uninstall and install steps.
	Source string
	// CacheDir is the shared download cache, exported through the
	// profile's cache variable when Environ is nil.
	CacheDir string

	// Environ replaces the host environment as the starting point. When
	// set it is used as given: no variables are stripped and no cache
	// variable is added.
	Environ map[string]string
	// Overrides are applied after the derived variables. The runtime bin
	// directory is still prepended to PATH afterwards.
	Overrides map[string]string

	// TempRoot is the parent of the sandbox root; default os.TempDir().
	TempRoot string
	Timeout  time.Duration
	Logger   *slog.Logger

	// OnClose runs once when the sandbox is closed.
	OnClose func(*Sandbox)
}

// RunOptions adjusts a single command.
type RunOptions struct {
	// Dir is the working directory, relative to Scratch unless absolute.
	Dir         string
	ExpectError bool
	AllowTemp   bool
	Ignore      []string
	Env         map[string]string
	Stdin       string
	Timeout     time.Duration
}

// Sandbox is one isolated environment. It must be closed.
type Sandbox struct {
	Root         string
	Scratch      string
	EnvPath      string
	Paths        Paths
	SitePackages string // relative to Root, slash-separated

	profile Profile
	env     map[string]string
	runner  *runner.Runner
	logger  *slog.Logger
	onClose func(*Sandbox)

	closeOnce sync.Once
}

// New builds a sandbox: root allocation, environment, provisioning, PATH,
// interpreter probe, bootstrap and candidate install, in that order. Any
// failure aborts the remaining steps and removes what was created.
func New(ctx context.Context, opts Options) (*Sandbox, error) {
	if opts.Provisioner == nil {
		return nil, ErrNoProvisioner
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	profile := opts.Profile.WithDefaults()

	root, err := os.MkdirTemp(opts.TempRoot, "*-pkgprobe")
	if err != nil {
		return nil, &SetupError{Step: "allocate root", Err: err}
	}
	// MkdirTemp may return a relative path when TempRoot is relative.
	if root, err = filepath.Abs(root); err != nil {
		return nil, &SetupError{Step: "allocate root", Err: err}
	}

	s := &Sandbox{
		Root:    root,
		Scratch: filepath.Join(root, scratchDir),
		EnvPath: filepath.Join(root, envDir),
		profile: profile,
		logger:  logger.With(slog.String("sandbox", filepath.Base(root))),
		onClose: opts.OnClose,
		runner: runner.New(runner.Config{
			Timeout: opts.Timeout,
			LogFile: profile.LogFile,
			Logger:  logger,
		}),
	}
	register(s)

	if err := s.setup(ctx, opts); err != nil {
		s.Close()
		return nil, err
	}
	s.logger.Info("sandbox ready", slog.String("root", root))
	return s, nil
}

func (s *Sandbox) setup(ctx context.Context, opts Options) error {
	for _, dir := range []string{s.Scratch, s.EnvPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &SetupError{Step: "allocate root", Err: err}
		}
	}

	s.env = s.buildEnviron(opts)

	paths, err := opts.Provisioner.Provision(ctx, s.EnvPath)
	if err != nil {
		return &SetupError{Step: "provision", Err: err}
	}
	site, err := sitePackages(s.Root, paths.Lib, s.profile.SitePackagesDir)
	if err != nil {
		return &SetupError{Step: "provision", Err: err}
	}
	s.Paths = paths
	s.SitePackages = site
	s.logger.Debug("runtime provisioned",
		slog.String("bin", paths.Bin),
		slog.String("site_packages", site),
	)

	prependPath(s.env, paths.Bin)

	if err := s.probe(ctx); err != nil {
		return &SetupError{Step: "probe", Err: err}
	}
	if err := s.bootstrap(ctx); err != nil {
		return &SetupError{Step: "bootstrap", Err: err}
	}
	if opts.Source != "" {
		if err := s.installCandidate(ctx, opts.Source); err != nil {
			return &SetupError{Step: "install candidate", Err: err}
		}
	}
	return nil
}

func (s *Sandbox) buildEnviron(opts Options) map[string]string {
	p := s.profile
	var env map[string]string
	if opts.Environ == nil {
		env = StripTool(HostEnviron(), p.EnvPrefix, p.StripVars)
		if opts.CacheDir != "" {
			env[p.CacheVar] = opts.CacheDir
		}
	} else {
		env = maps.Clone(opts.Environ)
	}
	env[p.NoInputVar] = "1"
	env[p.LogFileVar] = s.LogPath()
	maps.Copy(env, opts.Overrides)
	return env
}

// sitePackages derives the site-packages key from the library directory,
// which must be inside root.
func sitePackages(root, lib, dirName string) (string, error) {
	if lib == "" {
		return "", fmt.Errorf("provisioner returned no library directory")
	}
	rel, err := filepath.Rel(root, lib)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", lib, ErrLayoutEscapesRoot)
	}
	return filepath.ToSlash(rel) + "/" + dirName, nil
}

// Profile returns the tool profile in effect.
func (s *Sandbox) Profile() Profile { return s.profile }

// LogPath returns the tool's log file.
func (s *Sandbox) LogPath() string {
	return filepath.Join(s.Root, s.profile.LogFile)
}

// Environ returns a copy of the environment commands run with.
func (s *Sandbox) Environ() map[string]string {
	return maps.Clone(s.env)
}

// Layout describes where things live in this sandbox.
func (s *Sandbox) Layout() Layout {
	bin, _ := filepath.Rel(s.Root, s.Paths.Bin)
	return Layout{
		Root:         s.Root,
		Scratch:      s.Scratch,
		Env:          s.EnvPath,
		Paths:        s.Paths,
		SitePackages: s.SitePackages,
		BinDir:       filepath.ToSlash(bin),
		EditableBase: s.profile.EditableBase,
		LinkSuffix:   s.profile.LinkSuffix,
		IndexFile:    s.profile.IndexFile,
	}
}

// Run executes command in Scratch. A nonzero exit is an error.
func (s *Sandbox) Run(ctx context.Context, command string, args ...string) (*Result, error) {
	return s.RunWith(ctx, RunOptions{}, command, args...)
}

// RunWith executes command with per-call options. When the runner returns
// a result together with an error, both are returned.
func (s *Sandbox) RunWith(ctx context.Context, opts RunOptions, command string, args ...string) (*Result, error) {
	dir := s.Scratch
	if opts.Dir != "" {
		dir = opts.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(s.Scratch, filepath.FromSlash(dir))
		}
	}

	env := s.env
	if len(opts.Env) > 0 {
		env = maps.Clone(s.env)
		maps.Copy(env, opts.Env)
	}

	raw, err := s.runner.Run(ctx, runner.Spec{
		Root:        s.Root,
		Dir:         dir,
		Command:     command,
		Args:        args,
		Env:         env,
		Stdin:       opts.Stdin,
		ExpectError: opts.ExpectError,
		AllowTemp:   opts.AllowTemp,
		Ignore:      opts.Ignore,
		Timeout:     opts.Timeout,
	})
	if raw == nil {
		return nil, err
	}
	return &Result{raw: raw, layout: s.Layout()}, err
}

// Snapshot records the current state of the root.
func (s *Sandbox) Snapshot() (fsstate.Snapshot, error) {
	return fsstate.Take(s.Root, fsstate.TakeOptions{})
}

// WriteFile writes text to rel inside Scratch, creating parent directories.
func (s *Sandbox) WriteFile(rel, text string) error {
	path, err := s.scratchPath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// Mkdir creates the directory rel inside Scratch.
func (s *Sandbox) Mkdir(rel string) error {
	path, err := s.scratchPath(rel)
	if err != nil {
		return err
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", rel, err)
	}
	return nil
}

func (s *Sandbox) scratchPath(rel string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("%s: path must stay inside scratch", rel)
	}
	return filepath.Join(s.Scratch, filepath.FromSlash(rel)), nil
}

// Close removes the sandbox root. It is safe to call more than once and
// never fails; removal errors are logged.
func (s *Sandbox) Close() {
	s.closeOnce.Do(func() {
		unregister(s)
		if s.onClose != nil {
			defer s.onClose(s)
		}
		if err := os.RemoveAll(s.Root); err != nil {
			s.logger.Warn("failed to remove sandbox root",
				slog.String("root", s.Root),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.Debug("sandbox removed", slog.String("root", s.Root))
	})
}
