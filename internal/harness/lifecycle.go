package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/roach88/pkgprobe/internal/sandbox"
)

// Options configures a Lifecycle.
type Options struct {
	// Sandbox is the template for every sandbox. CacheDir is overwritten
	// with the lifecycle's shared cache.
	Sandbox sandbox.Options

	// CacheRoot is the parent of the shared download cache; default
	// os.TempDir().
	CacheRoot string

	Logger *slog.Logger
}

// Lifecycle owns what a whole test run shares: one download cache and the
// set of sandboxes created from it.
type Lifecycle struct {
	opts      Options
	cacheBase string
	cacheDir  string
	logger    *slog.Logger

	mu        sync.Mutex
	sandboxes map[*sandbox.Sandbox]struct{} // open ones only
	closeOnce sync.Once
}

// Setup creates the shared download cache.
func Setup(opts Options) (*Lifecycle, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	base, err := os.MkdirTemp(opts.CacheRoot, "pkgprobe-cache-")
	if err != nil {
		return nil, fmt.Errorf("create download cache: %w", err)
	}
	cacheDir := filepath.Join(base, "download-cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		os.RemoveAll(base)
		return nil, fmt.Errorf("create download cache: %w", err)
	}

	return &Lifecycle{
		opts:      opts,
		cacheBase: base,
		cacheDir:  cacheDir,
		logger:    logger,
		sandboxes: make(map[*sandbox.Sandbox]struct{}),
	}, nil
}

// CacheDir returns the shared download cache.
func (l *Lifecycle) CacheDir() string { return l.cacheDir }

// NewSandbox creates a sandbox wired to the shared cache. The lifecycle
// closes it on Close if the caller has not.
func (l *Lifecycle) NewSandbox(ctx context.Context) (*sandbox.Sandbox, error) {
	return l.NewSandboxWithEnv(ctx, nil)
}

// NewSandboxWithEnv is NewSandbox with extra environment overrides.
func (l *Lifecycle) NewSandboxWithEnv(ctx context.Context, overrides map[string]string) (*sandbox.Sandbox, error) {
	opts := l.opts.Sandbox
	opts.CacheDir = l.cacheDir
	if opts.Logger == nil {
		opts.Logger = l.logger
	}
	if len(overrides) > 0 {
		merged := maps.Clone(opts.Overrides)
		if merged == nil {
			merged = make(map[string]string, len(overrides))
		}
		maps.Copy(merged, overrides)
		opts.Overrides = merged
	}
	onClose := opts.OnClose
	opts.OnClose = func(sb *sandbox.Sandbox) {
		l.forget(sb)
		if onClose != nil {
			onClose(sb)
		}
	}

	sb, err := sandbox.New(ctx, opts)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.sandboxes[sb] = struct{}{}
	l.mu.Unlock()
	return sb, nil
}

func (l *Lifecycle) forget(sb *sandbox.Sandbox) {
	l.mu.Lock()
	delete(l.sandboxes, sb)
	l.mu.Unlock()
}

// Open returns the number of sandboxes created here that are not closed.
func (l *Lifecycle) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sandboxes)
}

// Sandbox creates a sandbox for t and closes it when t finishes.
func (l *Lifecycle) Sandbox(t testing.TB) *sandbox.Sandbox {
	t.Helper()
	sb, err := l.NewSandbox(context.Background())
	if err != nil {
		t.Fatalf("create sandbox: %v", err)
	}
	t.Cleanup(sb.Close)
	return sb
}

// Close closes every sandbox created here and removes the cache.
// Safe to call more than once.
func (l *Lifecycle) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		sandboxes := l.sandboxes
		l.sandboxes = make(map[*sandbox.Sandbox]struct{})
		l.mu.Unlock()

		for sb := range sandboxes {
			sb.Close()
		}
		if err := os.RemoveAll(l.cacheBase); err != nil {
			l.logger.Warn("failed to remove download cache",
				slog.String("dir", l.cacheBase),
				slog.String("error", err.Error()),
			)
		}
	})
}

var (
	defaultMu        sync.Mutex
	defaultLifecycle *Lifecycle
)

// Main runs a test binary inside a lifecycle:
//
//	func TestMain(m *testing.M) {
//	    harness.Main(m, harness.Options{Sandbox: sandbox.Options{Provisioner: sandbox.Virtualenv{}}})
//	}
//
// Sandboxes are torn down on normal exit and on SIGINT/SIGTERM.
// Main does not return.
func Main(m *testing.M, opts Options) {
	lc, err := Setup(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "harness setup: %v\n", err)
		os.Exit(2)
	}
	setDefault(lc)

	stop := sandbox.InstallSignalHandler(lc.Close)
	code := m.Run()
	stop()

	lc.Close()
	sandbox.CloseAll()
	os.Exit(code)
}

func setDefault(lc *Lifecycle) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLifecycle = lc
}

// Default returns the lifecycle set up by Main. Without Main, a lifecycle
// provisioning with virtualenv is created on first use and the caller is
// responsible for closing it.
func Default() (*Lifecycle, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLifecycle != nil {
		return defaultLifecycle, nil
	}
	lc, err := Setup(Options{Sandbox: sandbox.Options{Provisioner: sandbox.Virtualenv{}}})
	if err != nil {
		return nil, err
	}
	defaultLifecycle = lc
	return lc, nil
}
