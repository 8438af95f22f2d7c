// Package config loads pkgprobe.yaml, the settings shared by every
// command: the tool profile, how runtimes are provisioned, limits and
// where run history is kept.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pkgprobe/internal/harness"
	"github.com/roach88/pkgprobe/internal/sandbox"
)

const (
	// DirName is the per-user directory under the XDG config and data homes.
	DirName = "pkgprobe"
	// FileName is the configuration file name.
	FileName = "pkgprobe.yaml"

	// EnvConfig overrides the default configuration path.
	EnvConfig = "PKGPROBE_CONFIG"
	// EnvDatabase overrides the default history database path.
	EnvDatabase = "PKGPROBE_DB"
)

// Config is the contents of pkgprobe.yaml. Zero fields take defaults.
type Config struct {
	Profile     sandbox.Profile   `yaml:"profile"`
	Provisioner ProvisionerConfig `yaml:"provisioner"`

	// Timeout bounds every command; default runner.DefaultTimeout.
	Timeout time.Duration `yaml:"timeout"`
	// TempRoot is the parent of sandbox roots; default os.TempDir().
	TempRoot string `yaml:"temp_root"`
	// CacheRoot is the parent of the shared download cache.
	CacheRoot string `yaml:"cache_root"`
	// Database is the run history; default under the XDG data home.
	Database string `yaml:"database"`
	// EnvFile holds variables applied to every sandbox.
	EnvFile string `yaml:"env_file"`
	// Source is the tool's source tree installed into every sandbox.
	Source string `yaml:"source"`
}

// ProvisionerConfig selects the command that creates runtimes.
type ProvisionerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// DefaultPath returns $PKGPROBE_CONFIG, or pkgprobe.yaml under the XDG
// config home.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return filepath.Join(xdg.ConfigHome, DirName, FileName)
}

// DefaultDatabase returns $PKGPROBE_DB, or history.db under the XDG data
// home.
func DefaultDatabase() string {
	if p := os.Getenv(EnvDatabase); p != "" {
		return p
	}
	return filepath.Join(xdg.DataHome, DirName, "history.db")
}

// Load reads the configuration at path. An empty path means DefaultPath,
// and a missing default file yields the defaults; a missing explicit file
// is an error. Relative paths inside the file are resolved against its
// directory.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes configuration YAML. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("parse config: timeout must not be negative, got %s", cfg.Timeout)
	}
	return &cfg, nil
}

func (c *Config) resolve(dir string) {
	for _, p := range []*string{&c.TempRoot, &c.CacheRoot, &c.Database, &c.EnvFile, &c.Source} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// DatabasePath returns the configured database or DefaultDatabase.
func (c *Config) DatabasePath() string {
	if c.Database != "" {
		return c.Database
	}
	return DefaultDatabase()
}

// Env reads the configured env file. No file means no variables.
func (c *Config) Env() (map[string]string, error) {
	return ReadEnvFile(c.EnvFile)
}

// ReadEnvFile parses a dotenv file. An empty path returns nil.
func ReadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return env, nil
}

// LifecycleOptions builds harness options from the configuration.
// overrides are applied to every sandbox on top of the host environment.
func (c *Config) LifecycleOptions(overrides map[string]string, logger *slog.Logger) harness.Options {
	return harness.Options{
		Sandbox: sandbox.Options{
			Profile: c.Profile.WithDefaults(),
			Provisioner: sandbox.Virtualenv{
				Command: c.Provisioner.Command,
				Args:    c.Provisioner.Args,
			},
			Source:    c.Source,
			Overrides: overrides,
			TempRoot:  c.TempRoot,
			Timeout:   c.Timeout,
			Logger:    logger,
		},
		CacheRoot: c.CacheRoot,
		Logger:    logger,
	}
}
