// Package config loads rookpkg's configuration: repository enumeration,
// trust policy, and the filesystem layout under a target root.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"rookpkg/pkg/helper/errors"
)

// RepositoryConfig names one configured repository, as enumerated in
// rookpkg.conf.
type RepositoryConfig struct {
	Name     string
	URL      string
	Enabled  bool
	Priority int
}

// Config is rookpkg's top-level configuration, loaded from
// etc/rookpkg/rookpkg.conf under Root plus environment overrides.
type Config struct {
	// Root is the target filesystem root all package files and persisted
	// state live under (normally "/").
	Root string

	// LogLevel controls the verbosity of structured logging.
	LogLevel string

	// AllowUntrusted proceeds past an unresolved or untrusted signature
	// instead of rejecting it, annotating the result with a downgraded
	// trust level.
	AllowUntrusted bool

	// LockTimeout bounds how long a transaction waits to acquire the
	// advisory exclusive lock before failing with a lock-contention error.
	LockTimeout time.Duration

	Repositories []RepositoryConfig
}

// Paths resolves the well-known persisted-state locations under Root.
type Paths struct {
	Root string
}

func (p Paths) join(parts ...string) string {
	return filepath.Join(append([]string{p.Root}, parts...)...)
}

func (p Paths) DatabasePath() string    { return p.join("var", "lib", "rookpkg", "db.sqlite") }
func (p Paths) TransactionsDir() string { return p.join("var", "lib", "rookpkg", "transactions") }
func (p Paths) ScriptsDir() string      { return p.join("var", "lib", "rookpkg", "scripts") }
func (p Paths) LockFile() string        { return p.join("var", "lib", "rookpkg", "rookpkg.lock") }
func (p Paths) RepoCacheDir() string    { return p.join("var", "cache", "rookpkg", "repos") }
func (p Paths) PackageCacheDir() string { return p.join("var", "cache", "rookpkg", "packages") }
func (p Paths) MasterKeysDir() string   { return p.join("etc", "rookpkg", "keys", "master") }
func (p Paths) PackagerKeysDir() string { return p.join("etc", "rookpkg", "keys", "packagers") }
func (p Paths) ConfigFile() string      { return p.join("etc", "rookpkg", "rookpkg.conf") }

// Paths returns the path resolver for this configuration's Root.
func (c *Config) Paths() Paths { return Paths{Root: c.Root} }

// NewDefaultConfig returns a configuration with no repositories enabled
// against the real root filesystem, matching what a bare install of
// rookpkg ships before rookpkg.conf is edited.
func NewDefaultConfig() *Config {
	return &Config{
		Root:           "/",
		LogLevel:       "info",
		AllowUntrusted: false,
		LockTimeout:    30 * time.Second,
		Repositories:   []RepositoryConfig{},
	}
}

// Validate checks the configuration for internally-inconsistent values
// before it is used to construct the engine's components.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.InvalidInputf("root must not be empty")
	}

	logLevel := strings.ToLower(c.LogLevel)
	switch logLevel {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return errors.InvalidInputf("invalid log level: %s (must be one of: debug, info, warn, error, fatal)", c.LogLevel)
	}

	if c.LockTimeout < 0 {
		return errors.InvalidInputf("lock timeout must be non-negative")
	}

	seen := make(map[string]bool, len(c.Repositories))
	for _, r := range c.Repositories {
		if r.Name == "" {
			return errors.InvalidInputf("repository entry missing a name")
		}
		if seen[r.Name] {
			return errors.InvalidInputf("duplicate repository name: %s", r.Name)
		}
		seen[r.Name] = true
		if r.URL == "" {
			return errors.InvalidInputf("repository %s missing a url", r.Name)
		}
	}

	return nil
}

// EnabledRepositories returns the configured repositories that are
// enabled, sorted by ascending priority (lower value = higher priority),
// the order repositories are searched in.
func (c *Config) EnabledRepositories() []RepositoryConfig {
	out := make([]RepositoryConfig, 0, len(c.Repositories))
	for _, r := range c.Repositories {
		if r.Enabled {
			out = append(out, r)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority < out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// ExpandHomeDir expands a leading "~" to the invoking user's home
// directory.
func ExpandHomeDir(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
