package config

import (
	"os"
	"time"

	"github.com/spf13/viper"

	"rookpkg/pkg/helper/errors"
)

// Load reads rookpkg.conf (TOML, matching the repo.toml shape reposync
// already parses) from configPath, applies ROOKPKG_-prefixed environment
// overrides on top, and validates the result. An empty or missing
// configPath falls back to NewDefaultConfig's values, overlaid with
// environment and any repositories the caller adds afterward.
func Load(configPath string) (*Config, error) {
	defaults := NewDefaultConfig()

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("ROOKPKG")
	v.AutomaticEnv()

	v.SetDefault("root", defaults.Root)
	v.SetDefault("loglevel", defaults.LogLevel)
	v.SetDefault("allowuntrusted", defaults.AllowUntrusted)
	v.SetDefault("locktimeout", defaults.LockTimeout.String())

	if configPath != "" {
		expanded := ExpandHomeDir(configPath)
		if _, err := os.Stat(expanded); os.IsNotExist(err) {
			return nil, errors.NotFoundf("configuration file not found: %s", expanded)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to parse configuration file")
		}
	}

	cfg := &Config{
		Root:           v.GetString("root"),
		LogLevel:       v.GetString("loglevel"),
		AllowUntrusted: v.GetBool("allowuntrusted"),
	}

	if raw := v.GetString("locktimeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid lock timeout %q", raw)
		}
		cfg.LockTimeout = d
	}

	var repos []RepositoryConfig
	if err := v.UnmarshalKey("repositories", &repos); err != nil {
		return nil, errors.Wrap(err, "failed to parse repositories")
	}
	cfg.Repositories = repos

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
