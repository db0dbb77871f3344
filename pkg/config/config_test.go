package config

import "testing"

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Root != "/" {
		t.Errorf("expected default root '/', got %q", cfg.Root)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %q", cfg.LogLevel)
	}
	if cfg.AllowUntrusted {
		t.Error("expected allow_untrusted to default to false")
	}
	if len(cfg.Repositories) != 0 {
		t.Errorf("expected no default repositories, got %d", len(cfg.Repositories))
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestConfigValidateRejectsBadLogLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.LogLevel = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bad log level")
	}
}

func TestConfigValidateRejectsDuplicateRepository(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Repositories = []RepositoryConfig{
		{Name: "core", URL: "https://repo.example/core", Enabled: true, Priority: 10},
		{Name: "core", URL: "https://repo.example/core2", Enabled: true, Priority: 20},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for duplicate repository name")
	}
}

func TestConfigValidateRejectsMissingURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Repositories = []RepositoryConfig{{Name: "core", Enabled: true}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for repository missing a url")
	}
}

func TestEnabledRepositoriesOrdersByPriority(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Repositories = []RepositoryConfig{
		{Name: "low-priority", URL: "https://a", Enabled: true, Priority: 50},
		{Name: "disabled", URL: "https://b", Enabled: false, Priority: 1},
		{Name: "high-priority", URL: "https://c", Enabled: true, Priority: 5},
	}

	enabled := cfg.EnabledRepositories()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled repositories, got %d", len(enabled))
	}
	if enabled[0].Name != "high-priority" || enabled[1].Name != "low-priority" {
		t.Fatalf("expected priority order [high-priority, low-priority], got %v", enabled)
	}
}

func TestPathsUnderRoot(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Root = "/mnt/target"
	paths := cfg.Paths()

	if paths.DatabasePath() != "/mnt/target/var/lib/rookpkg/db.sqlite" {
		t.Errorf("unexpected database path: %s", paths.DatabasePath())
	}
	if paths.MasterKeysDir() != "/mnt/target/etc/rookpkg/keys/master" {
		t.Errorf("unexpected master keys dir: %s", paths.MasterKeysDir())
	}
}
