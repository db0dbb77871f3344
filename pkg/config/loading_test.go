package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "rookpkg.conf")
	content := `
root = "/"
loglevel = "debug"
allowuntrusted = false

[[repositories]]
name = "core"
url = "https://repo.example/core"
enabled = true
priority = 10
`
	if err := os.WriteFile(confPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(confPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
	if len(cfg.Repositories) != 1 || cfg.Repositories[0].Name != "core" {
		t.Fatalf("expected one repository named core, got %v", cfg.Repositories)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := Load("/nonexistent/rookpkg.conf"); err == nil {
		t.Fatal("expected error loading missing config file")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with empty path failed: %v", err)
	}
	if cfg.Root != "/" {
		t.Errorf("expected default root, got %s", cfg.Root)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "rookpkg.conf")
	content := `loglevel = "deafening"`
	if err := os.WriteFile(confPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(confPath); err == nil {
		t.Fatal("expected validation error for bad log level")
	}
}
