package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.WelcomeTimeoutMS != 3000 {
		t.Errorf("WelcomeTimeoutMS = %d, want 3000", cfg.WelcomeTimeoutMS)
	}
	if cfg.TerminateTimeoutMS != 5000 {
		t.Errorf("TerminateTimeoutMS = %d, want 5000", cfg.TerminateTimeoutMS)
	}
	if cfg.HistoryLines != 1000 {
		t.Errorf("HistoryLines = %d, want 1000", cfg.HistoryLines)
	}
	if cfg.Remote.Port != 22 {
		t.Errorf("Remote.Port = %d, want 22", cfg.Remote.Port)
	}
	if cfg.Remote.TermType != "xterm-256color" {
		t.Errorf("Remote.TermType = %q, want 'xterm-256color'", cfg.Remote.TermType)
	}
	if cfg.Shell == "" {
		t.Error("Shell should not be empty")
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()
	if cfg.WelcomeTimeout() != 3*time.Second {
		t.Errorf("WelcomeTimeout() = %v, want 3s", cfg.WelcomeTimeout())
	}
	if cfg.TerminateTimeout() != 5*time.Second {
		t.Errorf("TerminateTimeout() = %v, want 5s", cfg.TerminateTimeout())
	}
	if cfg.DisposeGrace() != 400*time.Millisecond {
		t.Errorf("DisposeGrace() = %v, want 400ms", cfg.DisposeGrace())
	}
	if cfg.Remote.ConnectTimeout() != 10*time.Second {
		t.Errorf("Remote.ConnectTimeout() = %v, want 10s", cfg.Remote.ConnectTimeout())
	}
}

func TestDefaultDataDir(t *testing.T) {
	// Save and restore XDG_CONFIG_HOME
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	defer os.Setenv("XDG_CONFIG_HOME", oldXDG)

	// Test with XDG_CONFIG_HOME set
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	dir := defaultDataDir()
	if dir != "/custom/config/blockterm" {
		t.Errorf("with XDG_CONFIG_HOME: got %q, want '/custom/config/blockterm'", dir)
	}

	// Test without XDG_CONFIG_HOME
	os.Unsetenv("XDG_CONFIG_HOME")
	dir = defaultDataDir()
	if !strings.HasSuffix(dir, ".config/blockterm") {
		t.Errorf("without XDG_CONFIG_HOME: got %q, expected to end with '.config/blockterm'", dir)
	}
}

func TestDefaultShellWithEnv(t *testing.T) {
	// Save and restore SHELL
	oldShell := os.Getenv("SHELL")
	defer os.Setenv("SHELL", oldShell)

	// Test with SHELL set
	os.Setenv("SHELL", "/bin/custom-shell")
	shell := getDefaultShell()
	if shell != "/bin/custom-shell" {
		t.Errorf("with SHELL env: got %q, want '/bin/custom-shell'", shell)
	}

	// Test without SHELL
	os.Unsetenv("SHELL")
	shell = getDefaultShell()
	if shell != "/bin/bash" {
		t.Errorf("without SHELL env: got %q, want '/bin/bash'", shell)
	}
}

func TestEnsureDataDir(t *testing.T) {
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "blockterm-test", "data")

	cfg := &Config{
		DataDir: dataDir,
	}

	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir() error: %v", err)
	}

	// Directory should exist
	info, err := os.Stat(dataDir)
	if err != nil {
		t.Fatalf("data dir does not exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("data dir is not a directory")
	}

	// Should be idempotent
	if err := cfg.EnsureDataDir(); err != nil {
		t.Errorf("second EnsureDataDir() error: %v", err)
	}
}

func TestConfigFile(t *testing.T) {
	cfg := &Config{DataDir: "/test/data"}
	if got := cfg.ConfigFile(); got != "/test/data/config.yaml" {
		t.Errorf("ConfigFile() = %q, want '/test/data/config.yaml'", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(Default()) error = %v, want nil", err)
	}

	cfg.Remote.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Error("Validate() expected error for out-of-range port, got nil")
	}

	cfg = Default()
	cfg.TerminateTimeoutMS = -1
	if err := Validate(cfg); err == nil {
		t.Error("Validate() expected error for negative terminate timeout, got nil")
	}
}
