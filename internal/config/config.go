// Package config handles application configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// DataDir is the directory for persistent data and the config file
	DataDir string `yaml:"-"`

	// Shell is used to interpret block commands
	Shell string `yaml:"shell"`

	// WelcomeTimeoutMS auto-confirms a remote session's welcome output
	// after this many milliseconds without a command
	WelcomeTimeoutMS int `yaml:"welcome_timeout_ms"`

	// TerminateTimeoutMS is how long a graceful terminate waits before
	// issuing a forced kill
	TerminateTimeoutMS int `yaml:"terminate_timeout_ms"`

	// DisposeGraceMS delays channel disposal after exit so queued output
	// can drain
	DisposeGraceMS int `yaml:"dispose_grace_ms"`

	// OutputBuffer is the per-subscriber event channel depth
	OutputBuffer int `yaml:"output_buffer"`

	// HistoryLines caps the per-channel output history ring
	HistoryLines int `yaml:"history_lines"`

	// ScreenRows/ScreenCols size the virtual terminal for fullscreen blocks
	ScreenRows int `yaml:"screen_rows"`
	ScreenCols int `yaml:"screen_cols"`

	// Remote contains remote shell connection configuration
	Remote RemoteConfig `yaml:"remote"`
}

// RemoteConfig holds remote shell connection configuration.
type RemoteConfig struct {
	// Port is the default port when a profile does not set one
	Port int `yaml:"port"`

	// TermType is the terminal type requested for the remote PTY
	TermType string `yaml:"term_type"`

	// ConnectTimeoutMS bounds the transport socket dial
	ConnectTimeoutMS int `yaml:"connect_timeout_ms"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		DataDir:            defaultDataDir(),
		Shell:              getDefaultShell(),
		WelcomeTimeoutMS:   3000,
		TerminateTimeoutMS: 5000,
		DisposeGraceMS:     400,
		OutputBuffer:       256,
		HistoryLines:       1000,
		ScreenRows:         24,
		ScreenCols:         80,
		Remote:             DefaultRemote(),
	}
}

// DefaultRemote returns the default remote connection configuration.
func DefaultRemote() RemoteConfig {
	return RemoteConfig{
		Port:             22,
		TermType:         "xterm-256color",
		ConnectTimeoutMS: 10000,
	}
}

// Load loads configuration from the default config file location, falling
// back to defaults.
func Load() (*Config, error) {
	return LoadFrom(defaultDataDir())
}

// LoadFrom loads configuration from dataDir/config.yaml, falling back to
// defaults.
func LoadFrom(dataDir string) (*Config, error) {
	cfg := Default()
	cfg.DataDir = dataDir

	configPath := cfg.ConfigFile()
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file doesn't exist, use defaults
			return cfg, nil
		}
		return nil, err
	}

	// Parse YAML into a temporary struct to merge with defaults
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, err
	}

	// Merge file config with defaults (file values override defaults)
	mergeConfig(cfg, &fileCfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeConfig merges file configuration into the default configuration.
// Only non-zero values from file are applied.
func mergeConfig(dst, src *Config) {
	if src.Shell != "" {
		dst.Shell = src.Shell
	}
	if src.WelcomeTimeoutMS != 0 {
		dst.WelcomeTimeoutMS = src.WelcomeTimeoutMS
	}
	if src.TerminateTimeoutMS != 0 {
		dst.TerminateTimeoutMS = src.TerminateTimeoutMS
	}
	if src.DisposeGraceMS != 0 {
		dst.DisposeGraceMS = src.DisposeGraceMS
	}
	if src.OutputBuffer != 0 {
		dst.OutputBuffer = src.OutputBuffer
	}
	if src.HistoryLines != 0 {
		dst.HistoryLines = src.HistoryLines
	}
	if src.ScreenRows != 0 {
		dst.ScreenRows = src.ScreenRows
	}
	if src.ScreenCols != 0 {
		dst.ScreenCols = src.ScreenCols
	}

	mergeRemote(&dst.Remote, &src.Remote)
}

// mergeRemote merges remote configuration from src into dst.
func mergeRemote(dst, src *RemoteConfig) {
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.TermType != "" {
		dst.TermType = src.TermType
	}
	if src.ConnectTimeoutMS != 0 {
		dst.ConnectTimeoutMS = src.ConnectTimeoutMS
	}
}

// WelcomeTimeout returns the welcome auto-confirm timeout as a duration.
func (c *Config) WelcomeTimeout() time.Duration {
	return time.Duration(c.WelcomeTimeoutMS) * time.Millisecond
}

// TerminateTimeout returns the graceful termination window as a duration.
func (c *Config) TerminateTimeout() time.Duration {
	return time.Duration(c.TerminateTimeoutMS) * time.Millisecond
}

// DisposeGrace returns the post-exit disposal delay as a duration.
func (c *Config) DisposeGrace() time.Duration {
	return time.Duration(c.DisposeGraceMS) * time.Millisecond
}

// ConnectTimeout returns the transport dial timeout as a duration.
func (c *RemoteConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "blockterm")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".blockterm"
	}
	return filepath.Join(home, ".config", "blockterm")
}

// getDefaultShell returns the user's default shell.
func getDefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/bash"
}

// ConfigFile returns the path to the config file.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "config.yaml")
}

// ProfilesFile returns the path to the saved connection profiles file.
func (c *Config) ProfilesFile() string {
	return filepath.Join(c.DataDir, "profiles.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
