// Package config provides configuration management for Payflow.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/payflow/internal/fileutil"
)

// Config represents the application configuration.
type Config struct {
	Version int           `yaml:"version"`
	Home    string        `yaml:"home"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Presets PresetsConfig `yaml:"presets"`
	Auth    AuthConfig    `yaml:"auth"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LedgerConfig defines how to reach the ledger service.
type LedgerConfig struct {
	URL            string  `yaml:"url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
}

// PresetsConfig defines fee preset polling settings.
type PresetsConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms"`
}

// AuthConfig defines where the login token is kept.
type AuthConfig struct {
	TokenFile    string `yaml:"token_file"`
	IdentityFile string `yaml:"identity_file"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig defines where metrics are exported.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return fileutil.WriteAtomic(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// GetHome returns the payflow home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetLedgerURL returns the ledger service base URL.
func (c *Config) GetLedgerURL() string {
	return c.Ledger.URL
}

// GetLedgerTimeout returns the per-request transport timeout.
func (c *Config) GetLedgerTimeout() time.Duration {
	if c.Ledger.TimeoutSeconds <= 0 {
		return DefaultLedgerTimeoutSeconds * time.Second
	}
	return time.Duration(c.Ledger.TimeoutSeconds) * time.Second
}

// GetPollInterval returns the fee preset re-request interval.
func (c *Config) GetPollInterval() time.Duration {
	if c.Presets.PollIntervalMS <= 0 {
		return DefaultPollIntervalMS * time.Millisecond
	}
	return time.Duration(c.Presets.PollIntervalMS) * time.Millisecond
}

// GetTokenFile returns the encrypted token file path with ~ expanded.
func (c *Config) GetTokenFile() string {
	if c.Auth.TokenFile == "" {
		return filepath.Join(c.Home, "token.age")
	}
	return ExpandHome(c.Auth.TokenFile)
}

// GetIdentityFile returns the age identity file path with ~ expanded.
func (c *Config) GetIdentityFile() string {
	if c.Auth.IdentityFile == "" {
		return filepath.Join(c.Home, "identity.age")
	}
	return ExpandHome(c.Auth.IdentityFile)
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default payflow home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".payflow"
	}
	return filepath.Join(home, ".payflow")
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
