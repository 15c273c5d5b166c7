package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome           = "PAYFLOW_HOME"
	EnvLedgerURL      = "PAYFLOW_LEDGER_URL"
	EnvOutputFormat   = "PAYFLOW_OUTPUT_FORMAT"
	EnvVerbose        = "PAYFLOW_VERBOSE"
	EnvLogLevel       = "PAYFLOW_LOG_LEVEL"
	EnvPollIntervalMS = "PAYFLOW_POLL_INTERVAL_MS"
	EnvMetricsFile    = "PAYFLOW_METRICS_TEXTFILE"
	EnvNoColor        = "NO_COLOR"
)

var (
	// ErrInvalidLedgerURL indicates the ledger URL could not be parsed.
	ErrInvalidLedgerURL = errors.New("invalid ledger URL")

	// ErrInsecureLedgerURL indicates a plain http URL pointing at a remote host.
	ErrInsecureLedgerURL = errors.New("ledger URL must use https for remote hosts")
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvLedgerURL); v != "" {
		cfg.Ledger.URL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvMetricsFile); v != "" {
		cfg.Metrics.Textfile = v
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}

	// PAYFLOW_POLL_INTERVAL_MS sets the fee preset polling interval
	if v := os.Getenv(EnvPollIntervalMS); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Presets.PollIntervalMS = ms
		}
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL trims whitespace and a trailing slash from a user-provided URL.
func SanitizeURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// ValidateLedgerURL checks that a ledger URL is absolute and uses https,
// except for loopback hosts used in development.
func ValidateLedgerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidLedgerURL, raw)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrInsecureLedgerURL, raw)
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLedgerURL, u.Scheme)
	}
}
