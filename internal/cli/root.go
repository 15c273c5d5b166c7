// Package cli implements the payflow command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrz1836/payflow/internal/config"
	"github.com/mrz1836/payflow/internal/metrics"
	"github.com/mrz1836/payflow/internal/output"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// Command group IDs for root help output.
const (
	groupTransfers = "transfers"
	groupSecurity  = "security"
	groupConfig    = "config"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool
	ledgerURL    string

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
	stats     *metrics.Metrics
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "payflow",
	Short: "Send funds through the payflow ledger from a terminal",
	Long: `Payflow is a terminal client for the payflow custodial ledger.

It logs in with multi-factor authentication, shows the ledger's fee presets,
negotiates a spend estimate and confirms transfers across UTXO and
account-resource chains.`,
	Example: `  payflow login --email me@example.com
  payflow presets --currency BTC
  payflow send --wallet w-1 --currency BTC --amount 0.5 --to bc1q...`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	helpOnce.Do(func() { walkCommands(rootCmd, enrichParentLong) })

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if formatter != nil {
			_ = output.FormatError(os.Stderr, err, formatter.Format())
		} else {
			_ = output.FormatError(os.Stderr, err, output.FormatText)
		}
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return payerr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, formatter and metrics.
func initGlobals() error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfg, err = config.Load(config.Path(home))
	if err != nil {
		cfg = config.Defaults()
		cfg.Home = home
	}

	config.ApplyEnvironment(cfg)

	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}
	if ledgerURL != "" {
		cfg.Ledger.URL = config.SanitizeURL(ledgerURL)
	}
	if err := config.ValidateLedgerURL(cfg.Ledger.URL); err != nil {
		return payerr.Wrap(payerr.ErrConfigInvalid, "%v", err)
	}

	logLevel := config.ParseLogLevel(cfg.Logging.Level)
	if cfg.Logging.Pretty {
		logger, err = config.NewPrettyLogger(logLevel, cfg.Logging.File)
	} else {
		logger, err = config.NewLogger(logLevel, cfg.Logging.File)
	}
	if err != nil {
		logger = config.NullLogger()
	}

	explicitFormat := output.ParseFormat(cfg.Output.DefaultFormat)
	formatter = output.NewFormatter(output.DetectFormat(os.Stdout, explicitFormat), os.Stdout)

	stats = metrics.New()

	return nil
}

// cleanup exports metrics and releases resources.
func cleanup() {
	if stats != nil && cfg != nil && cfg.Metrics.Textfile != "" {
		if err := stats.WriteTextfile(config.ExpandHome(cfg.Metrics.Textfile)); err != nil && logger != nil {
			logger.Error("writing metrics textfile: %v", err)
		}
	}
	if logger != nil {
		_ = logger.Close()
	}
}

// Config returns the global configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the global logger.
func Logger() *config.Logger {
	return logger
}

// Formatter returns the global output formatter.
func Formatter() *output.Formatter {
	return formatter
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "payflow data directory (default: ~/.payflow)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&ledgerURL, "ledger-url", "", "ledger service URL (overrides config)")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupTransfers, Title: "Transfers:"},
		&cobra.Group{ID: groupSecurity, Title: "Security & Access:"},
		&cobra.Group{ID: groupConfig, Title: "Configuration:"},
	)
	rootCmd.SetHelpCommandGroupID(groupConfig)
}
