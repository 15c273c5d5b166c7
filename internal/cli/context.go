package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mrz1836/payflow/internal/auth"
	"github.com/mrz1836/payflow/internal/config"
	"github.com/mrz1836/payflow/internal/currency"
	"github.com/mrz1836/payflow/internal/ledger"
	"github.com/mrz1836/payflow/internal/metrics"
	"github.com/mrz1836/payflow/internal/output"
)

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config     *config.Config
	Logger     *config.Logger
	Formatter  *output.Formatter
	Metrics    *metrics.Metrics
	Currencies *currency.Registry
	Ledger     ledger.API
	Auth       *auth.Service
}

// NewCommandContext creates a context with the given dependencies. The ledger
// client and login service are built from cfg when it is set.
func NewCommandContext(
	cfg *config.Config,
	logger *config.Logger,
	formatter *output.Formatter,
	stats *metrics.Metrics,
) *CommandContext {
	if logger == nil {
		logger = config.NullLogger()
	}
	if stats == nil {
		stats = metrics.New()
	}

	c := &CommandContext{
		Config:     cfg,
		Logger:     logger,
		Formatter:  formatter,
		Metrics:    stats,
		Currencies: currency.Default(),
	}
	if cfg == nil {
		return c
	}

	c.Ledger = ledger.NewClient(&ledger.Options{
		BaseURL:       cfg.GetLedgerURL(),
		Timeout:       cfg.GetLedgerTimeout(),
		RatePerSecond: cfg.Ledger.RatePerSecond,
		Burst:         cfg.Ledger.Burst,
		Logger:        logger,
		Observer:      stats,
		UserAgent:     "payflow/" + currentVersion(),
	})
	c.Auth = auth.NewService(&auth.Options{
		Ledger:   c.Ledger,
		Store:    auth.NewStore(cfg.GetTokenFile(), cfg.GetIdentityFile(), systemKeyring()),
		Logger:   logger,
		Observer: stats,
	})
	return c
}

// WithLedger replaces the ledger client and rebuilds the login service on it.
func (c *CommandContext) WithLedger(l ledger.API) *CommandContext {
	c.Ledger = l
	if c.Config != nil {
		c.Auth = auth.NewService(&auth.Options{
			Ledger:   l,
			Store:    auth.NewStore(c.Config.GetTokenFile(), c.Config.GetIdentityFile(), systemKeyring()),
			Logger:   c.Logger,
			Observer: c.Metrics,
		})
	}
	return c
}

// WithAuth sets the login service.
func (c *CommandContext) WithAuth(a *auth.Service) *CommandContext {
	c.Auth = a
	return c
}

// systemKeyring returns the OS keyring when it works, or nil so the token
// store keeps its identity in a file.
//
//nolint:gochecknoglobals // overridden in tests
var systemKeyring = func() auth.Keyring {
	kr := auth.NewOSKeyring()
	if !auth.ProbeKeyring(kr) {
		return nil
	}
	return kr
}

type cmdContextKey struct{}

// SetCmdContext attaches cc to the command's context.
func SetCmdContext(cmd *cobra.Command, cc *CommandContext) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	cmd.SetContext(context.WithValue(base, cmdContextKey{}, cc))
}

// GetCmdContext returns the CommandContext attached to cmd, or one built from
// the globals set up by initGlobals.
func GetCmdContext(cmd *cobra.Command) *CommandContext {
	if ctx := cmd.Context(); ctx != nil {
		if cc, ok := ctx.Value(cmdContextKey{}).(*CommandContext); ok && cc != nil {
			return cc
		}
	}
	cc := NewCommandContext(cfg, logger, formatter, stats)
	SetCmdContext(cmd, cc)
	return cc
}
