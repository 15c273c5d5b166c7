package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/payflow/internal/config"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify payflow configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.payflow/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.`,
	Example: `  payflow config init
  payflow config init --force`,
	RunE: runConfigInit,
}

// configShowCmd shows the current configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, after environment overrides and flags.`,
	Example: `  payflow config show
  payflow config show -o json`,
	RunE: runConfigShow,
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its path.

The path uses dot notation, for example ledger.url or presets.poll_interval_ms.`,
	Example: `  payflow config get ledger.url
  payflow config get presets.poll_interval_ms`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value by its path.

The path uses dot notation. The configuration file is updated immediately.`,
	Example: `  payflow config set ledger.url https://api.payflow.io/v1
  payflow config set logging.level debug
  payflow config set metrics.textfile ~/.payflow/payflow.prom`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

// configKey is one settable configuration path.
type configKey struct {
	get func(c *config.Config) string
	set func(c *config.Config, value string) error
}

// configKeys maps dot paths to their accessors.
//
//nolint:gochecknoglobals // static lookup table
var configKeys = map[string]configKey{
	"home": {
		get: func(c *config.Config) string { return c.Home },
		set: func(c *config.Config, v string) error { c.Home = v; return nil },
	},
	"ledger.url": {
		get: func(c *config.Config) string { return c.Ledger.URL },
		set: func(c *config.Config, v string) error {
			v = config.SanitizeURL(v)
			if err := config.ValidateLedgerURL(v); err != nil {
				return payerr.Wrap(payerr.ErrConfigInvalid, "%v", err)
			}
			c.Ledger.URL = v
			return nil
		},
	},
	"ledger.timeout_seconds": {
		get: func(c *config.Config) string { return strconv.Itoa(c.Ledger.TimeoutSeconds) },
		set: func(c *config.Config, v string) error { return setPositiveInt(&c.Ledger.TimeoutSeconds, v) },
	},
	"ledger.rate_per_second": {
		get: func(c *config.Config) string { return strconv.FormatFloat(c.Ledger.RatePerSecond, 'f', -1, 64) },
		set: func(c *config.Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f <= 0 {
				return invalidValue(v, "a positive number")
			}
			c.Ledger.RatePerSecond = f
			return nil
		},
	},
	"ledger.burst": {
		get: func(c *config.Config) string { return strconv.Itoa(c.Ledger.Burst) },
		set: func(c *config.Config, v string) error { return setPositiveInt(&c.Ledger.Burst, v) },
	},
	"presets.poll_interval_ms": {
		get: func(c *config.Config) string { return strconv.Itoa(c.Presets.PollIntervalMS) },
		set: func(c *config.Config, v string) error { return setPositiveInt(&c.Presets.PollIntervalMS, v) },
	},
	"auth.token_file": {
		get: func(c *config.Config) string { return c.Auth.TokenFile },
		set: func(c *config.Config, v string) error { c.Auth.TokenFile = v; return nil },
	},
	"auth.identity_file": {
		get: func(c *config.Config) string { return c.Auth.IdentityFile },
		set: func(c *config.Config, v string) error { c.Auth.IdentityFile = v; return nil },
	},
	"output.default_format": {
		get: func(c *config.Config) string { return c.Output.DefaultFormat },
		set: func(c *config.Config, v string) error {
			return setOneOf(&c.Output.DefaultFormat, v, "text", "json", "auto")
		},
	},
	"output.color": {
		get: func(c *config.Config) string { return c.Output.Color },
		set: func(c *config.Config, v string) error {
			return setOneOf(&c.Output.Color, v, "auto", "always", "never")
		},
	},
	"output.verbose": {
		get: func(c *config.Config) string { return strconv.FormatBool(c.Output.Verbose) },
		set: func(c *config.Config, v string) error { c.Output.Verbose = v == "true"; return nil },
	},
	"logging.level": {
		get: func(c *config.Config) string { return c.Logging.Level },
		set: func(c *config.Config, v string) error {
			return setOneOf(&c.Logging.Level, v, "off", "error", "info", "debug")
		},
	},
	"logging.file": {
		get: func(c *config.Config) string { return c.Logging.File },
		set: func(c *config.Config, v string) error { c.Logging.File = v; return nil },
	},
	"logging.pretty": {
		get: func(c *config.Config) string { return strconv.FormatBool(c.Logging.Pretty) },
		set: func(c *config.Config, v string) error { c.Logging.Pretty = v == "true"; return nil },
	},
	"metrics.textfile": {
		get: func(c *config.Config) string { return c.Metrics.Textfile },
		set: func(c *config.Config, v string) error { c.Metrics.Textfile = v; return nil },
	},
}

func setPositiveInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return invalidValue(v, "a positive integer")
	}
	*dst = n
	return nil
}

func setOneOf(dst *string, v string, valid ...string) error {
	for _, s := range valid {
		if v == s {
			*dst = v
			return nil
		}
	}
	return invalidValue(v, strings.Join(valid, ", "))
}

func invalidValue(v, valid string) error {
	return payerr.WithDetails(payerr.ErrConfigInvalid, map[string]string{"value": v, "valid": valid})
}

// lookupConfigKey resolves a dot path, suggesting the known paths when it is unknown.
func lookupConfigKey(path string) (configKey, error) {
	key, ok := configKeys[path]
	if !ok {
		return configKey{}, payerr.WithSuggestion(
			payerr.WithDetails(payerr.ErrUnknownConfigKey, map[string]string{"path": path}),
			"known paths: "+strings.Join(configPaths(), ", "),
		)
	}
	return key, nil
}

func configPaths() []string {
	paths := make([]string, 0, len(configKeys))
	for p := range configKeys {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	configPath := config.Path(cc.Config.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return payerr.WithSuggestion(
			payerr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cc.Config.Home
	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - ledger.url: The ledger service endpoint")
	outln(w, "  - presets.poll_interval_ms: Fee preset re-request interval")
	outln(w, "  - output.default_format: Output format (text/json)")
	outln(w, "  - logging.level: Log level (off/error/info/debug)")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	w := cmd.OutOrStdout()

	if cc.Formatter.IsJSON() {
		values := make(map[string]string, len(configKeys))
		for path, key := range configKeys {
			values[path] = key.get(cc.Config)
		}
		return writeJSON(w, values)
	}

	displayConfigText(w, cc.Config)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	key, err := lookupConfigKey(args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), key.get(cc.Config))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	path, value := args[0], args[1]

	key, err := lookupConfigKey(path)
	if err != nil {
		return err
	}

	// Edit the file, not the effective config, so env overrides are not persisted.
	configPath := config.Path(cc.Config.Home)
	fileCfg, err := config.Load(configPath)
	if err != nil {
		fileCfg = config.Defaults()
		fileCfg.Home = cc.Config.Home
	}

	if err := key.set(fileCfg, value); err != nil {
		return err
	}
	if err := config.Save(fileCfg, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out(cmd.OutOrStdout(), "Set %s = %s\n", path, value)
	return nil
}

// displayConfigText shows the config grouped by section.
func displayConfigText(w io.Writer, c *config.Config) {
	outln(w, "Configuration:")
	section := ""
	for _, path := range configPaths() {
		name, field, nested := strings.Cut(path, ".")
		if !nested {
			out(w, "  %s: %s\n", name, configKeys[path].get(c))
			continue
		}
		if name != section {
			section = name
			outln(w)
			out(w, "  %s:\n", name)
		}
		value := configKeys[path].get(c)
		if value == "" {
			value = "(not configured)"
		}
		out(w, "    %s: %s\n", field, value)
	}
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd, configGetCmd, configSetCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")

	configCmd.GroupID = groupConfig
	rootCmd.AddCommand(configCmd)
}
