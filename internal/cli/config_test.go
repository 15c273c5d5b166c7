package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/payflow/internal/config"
	"github.com/mrz1836/payflow/internal/ledger/ledgertest"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

func TestConfigKeys_Get(t *testing.T) {
	t.Parallel()

	c := config.Defaults()
	c.Home = "/test/home"
	c.Output.DefaultFormat = "json"
	c.Output.Verbose = true
	c.Logging.Level = "debug"
	c.Logging.File = "/var/log/payflow.log"
	c.Ledger.RatePerSecond = 2.5
	c.Presets.PollIntervalMS = 1500

	tests := []struct {
		path string
		want string
	}{
		{"home", "/test/home"},
		{"ledger.url", config.DefaultLedgerURL},
		{"ledger.timeout_seconds", "60"},
		{"ledger.rate_per_second", "2.5"},
		{"presets.poll_interval_ms", "1500"},
		{"output.default_format", "json"},
		{"output.verbose", "true"},
		{"logging.level", "debug"},
		{"logging.file", "/var/log/payflow.log"},
		{"metrics.textfile", ""},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			key, err := lookupConfigKey(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, key.get(c))
		})
	}
}

func TestConfigKeys_Set(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		value   string
		check   func(t *testing.T, c *config.Config)
		wantErr error
	}{
		{
			name: "ledger url is sanitized", path: "ledger.url", value: " https://ledger.example.com/v2/ ",
			check: func(t *testing.T, c *config.Config) { assert.Equal(t, "https://ledger.example.com/v2", c.Ledger.URL) },
		},
		{name: "insecure ledger url", path: "ledger.url", value: "http://ledger.example.com", wantErr: payerr.ErrConfigInvalid},
		{
			name: "loopback ledger url", path: "ledger.url", value: "http://localhost:8787",
			check: func(t *testing.T, c *config.Config) { assert.Equal(t, "http://localhost:8787", c.Ledger.URL) },
		},
		{
			name: "poll interval", path: "presets.poll_interval_ms", value: "500",
			check: func(t *testing.T, c *config.Config) { assert.Equal(t, 500, c.Presets.PollIntervalMS) },
		},
		{name: "zero poll interval", path: "presets.poll_interval_ms", value: "0", wantErr: payerr.ErrConfigInvalid},
		{name: "non-numeric timeout", path: "ledger.timeout_seconds", value: "soon", wantErr: payerr.ErrConfigInvalid},
		{name: "negative rate", path: "ledger.rate_per_second", value: "-1", wantErr: payerr.ErrConfigInvalid},
		{
			name: "rate", path: "ledger.rate_per_second", value: "0.5",
			check: func(t *testing.T, c *config.Config) { assert.InDelta(t, 0.5, c.Ledger.RatePerSecond, 1e-9) },
		},
		{
			name: "log level", path: "logging.level", value: "off",
			check: func(t *testing.T, c *config.Config) { assert.Equal(t, "off", c.Logging.Level) },
		},
		{name: "unknown log level", path: "logging.level", value: "trace", wantErr: payerr.ErrConfigInvalid},
		{name: "unknown format", path: "output.default_format", value: "yaml", wantErr: payerr.ErrConfigInvalid},
		{
			name: "pretty logging", path: "logging.pretty", value: "true",
			check: func(t *testing.T, c *config.Config) { assert.True(t, c.Logging.Pretty) },
		},
		{
			name: "metrics textfile", path: "metrics.textfile", value: "~/.payflow/payflow.prom",
			check: func(t *testing.T, c *config.Config) { assert.Equal(t, "~/.payflow/payflow.prom", c.Metrics.Textfile) },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := config.Defaults()
			key, err := lookupConfigKey(tc.path)
			require.NoError(t, err)

			err = key.set(c, tc.value)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, payerr.Is(err, tc.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			tc.check(t, c)
		})
	}
}

func TestLookupConfigKey_Unknown(t *testing.T) {
	t.Parallel()

	_, err := lookupConfigKey("networks.eth.rpc")
	require.Error(t, err)
	assert.True(t, payerr.Is(err, payerr.ErrUnknownConfigKey))

	var pe *payerr.PayflowError
	require.True(t, payerr.As(err, &pe))
	assert.Equal(t, "networks.eth.rpc", pe.Details["path"])
	assert.Contains(t, pe.Suggestion, "ledger.url")
}

func TestConfigPaths_Sorted(t *testing.T) {
	t.Parallel()

	paths := configPaths()
	assert.Len(t, paths, len(configKeys))
	assert.IsNonDecreasing(t, paths)
}

func TestRunConfigInit(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})

	require.NoError(t, env.run(runConfigInit))
	assert.Contains(t, env.out.String(), "Configuration initialized")

	saved, err := config.Load(config.Path(env.cfg.Home))
	require.NoError(t, err)
	assert.Equal(t, env.cfg.Home, saved.Home)
	assert.Equal(t, config.DefaultLedgerURL, saved.Ledger.URL)

	err = env.run(runConfigInit)
	require.Error(t, err, "should fail when config already exists without --force")

	setFlag(t, &configForce, true)
	require.NoError(t, env.run(runConfigInit))
}

func TestRunConfigShow_Text(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})

	require.NoError(t, env.run(runConfigShow))

	out := env.out.String()
	assert.True(t, strings.HasPrefix(out, "Configuration:\n"))
	assert.Contains(t, out, "  home: "+env.cfg.Home)
	assert.Contains(t, out, "  ledger:\n")
	assert.Contains(t, out, "    url: "+env.cfg.Ledger.URL)
	assert.Contains(t, out, "    textfile: (not configured)")
}

func TestRunConfigShow_JSON(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})
	env.useJSON()

	require.NoError(t, env.run(runConfigShow))

	var values map[string]string
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &values))
	assert.Equal(t, env.cfg.Ledger.URL, values["ledger.url"])
	assert.Equal(t, "10", values["presets.poll_interval_ms"])
	assert.Len(t, values, len(configKeys))
}

func TestRunConfigGet(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})

	require.NoError(t, env.run(runConfigGet, "presets.poll_interval_ms"))
	assert.Equal(t, "10\n", env.out.String())

	err := env.run(runConfigGet, "nonexistent")
	require.Error(t, err)
	assert.True(t, payerr.Is(err, payerr.ErrUnknownConfigKey))
}

func TestRunConfigSet(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})
	require.NoError(t, env.run(runConfigInit))

	require.NoError(t, env.run(runConfigSet, "logging.level", "debug"))
	assert.Contains(t, env.out.String(), "Set logging.level = debug")

	saved, err := config.Load(config.Path(env.cfg.Home))
	require.NoError(t, err)
	assert.Equal(t, "debug", saved.Logging.Level)
	// Only the file changes; the effective config of this run is untouched.
	assert.Equal(t, "off", env.cfg.Logging.Level)
}

func TestRunConfigSet_NoConfigFile(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})

	require.NoError(t, env.run(runConfigSet, "presets.poll_interval_ms", "2000"))

	saved, err := config.Load(config.Path(env.cfg.Home))
	require.NoError(t, err)
	assert.Equal(t, 2000, saved.Presets.PollIntervalMS)
	assert.Equal(t, env.cfg.Home, saved.Home)
}

func TestRunConfigSet_InvalidValue(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})

	err := env.run(runConfigSet, "output.default_format", "yaml")
	require.Error(t, err)
	assert.True(t, payerr.Is(err, payerr.ErrConfigInvalid))
	assert.Equal(t, payerr.ExitInput, ExitCode(err))
}
