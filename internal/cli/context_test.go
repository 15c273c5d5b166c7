package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mrz1836/payflow/internal/auth"
	"github.com/mrz1836/payflow/internal/config"
	"github.com/mrz1836/payflow/internal/ledger"
	"github.com/mrz1836/payflow/internal/ledger/mocks"
	"github.com/mrz1836/payflow/internal/metrics"
	"github.com/mrz1836/payflow/internal/output"
)

// withoutKeyring keeps token identities in files for the test.
func withoutKeyring(t *testing.T) {
	t.Helper()
	orig := systemKeyring
	systemKeyring = func() auth.Keyring { return nil }
	t.Cleanup(func() { systemKeyring = orig })
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.Defaults()
	c.Home = t.TempDir()
	c.Auth.TokenFile = filepath.Join(c.Home, "token.age")
	c.Auth.IdentityFile = filepath.Join(c.Home, "identity.age")
	return c
}

func TestNewCommandContext(t *testing.T) {
	withoutKeyring(t)

	tests := []struct {
		name      string
		config    *config.Config
		log       *config.Logger
		fmt       *output.Formatter
		stats     *metrics.Metrics
		wantWired bool
	}{
		{
			name:      "with all values",
			config:    testConfig(t),
			log:       config.NullLogger(),
			fmt:       output.NewFormatter(output.FormatText, nil),
			stats:     metrics.New(),
			wantWired: true,
		},
		{
			name:   "with nil config",
			log:    config.NullLogger(),
			fmt:    output.NewFormatter(output.FormatText, nil),
			stats:  metrics.New(),
			config: nil,
		},
		{
			name:      "with nil logger and metrics",
			config:    testConfig(t),
			fmt:       output.NewFormatter(output.FormatText, nil),
			wantWired: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cc := NewCommandContext(tc.config, tc.log, tc.fmt, tc.stats)
			require.NotNil(t, cc)

			assert.Equal(t, tc.config, cc.Config)
			assert.Equal(t, tc.fmt, cc.Formatter)
			assert.NotNil(t, cc.Logger)
			assert.NotNil(t, cc.Metrics)
			assert.NotNil(t, cc.Currencies)
			if tc.log != nil {
				assert.Same(t, tc.log, cc.Logger)
			}

			if tc.wantWired {
				assert.NotNil(t, cc.Ledger)
				assert.NotNil(t, cc.Auth)
			} else {
				assert.Nil(t, cc.Ledger)
				assert.Nil(t, cc.Auth)
			}
		})
	}
}

func TestSetCmdContext_GetCmdContext_Roundtrip(t *testing.T) {
	withoutKeyring(t)
	cc := NewCommandContext(testConfig(t), config.NullLogger(), output.NewFormatter(output.FormatText, nil), nil)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	SetCmdContext(cmd, cc)

	assert.Same(t, cc, GetCmdContext(cmd))
}

func TestSetCmdContext_WithoutBaseContext(t *testing.T) {
	cmd := &cobra.Command{}
	cc := &CommandContext{}

	SetCmdContext(cmd, cc)

	require.NotNil(t, cmd.Context())
	assert.Same(t, cc, GetCmdContext(cmd))
}

func TestGetCmdContext_FallsBackToGlobals(t *testing.T) {
	withoutKeyring(t)
	origCfg, origFormatter := cfg, formatter
	t.Cleanup(func() { cfg, formatter = origCfg, origFormatter })

	cfg = testConfig(t)
	formatter = output.NewFormatter(output.FormatJSON, nil)

	cmd := &cobra.Command{}
	cc := GetCmdContext(cmd)
	require.NotNil(t, cc)
	assert.Same(t, cfg, cc.Config)
	assert.Same(t, formatter, cc.Formatter)

	// The built context is attached, so later lookups reuse it.
	assert.Same(t, cc, GetCmdContext(cmd))
}

func TestCommandContext_WithLedger(t *testing.T) {
	withoutKeyring(t)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAPI(ctrl)

	cc := NewCommandContext(testConfig(t), nil, output.NewFormatter(output.FormatText, nil), nil)
	result := cc.WithLedger(api)
	assert.Same(t, cc, result)
	assert.Equal(t, api, cc.Ledger)

	api.EXPECT().
		Login(gomock.Any(), &ledger.LoginRequest{Email: "me@example.com", Password: "pw"}).
		Return(&ledger.Accepted{Token: "mock-token"}, nil)

	res, err := cc.Auth.Login(context.Background(), "me@example.com", "pw")
	require.NoError(t, err)
	assert.IsType(t, &auth.LoggedIn{}, res)

	token, err := cc.Auth.Token()
	require.NoError(t, err)
	assert.Equal(t, "mock-token", token)
}

func TestCommandContext_WithAuth(t *testing.T) {
	cc := NewCommandContext(nil, nil, nil, nil)
	assert.Nil(t, cc.Auth)

	svc := auth.NewService(&auth.Options{})
	result := cc.WithAuth(svc)

	assert.Same(t, cc, result)
	assert.Same(t, svc, cc.Auth)
}

// mockFormatProvider implements FormatProvider for testing.
type mockFormatProvider struct{ format output.Format }

func (m *mockFormatProvider) Format() output.Format { return m.format }

var _ FormatProvider = (*mockFormatProvider)(nil)
