package cli

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/payflow/internal/ledger"
	"github.com/mrz1836/payflow/internal/ledger/ledgertest"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

func TestPresets_Text(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{WaitRounds: 2})
	env.login(t)
	setFlag(t, &presetsCurrency, "btc")

	require.NoError(t, env.run(runPresets))

	out := env.out.String()
	assert.Contains(t, out, "PRESET")
	assert.Contains(t, out, "0.0001 BTC")
	assert.Contains(t, out, "(default)")
	assert.Contains(t, out, "custom")
	assert.Equal(t, 3, env.srv.Count(ledger.OpFeePresets))
}

func TestPresets_JSON(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})
	env.login(t)
	env.useJSON()
	setFlag(t, &presetsCurrency, "TRX")

	require.NoError(t, env.run(runPresets))

	var res struct {
		Currency string `json:"currency"`
		Unit     string `json:"unit"`
		Presets  []struct {
			Name    string `json:"name"`
			Value   string `json:"value"`
			Default bool   `json:"default"`
		} `json:"presets"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &res))
	assert.Equal(t, "TRX", res.Currency)
	assert.Equal(t, "TRX", res.Unit)
	require.Len(t, res.Presets, 4)
	assert.Equal(t, "average", res.Presets[1].Name)
	assert.Equal(t, "3.5", res.Presets[1].Value)
	assert.True(t, res.Presets[1].Default)
	assert.Equal(t, "custom", res.Presets[3].Name)
	assert.Empty(t, res.Presets[3].Value)
}

func TestPresets_FixedCurrencySkipsLedger(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})
	env.login(t)
	setFlag(t, &presetsCurrency, "XRP")

	require.NoError(t, env.run(runPresets))
	assert.Contains(t, env.out.String(), "custom")
	assert.Equal(t, 0, env.srv.Count(ledger.OpFeePresets))
}

func TestPresets_LedgerErrorFallsBackToCustom(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})
	env.login(t)
	env.srv.Handle(ledger.OpFeePresets, func(_ int, _ ledgertest.Call) (int, any) {
		return ledgertest.Message(http.StatusBadRequest, "no fee market")
	})
	setFlag(t, &presetsCurrency, "BTC")

	require.NoError(t, env.run(runPresets))
	assert.Contains(t, env.out.String(), "Fee presets for BTC are unavailable")
	assert.NotContains(t, env.out.String(), "average")
}

func TestPresets_RequiresLogin(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})
	setFlag(t, &presetsCurrency, "BTC")

	err := env.run(runPresets)
	require.Error(t, err)
	assert.True(t, payerr.Is(err, payerr.ErrNotAuthenticated))
}

func TestPresets_UnknownCurrency(t *testing.T) {
	env := newTestEnv(t, ledgertest.SimOptions{})
	setFlag(t, &presetsCurrency, "BTX")

	err := env.run(runPresets)
	require.Error(t, err)
	assert.True(t, payerr.Is(err, payerr.ErrUnknownCurrency))
	var pe *payerr.PayflowError
	require.True(t, payerr.As(err, &pe))
	assert.Contains(t, pe.Suggestion, "BTC")
}
