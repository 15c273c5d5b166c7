package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/payflow/internal/fee"
	"github.com/mrz1836/payflow/internal/ledger"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

func TestDecodePresets_Wait(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`"wait"`, ` "WAIT" `, `{"feeSuggestion":"wait"}`} {
		reply, err := ledger.DecodePresets([]byte(body))
		require.NoError(t, err, body)
		assert.True(t, reply.Wait, body)
		assert.Empty(t, reply.Presets)
	}
}

func TestDecodePresets_PreservesServerOrder(t *testing.T) {
	t.Parallel()

	body := `{"feeUnit":"sat/vB","feeSuggestion":{"maximum":0.0002,"minimum":"0.00005","average":0.0001},"extra":[1,2]}`
	reply, err := ledger.DecodePresets([]byte(body))
	require.NoError(t, err)

	assert.False(t, reply.Wait)
	assert.Equal(t, "sat/vB", reply.Unit)
	require.Len(t, reply.Presets, 3)
	assert.Equal(t, fee.PresetMaximum, reply.Presets[0].Name)
	assert.Equal(t, fee.PresetMinimum, reply.Presets[1].Name)
	assert.Equal(t, fee.PresetAverage, reply.Presets[2].Name)
	assert.Equal(t, "0.0001", reply.Presets[2].Value.String())
	assert.Equal(t, "0.00005", reply.Presets[1].Value.String())
}

func TestDecodePresets_Message(t *testing.T) {
	t.Parallel()
	reply, err := ledger.DecodePresets([]byte(`{"message":"Currency disabled"}`))
	require.NoError(t, err)
	assert.Equal(t, "Currency disabled", reply.Message)
	assert.Empty(t, reply.Presets)
}

func TestDecodePresets_Bad(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`"ready"`, `[1,2]`, `{"feeSuggestion":{"average":true}}`, `{"feeSuggestion":{"average":"x"}}`} {
		_, err := ledger.DecodePresets([]byte(body))
		require.Error(t, err, body)
		assert.ErrorIs(t, err, payerr.ErrLedgerBadResponse, body)
	}
}

func TestDecodeReply_Shapes(t *testing.T) {
	t.Parallel()

	t.Run("accepted send", func(t *testing.T) {
		t.Parallel()
		r, err := ledger.DecodeReply([]byte(`{"transactionId":"tx-1"}`))
		require.NoError(t, err)
		acc, ok := r.(*ledger.Accepted)
		require.True(t, ok)
		assert.Equal(t, "tx-1", acc.TransactionID)
	})

	t.Run("accepted login", func(t *testing.T) {
		t.Parallel()
		r, err := ledger.DecodeReply([]byte(`{"token":"abc"}`))
		require.NoError(t, err)
		assert.Equal(t, "abc", r.(*ledger.Accepted).Token)
	})

	t.Run("recovery code", func(t *testing.T) {
		t.Parallel()
		r, err := ledger.DecodeReply([]byte(`{"transactionId":"tx","recoveryCode":"RC-1"}`))
		require.NoError(t, err)
		assert.Equal(t, "RC-1", r.(*ledger.Accepted).RecoveryCode)
	})

	t.Run("factors required keeps order and context", func(t *testing.T) {
		t.Parallel()
		body := `{"isFactorsSent":true,"requiredFactors":["telegram","otp","email"],
			"additionalInformation":{"otp":"ABCDEFGHIJ","email":{"sentTo":"a***@x.io"}},"message":"verify"}`
		r, err := ledger.DecodeReply([]byte(body))
		require.NoError(t, err)
		fr, ok := r.(*ledger.FactorsRequired)
		require.True(t, ok)
		assert.Equal(t, []string{"telegram", "otp", "email"}, fr.Names())
		assert.Equal(t, "ABCDEFGHIJ", fr.Factors[1].Context)
		assert.JSONEq(t, `{"sentTo":"a***@x.io"}`, fr.Factors[2].Context)
		assert.Empty(t, fr.Factors[0].Context)
		assert.Equal(t, "verify", fr.Message)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()
		r, err := ledger.DecodeReply([]byte(`{"message":"Address is blacklisted"}`))
		require.NoError(t, err)
		assert.Equal(t, "Address is blacklisted", r.(*ledger.Rejected).Message)
	})

	t.Run("empty object", func(t *testing.T) {
		t.Parallel()
		_, err := ledger.DecodeReply([]byte(`{}`))
		require.ErrorIs(t, err, payerr.ErrLedgerBadResponse)
	})

	t.Run("not json", func(t *testing.T) {
		t.Parallel()
		_, err := ledger.DecodeReply([]byte(`<html>`))
		require.ErrorIs(t, err, payerr.ErrLedgerBadResponse)
	})
}

func TestDecodeEstimate(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		body := `{"spendingAmount":"1.5","blockchainFee":0.0001,"platformFee":"0","change":"0","transactionCount":2}`
		r, err := ledger.DecodeEstimate([]byte(body))
		require.NoError(t, err)
		ok, isOK := r.(*ledger.EstimateOK)
		require.True(t, isOK)
		assert.Equal(t, "1.5", ok.Estimate.SpendingAmount.String())
		assert.Equal(t, "0.0001", ok.Estimate.BlockchainFee.String())
		assert.True(t, ok.Estimate.Change.IsZero())
		assert.Equal(t, 2, ok.Estimate.TransactionCount)
	})

	t.Run("insufficient", func(t *testing.T) {
		t.Parallel()
		r, err := ledger.DecodeEstimate([]byte(`{"maximumAllowedAmount":"0.42","message":"Insufficient funds"}`))
		require.NoError(t, err)
		ins, ok := r.(*ledger.InsufficientFunds)
		require.True(t, ok)
		assert.Equal(t, "0.42", ins.MaximumAllowedAmount.String())
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()
		r, err := ledger.DecodeEstimate([]byte(`{"message":"Invalid address"}`))
		require.NoError(t, err)
		assert.Equal(t, "Invalid address", r.(*ledger.Rejected).Message)
	})

	t.Run("null maximum is not insufficient", func(t *testing.T) {
		t.Parallel()
		r, err := ledger.DecodeEstimate([]byte(`{"spendingAmount":"1","maximumAllowedAmount":null}`))
		require.NoError(t, err)
		_, ok := r.(*ledger.EstimateOK)
		assert.True(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := ledger.DecodeEstimate([]byte(`{}`))
		require.ErrorIs(t, err, payerr.ErrLedgerBadResponse)
	})
}
