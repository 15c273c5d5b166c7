package mfa_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/payflow/internal/ledger"
	"github.com/mrz1836/payflow/internal/mfa"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) ObserveChallenge(action, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, action+":"+outcome)
}

func otpChallenge() *ledger.FactorsRequired {
	return &ledger.FactorsRequired{
		Factors: []ledger.Factor{{Name: mfa.FactorOTP, Context: "ABCDEFGHIJ"}},
		Message: "Enter your code",
	}
}

func TestController_HappyPath(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	c := mfa.NewController(mfa.ActionSend, nil, obs)
	assert.Equal(t, mfa.StateIdle, c.State())

	require.NoError(t, c.Challenge(otpChallenge()))
	assert.Equal(t, mfa.StateChallenged, c.State())
	assert.Equal(t, "Enter your code", c.Message())
	assert.False(t, c.Ready())

	require.NoError(t, c.SetCode(mfa.FactorOTP, "1234"))
	assert.Equal(t, mfa.StateCollecting, c.State())
	assert.True(t, c.Ready())

	var sent map[string]string
	reply, err := c.Submit(context.Background(), func(_ context.Context, factors map[string]string) (ledger.Reply, error) {
		assert.Equal(t, mfa.StateSubmitting, c.State())
		sent = factors
		return &ledger.Accepted{TransactionID: "tx"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "tx", reply.(*ledger.Accepted).TransactionID)
	assert.Equal(t, map[string]string{"otp": "ABCDEFGHIJMTIzNA=="}, sent)
	assert.Equal(t, mfa.StateResolved, c.State())
	assert.Equal(t, []string{"send:challenged", "send:resolved"}, obs.events)
}

func TestController_AllCodesRequired(t *testing.T) {
	t.Parallel()
	c := mfa.NewController(mfa.ActionLogin, nil, nil)
	require.NoError(t, c.Challenge(&ledger.FactorsRequired{Factors: []ledger.Factor{
		{Name: mfa.FactorEmail}, {Name: mfa.FactorOTP, Context: "P"},
	}}))

	require.NoError(t, c.SetCode(mfa.FactorEmail, "5555"))
	require.NoError(t, c.SetCode(mfa.FactorOTP, "   "))
	assert.False(t, c.Ready())
	assert.Equal(t, []string{mfa.FactorOTP}, c.Missing())

	_, err := c.Submit(context.Background(), func(context.Context, map[string]string) (ledger.Reply, error) {
		t.Fatal("submitted with a missing code")
		return nil, nil
	})
	require.ErrorIs(t, err, payerr.ErrFactorCodeMissing)
	assert.Equal(t, mfa.StateCollecting, c.State())
}

func TestController_UnknownFactor(t *testing.T) {
	t.Parallel()
	c := mfa.NewController(mfa.ActionSend, nil, nil)
	require.NoError(t, c.Challenge(otpChallenge()))
	require.ErrorIs(t, c.SetCode(mfa.FactorTelegram, "1"), payerr.ErrUnknownFactor)
}

func TestController_InvalidTransitions(t *testing.T) {
	t.Parallel()
	c := mfa.NewController(mfa.ActionSend, nil, nil)

	require.ErrorIs(t, c.SetCode(mfa.FactorOTP, "1"), payerr.ErrInvalidState)
	_, err := c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, payerr.ErrInvalidState)

	require.NoError(t, c.Challenge(otpChallenge()))
	require.ErrorIs(t, c.Challenge(otpChallenge()), payerr.ErrInvalidState)

	require.ErrorIs(t, mfa.NewController(mfa.ActionSend, nil, nil).Challenge(&ledger.FactorsRequired{}), payerr.ErrLedgerBadResponse)
}

func TestController_RejectedIsFailed(t *testing.T) {
	t.Parallel()
	c := mfa.NewController(mfa.ActionSend, nil, nil)
	require.NoError(t, c.Challenge(otpChallenge()))
	require.NoError(t, c.SetCode(mfa.FactorOTP, "000000"))

	reply, err := c.Submit(context.Background(), func(context.Context, map[string]string) (ledger.Reply, error) {
		return &ledger.Rejected{Message: "Invalid code"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Invalid code", reply.(*ledger.Rejected).Message)
	assert.Equal(t, mfa.StateFailed, c.State())
	assert.Equal(t, "Invalid code", c.Message())

	c.Dismiss()
	assert.Equal(t, mfa.StateIdle, c.State())
	assert.Empty(t, c.Message())
}

func TestController_SecondDemandIsFailed(t *testing.T) {
	t.Parallel()
	c := mfa.NewController(mfa.ActionSend, nil, nil)
	require.NoError(t, c.Challenge(otpChallenge()))
	require.NoError(t, c.SetCode(mfa.FactorOTP, "1234"))

	calls := 0
	reply, err := c.Submit(context.Background(), func(context.Context, map[string]string) (ledger.Reply, error) {
		calls++
		return &ledger.FactorsRequired{Factors: []ledger.Factor{{Name: mfa.FactorEmail}}, Message: "Also confirm by email"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Also confirm by email", reply.(*ledger.Rejected).Message)
	assert.Equal(t, mfa.StateFailed, c.State())
}

func TestController_TransportErrorKeepsCodes(t *testing.T) {
	t.Parallel()
	c := mfa.NewController(mfa.ActionSend, nil, nil)
	require.NoError(t, c.Challenge(otpChallenge()))
	require.NoError(t, c.SetCode(mfa.FactorOTP, "1234"))

	_, err := c.Submit(context.Background(), func(context.Context, map[string]string) (ledger.Reply, error) {
		return nil, payerr.ErrNetworkError
	})
	require.ErrorIs(t, err, payerr.ErrNetworkError)
	assert.Equal(t, mfa.StateCollecting, c.State())
	assert.True(t, c.Ready())
}

func TestController_RecoveryCodeOnce(t *testing.T) {
	t.Parallel()
	c := mfa.NewController(mfa.ActionSend, nil, nil)
	require.NoError(t, c.Challenge(otpChallenge()))
	require.NoError(t, c.SetCode(mfa.FactorOTP, "1234"))

	_, err := c.Submit(context.Background(), func(context.Context, map[string]string) (ledger.Reply, error) {
		return &ledger.Accepted{RecoveryCode: "RECOVER-ME"}, nil
	})
	require.NoError(t, err)

	code, ok := c.TakeRecoveryCode()
	assert.True(t, ok)
	assert.Equal(t, "RECOVER-ME", code)

	_, ok = c.TakeRecoveryCode()
	assert.False(t, ok)
}

func TestController_DismissDiscardsCodes(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	c := mfa.NewController(mfa.ActionLogin, nil, obs)
	require.NoError(t, c.Challenge(otpChallenge()))
	require.NoError(t, c.SetCode(mfa.FactorOTP, "1234"))

	c.Dismiss()
	assert.Equal(t, mfa.StateIdle, c.State())
	assert.Empty(t, c.Factors())
	assert.False(t, c.Ready())

	// A new challenge starts from nothing.
	require.NoError(t, c.Challenge(otpChallenge()))
	assert.Equal(t, []string{mfa.FactorOTP}, c.Missing())
	assert.Equal(t, []string{"login:challenged", "login:dismissed", "login:challenged"}, obs.events)
}

func TestController_DismissWhileSubmitting(t *testing.T) {
	t.Parallel()
	c := mfa.NewController(mfa.ActionSend, nil, nil)
	require.NoError(t, c.Challenge(otpChallenge()))
	require.NoError(t, c.SetCode(mfa.FactorOTP, "1234"))

	_, err := c.Submit(context.Background(), func(context.Context, map[string]string) (ledger.Reply, error) {
		c.Dismiss()
		return &ledger.Accepted{TransactionID: "late"}, nil
	})
	require.ErrorIs(t, err, payerr.ErrSessionInvalidated)
	assert.Equal(t, mfa.StateIdle, c.State())
}

func TestPrompts(t *testing.T) {
	t.Parallel()
	c := mfa.NewController(mfa.ActionSend, nil, nil)
	require.NoError(t, c.Challenge(&ledger.FactorsRequired{Factors: []ledger.Factor{
		{Name: mfa.FactorTelegram},
		{Name: mfa.FactorOTP, Context: "otpauth://totp/payflow:me?secret=JBSWY3DPEHPK3PXP"},
		{Name: mfa.FactorEmail},
		{Name: "sms"},
	}}))

	prompts := c.Prompts()
	require.Len(t, prompts, 4)
	assert.Equal(t, "Telegram code", prompts[0].Label)
	assert.Equal(t, "otpauth://totp/payflow:me?secret=JBSWY3DPEHPK3PXP", prompts[1].Enrollment)
	assert.Contains(t, prompts[1].Hint, "Scan")
	assert.Equal(t, "Email code", prompts[2].Label)
	assert.Equal(t, "sms code", prompts[3].Label)

	plain := mfa.PromptFor(mfa.FactorOTP, "ABCDEFGHIJ")
	assert.Empty(t, plain.Enrollment)
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "idle", mfa.StateIdle.String())
	assert.Equal(t, "submitting", mfa.StateSubmitting.String())
	assert.Equal(t, "unknown", mfa.State(42).String())
}
