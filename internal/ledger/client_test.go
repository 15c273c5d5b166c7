package ledger_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/payflow/internal/ledger"
	"github.com/mrz1836/payflow/internal/ledger/ledgertest"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveLedgerRequest(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, op+":"+outcome)
}

func newClient(t *testing.T, srv *ledgertest.Server, obs ledger.Observer) *ledger.Client {
	t.Helper()
	url := srv.Start()
	t.Cleanup(srv.Close)
	return ledger.NewClient(&ledger.Options{
		BaseURL:       url + "/",
		Timeout:       5 * time.Second,
		RatePerSecond: -1,
		Observer:      obs,
	})
}

func TestClient_FeePresets(t *testing.T) {
	t.Parallel()
	srv := ledgertest.NewSimulator(ledgertest.SimOptions{WaitRounds: 1})
	obs := &recordingObserver{}
	c := newClient(t, srv, obs)
	ctx := context.Background()

	reply, err := c.FeePresets(ctx, "tok", "BTC")
	require.NoError(t, err)
	assert.True(t, reply.Wait)

	reply, err = c.FeePresets(ctx, "tok", "BTC")
	require.NoError(t, err)
	assert.False(t, reply.Wait)
	require.Len(t, reply.Presets, 3)
	assert.Equal(t, "BTC", reply.Unit)

	calls := srv.Calls(ledger.OpFeePresets)
	require.Len(t, calls, 2)
	assert.Equal(t, "tok", calls[0].Token)
	assert.Equal(t, "BTC", calls[0].String("currency"))
	assert.Equal(t, []string{"fee-presets:wait", "fee-presets:ok"}, obs.outcomes)
}

func TestClient_FeePresets_RejectedWithMessage(t *testing.T) {
	t.Parallel()
	srv := ledgertest.New()
	c := newClient(t, srv, nil)

	reply, err := c.FeePresets(context.Background(), "tok", "XYZ")
	require.NoError(t, err)
	assert.Equal(t, "no fee market for XYZ", reply.Message)
}

func TestClient_EstimateFee(t *testing.T) {
	t.Parallel()
	srv := ledgertest.New()
	c := newClient(t, srv, nil)

	result, err := c.EstimateFee(context.Background(), "tok", &ledger.EstimateRequest{
		Currency: "BTC", Amount: "1.5", Address: "bc1qexample", Fee: "0.0001",
	})
	require.NoError(t, err)
	ok, isOK := result.(*ledger.EstimateOK)
	require.True(t, isOK)
	assert.Equal(t, "1.5", ok.Estimate.SpendingAmount.String())
	assert.Equal(t, "0.0001", ok.Estimate.BlockchainFee.String())

	calls := srv.Calls(ledger.OpEstimateFee)
	require.Len(t, calls, 1)
	assert.Equal(t, "bc1qexample", calls[0].String("address"))
	assert.NotContains(t, calls[0].Body, "feeMode")
}

func TestClient_EstimateFee_Insufficient(t *testing.T) {
	t.Parallel()
	srv := ledgertest.NewSimulator(ledgertest.SimOptions{Balance: map[string]string{"BTC": "1"}})
	c := newClient(t, srv, nil)

	result, err := c.EstimateFee(context.Background(), "tok", &ledger.EstimateRequest{
		Currency: "BTC", Amount: "5", Address: "bc1q", Fee: "0.1",
	})
	require.NoError(t, err)
	ins, ok := result.(*ledger.InsufficientFunds)
	require.True(t, ok)
	assert.Equal(t, "0.9", ins.MaximumAllowedAmount.String())
}

func TestClient_Send_Shapes(t *testing.T) {
	t.Parallel()
	srv := ledgertest.NewSimulator(ledgertest.SimOptions{SendFactors: []string{"otp"}, OTPPrefix: "ABCDEFGHIJ"})
	c := newClient(t, srv, nil)
	ctx := context.Background()
	req := &ledger.SendRequest{Currency: "BTC", Amount: "1", Address: "bc1q", Fee: "0.0001"}

	reply, err := c.Send(ctx, "tok", req)
	require.NoError(t, err)
	fr, ok := reply.(*ledger.FactorsRequired)
	require.True(t, ok)
	assert.Equal(t, []string{"otp"}, fr.Names())
	assert.Equal(t, "ABCDEFGHIJ", fr.Factors[0].Context)

	req.Factors = map[string]string{"otp": "123"}
	reply, err = c.Send(ctx, "tok", req)
	require.NoError(t, err)
	assert.Equal(t, "Invalid otp code", reply.(*ledger.Rejected).Message)

	req.Factors = map[string]string{"otp": "ABCDEFGHIJMTIzNA=="}
	reply, err = c.Send(ctx, "tok", req)
	require.NoError(t, err)
	acc, ok := reply.(*ledger.Accepted)
	require.True(t, ok)
	assert.NotEmpty(t, acc.TransactionID)

	assert.Equal(t, "ABCDEFGHIJMTIzNA==", srv.Calls(ledger.OpSend)[2].Factors()["otp"])
}

func TestClient_Send_Unauthorized(t *testing.T) {
	t.Parallel()
	srv := ledgertest.New()
	c := newClient(t, srv, nil)

	_, err := c.Send(context.Background(), "", &ledger.SendRequest{Currency: "BTC"})
	require.ErrorIs(t, err, payerr.ErrNotAuthenticated)
}

func TestClient_Login_UnauthorizedMessage(t *testing.T) {
	t.Parallel()
	srv := ledgertest.NewEmpty()
	srv.Handle(ledger.OpLogin, func(int, ledgertest.Call) (int, any) {
		return ledgertest.Message(http.StatusUnauthorized, "Invalid email or password")
	})
	c := newClient(t, srv, nil)

	reply, err := c.Login(context.Background(), &ledger.LoginRequest{Email: "a@b.c", Password: "bad"})
	require.NoError(t, err)
	rejected, ok := reply.(*ledger.Rejected)
	require.True(t, ok, "expected rejected, got %T", reply)
	assert.Equal(t, "Invalid email or password", rejected.Message)
}

func TestClient_Send_UnauthorizedWithMessage(t *testing.T) {
	t.Parallel()
	srv := ledgertest.NewEmpty()
	srv.Handle(ledger.OpSend, func(int, ledgertest.Call) (int, any) {
		return ledgertest.Message(http.StatusUnauthorized, "Token expired")
	})
	c := newClient(t, srv, nil)

	_, err := c.Send(context.Background(), "tok", &ledger.SendRequest{Currency: "BTC"})
	require.ErrorIs(t, err, payerr.ErrNotAuthenticated)
}

func TestClient_Login(t *testing.T) {
	t.Parallel()
	srv := ledgertest.NewSimulator(ledgertest.SimOptions{Token: "jwt-ish"})
	c := newClient(t, srv, nil)

	reply, err := c.Login(context.Background(), &ledger.LoginRequest{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-ish", reply.(*ledger.Accepted).Token)
	assert.Empty(t, srv.Calls(ledger.OpLogin)[0].Token)
}

func TestClient_NonJSONErrorStatus(t *testing.T) {
	t.Parallel()
	srv := ledgertest.NewEmpty()
	srv.Handle(ledger.OpSend, func(int, ledgertest.Call) (int, any) {
		return http.StatusBadGateway, []byte("bad gateway")
	})
	c := newClient(t, srv, nil)

	_, err := c.Send(context.Background(), "tok", &ledger.SendRequest{})
	require.ErrorIs(t, err, payerr.ErrNetworkError)
	v, ok := payerr.Detail(err, "status")
	assert.True(t, ok)
	assert.Equal(t, "502", v)
}

func TestClient_TransportFailure(t *testing.T) {
	t.Parallel()
	c := ledger.NewClient(&ledger.Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

	_, err := c.FeePresets(context.Background(), "tok", "BTC")
	require.ErrorIs(t, err, payerr.ErrNetworkError)
}

func TestClient_ContextCanceled(t *testing.T) {
	t.Parallel()
	srv := ledgertest.New()
	c := newClient(t, srv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FeePresets(ctx, "tok", "BTC")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	rl := ledger.NewRateLimiter(1, 1)
	require.NoError(t, rl.Wait(context.Background(), ledger.OpSend))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, rl.Wait(ctx, ledger.OpSend), "second send within the same second must wait past the deadline")
	require.NoError(t, rl.Wait(ctx, ledger.OpLogin), "limits are per operation")

	unlimited := ledger.NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, unlimited.Wait(ctx, ledger.OpFeePresets))
	}
}
