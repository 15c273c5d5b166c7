package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/payflow/internal/ledger/ledgertest"
	"github.com/mrz1836/payflow/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	simAddr         string
	simWaitRounds   int
	simSendFactors  []string
	simLoginFactors []string
	simBalances     map[string]string
)

// ledgerSimCmd serves the fake ledger for local development.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var ledgerSimCmd = &cobra.Command{
	Use:    "ledger-sim",
	Short:  "Serve a fake ledger on a local address",
	Hidden: true,
	Long: `Serve an in-memory ledger that answers fee presets, estimates, sends and
logins. Point payflow at it with --ledger-url http://<addr>.`,
	Example: `  payflow ledger-sim --addr 127.0.0.1:8787 --wait-rounds 2 --send-factors otp
  payflow --ledger-url http://127.0.0.1:8787 presets --currency BTC`,
	RunE: runLedgerSim,
}

func runLedgerSim(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	sim := ledgertest.NewSimulator(ledgertest.SimOptions{
		WaitRounds:   simWaitRounds,
		SendFactors:  simSendFactors,
		LoginFactors: simLoginFactors,
		Balance:      simBalances,
	})

	srv := &http.Server{
		Addr:              simAddr,
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	output.Infof(cmd.ErrOrStderr(), "Fake ledger listening on http://%s", simAddr)
	cc.Logger.Debug("ledger-sim: serving on %s", simAddr)

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	f := ledgerSimCmd.Flags()
	f.StringVar(&simAddr, "addr", "127.0.0.1:8787", "listen address")
	f.IntVar(&simWaitRounds, "wait-rounds", 1, "fee preset requests answered with wait before presets are ready")
	f.StringSliceVar(&simSendFactors, "send-factors", nil, "factors demanded on send (email, telegram, otp)")
	f.StringSliceVar(&simLoginFactors, "login-factors", nil, "factors demanded on login")
	f.StringToStringVar(&simBalances, "balance", nil, "spendable balance per currency, e.g. BTC=1.5")

	rootCmd.AddCommand(ledgerSimCmd)
}
