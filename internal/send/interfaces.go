package send

import (
	"context"

	"github.com/mrz1836/payflow/internal/estimate"
	"github.com/mrz1836/payflow/internal/preset"
)

// Ledger is the ledger surface a session needs.
type Ledger interface {
	preset.Source
	estimate.Ledger
}

// TokenSource supplies the bearer token for ledger calls.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource for a fixed token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token() (string, error) {
	return string(t), nil
}

// BalanceRefresher is told to re-fetch balances after a successful send.
type BalanceRefresher interface {
	RefreshBalances(walletID string)
}

// AddressPicker supplies a destination address from the address book.
type AddressPicker interface {
	PickAddress(ctx context.Context, walletID string) (string, error)
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Observer counts send outcomes and dropped stale responses.
type Observer interface {
	preset.Observer
	ObserveSend(outcome string)
	ObserveStaleResponse(kind string)
	ObserveChallenge(action, outcome string)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

type nopObserver struct{}

func (nopObserver) ObservePresetPoll(string)        {}
func (nopObserver) ObserveSend(string)              {}
func (nopObserver) ObserveStaleResponse(string)     {}
func (nopObserver) ObserveChallenge(string, string) {}
