// Package estimate runs the two-phase estimate then confirm negotiation
// with the ledger service.
package estimate

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mrz1836/payflow/internal/currency"
	"github.com/mrz1836/payflow/internal/fee"
	"github.com/mrz1836/payflow/internal/ledger"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// Ledger is the subset of the ledger API the estimator calls.
type Ledger interface {
	EstimateFee(ctx context.Context, token string, req *ledger.EstimateRequest) (ledger.EstimateResult, error)
	Send(ctx context.Context, token string, req *ledger.SendRequest) (ledger.Reply, error)
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Outcome is one of *SpendEstimate, *InsufficientFunds or *Rejected.
type Outcome interface {
	isOutcome()
}

// SpendEstimate is a ledger estimate tagged with the inputs it was computed from.
type SpendEstimate struct {
	ledger.Estimate
	Input       Input
	Fingerprint Fingerprint
	// FeeAmount is the fee the ledger charges in the selected mode, in FeeUnit.
	FeeAmount decimal.Decimal
	FeeUnit   string
}

// InsufficientFunds is a recoverable rejection: the caller may adopt
// MaximumAllowedAmount verbatim.
type InsufficientFunds struct {
	MaximumAllowedAmount decimal.Decimal
	Message              string
}

// Rejected is a terminal rejection; Message is shown verbatim.
type Rejected struct {
	Message string
}

func (*SpendEstimate) isOutcome()     {}
func (*InsufficientFunds) isOutcome() {}
func (*Rejected) isOutcome()          {}

// Total is the amount leaving the wallet in the sent currency.
func (e *SpendEstimate) Total() decimal.Decimal {
	total := e.SpendingAmount.Add(e.PlatformFee)
	if e.Input.Fee.InSentCurrency {
		total = total.Add(e.FeeAmount)
	}
	return total
}

// HasChange reports whether a change line should be shown. Zero change is not an error.
func (e *SpendEstimate) HasChange() bool {
	return e.Change.IsPositive()
}

// Estimator negotiates spend estimates and confirmations.
type Estimator struct {
	ledger Ledger
	logger LogWriter
}

// New creates an Estimator.
func New(l Ledger, logger LogWriter) *Estimator {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Estimator{ledger: l, logger: logger}
}

// Estimate asks the ledger for a spend breakdown. It has no side effects and
// may be repeated. Invalid input fails locally before any remote call.
func (e *Estimator) Estimate(ctx context.Context, token string, in Input) (Outcome, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	req := &ledger.EstimateRequest{
		Currency: in.Currency.Symbol,
		Amount:   fee.Format(in.Amount),
		Address:  strings.TrimSpace(in.Address),
		Fee:      fee.Format(in.Fee.Value),
		FeeMode:  in.feeMode(),
	}

	result, err := e.ledger.EstimateFee(ctx, token, req)
	if err != nil {
		return nil, err
	}

	switch r := result.(type) {
	case *ledger.InsufficientFunds:
		e.logger.Debug("estimate %s %s: insufficient funds, maximum %s", req.Amount, req.Currency, r.MaximumAllowedAmount)
		return &InsufficientFunds{MaximumAllowedAmount: r.MaximumAllowedAmount.Truncate(fee.Scale), Message: r.Message}, nil
	case *ledger.Rejected:
		e.logger.Debug("estimate %s %s rejected: %s", req.Amount, req.Currency, r.Message)
		return &Rejected{Message: r.Message}, nil
	case *ledger.EstimateOK:
		est := &SpendEstimate{
			Estimate:    r.Estimate,
			Input:       in,
			Fingerprint: in.Fingerprint(),
			FeeAmount:   selectedFee(in, r.Estimate),
			FeeUnit:     in.Fee.Unit,
		}
		if err := checkBalance(est); err != nil {
			e.logger.Error("discarding estimate for %s %s: %v", req.Amount, req.Currency, err)
			return nil, err
		}
		return est, nil
	default:
		return nil, payerr.ErrLedgerBadResponse
	}
}

// Confirm issues the send for est. It is rejected locally, before any remote
// call, when current no longer matches the inputs est was computed from.
// factors is attached only on MFA resubmission.
func (e *Estimator) Confirm(ctx context.Context, token string, est *SpendEstimate, current Input, factors map[string]string) (ledger.Reply, error) {
	if est == nil {
		return nil, payerr.WithSuggestion(payerr.ErrInvalidState, "estimate before sending")
	}
	if current.Fingerprint() != est.Fingerprint {
		return nil, payerr.ErrStaleEstimate
	}
	if err := current.Validate(); err != nil {
		return nil, err
	}

	in := est.Input
	req := &ledger.SendRequest{
		Currency: in.Currency.Symbol,
		Amount:   fee.Format(in.Amount),
		Address:  strings.TrimSpace(in.Address),
		Fee:      fee.Format(in.Fee.Value),
		FeeMode:  in.feeMode(),
		Comment:  current.Comment,
		Factors:  factors,
	}

	e.logger.Debug("confirm %s %s to %s (factors attached: %t)", req.Amount, req.Currency, req.Address, len(factors) > 0)
	return e.ledger.Send(ctx, token, req)
}

// selectedFee picks the ledger fee field that matches the fee mode.
func selectedFee(in Input, est ledger.Estimate) decimal.Decimal {
	if in.Currency.Family != currency.FamilyAccountResource {
		return est.BlockchainFee
	}
	switch in.Fee.Mode {
	case fee.ModeEnergy:
		return fee.ToResourceUnits(est.EnergyFee)
	case fee.ModeBurn:
		return est.BurnFee
	default:
		return est.BorrowFee
	}
}

// checkBalance enforces spending + fee + platform fee <= balance when the
// balance is known. A fee outside the sent currency does not count.
func checkBalance(est *SpendEstimate) error {
	bal := est.Input.Balance
	if !bal.Valid {
		return nil
	}
	if total := est.Total(); total.GreaterThan(bal.Decimal) {
		return payerr.WithDetails(payerr.ErrEstimateExceedsBalance, map[string]string{
			"total":   fee.Format(total),
			"balance": fee.Format(bal.Decimal),
		})
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
