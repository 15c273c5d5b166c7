package estimate

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mrz1836/payflow/internal/currency"
	"github.com/mrz1836/payflow/internal/fee"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// Input is everything a spend estimate is computed from.
type Input struct {
	WalletID string
	Currency *currency.Currency
	Amount   decimal.Decimal
	Address  string
	Fee      fee.Normalized
	Comment  string
	// Balance is the wallet balance captured at open, when known.
	// It is not part of the fingerprint.
	Balance decimal.NullDecimal
}

// Fingerprint identifies the inputs an estimate was computed against.
type Fingerprint string

// Fingerprint hashes the canonical input tuple. The comment and balance are
// excluded: changing them does not change what the ledger would estimate.
func (in Input) Fingerprint() Fingerprint {
	sym := ""
	if in.Currency != nil {
		sym = in.Currency.Symbol
	}
	canonical := strings.Join([]string{
		in.WalletID,
		sym,
		fee.Format(in.Amount),
		strings.TrimSpace(in.Address),
		fee.Format(in.Fee.Value),
		in.Fee.Unit,
		string(in.Fee.Mode),
	}, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Validate performs the local checks that must pass before any remote call.
func (in Input) Validate() error {
	if in.Currency == nil {
		return payerr.ErrCurrencyRequired
	}
	if !in.Amount.IsPositive() {
		return payerr.ErrAmountRequired
	}
	if strings.TrimSpace(in.Address) == "" {
		return payerr.ErrAddressRequired
	}
	if in.Fee.Value.IsNegative() {
		return payerr.ErrInvalidFee
	}
	return nil
}

func (in Input) feeMode() string {
	if in.Currency != nil && in.Currency.Family == currency.FamilyAccountResource {
		return string(in.Fee.Mode)
	}
	return ""
}
