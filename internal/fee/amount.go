// Package fee normalizes fee selections per currency family and holds
// the decimal helpers shared by the send flow.
package fee

import (
	"strings"

	"github.com/shopspring/decimal"

	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// Scale is the number of fractional digits carried by every amount.
const Scale = 8

// ParseAmount parses a user-entered decimal amount.
// Extra fractional digits are truncated, never rounded.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, payerr.ErrAmountRequired
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, payerr.WithDetails(payerr.ErrInvalidAmount, map[string]string{"amount": s})
	}
	if d.IsNegative() {
		return decimal.Zero, payerr.WithDetails(payerr.ErrInvalidAmount, map[string]string{"amount": s})
	}
	return d.Truncate(Scale), nil
}

// Format renders an amount with trailing zeros removed.
func Format(d decimal.Decimal) string {
	return d.Truncate(Scale).String()
}

// ToResourceUnits truncates an amount to whole resource units.
func ToResourceUnits(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(0)
}
