package estimate

import (
	"strconv"

	"github.com/mrz1836/payflow/internal/fee"
)

// Line is one labeled row of a spend breakdown.
type Line struct {
	Label string
	Value string
}

// Breakdown returns the display lines for an estimate. Change is listed only
// when non-zero and the transaction count only when more than one.
func Breakdown(e *SpendEstimate) []Line {
	sym := e.Input.Currency.Symbol

	lines := []Line{
		{Label: "Amount", Value: fee.Format(e.SpendingAmount) + " " + sym},
		{Label: "Network fee", Value: fee.Format(e.FeeAmount) + " " + e.FeeUnit},
	}
	if e.Input.Fee.Mode != "" {
		lines[1].Label = "Network fee (" + string(e.Input.Fee.Mode) + ")"
	}
	if !e.PlatformFee.IsZero() {
		lines = append(lines, Line{Label: "Platform fee", Value: fee.Format(e.PlatformFee) + " " + sym})
	}
	if e.HasChange() {
		lines = append(lines, Line{Label: "Change", Value: fee.Format(e.Change) + " " + sym})
	}
	if e.TransactionCount > 1 {
		lines = append(lines, Line{Label: "Transactions", Value: strconv.Itoa(e.TransactionCount)})
	}
	lines = append(lines, Line{Label: "Total", Value: fee.Format(e.Total()) + " " + sym})
	return lines
}
