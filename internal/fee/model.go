package fee

import (
	"github.com/shopspring/decimal"

	"github.com/mrz1836/payflow/internal/currency"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// Mode selects how an account-resource chain pays for a transfer.
type Mode string

// Fee modes for account-resource currencies.
const (
	ModeBorrow Mode = "borrow"
	ModeEnergy Mode = "energy"
	ModeBurn   Mode = "burn"
)

// DefaultMode is the mode a new session starts with.
const DefaultMode = ModeBorrow

// UnitEnergy is the unit label for energy-denominated fees.
const UnitEnergy = "ENERGY"

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeBorrow || m == ModeEnergy || m == ModeBurn
}

// SelectMode returns the mode that results from the user asking for requested.
// Energy cannot be chosen when the wallet has no energy; the current mode is kept.
func SelectMode(current, requested Mode, availableEnergy decimal.Decimal) Mode {
	if !requested.Valid() {
		return current
	}
	if requested == ModeEnergy && !availableEnergy.IsPositive() {
		return current
	}
	return requested
}

// Selection is the user's fee choice: a preset name, or custom with a raw value.
type Selection struct {
	Preset PresetName
	Custom decimal.Decimal
}

// Normalized is a fee resolved to a value and unit.
type Normalized struct {
	Value decimal.Decimal
	Unit  string
	Mode  Mode
	// InSentCurrency is true when the fee is paid out of the currency being sent.
	InSentCurrency bool
}

// Normalize resolves a fee selection for cur.
func Normalize(cur *currency.Currency, mode Mode, sel Selection, presets *PresetSet) (Normalized, error) {
	switch cur.Family {
	case currency.FamilyNone:
		return Normalized{Value: decimal.Zero, Unit: cur.Symbol, InSentCurrency: true}, nil

	case currency.FamilyFixed:
		v := decimal.Zero
		if cur.FixedFee != "" {
			parsed, err := decimal.NewFromString(cur.FixedFee)
			if err != nil {
				return Normalized{}, payerr.Wrap(payerr.ErrInvalidFee, "fixed fee for %s", cur.Symbol)
			}
			v = parsed
		}
		return Normalized{Value: v, Unit: cur.Native, InSentCurrency: cur.Native == cur.Symbol}, nil

	case currency.FamilyUTXO:
		v, err := rawValue(sel, presets)
		if err != nil {
			return Normalized{}, err
		}
		return Normalized{Value: v, Unit: cur.Symbol, InSentCurrency: true}, nil

	case currency.FamilyAccountResource:
		if !mode.Valid() {
			return Normalized{}, payerr.WithDetails(payerr.ErrInvalidFee, map[string]string{"mode": string(mode)})
		}
		v, err := rawValue(sel, presets)
		if err != nil {
			return Normalized{}, err
		}
		switch mode {
		case ModeEnergy:
			return Normalized{Value: ToResourceUnits(v), Unit: UnitEnergy, Mode: mode}, nil
		case ModeBurn:
			return Normalized{Value: v, Unit: cur.Native, Mode: mode, InSentCurrency: cur.Native == cur.Symbol}, nil
		default:
			return Normalized{Value: v, Unit: cur.Symbol, Mode: mode, InSentCurrency: true}, nil
		}
	}

	return Normalized{}, payerr.WithDetails(payerr.ErrInvalidFee, map[string]string{"family": string(cur.Family)})
}

func rawValue(sel Selection, presets *PresetSet) (decimal.Decimal, error) {
	if sel.Preset == "" || sel.Preset == PresetCustom {
		if sel.Custom.IsNegative() {
			return decimal.Zero, payerr.WithDetails(payerr.ErrInvalidFee, map[string]string{"fee": sel.Custom.String()})
		}
		return sel.Custom, nil
	}
	v, ok := presets.Lookup(sel.Preset)
	if !ok {
		return decimal.Zero, payerr.WithDetails(payerr.ErrInvalidFee, map[string]string{"preset": string(sel.Preset)})
	}
	return v, nil
}
