// Package currency provides the static currency registry used by the send flow.
package currency

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// Family identifies how fees are charged for a currency.
type Family string

// Fee families.
const (
	FamilyUTXO            Family = "utxo"
	FamilyAccountResource Family = "account-resource"
	FamilyFixed           Family = "fixed"
	FamilyNone            Family = "none"
)

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	switch f {
	case FamilyUTXO, FamilyAccountResource, FamilyFixed, FamilyNone:
		return true
	default:
		return false
	}
}

// HasFeeMarket reports whether the ledger publishes fee presets for the family.
func (f Family) HasFeeMarket() bool {
	return f == FamilyUTXO || f == FamilyAccountResource
}

// Currency is an immutable registry entry.
type Currency struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Family   Family `yaml:"family"`
	Native   string `yaml:"native"`
	FixedFee string `yaml:"fixed_fee,omitempty"`
}

// String returns the display symbol.
func (c *Currency) String() string {
	return c.Symbol
}

// maxSuggestionDistance bounds "did you mean" suggestions.
const maxSuggestionDistance = 2

//go:embed currencies.yaml
var embeddedRegistry []byte

// Registry maps internal names and display symbols to currencies.
type Registry struct {
	ordered  []*Currency
	byName   map[string]*Currency
	bySymbol map[string]*Currency
}

type registryFile struct {
	Currencies []*Currency `yaml:"currencies"`
}

// Parse builds a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing currency registry: %w", err)
	}

	r := &Registry{
		byName:   make(map[string]*Currency, len(f.Currencies)),
		bySymbol: make(map[string]*Currency, len(f.Currencies)),
	}
	for _, c := range f.Currencies {
		if c.Name == "" || c.Symbol == "" {
			return nil, fmt.Errorf("currency registry entry missing name or symbol: %+v", *c)
		}
		if !c.Family.Valid() {
			return nil, fmt.Errorf("currency %s: unknown fee family %q", c.Name, c.Family)
		}
		name := strings.ToLower(c.Name)
		sym := strings.ToUpper(c.Symbol)
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate currency name %q", c.Name)
		}
		if _, dup := r.bySymbol[sym]; dup {
			return nil, fmt.Errorf("duplicate currency symbol %q", c.Symbol)
		}
		if c.Native == "" {
			c.Native = c.Symbol
		}
		r.byName[name] = c
		r.bySymbol[sym] = c
		r.ordered = append(r.ordered, c)
	}
	return r, nil
}

// Default returns the embedded registry.
func Default() *Registry {
	r, err := Parse(embeddedRegistry)
	if err != nil {
		panic(err)
	}
	return r
}

// All returns every currency in registry order.
func (r *Registry) All() []*Currency {
	out := make([]*Currency, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Lookup resolves a currency by internal name or display symbol, case-insensitively.
func (r *Registry) Lookup(s string) (*Currency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, payerr.ErrCurrencyRequired
	}
	if c, ok := r.bySymbol[strings.ToUpper(s)]; ok {
		return c, nil
	}
	if c, ok := r.byName[strings.ToLower(s)]; ok {
		return c, nil
	}

	err := payerr.WithDetails(payerr.ErrUnknownCurrency, map[string]string{"currency": s})
	if suggestions := r.Suggest(s); len(suggestions) > 0 {
		err = payerr.WithSuggestion(err, fmt.Sprintf("did you mean %s?", strings.Join(suggestions, " or ")))
	}
	return nil, err
}

// Suggest returns symbols close to s by edit distance, nearest first.
func (r *Registry) Suggest(s string) []string {
	upper := strings.ToUpper(s)
	lower := strings.ToLower(s)

	type candidate struct {
		symbol string
		dist   int
	}
	var cands []candidate
	for _, c := range r.ordered {
		d := levenshtein.ComputeDistance(upper, strings.ToUpper(c.Symbol))
		if nd := levenshtein.ComputeDistance(lower, strings.ToLower(c.Name)); nd < d {
			d = nd
		}
		if d <= maxSuggestionDistance {
			cands = append(cands, candidate{symbol: c.Symbol, dist: d})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.symbol)
	}
	return out
}
