package fee

import "github.com/shopspring/decimal"

// PresetName is a named fee tier.
type PresetName string

// Known preset names.
const (
	PresetMinimum PresetName = "minimum"
	PresetAverage PresetName = "average"
	PresetMaximum PresetName = "maximum"
	PresetCustom  PresetName = "custom"
)

// Preset is one server-suggested fee tier.
type Preset struct {
	Name  PresetName
	Value decimal.Decimal
}

// PresetSet is the ordered list of presets offered for a currency.
// Custom is always the last entry.
type PresetSet struct {
	Presets     []Preset
	Unit        string
	Default     PresetName
	CustomOnly  bool
	Unavailable bool
}

// CustomOnlySet returns a set offering only the custom tier.
func CustomOnlySet(unit string) *PresetSet {
	return &PresetSet{
		Presets:    []Preset{{Name: PresetCustom}},
		Unit:       unit,
		Default:    PresetCustom,
		CustomOnly: true,
	}
}

// NewPresetSet builds a set from server presets in server order.
// The default is average when present, else the first server preset.
func NewPresetSet(server []Preset, unit string) *PresetSet {
	if len(server) == 0 {
		return CustomOnlySet(unit)
	}

	set := &PresetSet{Unit: unit, Default: server[0].Name}
	for _, p := range server {
		if p.Name == PresetCustom {
			continue
		}
		if p.Name == PresetAverage {
			set.Default = PresetAverage
		}
		set.Presets = append(set.Presets, p)
	}
	if set.Default == PresetCustom && len(set.Presets) > 0 {
		set.Default = set.Presets[0].Name
	}
	set.Presets = append(set.Presets, Preset{Name: PresetCustom})
	if len(set.Presets) == 1 {
		set.Default = PresetCustom
		set.CustomOnly = true
	}
	return set
}

// Lookup returns the preset value for name.
func (s *PresetSet) Lookup(name PresetName) (decimal.Decimal, bool) {
	if s == nil {
		return decimal.Zero, false
	}
	for _, p := range s.Presets {
		if p.Name == name && name != PresetCustom {
			return p.Value, true
		}
	}
	return decimal.Zero, false
}

// Names returns the preset names in display order.
func (s *PresetSet) Names() []PresetName {
	if s == nil {
		return nil
	}
	out := make([]PresetName, 0, len(s.Presets))
	for _, p := range s.Presets {
		out = append(out, p.Name)
	}
	return out
}

// Has reports whether name is offered by the set. Custom is always offered.
func (s *PresetSet) Has(name PresetName) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Presets {
		if p.Name == name {
			return true
		}
	}
	return false
}
