package compare

import (
	"sort"

	"github.com/rgehrsitz/kepay/internal/domain"
)

// Deduction orders of the two PAYE regimes. Before 27 December 2024 SHIF and
// the housing levy were taken after PAYE; from then on they reduce taxable pay.
var (
	OrderPre2025 = []domain.PhaseOrder{
		{Phase: domain.PhaseBeforeTax, Components: []domain.ComponentKey{domain.ComponentNSSF}},
		{Phase: domain.PhaseAfterTax, Components: []domain.ComponentKey{domain.ComponentPAYE}},
		{Phase: domain.PhaseAfterPaye, Components: []domain.ComponentKey{domain.ComponentNHIF, domain.ComponentSHIF, domain.ComponentHousingLevy}},
	}
	Order2025 = []domain.PhaseOrder{
		{Phase: domain.PhaseBeforeTax, Components: []domain.ComponentKey{domain.ComponentNSSF, domain.ComponentSHIF, domain.ComponentHousingLevy}},
		{Phase: domain.PhaseAfterTax, Components: []domain.ComponentKey{domain.ComponentPAYE}},
	}
)

var presets = map[string]Alternative{
	"order-2025": {
		Name:        "order-2025",
		Description: "SHIF and housing levy deducted before PAYE",
		Order:       Order2025,
	},
	"order-pre-2025": {
		Name:        "order-pre-2025",
		Description: "SHIF and housing levy deducted after PAYE",
		Order:       OrderPre2025,
	},
}

// Preset returns a named built-in alternative
func Preset(name string) (Alternative, bool) {
	a, ok := presets[name]
	return a, ok
}

// PresetNames lists the built-in alternatives
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
