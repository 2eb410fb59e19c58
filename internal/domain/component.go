package domain

import "sort"

// ComponentKey names a payslip line such as "paye" or "housing_levy"
type ComponentKey string

const (
	ComponentPAYE        ComponentKey = "paye"
	ComponentNSSF        ComponentKey = "nssf"
	ComponentNHIF        ComponentKey = "nhif"
	ComponentSHIF        ComponentKey = "shif"
	ComponentHousingLevy ComponentKey = "housing_levy"
	ComponentFBT         ComponentKey = "fbt"
)

// Phase is a calculation stage on a payslip
type Phase string

const (
	// PhaseBeforeTax deductions reduce the taxable base
	PhaseBeforeTax Phase = "before_tax"
	// PhaseAfterTax holds the income tax itself
	PhaseAfterTax Phase = "after_tax"
	// PhaseAfterPaye deductions are taken from gross once PAYE is known
	PhaseAfterPaye Phase = "after_paye"
	// PhaseFinal is where undeclared components land
	PhaseFinal Phase = "final"
)

// Phases lists every phase in calculation order
var Phases = []Phase{PhaseBeforeTax, PhaseAfterTax, PhaseAfterPaye, PhaseFinal}

// Rank returns the position of p in calculation order, or -1 if unknown
func (p Phase) Rank() int {
	for i, known := range Phases {
		if known == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known phase
func (p Phase) Valid() bool { return p.Rank() >= 0 }

// PhaseOrder declares which components a formula places in a phase
type PhaseOrder struct {
	Phase      Phase
	Components []ComponentKey
}

// ComponentRegistry maps payslip component keys to the formula group that
// computes them. Register entries during setup; lookups are read-only
// afterwards and safe for concurrent use.
type ComponentRegistry struct {
	entries map[ComponentKey]GroupKey
}

// NewComponentRegistry creates an empty registry
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{entries: make(map[ComponentKey]GroupKey)}
}

// DefaultComponentRegistry knows the Kenyan statutory components
func DefaultComponentRegistry() *ComponentRegistry {
	r := NewComponentRegistry()
	r.Register(ComponentPAYE, FormulaTypeIncome, CategoryPrimary)
	r.Register(ComponentNSSF, FormulaTypeDeduction, CategorySocialSecurityFund)
	r.Register(ComponentNHIF, FormulaTypeDeduction, CategoryNHIF)
	r.Register(ComponentSHIF, FormulaTypeDeduction, CategorySHIF)
	r.Register(ComponentHousingLevy, FormulaTypeDeduction, CategoryHousingLevy)
	r.Register(ComponentFBT, FormulaTypeFBT, CategoryFBT)
	return r
}

// Register binds key to the (type, category) group, replacing any earlier binding
func (r *ComponentRegistry) Register(key ComponentKey, t FormulaType, c Category) {
	r.entries[key] = GroupKey{Type: t, Category: c}
}

// Lookup returns the formula group for key
func (r *ComponentRegistry) Lookup(key ComponentKey) (GroupKey, bool) {
	g, ok := r.entries[key]
	return g, ok
}

// ComponentFor returns the component key bound to group, if any
func (r *ComponentRegistry) ComponentFor(group GroupKey) (ComponentKey, bool) {
	for _, k := range r.Keys() {
		if r.entries[k] == group {
			return k, true
		}
	}
	return "", false
}

// Keys returns the registered component keys in sorted order
func (r *ComponentRegistry) Keys() []ComponentKey {
	keys := make([]ComponentKey, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
