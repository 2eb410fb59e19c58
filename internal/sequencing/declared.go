package sequencing

import (
	"github.com/rgehrsitz/kepay/internal/domain"
)

// DeclaredStrategy follows the metadata carried by the formulas in play: the
// active income formula's deduction order wins, then the phase a component's
// own formula declares for itself, then Final.
type DeclaredStrategy struct{}

func NewDeclaredStrategy() *DeclaredStrategy { return &DeclaredStrategy{} }

func (s *DeclaredStrategy) Name() string { return "declared" }

func (s *DeclaredStrategy) Plan(income *domain.Formula, entries []Entry) Plan {
	plan := Plan{StrategyUsed: s.Name(), Placements: make(map[domain.ComponentKey]Placement, len(entries))}
	placed := make(map[domain.ComponentKey]domain.Phase, len(entries))

	// Components the income order declares keep its listed order; the rest
	// follow in payslip order after them.
	var ranked []domain.ComponentKey
	present := make(map[domain.ComponentKey]bool, len(entries))
	for _, e := range entries {
		present[e.Component] = true
	}
	if income != nil {
		for _, po := range income.DeductionOrder {
			for _, c := range po.Components {
				if present[c] && !containsKey(ranked, c) {
					ranked = append(ranked, c)
					placed[c] = po.Phase
					plan.Placements[c] = PlacedByIncome
				}
			}
		}
	}

	for _, e := range entries {
		if _, done := placed[e.Component]; done {
			continue
		}
		ranked = append(ranked, e.Component)
		if e.Formula != nil {
			if phase, ok := e.Formula.PhaseOf(e.Component); ok {
				placed[e.Component] = phase
				plan.Placements[e.Component] = PlacedByOwn
				continue
			}
		}
		placed[e.Component] = domain.PhaseFinal
		plan.Placements[e.Component] = PlacedByDefault
	}

	plan.Steps = build(placed, ranked)
	return plan
}

// Sequence plans entries with the DeclaredStrategy
func Sequence(income *domain.Formula, entries []Entry) Plan {
	return NewDeclaredStrategy().Plan(income, entries)
}

func containsKey(keys []domain.ComponentKey, k domain.ComponentKey) bool {
	for _, existing := range keys {
		if existing == k {
			return true
		}
	}
	return false
}
