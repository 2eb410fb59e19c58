package sequencing

import (
	"fmt"

	"github.com/rgehrsitz/kepay/internal/domain"
)

// CustomStrategy applies a caller-supplied phase assignment instead of the
// income formula's, for what-if runs such as pricing a December payslip
// under the following year's ordering. Components the assignment omits go to
// their own formula's phase, else Final. An invalid assignment falls back to
// the declared strategy.
type CustomStrategy struct {
	Order []domain.PhaseOrder
}

func NewCustomStrategy(order []domain.PhaseOrder) *CustomStrategy {
	return &CustomStrategy{Order: order}
}

func (s *CustomStrategy) Name() string { return "custom" }

func (s *CustomStrategy) Plan(income *domain.Formula, entries []Entry) Plan {
	if err := validateOrder(s.Order); err != nil {
		plan := NewDeclaredStrategy().Plan(income, entries)
		plan.StrategyUsed = "custom->declared_fallback"
		plan.Notes = append(plan.Notes, fmt.Sprintf("invalid custom order (%v); falling back to declared", err))
		return plan
	}

	// Run the declared strategy against a synthetic income formula carrying
	// the custom order, then relabel what it placed.
	synthetic := &domain.Formula{DeductionOrder: s.Order}
	plan := NewDeclaredStrategy().Plan(synthetic, entries)
	plan.StrategyUsed = s.Name()
	for c, how := range plan.Placements {
		if how == PlacedByIncome {
			plan.Placements[c] = PlacedByCustom
		}
	}
	return plan
}

func validateOrder(order []domain.PhaseOrder) error {
	if len(order) == 0 {
		return fmt.Errorf("empty order")
	}
	seen := map[domain.ComponentKey]bool{}
	for _, po := range order {
		if !po.Phase.Valid() {
			return fmt.Errorf("unknown phase %q", po.Phase)
		}
		for _, c := range po.Components {
			if seen[c] {
				return fmt.Errorf("component %s listed twice", c)
			}
			seen[c] = true
		}
	}
	return nil
}
