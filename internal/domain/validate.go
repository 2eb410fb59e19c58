package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// OrderedTiers returns a copy of f's tiers sorted by AmountFrom, after
// checking that they form one contiguous, non-overlapping schedule. Gaps and
// overlaps make coverage ambiguous and are reported, never smoothed over.
func (f *Formula) OrderedTiers() ([]Tier, error) {
	if len(f.Tiers) == 0 {
		return nil, f.malformed(-1, "formula has no tiers")
	}

	tiers := make([]Tier, len(f.Tiers))
	copy(tiers, f.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].AmountFrom.LessThan(tiers[j].AmountFrom)
	})

	for i, t := range tiers {
		switch rate := t.Rate.(type) {
		case nil:
			return nil, f.malformed(i, "tier has neither a percentage rate nor a fixed amount")
		case PercentageRate:
			if rate.Percent.IsNegative() {
				return nil, f.malformed(i, "negative rate percentage")
			}
		case FixedAmount:
			if rate.Amount.IsNegative() {
				return nil, f.malformed(i, "negative fixed amount")
			}
		}
		if t.AmountFrom.IsNegative() {
			return nil, f.malformed(i, "negative amount_from")
		}
		if t.AmountTo == nil {
			if i != len(tiers)-1 {
				return nil, f.malformed(i, "only the last tier may be unbounded")
			}
			continue
		}
		if !t.AmountTo.GreaterThan(t.AmountFrom) {
			return nil, f.malformed(i, fmt.Sprintf("amount_to %s must exceed amount_from %s", t.AmountTo, t.AmountFrom))
		}
		if i+1 < len(tiers) {
			next := tiers[i+1].AmountFrom
			switch {
			case next.GreaterThan(*t.AmountTo):
				return nil, f.malformed(i, fmt.Sprintf("gap between %s and %s", t.AmountTo, next))
			case next.LessThan(*t.AmountTo):
				return nil, f.malformed(i, fmt.Sprintf("overlaps next tier starting at %s", next))
			}
		}
	}
	return tiers, nil
}

// Validate checks everything about a formula that does not depend on its siblings
func (f *Formula) Validate() error {
	if f.Type == "" {
		return f.malformed(-1, "type is required")
	}
	if f.Category == "" {
		return f.malformed(-1, "category is required")
	}
	if f.Version == "" {
		return f.malformed(-1, "version is required")
	}
	if f.Status != "" && !f.Status.Valid() {
		return f.malformed(-1, fmt.Sprintf("unknown status %q", f.Status))
	}
	if f.EffectiveTo != nil && !f.EffectiveTo.After(f.EffectiveFrom) {
		return f.malformed(-1, "effective_to must be after effective_from")
	}
	if f.PersonalRelief.IsNegative() {
		return f.malformed(-1, "personal_relief cannot be negative")
	}
	if r := f.Relief; r != nil {
		if r.Kind != ReliefPersonal && r.Kind != ReliefDeductible {
			return f.malformed(-1, fmt.Sprintf("unknown relief kind %q", r.Kind))
		}
		if r.PercentOf != BasisActual && r.PercentOf != BasisBasicBenefits {
			return f.malformed(-1, fmt.Sprintf("unknown relief basis %q", r.PercentOf))
		}
		if r.Percentage.IsNegative() || r.FixedLimit.IsNegative() {
			return f.malformed(-1, "relief percentage and limit cannot be negative")
		}
	}
	if s := f.SplitRatio; s != nil {
		if s.EmployeePercentage.IsNegative() || s.EmployerPercentage.IsNegative() {
			return f.malformed(-1, "split percentages cannot be negative")
		}
	}
	if f.MinimumAmount != nil && f.MinimumAmount.LessThan(decimal.Zero) {
		return f.malformed(-1, "minimum_amount cannot be negative")
	}
	seen := make(map[ComponentKey]Phase)
	for _, po := range f.DeductionOrder {
		if !po.Phase.Valid() {
			return f.malformed(-1, fmt.Sprintf("unknown deduction phase %q", po.Phase))
		}
		for _, c := range po.Components {
			if prev, dup := seen[c]; dup {
				return f.malformed(-1, fmt.Sprintf("component %s declared in both %s and %s", c, prev, po.Phase))
			}
			seen[c] = po.Phase
		}
	}
	_, err := f.OrderedTiers()
	return err
}

func (f *Formula) malformed(tier int, reason string) error {
	return &MalformedFormulaDataError{
		FormulaID: f.ID,
		Version:   f.Version,
		TierIndex: tier,
		Reason:    reason,
	}
}
