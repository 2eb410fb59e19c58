package calculation

import (
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TierContribution is the audit line for one tier of an evaluation
type TierContribution struct {
	Index  int
	Tier   domain.Tier
	Slice  decimal.Decimal // portion of the amount charged at a percentage; zero for fixed tiers
	Amount decimal.Decimal
}

// Evaluation is the result of running an amount through a formula's tiers
type Evaluation struct {
	Amount        decimal.Decimal
	Total         decimal.Decimal
	Contributions []TierContribution
}

// Evaluate runs amount through f's tiers and returns the total charge.
//
// A percentage tier charges rate% of the part of amount inside the tier,
// capped at the tier width. A fixed tier charges its flat value only when
// amount falls in [from, to). Evaluation stops at the first tier that starts
// above amount, or exactly at amount for a percentage tier. Each tier's
// contribution is rounded half-up to cents; the total is their plain sum.
//
// Progressive brackets and flat rates use this one function. A flat rate is
// simply one unbounded tier.
func Evaluate(f *domain.Formula, amount decimal.Decimal) (decimal.Decimal, error) {
	ev, err := EvaluateDetailed(f, amount)
	if err != nil {
		return decimal.Zero, err
	}
	return ev.Total, nil
}

// EvaluateDetailed is Evaluate with the per-tier breakdown
func EvaluateDetailed(f *domain.Formula, amount decimal.Decimal) (Evaluation, error) {
	tiers, err := f.OrderedTiers()
	if err != nil {
		return Evaluation{}, err
	}
	return evaluateOrdered(tiers, amount), nil
}

// EvaluateTiers evaluates a bare tier schedule
func EvaluateTiers(tiers []domain.Tier, amount decimal.Decimal) (decimal.Decimal, error) {
	return Evaluate(&domain.Formula{ID: "adhoc", Version: "adhoc", Tiers: tiers}, amount)
}

// EvaluateFlat charges percent of amount through a single unbounded tier
func EvaluateFlat(amount, percent decimal.Decimal) decimal.Decimal {
	total, _ := EvaluateTiers([]domain.Tier{{AmountFrom: decimal.Zero, Rate: domain.PercentageRate{Percent: percent}}}, amount)
	return total
}

func evaluateOrdered(tiers []domain.Tier, amount decimal.Decimal) Evaluation {
	ev := Evaluation{Amount: amount, Total: decimal.Zero}
	if !amount.IsPositive() {
		return ev
	}

loop:
	for i, tier := range tiers {
		if amount.LessThan(tier.AmountFrom) {
			break
		}

		line := TierContribution{Index: i, Tier: tier, Slice: decimal.Zero}
		switch rate := tier.Rate.(type) {
		case domain.PercentageRate:
			if amount.Equal(tier.AmountFrom) {
				break loop
			}
			slice := amount.Sub(tier.AmountFrom)
			if tier.AmountTo != nil {
				slice = decimal.Min(slice, tier.AmountTo.Sub(tier.AmountFrom))
			}
			line.Slice = slice
			line.Amount = percentOf(slice, rate.Percent)
		case domain.FixedAmount:
			if !tier.Contains(amount) {
				continue
			}
			line.Amount = rate.Amount.Round(2)
		}

		ev.Total = ev.Total.Add(line.Amount)
		ev.Contributions = append(ev.Contributions, line)
	}
	return ev
}

// percentOf returns amount × percent / 100 rounded half-up to cents
func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(2)
}
