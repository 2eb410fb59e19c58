package domain

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// FormulaType classifies what a formula computes
type FormulaType string

const (
	FormulaTypeIncome    FormulaType = "income"
	FormulaTypeDeduction FormulaType = "deduction"
	FormulaTypeFBT       FormulaType = "fbt"
)

// Category identifies the statutory charge within a formula type.
// The set is open-ended; new categories need no code change.
type Category string

const (
	CategoryPrimary            Category = "primary"
	CategorySecondary          Category = "secondary"
	CategorySocialSecurityFund Category = "social_security_fund"
	CategoryNHIF               Category = "nhif"
	CategorySHIF               Category = "shif"
	CategoryHousingLevy        Category = "housing_levy"
	CategoryFBT                Category = "fbt"
)

// GroupKey is the (type, category) pair formulas are versioned under
type GroupKey struct {
	Type     FormulaType
	Category Category
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s", k.Type, k.Category)
}

// LifecycleState tracks a formula through Draft -> Current -> Superseded
type LifecycleState string

const (
	StateDraft      LifecycleState = "draft"
	StateCurrent    LifecycleState = "current"
	StateSuperseded LifecycleState = "superseded"
)

// Valid reports whether s is a known lifecycle state
func (s LifecycleState) Valid() bool {
	switch s {
	case StateDraft, StateCurrent, StateSuperseded:
		return true
	}
	return false
}

// TierRate is either a PercentageRate or a FixedAmount. The interface is
// sealed so a tier can never carry both; a nil rate is rejected as malformed.
type TierRate interface {
	isTierRate()
	String() string
}

// PercentageRate charges Percent of the slice of the amount inside the tier
type PercentageRate struct {
	Percent decimal.Decimal
}

func (PercentageRate) isTierRate() {}

func (r PercentageRate) String() string { return r.Percent.String() + "%" }

// FixedAmount charges a flat Amount when the amount falls inside the tier
type FixedAmount struct {
	Amount decimal.Decimal
}

func (FixedAmount) isTierRate() {}

func (r FixedAmount) String() string { return "fixed " + r.Amount.StringFixed(2) }

// Tier is one amount range of a formula. AmountTo is an exclusive upper
// bound; nil means the tier is unbounded and is only valid as the last tier.
type Tier struct {
	AmountFrom decimal.Decimal
	AmountTo   *decimal.Decimal
	Rate       TierRate
}

// Contains reports whether amount lies in [AmountFrom, AmountTo)
func (t Tier) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(t.AmountFrom) {
		return false
	}
	return t.AmountTo == nil || amount.LessThan(*t.AmountTo)
}

// ReliefKind decides where in the pipeline a relief applies
type ReliefKind string

const (
	// ReliefPersonal reduces the computed tax
	ReliefPersonal ReliefKind = "personal"
	// ReliefDeductible reduces the taxable base before brackets are evaluated
	ReliefDeductible ReliefKind = "deductible"
)

// ReliefBasis selects the figure a relief percentage is taken of
type ReliefBasis string

const (
	BasisActual        ReliefBasis = "actual"
	BasisBasicBenefits ReliefBasis = "basic_benefits"
)

// Relief is a capped, percentage-based allowance against a computed amount
type Relief struct {
	Kind       ReliefKind
	Percentage decimal.Decimal
	FixedLimit decimal.Decimal
	PercentOf  ReliefBasis
	IsActive   bool
}

// SplitRatio holds independent employee and employer liability percentages.
// They are not shares of one amount and need not sum to 100.
type SplitRatio struct {
	EmployeePercentage decimal.Decimal
	EmployerPercentage decimal.Decimal
}

// DefaultSplitRatio is used when a formula carries no split: the employee
// owes the whole amount and the employer nothing.
func DefaultSplitRatio() SplitRatio {
	return SplitRatio{
		EmployeePercentage: decimal.NewFromInt(100),
		EmployerPercentage: decimal.Zero,
	}
}

// Formula is one versioned rule set for a (type, category)
type Formula struct {
	ID               string
	Type             FormulaType
	Category         Category
	Version          string
	EffectiveFrom    civil.Date
	EffectiveTo      *civil.Date
	Status           LifecycleState
	PersonalRelief   decimal.Decimal
	Relief           *Relief
	SplitRatio       *SplitRatio
	MinimumAmount    *decimal.Decimal
	Tiers            []Tier
	DeductionOrder   []PhaseOrder
	RegulatorySource string
	Notes            string
}

// Key returns the (type, category) group of the formula
func (f *Formula) Key() GroupKey {
	return GroupKey{Type: f.Type, Category: f.Category}
}

// IsCurrent reports whether the formula is the current one of its group
func (f *Formula) IsCurrent() bool {
	return f.Status == StateCurrent
}

// Covers reports whether date falls inside [EffectiveFrom, EffectiveTo)
func (f *Formula) Covers(date civil.Date) bool {
	if date.Before(f.EffectiveFrom) {
		return false
	}
	return f.EffectiveTo == nil || date.Before(*f.EffectiveTo)
}

// IsOpenEnded reports whether the effective window has no end
func (f *Formula) IsOpenEnded() bool {
	return f.EffectiveTo == nil
}

// Split returns the formula's split ratio or the default
func (f *Formula) Split() SplitRatio {
	if f.SplitRatio == nil {
		return DefaultSplitRatio()
	}
	return *f.SplitRatio
}

// PhaseOf returns the phase this formula's deduction order assigns to
// component, if any.
func (f *Formula) PhaseOf(component ComponentKey) (Phase, bool) {
	for _, po := range f.DeductionOrder {
		for _, c := range po.Components {
			if c == component {
				return po.Phase, true
			}
		}
	}
	return "", false
}

// Label is a short human readable identifier used in logs and reports
func (f *Formula) Label() string {
	return fmt.Sprintf("%s %q (%s)", f.Key(), f.Version, f.ID)
}

// DeepCopy returns a copy sharing no mutable state with f
func (f *Formula) DeepCopy() *Formula {
	if f == nil {
		return nil
	}
	c := *f
	if f.EffectiveTo != nil {
		to := *f.EffectiveTo
		c.EffectiveTo = &to
	}
	if f.Relief != nil {
		r := *f.Relief
		c.Relief = &r
	}
	if f.SplitRatio != nil {
		s := *f.SplitRatio
		c.SplitRatio = &s
	}
	if f.MinimumAmount != nil {
		m := *f.MinimumAmount
		c.MinimumAmount = &m
	}
	if f.Tiers != nil {
		c.Tiers = make([]Tier, len(f.Tiers))
		for i, t := range f.Tiers {
			c.Tiers[i] = t
			if t.AmountTo != nil {
				to := *t.AmountTo
				c.Tiers[i].AmountTo = &to
			}
		}
	}
	if f.DeductionOrder != nil {
		c.DeductionOrder = make([]PhaseOrder, len(f.DeductionOrder))
		for i, po := range f.DeductionOrder {
			c.DeductionOrder[i] = PhaseOrder{
				Phase:      po.Phase,
				Components: append([]ComponentKey(nil), po.Components...),
			}
		}
	}
	return &c
}

// Newer reports whether f sorts after other by (EffectiveFrom, Version).
// Versions are compared as plain strings.
func (f *Formula) Newer(other *Formula) bool {
	if f.EffectiveFrom.After(other.EffectiveFrom) {
		return true
	}
	if f.EffectiveFrom.Before(other.EffectiveFrom) {
		return false
	}
	return f.Version > other.Version
}
