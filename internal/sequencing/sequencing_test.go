package sequencing

import (
	"testing"

	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pre2025Income() *domain.Formula {
	return &domain.Formula{
		ID:       "paye-2023",
		Type:     domain.FormulaTypeIncome,
		Category: domain.CategoryPrimary,
		Version:  "2023 Onwards",
		DeductionOrder: []domain.PhaseOrder{
			{Phase: domain.PhaseBeforeTax, Components: []domain.ComponentKey{domain.ComponentNSSF}},
			{Phase: domain.PhaseAfterTax, Components: []domain.ComponentKey{domain.ComponentPAYE}},
			{Phase: domain.PhaseAfterPaye, Components: []domain.ComponentKey{domain.ComponentNHIF, domain.ComponentSHIF, domain.ComponentHousingLevy}},
		},
	}
}

func income2025() *domain.Formula {
	return &domain.Formula{
		ID:       "paye-2025",
		Type:     domain.FormulaTypeIncome,
		Category: domain.CategoryPrimary,
		Version:  "2025 Onwards",
		DeductionOrder: []domain.PhaseOrder{
			{Phase: domain.PhaseBeforeTax, Components: []domain.ComponentKey{domain.ComponentNSSF, domain.ComponentSHIF, domain.ComponentHousingLevy}},
			{Phase: domain.PhaseAfterTax, Components: []domain.ComponentKey{domain.ComponentPAYE}},
		},
	}
}

func payslipEntries() []Entry {
	return []Entry{
		{Component: domain.ComponentPAYE},
		{Component: domain.ComponentHousingLevy},
		{Component: domain.ComponentSHIF},
		{Component: domain.ComponentNSSF},
	}
}

func TestSequence_RegimeOrdering(t *testing.T) {
	tests := []struct {
		name     string
		income   *domain.Formula
		expected []Step
	}{
		{
			name:   "pre-2025 takes SHIF and housing levy after PAYE",
			income: pre2025Income(),
			expected: []Step{
				{Phase: domain.PhaseBeforeTax, Components: []domain.ComponentKey{domain.ComponentNSSF}},
				{Phase: domain.PhaseAfterTax, Components: []domain.ComponentKey{domain.ComponentPAYE}},
				{Phase: domain.PhaseAfterPaye, Components: []domain.ComponentKey{domain.ComponentSHIF, domain.ComponentHousingLevy}},
			},
		},
		{
			name:   "2025 moves SHIF and housing levy before tax",
			income: income2025(),
			expected: []Step{
				{Phase: domain.PhaseBeforeTax, Components: []domain.ComponentKey{domain.ComponentNSSF, domain.ComponentSHIF, domain.ComponentHousingLevy}},
				{Phase: domain.PhaseAfterTax, Components: []domain.ComponentKey{domain.ComponentPAYE}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Sequence(tt.income, payslipEntries())
			assert.Equal(t, tt.expected, plan.Steps)
			assert.Equal(t, "declared", plan.StrategyUsed)
			for _, c := range plan.Components() {
				assert.Equal(t, PlacedByIncome, plan.Placements[c], "component %s", c)
			}
		})
	}
}

func TestSequence_FallbackPlacement(t *testing.T) {
	own := &domain.Formula{
		ID: "shif-2024",
		DeductionOrder: []domain.PhaseOrder{
			{Phase: domain.PhaseAfterPaye, Components: []domain.ComponentKey{domain.ComponentSHIF}},
		},
	}
	income := &domain.Formula{
		DeductionOrder: []domain.PhaseOrder{
			{Phase: domain.PhaseAfterTax, Components: []domain.ComponentKey{domain.ComponentPAYE}},
		},
	}
	entries := []Entry{
		{Component: domain.ComponentFBT, Formula: &domain.Formula{ID: "fbt-2018"}},
		{Component: domain.ComponentSHIF, Formula: own},
		{Component: domain.ComponentPAYE},
	}

	plan := Sequence(income, entries)

	require.Len(t, plan.Steps, 3)
	assert.Equal(t, domain.PhaseAfterTax, plan.Steps[0].Phase)
	assert.Equal(t, domain.PhaseAfterPaye, plan.Steps[1].Phase)
	assert.Equal(t, domain.PhaseFinal, plan.Steps[2].Phase)
	assert.Equal(t, []domain.ComponentKey{domain.ComponentFBT}, plan.Steps[2].Components)

	assert.Equal(t, PlacedByIncome, plan.Placements[domain.ComponentPAYE])
	assert.Equal(t, PlacedByOwn, plan.Placements[domain.ComponentSHIF])
	assert.Equal(t, PlacedByDefault, plan.Placements[domain.ComponentFBT])
}

func TestSequence_SkipsAbsentAndEmpty(t *testing.T) {
	plan := Sequence(pre2025Income(), []Entry{{Component: domain.ComponentPAYE}})

	require.Len(t, plan.Steps, 1)
	assert.Equal(t, domain.PhaseAfterTax, plan.Steps[0].Phase)

	phase, ok := plan.PhaseOf(domain.ComponentNSSF)
	assert.False(t, ok)
	assert.Empty(t, phase)
}

func TestSequence_NoIncomeFormula(t *testing.T) {
	plan := Sequence(nil, []Entry{{Component: domain.ComponentHousingLevy}, {Component: domain.ComponentNSSF}})

	require.Len(t, plan.Steps, 1)
	assert.Equal(t, domain.PhaseFinal, plan.Steps[0].Phase)
	assert.Equal(t, []domain.ComponentKey{domain.ComponentHousingLevy, domain.ComponentNSSF}, plan.Steps[0].Components)
}

func TestSequence_IsPure(t *testing.T) {
	income := income2025()
	entries := payslipEntries()

	first := Sequence(income, entries)
	second := Sequence(income, entries)

	assert.Equal(t, first, second)
	assert.Len(t, income.DeductionOrder, 2, "income formula must not be modified")
}

func TestCreateStrategy(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		expected string
	}{
		{"empty defaults to declared", "", "declared"},
		{"declared", "declared", "declared"},
		{"custom", "custom", "custom"},
		{"unknown falls back", "alphabetical", "declared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := CreateStrategy(tt.strategy, nil)
			require.NotNil(t, s)
			assert.Equal(t, tt.expected, s.Name())
		})
	}
}

func TestCustomStrategy_OverridesIncomeOrder(t *testing.T) {
	custom := NewCustomStrategy(income2025().DeductionOrder)

	plan := custom.Plan(pre2025Income(), payslipEntries())

	assert.Equal(t, "custom", plan.StrategyUsed)
	phase, ok := plan.PhaseOf(domain.ComponentSHIF)
	require.True(t, ok)
	assert.Equal(t, domain.PhaseBeforeTax, phase)
	assert.Equal(t, PlacedByCustom, plan.Placements[domain.ComponentSHIF])
}

func TestCustomStrategy_InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		order []domain.PhaseOrder
	}{
		{"empty", nil},
		{"unknown phase", []domain.PhaseOrder{{Phase: "sometime", Components: []domain.ComponentKey{domain.ComponentPAYE}}}},
		{"duplicate component", []domain.PhaseOrder{
			{Phase: domain.PhaseBeforeTax, Components: []domain.ComponentKey{domain.ComponentSHIF}},
			{Phase: domain.PhaseAfterPaye, Components: []domain.ComponentKey{domain.ComponentSHIF}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := NewCustomStrategy(tt.order).Plan(pre2025Income(), payslipEntries())
			assert.Equal(t, "custom->declared_fallback", plan.StrategyUsed)
			require.Len(t, plan.Notes, 1)
			assert.Contains(t, plan.Notes[0], "falling back")

			phase, _ := plan.PhaseOf(domain.ComponentSHIF)
			assert.Equal(t, domain.PhaseAfterPaye, phase)
		})
	}
}

func TestCreateEntries(t *testing.T) {
	f := &domain.Formula{ID: "nssf-2025"}
	entries := CreateEntries(
		[]domain.ComponentKey{domain.ComponentPAYE, domain.ComponentNSSF},
		map[domain.ComponentKey]*domain.Formula{domain.ComponentNSSF: f},
	)

	require.Len(t, entries, 2)
	assert.Equal(t, domain.ComponentPAYE, entries[0].Component)
	assert.Nil(t, entries[0].Formula)
	assert.Same(t, f, entries[1].Formula)
}
