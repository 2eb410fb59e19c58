package calculation

import (
	"errors"
	"testing"

	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paye2021Tiers() []domain.Tier {
	return []domain.Tier{
		{AmountFrom: dec("0"), AmountTo: decPtr("24000"), Rate: pct("10")},
		{AmountFrom: dec("24000"), AmountTo: decPtr("32333"), Rate: pct("25")},
		{AmountFrom: dec("32333"), Rate: pct("30")},
	}
}

func TestEvaluate_Progressive(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		expected string
	}{
		{"zero", "0", "0"},
		{"negative", "-100", "0"},
		{"inside first tier", "10000", "1000"},
		{"exactly at second tier start", "24000", "2400"},
		{"one cent into second tier", "24000.01", "2400.00"},
		{"inside second tier", "30000", "3900"},
		{"into top tier", "50000", "9783.35"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateTiers(paye2021Tiers(), dec(tt.amount))
			require.NoError(t, err)
			assertDecimal(t, tt.expected, got)
		})
	}
}

func TestEvaluate_FixedTiers(t *testing.T) {
	c := loadCatalog(t)
	nhif, ok := c.Get("nhif-2015")
	require.True(t, ok)

	tests := []struct {
		amount   string
		expected string
	}{
		{"5999.99", "150"},
		{"6000", "300"},
		{"7999.99", "300"},
		{"50000", "1200"},
		{"150000", "1700"},
		{"0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := Evaluate(&nhif, dec(tt.amount))
			require.NoError(t, err)
			assertDecimal(t, tt.expected, got)
		})
	}
}

func TestEvaluate_UnorderedTiersAreSorted(t *testing.T) {
	tiers := paye2021Tiers()
	tiers[0], tiers[2] = tiers[2], tiers[0]

	got, err := EvaluateTiers(tiers, dec("50000"))
	require.NoError(t, err)
	assertDecimal(t, "9783.35", got)
}

func TestEvaluate_RoundsEachTier(t *testing.T) {
	tiers := []domain.Tier{
		{AmountFrom: dec("0"), AmountTo: decPtr("0.05"), Rate: pct("10")},
		{AmountFrom: dec("0.05"), Rate: pct("10")},
	}

	// 0.005 + 0.005 rounds to 0.01 + 0.01, not to a rounded 0.01 total
	got, err := EvaluateTiers(tiers, dec("0.10"))
	require.NoError(t, err)
	assertDecimal(t, "0.02", got)

	assertDecimal(t, "0.01", EvaluateFlat(dec("0.10"), dec("10")))
}

func TestEvaluateFlat_MatchesSingleTierFormula(t *testing.T) {
	c := loadCatalog(t)
	shif, ok := c.Get("shif-2024")
	require.True(t, ok)

	for _, amount := range []string{"1", "300", "10909.09", "50000", "250000.55"} {
		progressive, err := Evaluate(&shif, dec(amount))
		require.NoError(t, err)
		flat := EvaluateFlat(dec(amount), dec("2.75"))
		assert.True(t, flat.Equal(progressive), "amount %s: flat %s vs tiered %s", amount, flat, progressive)
	}

	assertDecimal(t, "1375.00", EvaluateFlat(dec("50000"), dec("2.75")))
}

func TestEvaluate_EqualRateTiersMatchFlat(t *testing.T) {
	tiers := []domain.Tier{
		{AmountFrom: dec("0"), AmountTo: decPtr("8000"), Rate: pct("6")},
		{AmountFrom: dec("8000"), AmountTo: decPtr("72000"), Rate: pct("6")},
		{AmountFrom: dec("72000"), Rate: pct("6")},
	}
	for _, amount := range []string{"100", "7999", "8000", "8001", "36000", "72000", "90000"} {
		got, err := EvaluateTiers(tiers, dec(amount))
		require.NoError(t, err)
		assert.True(t, got.Equal(EvaluateFlat(dec(amount), dec("6"))), "amount %s", amount)
	}
}

func TestEvaluate_Monotonic(t *testing.T) {
	c := loadCatalog(t)
	for _, id := range []string{"paye-2018", "paye-2020-covid", "paye-2021", "paye-2023", "paye-2025", "nssf-2025", "nhif-2015", "shif-2024"} {
		f, ok := c.Get(id)
		require.True(t, ok, id)

		prev := decimal.Zero
		for amount := int64(0); amount <= 1_200_000; amount += 997 {
			got, err := Evaluate(&f, decimal.NewFromInt(amount))
			require.NoError(t, err)
			require.False(t, got.LessThan(prev), "%s decreased at %d: %s < %s", id, amount, got, prev)
			prev = got
		}
	}
}

func TestEvaluateDetailed_Contributions(t *testing.T) {
	f := &domain.Formula{ID: "p", Version: "v", Tiers: paye2021Tiers()}

	ev, err := EvaluateDetailed(f, dec("50000"))
	require.NoError(t, err)
	require.Len(t, ev.Contributions, 3)
	assertDecimal(t, "24000", ev.Contributions[0].Slice)
	assertDecimal(t, "8333", ev.Contributions[1].Slice)
	assertDecimal(t, "2083.25", ev.Contributions[1].Amount)
	assertDecimal(t, "17667", ev.Contributions[2].Slice)
	assertDecimal(t, "9783.35", ev.Total)
}

func TestEvaluate_MalformedTiers(t *testing.T) {
	tests := []struct {
		name      string
		tiers     []domain.Tier
		tierIndex int
		reason    string
	}{
		{
			name:      "no tiers",
			tiers:     nil,
			tierIndex: -1,
			reason:    "no tiers",
		},
		{
			name: "missing rate",
			tiers: []domain.Tier{
				{AmountFrom: dec("0"), AmountTo: decPtr("100"), Rate: pct("1")},
				{AmountFrom: dec("100")},
			},
			tierIndex: 1,
			reason:    "neither",
		},
		{
			name: "gap",
			tiers: []domain.Tier{
				{AmountFrom: dec("0"), AmountTo: decPtr("100"), Rate: pct("1")},
				{AmountFrom: dec("150"), Rate: pct("2")},
			},
			tierIndex: 0,
			reason:    "gap",
		},
		{
			name: "overlap",
			tiers: []domain.Tier{
				{AmountFrom: dec("0"), AmountTo: decPtr("100"), Rate: pct("1")},
				{AmountFrom: dec("50"), Rate: pct("2")},
			},
			tierIndex: 0,
			reason:    "overlaps",
		},
		{
			name: "unbounded tier before the last",
			tiers: []domain.Tier{
				{AmountFrom: dec("0"), Rate: pct("1")},
				{AmountFrom: dec("100"), Rate: pct("2")},
			},
			tierIndex: 0,
			reason:    "only the last tier",
		},
		{
			name: "empty range",
			tiers: []domain.Tier{
				{AmountFrom: dec("100"), AmountTo: decPtr("100"), Rate: fixed("5")},
			},
			tierIndex: 0,
			reason:    "must exceed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &domain.Formula{ID: "bad", Version: "broken", Tiers: tt.tiers}
			_, err := Evaluate(f, dec("1000"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedFormulaData))

			var malformed *domain.MalformedFormulaDataError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, "bad", malformed.FormulaID)
			assert.Equal(t, tt.tierIndex, malformed.TierIndex)
			assert.Contains(t, malformed.Reason, tt.reason)
		})
	}
}
