package compare

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rgehrsitz/kepay/internal/calculation"
	"github.com/rgehrsitz/kepay/internal/catalog"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/rgehrsitz/kepay/internal/transform"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *CompareEngine {
	t.Helper()
	c, err := catalog.LoadFile("../../testdata/kenya_formulas.yaml")
	require.NoError(t, err)
	return NewCompareEngine(calculation.NewPayrollEngine(calculation.NewResolver(c)))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func datePtr(y int, m, d int) *civil.Date {
	v := civil.Date{Year: y, Month: time.Month(m), Day: d}
	return &v
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msg string) {
	t.Helper()
	assert.Truef(t, dec(expected).Equal(actual), "%s: expected %s, got %s", msg, expected, actual)
}

func december() domain.PayslipRequest {
	return domain.PayslipRequest{
		EmployeeID:  "E001",
		GrossPay:    dec("50000"),
		PayrollDate: civil.Date{Year: 2024, Month: 12, Day: 20},
		Components: []domain.ComponentKey{
			domain.ComponentPAYE, domain.ComponentNSSF, domain.ComponentSHIF, domain.ComponentHousingLevy,
		},
	}
}

func TestCompare_RegimeChange(t *testing.T) {
	ce := newTestEngine(t)
	order2025, ok := Preset("order-2025")
	require.True(t, ok)

	set, err := ce.Compare(december(), []Alternative{
		{Name: "january", PayrollDate: datePtr(2025, 1, 31)},
		order2025,
	})
	require.NoError(t, err)

	assert.Equal(t, "E001", set.EmployeeID)
	assert.Equal(t, "base 2024-12-20", set.BaseScenarioName)
	base := set.BaseResult
	assertDecimal(t, "47840", base.TaxablePay, "base taxable")
	assertDecimal(t, "6735.35", base.PAYE, "base paye")
	assertDecimal(t, "38979.65", base.NetPay, "base net")
	assert.Equal(t, "2023 Onwards", base.Versions[domain.ComponentPAYE])

	require.Len(t, set.AlternativeResults, 2)
	for _, alt := range set.AlternativeResults {
		assertDecimal(t, "45715", alt.TaxablePay, alt.ScenarioName+" taxable")
		assertDecimal(t, "6097.85", alt.PAYE, alt.ScenarioName+" paye")
		assertDecimal(t, "39617.15", alt.NetPay, alt.ScenarioName+" net")
		assertDecimal(t, "637.50", alt.NetPayDiffFromBase, alt.ScenarioName+" net diff")
		assertDecimal(t, "1.64", alt.NetPayPctFromBase, alt.ScenarioName+" net pct")
		assertDecimal(t, "-637.50", alt.PAYEDiffFromBase, alt.ScenarioName+" paye diff")
		assertDecimal(t, "-637.50", alt.DeductionsDiffFromBase, alt.ScenarioName+" deductions diff")
		assert.True(t, alt.EmployerDiffFromBase.IsZero())
		assert.Len(t, alt.ComponentDiffs, 1, "only PAYE moves")
	}

	january := set.AlternativeResults[0]
	assert.Equal(t, "2025 Onwards", january.Versions[domain.ComponentPAYE])
	assert.Equal(t, "date 2025-01-31", january.Description)

	reordered := set.AlternativeResults[1]
	assert.Equal(t, "2023 Onwards", reordered.Versions[domain.ComponentPAYE], "reordering keeps the December formula")
	assert.Equal(t, "SHIF and housing levy deducted before PAYE", reordered.Description)

	assert.Equal(t, []string{
		"Highest net pay: january pays KES 637.50 more than base 2024-12-20",
		"Lowest PAYE: january withholds KES 637.50 less than base 2024-12-20",
	}, set.Recommendations)
}

func TestCompare_GrossChange(t *testing.T) {
	ce := newTestEngine(t)
	gross := dec("60000")

	set, err := ce.Compare(december(), []Alternative{{GrossPay: &gross}})
	require.NoError(t, err)

	alt := set.AlternativeResults[0]
	assert.Equal(t, "alternative 1", alt.ScenarioName)
	assert.Equal(t, "gross 60000.00", alt.Description)
	assertDecimal(t, "45554.65", alt.NetPay, "net")
	assertDecimal(t, "150", alt.EmployerDiffFromBase, "housing levy employer share grows")
	assertDecimal(t, "275", alt.ComponentDiffs[domain.ComponentSHIF], "shif diff")
	_, nssfMoved := alt.ComponentDiffs[domain.ComponentNSSF]
	assert.False(t, nssfMoved, "nssf is capped at the upper earnings limit")
}

func TestCompare_Errors(t *testing.T) {
	ce := newTestEngine(t)

	bad := december()
	bad.GrossPay = dec("-1")
	_, err := ce.Compare(bad, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to calculate base payslip")

	_, err = ce.Compare(december(), []Alternative{{
		Name:      "stale nssf",
		Overrides: map[domain.ComponentKey]string{domain.ComponentNSSF: "nssf-2023"},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to calculate stale nssf")
	assert.ErrorIs(t, err, domain.ErrInvalidOverride)
}

func TestAlternative_Apply(t *testing.T) {
	base := december()
	base.Overrides = map[domain.ComponentKey]string{domain.ComponentPAYE: "paye-2023"}

	alt := Alternative{
		PayrollDate: datePtr(2025, 1, 31),
		Overrides:   map[domain.ComponentKey]string{domain.ComponentNSSF: "nssf-2024"},
	}
	req := alt.Apply(base)

	assert.Equal(t, civil.Date{Year: 2025, Month: 1, Day: 31}, req.PayrollDate)
	assert.Equal(t, "paye-2023", req.Overrides[domain.ComponentPAYE])
	assert.Equal(t, "nssf-2024", req.Overrides[domain.ComponentNSSF])
	assert.Len(t, base.Overrides, 1, "base overrides untouched")
	assert.Equal(t, "date 2025-01-31, nssf=nssf-2024", alt.Describe())
	assert.Equal(t, "no changes", Alternative{}.Describe())
	assert.Equal(t, "custom order", Alternative{Order: Order2025}.Describe())
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"order-2025", "order-pre-2025"}, PresetNames())
	_, ok := Preset("order-2030")
	assert.False(t, ok)
}

func TestPresetPre2025_OnJanuary(t *testing.T) {
	ce := newTestEngine(t)
	pre, _ := Preset("order-pre-2025")

	req := december()
	req.PayrollDate = civil.Date{Year: 2025, Month: 1, Day: 31}
	set, err := ce.Compare(req, []Alternative{pre})
	require.NoError(t, err)

	alt := set.AlternativeResults[0]
	assertDecimal(t, "47840", alt.TaxablePay, "taxable without shif and levy")
	assertDecimal(t, "-637.50", alt.NetPayDiffFromBase, "net diff")
}

func TestCompare_Transforms(t *testing.T) {
	ce := newTestEngine(t)

	set, err := ce.Compare(december(), []Alternative{
		{Name: "raise", Transforms: []transform.RequestTransform{&transform.RaiseGrossPay{Percent: dec("20")}}},
	})
	require.NoError(t, err)

	require.Len(t, set.AlternativeResults, 1)
	raise := set.AlternativeResults[0]
	assertDecimal(t, "60000", raise.GrossPay, "raised gross")
	assertDecimal(t, "45554.65", raise.NetPay, "raised net")
	assert.Equal(t, "Raise gross pay by 20%", raise.Description)
}

func TestCompare_TransformError(t *testing.T) {
	ce := newTestEngine(t)

	_, err := ce.Compare(december(), []Alternative{
		{Name: "bad", Transforms: []transform.RequestTransform{&transform.ClearOverride{Component: domain.ComponentNSSF}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build bad")
}
