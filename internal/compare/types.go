package compare

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/rgehrsitz/kepay/internal/transform"
	"github.com/shopspring/decimal"
)

// Alternative describes how one comparison payslip differs from the base
// request. Unset fields keep the base value.
type Alternative struct {
	Name        string                         `json:"name"`
	Description string                         `json:"description,omitempty"`
	PayrollDate *civil.Date                    `json:"payrollDate,omitempty"`
	GrossPay    *decimal.Decimal               `json:"grossPay,omitempty"`
	Overrides   map[domain.ComponentKey]string `json:"overrides,omitempty"`
	// Order sequences the payslip with a custom deduction order instead of
	// the one declared by the income formula
	Order []domain.PhaseOrder `json:"order,omitempty"`
	// Transforms run after the fields above, in order
	Transforms []transform.RequestTransform `json:"-"`
}

// Apply returns base with the alternative's changes. Overrides are merged
// over the base overrides.
func (a Alternative) Apply(base domain.PayslipRequest) domain.PayslipRequest {
	req := base
	if a.PayrollDate != nil {
		req.PayrollDate = *a.PayrollDate
	}
	if a.GrossPay != nil {
		req.GrossPay = *a.GrossPay
	}
	if len(a.Overrides) > 0 {
		merged := make(map[domain.ComponentKey]string, len(base.Overrides)+len(a.Overrides))
		for k, v := range base.Overrides {
			merged[k] = v
		}
		for k, v := range a.Overrides {
			merged[k] = v
		}
		req.Overrides = merged
	}
	return req
}

// Build applies the alternative and then its transforms to base
func (a Alternative) Build(base domain.PayslipRequest) (domain.PayslipRequest, error) {
	req := a.Apply(base)
	if len(a.Transforms) == 0 {
		return req, nil
	}
	out, err := transform.ApplyTransforms(&req, a.Transforms)
	if err != nil {
		return domain.PayslipRequest{}, err
	}
	return *out, nil
}

// Describe summarises what the alternative changes
func (a Alternative) Describe() string {
	if a.Description != "" {
		return a.Description
	}
	var parts []string
	if a.PayrollDate != nil {
		parts = append(parts, "date "+a.PayrollDate.String())
	}
	if a.GrossPay != nil {
		parts = append(parts, "gross "+a.GrossPay.StringFixed(2))
	}
	keys := make([]string, 0, len(a.Overrides))
	for k := range a.Overrides {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, a.Overrides[domain.ComponentKey(k)]))
	}
	if len(a.Order) > 0 {
		parts = append(parts, "custom order")
	}
	for _, t := range a.Transforms {
		parts = append(parts, t.Description())
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// ComparisonResult is one payslip in a comparison with its headline figures
type ComparisonResult struct {
	ScenarioName string                `json:"scenarioName"`
	Description  string                `json:"description"`
	Payslip      *domain.PayslipResult `json:"-"`

	PayrollDate           civil.Date                     `json:"payrollDate"`
	GrossPay              decimal.Decimal                `json:"grossPay"`
	TaxablePay            decimal.Decimal                `json:"taxablePay"`
	PAYE                  decimal.Decimal                `json:"paye"`
	EmployeeDeductions    decimal.Decimal                `json:"employeeDeductions"`
	EmployerContributions decimal.Decimal                `json:"employerContributions"`
	NetPay                decimal.Decimal                `json:"netPay"`
	Versions              map[domain.ComponentKey]string `json:"versions"`

	// Comparison to base
	NetPayDiffFromBase     decimal.Decimal                         `json:"netPayDiffFromBase"`
	NetPayPctFromBase      decimal.Decimal                         `json:"netPayPctFromBase"`
	PAYEDiffFromBase       decimal.Decimal                         `json:"payeDiffFromBase"`
	DeductionsDiffFromBase decimal.Decimal                         `json:"deductionsDiffFromBase"`
	EmployerDiffFromBase   decimal.Decimal                         `json:"employerDiffFromBase"`
	ComponentDiffs         map[domain.ComponentKey]decimal.Decimal `json:"componentDiffs,omitempty"`
}

// ComparisonSet is a base payslip and its alternatives
type ComparisonSet struct {
	EmployeeID         string             `json:"employeeId"`
	BaseScenarioName   string             `json:"baseScenarioName"`
	BaseResult         *ComparisonResult  `json:"baseResult"`
	AlternativeResults []ComparisonResult `json:"alternativeResults"`
	Recommendations    []string           `json:"recommendations"`
}

// MetricsCalculator extracts comparison metrics from payslips
type MetricsCalculator struct{}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator() *MetricsCalculator {
	return &MetricsCalculator{}
}

// CalculateMetrics reads the headline figures off a payslip
func (mc *MetricsCalculator) CalculateMetrics(name string, p *domain.PayslipResult) ComparisonResult {
	result := ComparisonResult{
		ScenarioName:          name,
		Payslip:               p,
		PayrollDate:           p.PayrollDate,
		GrossPay:              p.GrossPay,
		TaxablePay:            p.TaxablePay,
		PAYE:                  p.EmployeeAmount(domain.ComponentPAYE),
		EmployeeDeductions:    p.TotalEmployeeDeductions,
		EmployerContributions: p.TotalEmployerContributions,
		NetPay:                p.NetPay,
		Versions:              make(map[domain.ComponentKey]string, len(p.Components)),
	}
	for _, c := range p.Components {
		result.Versions[c.Component] = c.FormulaVersion
	}
	return result
}

// CalculateComparison fills the deltas of scenario against base
func (mc *MetricsCalculator) CalculateComparison(scenario, base ComparisonResult) ComparisonResult {
	scenario.NetPayDiffFromBase = scenario.NetPay.Sub(base.NetPay)
	if !base.NetPay.IsZero() {
		scenario.NetPayPctFromBase = scenario.NetPayDiffFromBase.
			Div(base.NetPay).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	scenario.PAYEDiffFromBase = scenario.PAYE.Sub(base.PAYE)
	scenario.DeductionsDiffFromBase = scenario.EmployeeDeductions.Sub(base.EmployeeDeductions)
	scenario.EmployerDiffFromBase = scenario.EmployerContributions.Sub(base.EmployerContributions)

	scenario.ComponentDiffs = make(map[domain.ComponentKey]decimal.Decimal)
	for _, key := range componentKeys(scenario.Payslip, base.Payslip) {
		diff := scenario.Payslip.EmployeeAmount(key).Sub(base.Payslip.EmployeeAmount(key))
		if !diff.IsZero() {
			scenario.ComponentDiffs[key] = diff
		}
	}
	return scenario
}

func componentKeys(payslips ...*domain.PayslipResult) []domain.ComponentKey {
	seen := make(map[domain.ComponentKey]bool)
	var keys []domain.ComponentKey
	for _, p := range payslips {
		if p == nil {
			continue
		}
		for _, c := range p.Components {
			if !seen[c.Component] {
				seen[c.Component] = true
				keys = append(keys, c.Component)
			}
		}
	}
	return keys
}

// GenerateRecommendations points out the alternatives that move net pay,
// PAYE and employer cost the most
func GenerateRecommendations(compSet *ComparisonSet) []string {
	recommendations := []string{}
	if compSet.BaseResult == nil || len(compSet.AlternativeResults) == 0 {
		return recommendations
	}

	bestNet := compSet.BaseResult
	lowestPAYE := compSet.BaseResult
	lowestEmployer := compSet.BaseResult
	for i := range compSet.AlternativeResults {
		alt := &compSet.AlternativeResults[i]
		if alt.NetPay.GreaterThan(bestNet.NetPay) {
			bestNet = alt
		}
		if alt.PAYE.LessThan(lowestPAYE.PAYE) {
			lowestPAYE = alt
		}
		if alt.EmployerContributions.LessThan(lowestEmployer.EmployerContributions) {
			lowestEmployer = alt
		}
	}

	base := compSet.BaseResult
	if bestNet != base {
		recommendations = append(recommendations, fmt.Sprintf("Highest net pay: %s pays KES %s more than %s",
			bestNet.ScenarioName, bestNet.NetPay.Sub(base.NetPay).StringFixed(2), base.ScenarioName))
	}
	if lowestPAYE != base {
		recommendations = append(recommendations, fmt.Sprintf("Lowest PAYE: %s withholds KES %s less than %s",
			lowestPAYE.ScenarioName, base.PAYE.Sub(lowestPAYE.PAYE).StringFixed(2), base.ScenarioName))
	}
	if lowestEmployer != base {
		recommendations = append(recommendations, fmt.Sprintf("Lowest employer cost: %s saves the employer KES %s",
			lowestEmployer.ScenarioName, base.EmployerContributions.Sub(lowestEmployer.EmployerContributions).StringFixed(2)))
	}
	return recommendations
}
