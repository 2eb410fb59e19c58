package compare

import (
	"fmt"

	"github.com/rgehrsitz/kepay/internal/calculation"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/rgehrsitz/kepay/internal/sequencing"
)

// CompareEngine runs one payslip request under several alternatives
type CompareEngine struct {
	Payroll           *calculation.PayrollEngine
	MetricsCalculator *MetricsCalculator
}

// NewCompareEngine creates a new comparison engine
func NewCompareEngine(payroll *calculation.PayrollEngine) *CompareEngine {
	return &CompareEngine{
		Payroll:           payroll,
		MetricsCalculator: NewMetricsCalculator(),
	}
}

// Compare calculates base, then every alternative, and the deltas of each
// alternative against base
func (ce *CompareEngine) Compare(base domain.PayslipRequest, alternatives []Alternative) (*ComparisonSet, error) {
	baseName := "base " + base.PayrollDate.String()

	basePayslip, err := ce.Payroll.Calculate(base)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate base payslip: %w", err)
	}
	baseResult := ce.MetricsCalculator.CalculateMetrics(baseName, basePayslip)
	baseResult.Description = "request as given"

	results := make([]ComparisonResult, 0, len(alternatives))
	for i, alt := range alternatives {
		name := alt.Name
		if name == "" {
			name = fmt.Sprintf("alternative %d", i+1)
		}

		engine := ce.Payroll
		if len(alt.Order) > 0 {
			engine = engine.WithStrategy(sequencing.CreateStrategy("custom", alt.Order))
		}

		req, err := alt.Build(base)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s: %w", name, err)
		}
		payslip, err := engine.Calculate(req)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate %s: %w", name, err)
		}

		r := ce.MetricsCalculator.CalculateMetrics(name, payslip)
		r.Description = alt.Describe()
		results = append(results, ce.MetricsCalculator.CalculateComparison(r, baseResult))
	}

	compSet := &ComparisonSet{
		EmployeeID:         base.EmployeeID,
		BaseScenarioName:   baseName,
		BaseResult:         &baseResult,
		AlternativeResults: results,
	}
	compSet.Recommendations = GenerateRecommendations(compSet)
	return compSet, nil
}
