package compare

import (
	"encoding/csv"
	"strings"
)

// CSVFormatter formats comparison results as CSV
type CSVFormatter struct{}

// Format generates CSV output for comparison results
func (cf *CSVFormatter) Format(compSet *ComparisonSet) (string, error) {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)

	header := []string{
		"Scenario",
		"Type",
		"Payroll Date",
		"Gross Pay",
		"Taxable Pay",
		"PAYE",
		"Employee Deductions",
		"Employer Contributions",
		"Net Pay",
		"Net Pay Diff from Base",
		"Net Pay % Change",
		"PAYE Diff from Base",
		"Deductions Diff from Base",
		"Employer Diff from Base",
	}
	if err := writer.Write(header); err != nil {
		return "", err
	}

	if err := writer.Write(cf.formatRow(compSet.BaseResult, "base")); err != nil {
		return "", err
	}
	for i := range compSet.AlternativeResults {
		if err := writer.Write(cf.formatRow(&compSet.AlternativeResults[i], "alternative")); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (cf *CSVFormatter) formatRow(result *ComparisonResult, scenarioType string) []string {
	return []string{
		result.ScenarioName,
		scenarioType,
		result.PayrollDate.String(),
		result.GrossPay.StringFixed(2),
		result.TaxablePay.StringFixed(2),
		result.PAYE.StringFixed(2),
		result.EmployeeDeductions.StringFixed(2),
		result.EmployerContributions.StringFixed(2),
		result.NetPay.StringFixed(2),
		result.NetPayDiffFromBase.StringFixed(2),
		result.NetPayPctFromBase.StringFixed(2),
		result.PAYEDiffFromBase.StringFixed(2),
		result.DeductionsDiffFromBase.StringFixed(2),
		result.EmployerDiffFromBase.StringFixed(2),
	}
}
