package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

// TableFormatter formats comparison results as a console table
type TableFormatter struct{}

// Format generates a table of headline figures followed by the deltas of
// every alternative against the base
func (tf *TableFormatter) Format(compSet *ComparisonSet) string {
	var sb strings.Builder

	sb.WriteString("PAYSLIP REGIME COMPARISON\n")
	sb.WriteString(strings.Repeat("=", 96) + "\n")
	sb.WriteString(fmt.Sprintf("Employee: %s\n", compSet.EmployeeID))
	sb.WriteString(fmt.Sprintf("Base: %s\n\n", compSet.BaseScenarioName))

	nameWidth := 24
	numWidth := 13

	sb.WriteString(fmt.Sprintf("%-*s %-10s %*s %*s %*s %*s %*s\n",
		nameWidth, "Scenario",
		"Date",
		numWidth, "Taxable",
		numWidth, "PAYE",
		numWidth, "Deductions",
		numWidth, "Employer",
		numWidth, "Net Pay"))
	sb.WriteString(strings.Repeat("-", 96) + "\n")

	sb.WriteString(tf.formatRow(compSet.BaseResult, nameWidth, numWidth, true))
	if len(compSet.AlternativeResults) > 0 {
		sb.WriteString(strings.Repeat("-", 96) + "\n")
		for i := range compSet.AlternativeResults {
			sb.WriteString(tf.formatRow(&compSet.AlternativeResults[i], nameWidth, numWidth, false))
		}
	}
	sb.WriteString(strings.Repeat("=", 96) + "\n")

	if len(compSet.AlternativeResults) > 0 {
		sb.WriteString("\nCOMPARISON TO BASE\n")
		sb.WriteString(strings.Repeat("-", 96) + "\n")

		for _, alt := range compSet.AlternativeResults {
			sb.WriteString(fmt.Sprintf("\n%s (%s):\n", alt.ScenarioName, alt.Description))
			sb.WriteString(fmt.Sprintf("  Net Pay:          %s (%s%%)\n",
				signed(alt.NetPayDiffFromBase), alt.NetPayPctFromBase.StringFixed(2)))
			sb.WriteString(fmt.Sprintf("  PAYE:             %s\n", signed(alt.PAYEDiffFromBase)))
			sb.WriteString(fmt.Sprintf("  Deductions:       %s\n", signed(alt.DeductionsDiffFromBase)))
			if !alt.EmployerDiffFromBase.IsZero() {
				sb.WriteString(fmt.Sprintf("  Employer Cost:    %s\n", signed(alt.EmployerDiffFromBase)))
			}
			for _, key := range sortedKeys(alt.ComponentDiffs) {
				sb.WriteString(fmt.Sprintf("    %-16s %s\n", key, signed(alt.ComponentDiffs[key])))
			}
		}
		sb.WriteString("\n")
	}

	if len(compSet.Recommendations) > 0 {
		sb.WriteString("\nRECOMMENDATIONS\n")
		sb.WriteString(strings.Repeat("-", 96) + "\n")
		for _, rec := range compSet.Recommendations {
			sb.WriteString(fmt.Sprintf("* %s\n", rec))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func (tf *TableFormatter) formatRow(result *ComparisonResult, nameWidth, numWidth int, isBase bool) string {
	name := result.ScenarioName
	if isBase {
		name += " *"
	}
	return fmt.Sprintf("%-*s %-10s %*s %*s %*s %*s %*s\n",
		nameWidth, tf.truncate(name, nameWidth),
		result.PayrollDate.String(),
		numWidth, result.TaxablePay.StringFixed(2),
		numWidth, result.PAYE.StringFixed(2),
		numWidth, result.EmployeeDeductions.StringFixed(2),
		numWidth, result.EmployerContributions.StringFixed(2),
		numWidth, result.NetPay.StringFixed(2))
}

func (tf *TableFormatter) truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// FormatCompact creates a one-line net pay summary
func (tf *TableFormatter) FormatCompact(compSet *ComparisonSet) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Base: %s | ", compSet.BaseResult.NetPay.StringFixed(2)))
	for i, alt := range compSet.AlternativeResults {
		if i > 0 {
			sb.WriteString(" | ")
		}
		change := "="
		if !alt.NetPayDiffFromBase.IsZero() {
			change = signed(alt.NetPayDiffFromBase)
		}
		sb.WriteString(fmt.Sprintf("%s: %s", alt.ScenarioName, change))
	}
	return sb.String()
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

func sortedKeys(m map[domain.ComponentKey]decimal.Decimal) []domain.ComponentKey {
	keys := make([]domain.ComponentKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
