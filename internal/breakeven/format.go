package breakeven

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TableFormatter formats gross-up results as a console table
type TableFormatter struct{}

// Format generates a report for one gross-up
func (tf *TableFormatter) Format(result *Result) string {
	var sb strings.Builder

	sb.WriteString("GROSS-UP RESULT\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n")

	sb.WriteString(fmt.Sprintf("Employee:            %s\n", result.EmployeeID))
	sb.WriteString(fmt.Sprintf("Goal:                %s\n", result.Goal))
	sb.WriteString(fmt.Sprintf("Status:              %s\n", tf.formatStatus(result.Success)))
	sb.WriteString(fmt.Sprintf("Iterations:          %d\n", result.Iterations))
	if result.ConvergenceInfo != "" {
		sb.WriteString(fmt.Sprintf("Convergence:         %s\n", result.ConvergenceInfo))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Target:              KES %s\n", tf.formatCurrency(result.Target)))
	sb.WriteString(fmt.Sprintf("Achieved:            KES %s\n", tf.formatCurrency(result.Achieved)))
	sb.WriteString(fmt.Sprintf("Required gross pay:  KES %s\n", tf.formatCurrency(result.GrossPay)))

	if p := result.Payslip; p != nil {
		sb.WriteString("\n")
		sb.WriteString("PAYSLIP AT REQUIRED GROSS\n")
		sb.WriteString(strings.Repeat("-", 60) + "\n")
		for _, c := range p.Components {
			sb.WriteString(fmt.Sprintf("  %-14s %-22s %14s\n", c.Component, c.FormulaVersion, tf.formatCurrency(c.EmployeeAmount)))
		}
		sb.WriteString(fmt.Sprintf("  %-37s %14s\n", "Employer contributions", tf.formatCurrency(p.TotalEmployerContributions)))
		sb.WriteString(fmt.Sprintf("  %-37s %14s\n", "Net pay", tf.formatCurrency(p.NetPay)))
	}

	if result.BasePayslip != nil {
		sb.WriteString("\n")
		sb.WriteString("COMPARISON TO REQUESTED GROSS\n")
		sb.WriteString(strings.Repeat("-", 60) + "\n")
		sb.WriteString(fmt.Sprintf("Requested gross:     KES %s\n", tf.formatCurrency(result.BasePayslip.GrossPay)))
		sb.WriteString(fmt.Sprintf("Gross change:        %sKES %s\n",
			tf.deltaSymbol(result.GrossDiffFromBase), tf.formatCurrency(result.GrossDiffFromBase.Abs())))
	}
	return sb.String()
}

// FormatRun generates a one-row-per-employee report for a pay run
func (tf *TableFormatter) FormatRun(run *RunResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("NET PAY PRESERVED ON %s\n", run.Date))
	sb.WriteString(strings.Repeat("=", 72) + "\n")
	sb.WriteString(fmt.Sprintf("%-12s %16s %16s %16s %8s\n", "Employee", "Net pay", "Current gross", "Required gross", "Status"))
	sb.WriteString(strings.Repeat("-", 72) + "\n")
	for _, r := range run.Results {
		current := decimal.Zero
		if r.BasePayslip != nil {
			current = r.BasePayslip.GrossPay
		}
		status := "ok"
		if !r.Success {
			status = "approx"
		}
		sb.WriteString(fmt.Sprintf("%-12s %16s %16s %16s %8s\n",
			r.EmployeeID, tf.formatCurrency(r.Target), tf.formatCurrency(current), tf.formatCurrency(r.GrossPay), status))
	}
	sb.WriteString(strings.Repeat("-", 72) + "\n")
	sb.WriteString(fmt.Sprintf("Total gross change: %sKES %s\n", tf.deltaSymbol(run.TotalExtraGross), tf.formatCurrency(run.TotalExtraGross.Abs())))

	if len(run.Recommendations) > 0 {
		sb.WriteString("\nRECOMMENDATIONS\n")
		for i, rec := range run.Recommendations {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, rec))
		}
	}
	return sb.String()
}

func (tf *TableFormatter) formatStatus(success bool) string {
	if success {
		return "Converged"
	}
	return "Approximate"
}

func (tf *TableFormatter) deltaSymbol(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-"
	}
	return "+"
}

func (tf *TableFormatter) formatCurrency(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}

// JSONFormatter formats gross-up results as JSON
type JSONFormatter struct {
	Pretty bool
}

// Format marshals v, a *Result or *RunResult
func (jf *JSONFormatter) Format(v any) (string, error) {
	var data []byte
	var err error
	if jf.Pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}
