package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rgehrsitz/kepay/internal/domain"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle   = lipgloss.NewStyle().Width(24)
	netPayStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

var consoleColumns = []string{"Component", "Formula", "Source", "Phase", "Base", "Raw", "Relief", "Employee", "Employer"}

// ConsoleFormatter renders payslips as aligned text tables for a terminal
type ConsoleFormatter struct{}

func (c ConsoleFormatter) Name() string { return "console" }

func (c ConsoleFormatter) Format(report *PayrollReport) ([]byte, error) {
	var buf bytes.Buffer

	title := "PAYROLL RUN"
	if report.Name != "" {
		title += ": " + report.Name
	}
	fmt.Fprintln(&buf, headingStyle.Render(title))
	fmt.Fprintln(&buf, ruleStyle.Render(strings.Repeat("=", 60)))

	for i, p := range report.Payslips {
		if i > 0 {
			fmt.Fprintln(&buf)
		}
		writePayslip(&buf, p)
	}

	if len(report.Payslips) > 1 {
		gross, employee, employer, net := report.Totals()
		fmt.Fprintln(&buf)
		fmt.Fprintln(&buf, headingStyle.Render(fmt.Sprintf("RUN TOTALS (%d payslips)", len(report.Payslips))))
		writeRow(&buf, "Gross pay", FormatCurrency(gross))
		writeRow(&buf, "Employee deductions", FormatCurrency(employee))
		writeRow(&buf, "Employer contributions", FormatCurrency(employer))
		writeRow(&buf, "Net pay", netPayStyle.Render(FormatCurrency(net)))
	}
	return buf.Bytes(), nil
}

func writePayslip(buf *bytes.Buffer, p *domain.PayslipResult) {
	fmt.Fprintln(buf, headingStyle.Render(fmt.Sprintf("Employee %s, payroll date %s", p.EmployeeID, p.PayrollDate)))
	writeRow(buf, "Gross pay", FormatCurrency(p.GrossPay))
	fmt.Fprintln(buf)

	rows := make([][]string, 0, len(p.Components))
	for _, c := range p.Components {
		rows = append(rows, []string{
			string(c.Component),
			c.FormulaVersion,
			string(c.Source),
			string(c.Phase),
			c.Base.StringFixed(2),
			c.RawAmount.StringFixed(2),
			c.ReliefAmount.StringFixed(2),
			c.EmployeeAmount.StringFixed(2),
			c.EmployerAmount.StringFixed(2),
		})
	}
	writeTable(buf, consoleColumns, rows)
	fmt.Fprintln(buf)

	writeRow(buf, "Taxable pay", FormatCurrency(p.TaxablePay))
	writeRow(buf, "Employee deductions", FormatCurrency(p.TotalEmployeeDeductions))
	writeRow(buf, "Employer contributions", FormatCurrency(p.TotalEmployerContributions))
	writeRow(buf, "Net pay", netPayStyle.Render(FormatCurrency(p.NetPay)))

	for _, w := range p.Warnings {
		fmt.Fprintln(buf, warningStyle.Render("warning: "+w))
	}
}

func writeRow(buf *bytes.Buffer, label, value string) {
	fmt.Fprintf(buf, "%s%s\n", labelStyle.Render(label), value)
}

// writeTable left-aligns text columns and right-aligns the numeric tail
func writeTable(buf *bytes.Buffer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, cell := range r {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			style := lipgloss.NewStyle().Width(widths[i])
			if i >= 4 {
				style = style.Align(lipgloss.Right)
			}
			parts[i] = style.Render(cell)
		}
		return strings.Join(parts, "  ")
	}

	fmt.Fprintln(buf, line(header))
	total := 0
	for _, w := range widths {
		total += w + 2
	}
	fmt.Fprintln(buf, ruleStyle.Render(strings.Repeat("-", total-2)))
	for _, r := range rows {
		fmt.Fprintln(buf, line(r))
	}
}
