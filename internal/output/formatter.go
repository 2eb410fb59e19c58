package output

import (
	"fmt"
	"os"
	"time"

	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

// PayrollReport is what every formatter renders: the results of one pay run
type PayrollReport struct {
	Name     string                  `json:"name,omitempty"`
	Payslips []*domain.PayslipResult `json:"payslips"`
}

// Totals sums the run across payslips
func (r *PayrollReport) Totals() (gross, employee, employer, net decimal.Decimal) {
	for _, p := range r.Payslips {
		gross = gross.Add(p.GrossPay)
		employee = employee.Add(p.TotalEmployeeDeductions)
		employer = employer.Add(p.TotalEmployerContributions)
		net = net.Add(p.NetPay)
	}
	return gross, employee, employer, net
}

// Formatter renders a payroll report into bytes
type Formatter interface {
	Name() string
	Format(report *PayrollReport) ([]byte, error)
}

// FormatterFunc adapts a function to the Formatter interface
type FormatterFunc struct {
	ID string
	F  func(report *PayrollReport) ([]byte, error)
}

func (f FormatterFunc) Name() string { return f.ID }

func (f FormatterFunc) Format(report *PayrollReport) ([]byte, error) { return f.F(report) }

var formatters = map[string]Formatter{
	"console": ConsoleFormatter{},
	"table":   ConsoleFormatter{},
	"text":    ConsoleFormatter{},
	"json":    JSONFormatter{},
	"csv":     CSVFormatter{},
}

// GetFormatterByName returns the formatter registered under name, or nil
func GetFormatterByName(name string) Formatter {
	return formatters[name]
}

// AvailableFormatAliases lists every accepted --format value
func AvailableFormatAliases() []string {
	return []string{"console", "table", "text", "json", "csv"}
}

// WriteFormatted renders report and writes it to a timestamped file in the
// working directory, returning the file name
func WriteFormatted(f Formatter, report *PayrollReport, ext string) (string, error) {
	data, err := f.Format(report)
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("payroll_report_%s.%s", time.Now().Format("20060102_150405"), ext)
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return filename, nil
}
