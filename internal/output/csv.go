package output

import (
	"bytes"
	"encoding/csv"
)

var csvHeader = []string{
	"employee_id", "payroll_date", "gross_pay", "taxable_pay",
	"component", "formula_id", "formula_version", "source", "phase",
	"base", "raw_amount", "relief_amount", "net_amount", "employee_amount", "employer_amount",
	"net_pay",
}

// CSVFormatter writes one row per payslip component; payslip level columns
// repeat on every row of the payslip
type CSVFormatter struct{}

func (c CSVFormatter) Name() string { return "csv" }

func (c CSVFormatter) Format(report *PayrollReport) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, p := range report.Payslips {
		for _, line := range p.Components {
			row := []string{
				p.EmployeeID,
				p.PayrollDate.String(),
				p.GrossPay.StringFixed(2),
				p.TaxablePay.StringFixed(2),
				string(line.Component),
				line.FormulaID,
				line.FormulaVersion,
				string(line.Source),
				string(line.Phase),
				line.Base.StringFixed(2),
				line.RawAmount.StringFixed(2),
				line.ReliefAmount.StringFixed(2),
				line.NetAmount.StringFixed(2),
				line.EmployeeAmount.StringFixed(2),
				line.EmployerAmount.StringFixed(2),
				p.NetPay.StringFixed(2),
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
