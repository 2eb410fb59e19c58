package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ResolutionSource records which resolution step produced a formula
type ResolutionSource string

const (
	SourceOverride ResolutionSource = "override"
	SourceWindow   ResolutionSource = "effective_window"
	SourceCurrent  ResolutionSource = "current"
	// SourceFallback means no window or current formula matched and the most
	// recent formula of the group was used. Callers should treat it as a warning.
	SourceFallback ResolutionSource = "fallback"
)

// PayslipRequest is what the payroll processor supplies for one employee
type PayslipRequest struct {
	EmployeeID  string                           `yaml:"employee_id" json:"employee_id"`
	GrossPay    decimal.Decimal                  `yaml:"gross_pay" json:"gross_pay"`
	PayrollDate civil.Date                       `yaml:"payroll_date" json:"payroll_date"`
	Components  []ComponentKey                   `yaml:"components" json:"components"`
	Overrides   map[ComponentKey]string          `yaml:"overrides,omitempty" json:"overrides,omitempty"`
	BasisValues map[ComponentKey]decimal.Decimal `yaml:"basis_values,omitempty" json:"basis_values,omitempty"`
	// Bases replaces the phase default base for a component, e.g. the
	// taxable value of a loan benefit for fbt.
	Bases map[ComponentKey]decimal.Decimal `yaml:"bases,omitempty" json:"bases,omitempty"`
}

// ComponentResult is the audit line for one component on a payslip
type ComponentResult struct {
	Component      ComponentKey     `json:"component"`
	FormulaID      string           `json:"formula_id"`
	FormulaVersion string           `json:"formula_version"`
	Source         ResolutionSource `json:"source"`
	Phase          Phase            `json:"phase"`
	Base           decimal.Decimal  `json:"base"`
	RawAmount      decimal.Decimal  `json:"raw_amount"`
	ReliefAmount   decimal.Decimal  `json:"relief_amount"`
	NetAmount      decimal.Decimal  `json:"net_amount"`
	EmployeeAmount decimal.Decimal  `json:"employee_amount"`
	EmployerAmount decimal.Decimal  `json:"employer_amount"`
}

// PayslipResult is the engine's answer for one PayslipRequest
type PayslipResult struct {
	EmployeeID                 string            `json:"employee_id"`
	PayrollDate                civil.Date        `json:"payroll_date"`
	GrossPay                   decimal.Decimal   `json:"gross_pay"`
	TaxablePay                 decimal.Decimal   `json:"taxable_pay"`
	Components                 []ComponentResult `json:"components"`
	TotalEmployeeDeductions    decimal.Decimal   `json:"total_employee_deductions"`
	TotalEmployerContributions decimal.Decimal   `json:"total_employer_contributions"`
	NetPay                     decimal.Decimal   `json:"net_pay"`
	Warnings                   []string          `json:"warnings,omitempty"`
}

// Component returns the result line for key, if present
func (r *PayslipResult) Component(key ComponentKey) (ComponentResult, bool) {
	for _, c := range r.Components {
		if c.Component == key {
			return c, true
		}
	}
	return ComponentResult{}, false
}

// EmployeeAmount returns the employee share for key, zero if absent
func (r *PayslipResult) EmployeeAmount(key ComponentKey) decimal.Decimal {
	c, ok := r.Component(key)
	if !ok {
		return decimal.Zero
	}
	return c.EmployeeAmount
}
