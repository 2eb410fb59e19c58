package transform

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SetPayrollDate moves the payslip to another date, which changes which
// formulas resolve
type SetPayrollDate struct {
	Date civil.Date
}

func (t *SetPayrollDate) Name() string { return "set_date" }

func (t *SetPayrollDate) Description() string {
	return fmt.Sprintf("Pay on %s", t.Date)
}

func (t *SetPayrollDate) Validate(base *domain.PayslipRequest) error {
	if !t.Date.IsValid() {
		return NewTransformError(t.Name(), "validate", fmt.Sprintf("%s is not a calendar date", t.Date), nil)
	}
	return nil
}

func (t *SetPayrollDate) Apply(base *domain.PayslipRequest) (*domain.PayslipRequest, error) {
	modified := DeepCopy(base)
	modified.PayrollDate = t.Date
	return modified, nil
}

// ShiftPayrollDate moves the payslip by whole months; negative values go
// back. Month ends overflow the way time.AddDate does.
type ShiftPayrollDate struct {
	Months int
}

func (t *ShiftPayrollDate) Name() string { return "shift_date" }

func (t *ShiftPayrollDate) Description() string {
	if t.Months < 0 {
		return fmt.Sprintf("Pay %d months earlier", -t.Months)
	}
	return fmt.Sprintf("Pay %d months later", t.Months)
}

func (t *ShiftPayrollDate) Validate(base *domain.PayslipRequest) error {
	if t.Months == 0 {
		return NewTransformError(t.Name(), "validate", "months cannot be zero", nil)
	}
	if base.PayrollDate.IsZero() {
		return NewTransformError(t.Name(), "validate", "request has no payroll date", nil)
	}
	return nil
}

func (t *ShiftPayrollDate) Apply(base *domain.PayslipRequest) (*domain.PayslipRequest, error) {
	modified := DeepCopy(base)
	modified.PayrollDate = civil.DateOf(base.PayrollDate.In(time.UTC).AddDate(0, t.Months, 0))
	return modified, nil
}

// SetGrossPay replaces the gross pay
type SetGrossPay struct {
	Amount decimal.Decimal
}

func (t *SetGrossPay) Name() string { return "set_gross" }

func (t *SetGrossPay) Description() string {
	return fmt.Sprintf("Gross pay of %s", t.Amount.StringFixed(2))
}

func (t *SetGrossPay) Validate(base *domain.PayslipRequest) error {
	if t.Amount.IsNegative() {
		return NewTransformError(t.Name(), "validate", "amount cannot be negative", nil)
	}
	return nil
}

func (t *SetGrossPay) Apply(base *domain.PayslipRequest) (*domain.PayslipRequest, error) {
	modified := DeepCopy(base)
	modified.GrossPay = t.Amount
	return modified, nil
}

// RaiseGrossPay scales gross pay by a percentage, rounded to the cent.
// A negative percentage models a pay cut.
type RaiseGrossPay struct {
	Percent decimal.Decimal
}

func (t *RaiseGrossPay) Name() string { return "raise_gross" }

func (t *RaiseGrossPay) Description() string {
	return fmt.Sprintf("Raise gross pay by %s%%", t.Percent.String())
}

func (t *RaiseGrossPay) Validate(base *domain.PayslipRequest) error {
	if t.Percent.LessThanOrEqual(hundred.Neg()) {
		return NewTransformError(t.Name(), "validate", "percent must be greater than -100", nil)
	}
	return nil
}

func (t *RaiseGrossPay) Apply(base *domain.PayslipRequest) (*domain.PayslipRequest, error) {
	modified := DeepCopy(base)
	factor := hundred.Add(t.Percent).Div(hundred)
	modified.GrossPay = base.GrossPay.Mul(factor).Round(2)
	return modified, nil
}

// OverrideFormula pins a component to a formula id
type OverrideFormula struct {
	Component domain.ComponentKey
	FormulaID string
}

func (t *OverrideFormula) Name() string { return "override" }

func (t *OverrideFormula) Description() string {
	return fmt.Sprintf("Use %s for %s", t.FormulaID, t.Component)
}

func (t *OverrideFormula) Validate(base *domain.PayslipRequest) error {
	if t.Component == "" || t.FormulaID == "" {
		return NewTransformError(t.Name(), "validate", "component and formula are required", nil)
	}
	if !hasComponent(base, t.Component) {
		return NewTransformError(t.Name(), "validate", fmt.Sprintf("request has no %s component", t.Component), nil)
	}
	return nil
}

func (t *OverrideFormula) Apply(base *domain.PayslipRequest) (*domain.PayslipRequest, error) {
	modified := DeepCopy(base)
	if modified.Overrides == nil {
		modified.Overrides = make(map[domain.ComponentKey]string)
	}
	modified.Overrides[t.Component] = t.FormulaID
	return modified, nil
}

// ClearOverride drops a component's override so normal resolution applies
type ClearOverride struct {
	Component domain.ComponentKey
}

func (t *ClearOverride) Name() string { return "clear_override" }

func (t *ClearOverride) Description() string {
	return fmt.Sprintf("Resolve %s normally", t.Component)
}

func (t *ClearOverride) Validate(base *domain.PayslipRequest) error {
	if _, ok := base.Overrides[t.Component]; !ok {
		return NewTransformError(t.Name(), "validate", fmt.Sprintf("request has no override for %s", t.Component), nil)
	}
	return nil
}

func (t *ClearOverride) Apply(base *domain.PayslipRequest) (*domain.PayslipRequest, error) {
	modified := DeepCopy(base)
	delete(modified.Overrides, t.Component)
	return modified, nil
}

// AddComponent adds a component, optionally with an explicit base such as
// the taxable value of a benefit
type AddComponent struct {
	Component domain.ComponentKey
	Base      *decimal.Decimal
}

func (t *AddComponent) Name() string { return "add_component" }

func (t *AddComponent) Description() string {
	if t.Base != nil {
		return fmt.Sprintf("Add %s on %s", t.Component, t.Base.StringFixed(2))
	}
	return fmt.Sprintf("Add %s", t.Component)
}

func (t *AddComponent) Validate(base *domain.PayslipRequest) error {
	if t.Component == "" {
		return NewTransformError(t.Name(), "validate", "component is required", nil)
	}
	if hasComponent(base, t.Component) {
		return NewTransformError(t.Name(), "validate", fmt.Sprintf("request already has %s", t.Component), nil)
	}
	if t.Base != nil && t.Base.IsNegative() {
		return NewTransformError(t.Name(), "validate", "base cannot be negative", nil)
	}
	return nil
}

func (t *AddComponent) Apply(base *domain.PayslipRequest) (*domain.PayslipRequest, error) {
	modified := DeepCopy(base)
	modified.Components = append(modified.Components, t.Component)
	if t.Base != nil {
		if modified.Bases == nil {
			modified.Bases = make(map[domain.ComponentKey]decimal.Decimal)
		}
		modified.Bases[t.Component] = *t.Base
	}
	return modified, nil
}

// RemoveComponent drops a component along with its override and base
type RemoveComponent struct {
	Component domain.ComponentKey
}

func (t *RemoveComponent) Name() string { return "remove_component" }

func (t *RemoveComponent) Description() string {
	return fmt.Sprintf("Drop %s", t.Component)
}

func (t *RemoveComponent) Validate(base *domain.PayslipRequest) error {
	if !hasComponent(base, t.Component) {
		return NewTransformError(t.Name(), "validate", fmt.Sprintf("request has no %s component", t.Component), nil)
	}
	if len(base.Components) == 1 {
		return NewTransformError(t.Name(), "validate", "cannot remove the last component", nil)
	}
	return nil
}

func (t *RemoveComponent) Apply(base *domain.PayslipRequest) (*domain.PayslipRequest, error) {
	modified := DeepCopy(base)
	kept := modified.Components[:0]
	for _, c := range modified.Components {
		if c != t.Component {
			kept = append(kept, c)
		}
	}
	modified.Components = kept
	delete(modified.Overrides, t.Component)
	delete(modified.Bases, t.Component)
	delete(modified.BasisValues, t.Component)
	return modified, nil
}

func hasComponent(r *domain.PayslipRequest, key domain.ComponentKey) bool {
	for _, c := range r.Components {
		if c == key {
			return true
		}
	}
	return false
}
