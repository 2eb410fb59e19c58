package breakeven

import (
	"cloud.google.com/go/civil"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

// Goal defines which payslip figure the solver matches
type Goal string

const (
	GoalNetPay       Goal = "net_pay"       // gross that pays exactly the target net
	GoalEmployerCost Goal = "employer_cost" // gross whose total employer cost equals the budget
)

// Constraints bound the gross pay search and name the target figure
type Constraints struct {
	Target   decimal.Decimal  `json:"target"`
	MinGross *decimal.Decimal `json:"min_gross,omitempty"`
	MaxGross *decimal.Decimal `json:"max_gross,omitempty"`
}

// Request is one gross-up: the payslip as requested, with its gross pay to be solved
type Request struct {
	Base          domain.PayslipRequest
	Goal          Goal
	Constraints   Constraints
	MaxIterations int
	Tolerance     decimal.Decimal
}

// Result is the gross pay found for a Request and the payslip it produces
type Result struct {
	Request         Request `json:"-"`
	EmployeeID      string  `json:"employee_id"`
	Goal            Goal    `json:"goal"`
	Success         bool    `json:"success"`
	Iterations      int     `json:"iterations"`
	ConvergenceInfo string  `json:"convergence_info"`

	GrossPay decimal.Decimal       `json:"gross_pay"`
	Target   decimal.Decimal       `json:"target"`
	Achieved decimal.Decimal       `json:"achieved"`
	Gap      decimal.Decimal       `json:"gap"` // achieved - target
	Payslip  *domain.PayslipResult `json:"payslip"`

	// Comparison to the request's own gross pay, when it had one
	BasePayslip       *domain.PayslipResult `json:"base_payslip,omitempty"`
	GrossDiffFromBase decimal.Decimal       `json:"gross_diff_from_base"`
}

// RunResult holds the gross-ups of a whole pay run
type RunResult struct {
	Date            civil.Date      `json:"date"`
	Results         []Result        `json:"results"`
	TotalExtraGross decimal.Decimal `json:"total_extra_gross"`
	Recommendations []string        `json:"recommendations"`
}

// SolverOptions configures the bisection
type SolverOptions struct {
	Tolerance     decimal.Decimal // accepted |achieved - target|
	MaxIterations int
}

// DefaultSolverOptions returns a one-cent tolerance
func DefaultSolverOptions() SolverOptions {
	return SolverOptions{
		Tolerance:     decimal.New(1, -2),
		MaxIterations: 100,
	}
}

// Validate checks the constraints are internally consistent
func (c *Constraints) Validate() error {
	if !c.Target.IsPositive() {
		return &BreakEvenError{
			Operation: "validate_constraints",
			Message:   "target must be positive",
		}
	}
	if c.MinGross != nil && c.MinGross.IsNegative() {
		return &BreakEvenError{
			Operation: "validate_constraints",
			Message:   "min_gross cannot be negative",
		}
	}
	if c.MinGross != nil && c.MaxGross != nil && c.MinGross.GreaterThan(*c.MaxGross) {
		return &BreakEvenError{
			Operation: "validate_constraints",
			Message:   "min_gross cannot be greater than max_gross",
		}
	}
	return nil
}

// BreakEvenError represents errors from the gross-up solver
type BreakEvenError struct {
	Operation string
	Message   string
	Cause     error
}

func (e *BreakEvenError) Error() string {
	if e.Cause != nil {
		return e.Operation + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Operation + ": " + e.Message
}

func (e *BreakEvenError) Unwrap() error {
	return e.Cause
}
