// Package breakeven solves payslips backwards: it finds the gross pay that
// produces a target net pay or a target employer cost.
package breakeven

import (
	"context"
	"fmt"

	"github.com/rgehrsitz/kepay/internal/calculation"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

// maxExpansions caps how often the upper bound is doubled looking for a
// gross pay that reaches the target
const maxExpansions = 40

var (
	cent = decimal.New(1, -2)
	two  = decimal.NewFromInt(2)
)

// Solver bisects gross pay until the goal figure matches the target
type Solver struct {
	Payroll *calculation.PayrollEngine
	Options SolverOptions
}

// NewSolver creates a new gross-up solver
func NewSolver(payroll *calculation.PayrollEngine, options SolverOptions) *Solver {
	return &Solver{
		Payroll: payroll,
		Options: options,
	}
}

// NewDefaultSolver creates a solver with default options
func NewDefaultSolver(payroll *calculation.PayrollEngine) *Solver {
	return NewSolver(payroll, DefaultSolverOptions())
}

// Solve finds the gross pay for req. Statutory deductions only grow with
// gross pay, so the goal figure is treated as non-decreasing in it; band
// steps such as NHIF's can leave the closest cent a little off target, which
// is reported through Success and Gap rather than as an error.
func (s *Solver) Solve(ctx context.Context, req Request) (*Result, error) {
	if err := req.Constraints.Validate(); err != nil {
		return nil, err
	}
	switch req.Goal {
	case GoalNetPay, GoalEmployerCost:
	default:
		return nil, &BreakEvenError{
			Operation: "solve",
			Message:   fmt.Sprintf("unsupported goal: %s", req.Goal),
		}
	}

	if req.MaxIterations == 0 {
		req.MaxIterations = s.Options.MaxIterations
	}
	if req.Tolerance.IsZero() {
		req.Tolerance = s.Options.Tolerance
	}

	lo := decimal.Zero
	if req.Constraints.MinGross != nil {
		lo = req.Constraints.MinGross.Round(2)
	}
	hi, err := s.upperBound(ctx, req, lo)
	if err != nil {
		return nil, err
	}

	var best *Result
	iterations := 0
	for iterations < req.MaxIterations {
		iterations++

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		mid := lo.Add(hi).Div(two).Round(2)
		result, err := s.evaluate(req, mid)
		if err != nil {
			return nil, err
		}
		result.Iterations = iterations

		if best == nil || result.Gap.Abs().LessThan(best.Gap.Abs()) {
			best = result
		}
		if result.Gap.Abs().LessThanOrEqual(req.Tolerance) {
			result.Success = true
			result.ConvergenceInfo = fmt.Sprintf("Converged to target within %s", req.Tolerance.StringFixed(2))
			return s.withBase(req, result)
		}

		if result.Gap.IsNegative() {
			lo = mid
		} else {
			hi = mid
		}
		if hi.Sub(lo).LessThanOrEqual(cent) {
			best.ConvergenceInfo = fmt.Sprintf("Closest gross within one cent misses the target by %s", best.Gap.StringFixed(2))
			return s.withBase(req, best)
		}
	}

	best.Iterations = iterations
	best.ConvergenceInfo = fmt.Sprintf("Max iterations (%d) reached", req.MaxIterations)
	return s.withBase(req, best)
}

// upperBound returns MaxGross, or doubles from the target until the goal
// figure reaches it
func (s *Solver) upperBound(ctx context.Context, req Request, lo decimal.Decimal) (decimal.Decimal, error) {
	if req.Constraints.MaxGross != nil {
		return req.Constraints.MaxGross.Round(2), nil
	}

	hi := req.Constraints.Target.Round(2)
	if hi.LessThan(lo) {
		hi = lo
	}
	if req.Goal == GoalEmployerCost {
		// employer cost is never below gross pay
		return hi, nil
	}
	for i := 0; i < maxExpansions; i++ {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, err
		}
		result, err := s.evaluate(req, hi)
		if err != nil {
			return decimal.Zero, err
		}
		if !result.Gap.IsNegative() {
			return hi, nil
		}
		hi = hi.Mul(two)
	}
	return decimal.Zero, &BreakEvenError{
		Operation: "solve",
		Message:   fmt.Sprintf("no gross pay up to %s reaches %s", hi.StringFixed(2), req.Constraints.Target.StringFixed(2)),
	}
}

func (s *Solver) evaluate(req Request, gross decimal.Decimal) (*Result, error) {
	payslipReq := req.Base
	payslipReq.GrossPay = gross

	payslip, err := s.Payroll.Calculate(payslipReq)
	if err != nil {
		return nil, &BreakEvenError{
			Operation: "solve",
			Message:   fmt.Sprintf("failed to calculate payslip at gross %s", gross.StringFixed(2)),
			Cause:     err,
		}
	}

	achieved := goalFigure(req.Goal, payslip)
	return &Result{
		Request:    req,
		EmployeeID: req.Base.EmployeeID,
		Goal:       req.Goal,
		GrossPay:   gross,
		Target:     req.Constraints.Target,
		Achieved:   achieved,
		Gap:        achieved.Sub(req.Constraints.Target),
		Payslip:    payslip,
	}, nil
}

// withBase attaches the payslip at the request's own gross pay, if any
func (s *Solver) withBase(req Request, result *Result) (*Result, error) {
	if !req.Base.GrossPay.IsPositive() {
		return result, nil
	}
	base, err := s.Payroll.Calculate(req.Base)
	if err != nil {
		return nil, &BreakEvenError{
			Operation: "solve",
			Message:   "failed to calculate base payslip",
			Cause:     err,
		}
	}
	result.BasePayslip = base
	result.GrossDiffFromBase = result.GrossPay.Sub(req.Base.GrossPay)
	return result, nil
}

func goalFigure(goal Goal, p *domain.PayslipResult) decimal.Decimal {
	if goal == GoalEmployerCost {
		return p.GrossPay.Add(p.TotalEmployerContributions)
	}
	return p.NetPay
}
