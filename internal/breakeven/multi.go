package breakeven

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/rgehrsitz/kepay/internal/domain"
	"golang.org/x/sync/errgroup"
)

// PreserveNet grosses up every payslip of a run so that, paid on date, each
// employee takes home what their request pays today. Results keep the order
// of reqs.
func (s *Solver) PreserveNet(ctx context.Context, reqs []domain.PayslipRequest, date civil.Date) (*RunResult, error) {
	if len(reqs) == 0 {
		return nil, &BreakEvenError{
			Operation: "preserve_net",
			Message:   "no payslips provided",
		}
	}

	results := make([]Result, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	if s.Payroll.Concurrency > 0 {
		g.SetLimit(s.Payroll.Concurrency)
	}

	for i := range reqs {
		i := i
		g.Go(func() error {
			current, err := s.Payroll.Calculate(reqs[i])
			if err != nil {
				return fmt.Errorf("payslip %d (%s): %w", i, reqs[i].EmployeeID, err)
			}

			moved := reqs[i]
			moved.PayrollDate = date
			result, err := s.Solve(ctx, Request{
				Base:        moved,
				Goal:        GoalNetPay,
				Constraints: Constraints{Target: current.NetPay},
			})
			if err != nil {
				return fmt.Errorf("payslip %d (%s): %w", i, reqs[i].EmployeeID, err)
			}
			results[i] = *result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	run := &RunResult{Date: date, Results: results}
	for _, r := range results {
		run.TotalExtraGross = run.TotalExtraGross.Add(r.GrossDiffFromBase)
	}
	run.Recommendations = runRecommendations(run)
	return run, nil
}

func runRecommendations(run *RunResult) []string {
	var recs []string

	var largest *Result
	var missed []string
	for i := range run.Results {
		r := &run.Results[i]
		if largest == nil || r.GrossDiffFromBase.GreaterThan(largest.GrossDiffFromBase) {
			largest = r
		}
		if !r.Success {
			missed = append(missed, r.EmployeeID)
		}
	}

	switch {
	case run.TotalExtraGross.IsPositive():
		recs = append(recs, fmt.Sprintf("Holding net pay on %s costs KES %s more gross across the run", run.Date, run.TotalExtraGross.StringFixed(2)))
	case run.TotalExtraGross.IsNegative():
		recs = append(recs, fmt.Sprintf("Holding net pay on %s needs KES %s less gross across the run", run.Date, run.TotalExtraGross.Neg().StringFixed(2)))
	default:
		recs = append(recs, fmt.Sprintf("Net pay on %s is unchanged at current gross", run.Date))
	}
	if largest != nil && largest.GrossDiffFromBase.IsPositive() {
		recs = append(recs, fmt.Sprintf("Largest increase: %s needs KES %s more", largest.EmployeeID, largest.GrossDiffFromBase.StringFixed(2)))
	}
	if len(missed) > 0 {
		recs = append(recs, fmt.Sprintf("Net pay could not be matched to the cent for %v", missed))
	}
	return recs
}
