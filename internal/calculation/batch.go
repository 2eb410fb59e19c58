package calculation

import (
	"context"
	"fmt"

	"github.com/rgehrsitz/kepay/internal/domain"
	"golang.org/x/sync/errgroup"
)

// CalculateBatch computes many payslips concurrently. Results keep the order
// of reqs. The first failure stops payslips that have not started yet and is
// returned with the employee it belongs to.
func (e *PayrollEngine) CalculateBatch(ctx context.Context, reqs []domain.PayslipRequest) ([]*domain.PayslipResult, error) {
	results := make([]*domain.PayslipResult, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	if e.Concurrency > 0 {
		g.SetLimit(e.Concurrency)
	}

	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.Calculate(reqs[i])
			if err != nil {
				return fmt.Errorf("payslip %d (%s): %w", i, reqs[i].EmployeeID, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.Logger.Infof("calculated %d payslips", len(results))
	return results, nil
}
