package calculation

import (
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

// Split divides amount into employee and employer liabilities. The two
// percentages are independent: 100/100 means each party owes the full amount.
func Split(amount decimal.Decimal, ratio domain.SplitRatio) (employee, employer decimal.Decimal) {
	return percentOf(amount, ratio.EmployeePercentage), percentOf(amount, ratio.EmployerPercentage)
}
