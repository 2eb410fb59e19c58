package calculation

import (
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

// ReliefAmount returns the relief f grants: min(FixedLimit, basis × Percentage / 100),
// never negative. The basis is actual for BasisActual reliefs and the
// caller's basic benefits figure for BasisBasicBenefits; a nil basicBenefits
// for the latter is an error rather than a silent zero. A missing or inactive
// relief yields zero.
func ReliefAmount(f *domain.Formula, actual decimal.Decimal, basicBenefits *decimal.Decimal) (decimal.Decimal, error) {
	r := f.Relief
	if r == nil || !r.IsActive {
		return decimal.Zero, nil
	}

	basis := actual
	if r.PercentOf == domain.BasisBasicBenefits {
		if basicBenefits == nil {
			return decimal.Zero, &domain.ReliefBasisUnavailableError{FormulaID: f.ID, Basis: r.PercentOf}
		}
		basis = *basicBenefits
	}

	relief := decimal.Min(r.FixedLimit, percentOf(basis, r.Percentage))
	if relief.IsNegative() {
		return decimal.Zero, nil
	}
	return relief, nil
}

// ApplyRelief subtracts f's relief from raw and floors the result at zero.
// It returns the net amount and the relief actually taken.
func ApplyRelief(f *domain.Formula, raw decimal.Decimal, basicBenefits *decimal.Decimal) (net, relief decimal.Decimal, err error) {
	relief, err = ReliefAmount(f, raw, basicBenefits)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	net = raw.Sub(relief)
	if net.IsNegative() {
		// relief cannot exceed what it relieves
		return decimal.Zero, raw, nil
	}
	return net, relief, nil
}

// reliefKind returns the kind of f's active relief, or "" if none applies
func reliefKind(f *domain.Formula) domain.ReliefKind {
	if f.Relief == nil || !f.Relief.IsActive {
		return ""
	}
	return f.Relief.Kind
}
