package calculation

import (
	"errors"
	"fmt"

	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/rgehrsitz/kepay/internal/sequencing"
	"github.com/shopspring/decimal"
)

// PayrollEngine turns a PayslipRequest into a fully itemised PayslipResult:
// it resolves every component's formula, sequences the components by phase
// and walks the phases, letting before-tax deductions reduce taxable pay.
type PayrollEngine struct {
	Resolver    *Resolver
	Registry    *domain.ComponentRegistry
	Strategy    sequencing.Strategy
	Logger      Logger
	Concurrency int // batch fan-out limit; <= 0 means unlimited
}

// NewPayrollEngine creates an engine with the default component registry and
// the declared sequencing strategy
func NewPayrollEngine(resolver *Resolver) *PayrollEngine {
	return &PayrollEngine{
		Resolver: resolver,
		Registry: domain.DefaultComponentRegistry(),
		Strategy: sequencing.NewDeclaredStrategy(),
		Logger:   NopLogger{},
	}
}

// SetLogger sets the logger for the engine and its resolver; nil installs a no-op logger
func (e *PayrollEngine) SetLogger(logger Logger) {
	if logger == nil {
		logger = NopLogger{}
	}
	e.Logger = logger
	if e.Resolver != nil {
		e.Resolver.SetLogger(logger)
	}
}

// WithStrategy returns a shallow copy of e using strategy for sequencing
func (e *PayrollEngine) WithStrategy(strategy sequencing.Strategy) *PayrollEngine {
	c := *e
	c.Strategy = strategy
	return &c
}

type resolvedComponent struct {
	key     domain.ComponentKey
	formula domain.Formula
	source  domain.ResolutionSource
}

// Calculate computes one payslip
func (e *PayrollEngine) Calculate(req domain.PayslipRequest) (*domain.PayslipResult, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	result := &domain.PayslipResult{
		EmployeeID:                 req.EmployeeID,
		PayrollDate:                req.PayrollDate,
		GrossPay:                   req.GrossPay,
		TotalEmployeeDeductions:    decimal.Zero,
		TotalEmployerContributions: decimal.Zero,
	}

	resolved := make(map[domain.ComponentKey]*resolvedComponent, len(req.Components))
	formulas := make(map[domain.ComponentKey]*domain.Formula, len(req.Components))
	var income *domain.Formula

	for _, key := range req.Components {
		group, ok := e.Registry.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownComponent, key)
		}
		res, err := e.Resolver.ResolveDetailed(group, req.PayrollDate, req.Overrides[key])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", key, err)
		}
		result.Warnings = append(result.Warnings, res.Warnings...)

		rc := &resolvedComponent{key: key, formula: res.Formula, source: res.Source}
		resolved[key] = rc
		formulas[key] = &rc.formula
		if group.Type == domain.FormulaTypeIncome && income == nil {
			income = &rc.formula
		}
		e.Logger.Debugf("%s: %s via %s", key, rc.formula.Label(), res.Source)
	}

	// Sequencing follows the income regime even when PAYE is not on the payslip
	if income == nil {
		income = e.incomeFormula(req)
	}

	plan := e.Strategy.Plan(income, sequencing.CreateEntries(req.Components, formulas))
	result.Warnings = append(result.Warnings, plan.Notes...)

	taxable := req.GrossPay
	for _, step := range plan.Steps {
		for _, key := range step.Components {
			rc := resolved[key]
			base := req.GrossPay
			if step.Phase == domain.PhaseAfterTax {
				base = taxable
			}
			if override, ok := req.Bases[key]; ok {
				base = override
			}

			line, err := e.computeLine(rc, step.Phase, base, basisValue(req, key))
			if err != nil {
				return nil, fmt.Errorf("failed to calculate %s: %w", key, err)
			}
			result.Components = append(result.Components, line)
			result.TotalEmployeeDeductions = result.TotalEmployeeDeductions.Add(line.EmployeeAmount)
			result.TotalEmployerContributions = result.TotalEmployerContributions.Add(line.EmployerAmount)

			if step.Phase == domain.PhaseBeforeTax {
				taxable = decimal.Max(decimal.Zero, taxable.Sub(line.EmployeeAmount))
			}
		}
	}

	result.TaxablePay = taxable
	result.NetPay = req.GrossPay.Sub(result.TotalEmployeeDeductions)
	e.Logger.Debugf("payslip %s %s: gross %s taxable %s net %s",
		req.EmployeeID, req.PayrollDate, req.GrossPay.StringFixed(2), taxable.StringFixed(2), result.NetPay.StringFixed(2))
	return result, nil
}

// computeLine runs one component through its formula. A deductible relief
// lowers the base before the tiers; any other relief lowers the computed amount.
func (e *PayrollEngine) computeLine(rc *resolvedComponent, phase domain.Phase, base decimal.Decimal, basic *decimal.Decimal) (domain.ComponentResult, error) {
	f := &rc.formula
	line := domain.ComponentResult{
		Component:      rc.key,
		FormulaID:      f.ID,
		FormulaVersion: f.Version,
		Source:         rc.source,
		Phase:          phase,
		Base:           base,
	}

	switch reliefKind(f) {
	case domain.ReliefDeductible:
		relief, err := ReliefAmount(f, base, basic)
		if err != nil {
			return line, err
		}
		reduced := decimal.Max(decimal.Zero, base.Sub(relief))
		raw, err := Evaluate(f, reduced)
		if err != nil {
			return line, err
		}
		raw = applyMinimum(f, raw)
		line.RawAmount = raw
		line.ReliefAmount = base.Sub(reduced)
		line.NetAmount = raw
	default:
		raw, err := Evaluate(f, base)
		if err != nil {
			return line, err
		}
		raw = applyMinimum(f, raw)
		net, relief, err := ApplyRelief(f, raw, basic)
		if err != nil {
			return line, err
		}
		line.RawAmount = raw
		line.ReliefAmount = relief
		line.NetAmount = net
	}

	line.EmployeeAmount, line.EmployerAmount = Split(line.NetAmount, f.Split())
	return line, nil
}

// incomeFormula resolves the primary income formula for sequencing only. A
// missing one is not an error here; components then fall back to their own phases.
func (e *PayrollEngine) incomeFormula(req domain.PayslipRequest) *domain.Formula {
	group, ok := e.Registry.Lookup(domain.ComponentPAYE)
	if !ok {
		return nil
	}
	res, err := e.Resolver.ResolveDetailed(group, req.PayrollDate, "")
	if err != nil {
		if !errors.Is(err, domain.ErrNoEffectiveFormula) {
			e.Logger.Warnf("income formula unavailable for sequencing: %v", err)
		}
		return nil
	}
	return &res.Formula
}

func applyMinimum(f *domain.Formula, raw decimal.Decimal) decimal.Decimal {
	if f.MinimumAmount == nil {
		return raw
	}
	return decimal.Max(raw, *f.MinimumAmount)
}

func basisValue(req domain.PayslipRequest, key domain.ComponentKey) *decimal.Decimal {
	v, ok := req.BasisValues[key]
	if !ok {
		return nil
	}
	return &v
}

func validateRequest(req *domain.PayslipRequest) error {
	if req.GrossPay.IsNegative() {
		return fmt.Errorf("gross pay cannot be negative: %s", req.GrossPay)
	}
	if !req.PayrollDate.IsValid() {
		return fmt.Errorf("invalid payroll date %q", req.PayrollDate)
	}
	if len(req.Components) == 0 {
		return fmt.Errorf("payslip has no components")
	}
	seen := make(map[domain.ComponentKey]bool, len(req.Components))
	for _, c := range req.Components {
		if seen[c] {
			return fmt.Errorf("component %s listed twice", c)
		}
		seen[c] = true
	}
	for c := range req.Overrides {
		if !seen[c] {
			return fmt.Errorf("override given for component %s which is not on the payslip", c)
		}
	}
	return nil
}
