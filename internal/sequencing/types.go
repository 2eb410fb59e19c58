package sequencing

import (
	"github.com/rgehrsitz/kepay/internal/domain"
)

// Entry is one component present on a payslip together with the formula
// resolved for it. Formula may be nil when the component has no formula of
// its own in play; it then lands wherever the income order puts it, else Final.
type Entry struct {
	Component domain.ComponentKey
	Formula   *domain.Formula
}

// Step is one non-empty phase of a plan. Components run in the listed order.
type Step struct {
	Phase      domain.Phase
	Components []domain.ComponentKey
}

// Placement records why a component landed in its phase
type Placement string

const (
	PlacedByIncome  Placement = "income_order"
	PlacedByOwn     Placement = "own_formula"
	PlacedByDefault Placement = "default"
	PlacedByCustom  Placement = "custom"
)

// Plan is the phase-ordered calculation sequence for one payslip
// Steps: non-empty phases in canonical order
// Placements: how each component's phase was decided
// Notes: strategy-specific notes or warnings
// StrategyUsed: resolved strategy after fallbacks
type Plan struct {
	Steps        []Step
	Placements   map[domain.ComponentKey]Placement
	Notes        []string
	StrategyUsed string
}

// PhaseOf returns the phase component was placed in
func (p Plan) PhaseOf(component domain.ComponentKey) (domain.Phase, bool) {
	for _, s := range p.Steps {
		for _, c := range s.Components {
			if c == component {
				return s.Phase, true
			}
		}
	}
	return "", false
}

// Components returns every planned component in execution order
func (p Plan) Components() []domain.ComponentKey {
	var out []domain.ComponentKey
	for _, s := range p.Steps {
		out = append(out, s.Components...)
	}
	return out
}

// Strategy decides the phase of every payslip component. Implementations are
// pure functions of formula metadata.
type Strategy interface {
	Name() string
	Plan(income *domain.Formula, entries []Entry) Plan
}

// build groups placed components into canonical phase order, dropping empty
// phases. Within a phase, components follow their order in ranked.
func build(placed map[domain.ComponentKey]domain.Phase, ranked []domain.ComponentKey) []Step {
	var steps []Step
	for _, phase := range domain.Phases {
		var comps []domain.ComponentKey
		for _, c := range ranked {
			if placed[c] == phase {
				comps = append(comps, c)
			}
		}
		if len(comps) > 0 {
			steps = append(steps, Step{Phase: phase, Components: comps})
		}
	}
	return steps
}
