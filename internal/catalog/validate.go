package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rgehrsitz/kepay/internal/domain"
)

// Severity grades an integrity finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one integrity problem in a formula set
type Finding struct {
	Severity   Severity
	Group      domain.GroupKey
	FormulaIDs []string
	Message    string
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Group, f.Message)
}

// Report collects the findings of Validate
type Report struct {
	Findings []Finding
}

// HasErrors reports whether any finding is an error
func (r *Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error findings
func (r *Report) Errors() []Finding {
	return r.filter(SeverityError)
}

// Warnings returns only the warning findings
func (r *Report) Warnings() []Finding {
	return r.filter(SeverityWarning)
}

func (r *Report) filter(s Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

func (r *Report) add(s Severity, group domain.GroupKey, msg string, ids ...string) {
	r.Findings = append(r.Findings, Finding{Severity: s, Group: group, FormulaIDs: ids, Message: msg})
}

// Validate inspects a formula set without rejecting it on the first problem.
// Malformed formulas and groups with several current formulas are errors;
// overlapping effective windows and groups with no current formula are
// warnings, since resolution still has a deterministic answer for them.
func Validate(formulas []domain.Formula) *Report {
	report := &Report{}
	groups := make(map[domain.GroupKey][]*domain.Formula)
	seen := make(map[string]bool)

	for i := range formulas {
		f := &formulas[i]
		if seen[f.ID] {
			report.add(SeverityError, f.Key(), fmt.Sprintf("duplicate formula id %s", f.ID), f.ID)
			continue
		}
		seen[f.ID] = true
		if err := f.Validate(); err != nil {
			var malformed *domain.MalformedFormulaDataError
			if errors.As(err, &malformed) {
				report.add(SeverityError, f.Key(), malformed.Error(), f.ID)
			} else {
				report.add(SeverityError, f.Key(), err.Error(), f.ID)
			}
			continue
		}
		groups[f.Key()] = append(groups[f.Key()], f)
	}

	keys := make([]domain.GroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, key := range keys {
		members := groups[key]
		sort.SliceStable(members, func(i, j int) bool { return members[j].Newer(members[i]) })

		var current []string
		for _, f := range members {
			if f.IsCurrent() {
				current = append(current, f.ID)
			}
		}
		switch len(current) {
		case 0:
			report.add(SeverityWarning, key, "no current formula; resolution outside effective windows will fall back")
		case 1:
		default:
			report.add(SeverityError, key, fmt.Sprintf("%d formulas marked current", len(current)), current...)
		}

		for _, pair := range Overlaps(members) {
			report.add(SeverityWarning, key,
				fmt.Sprintf("effective windows of %q and %q overlap", pair[0].Version, pair[1].Version),
				pair[0].ID, pair[1].ID)
		}
	}
	return report
}

// Overlaps returns every pair of formulas whose effective windows intersect
func Overlaps(formulas []*domain.Formula) [][2]*domain.Formula {
	var out [][2]*domain.Formula
	for i := 0; i < len(formulas); i++ {
		for j := i + 1; j < len(formulas); j++ {
			if windowsOverlap(formulas[i], formulas[j]) {
				out = append(out, [2]*domain.Formula{formulas[i], formulas[j]})
			}
		}
	}
	return out
}

func windowsOverlap(a, b *domain.Formula) bool {
	// [a.from, a.to) and [b.from, b.to) intersect iff each starts before the other ends
	aStartsBeforeBEnds := b.EffectiveTo == nil || a.EffectiveFrom.Before(*b.EffectiveTo)
	bStartsBeforeAEnds := a.EffectiveTo == nil || b.EffectiveFrom.Before(*a.EffectiveTo)
	return aStartsBeforeBEnds && bStartsBeforeAEnds
}
