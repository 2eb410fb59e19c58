package sequencing

import (
	"github.com/rgehrsitz/kepay/internal/domain"
)

// CreateStrategy returns the strategy registered under name. Unknown names
// fall back to the declared strategy.
func CreateStrategy(name string, custom []domain.PhaseOrder) Strategy {
	switch name {
	case "", "declared":
		return NewDeclaredStrategy()
	case "custom":
		return NewCustomStrategy(custom)
	default:
		return NewDeclaredStrategy()
	}
}

// CreateEntries pairs each component with its resolved formula, keeping the
// payslip's component order
func CreateEntries(components []domain.ComponentKey, formulas map[domain.ComponentKey]*domain.Formula) []Entry {
	entries := make([]Entry, 0, len(components))
	for _, c := range components {
		entries = append(entries, Entry{Component: c, Formula: formulas[c]})
	}
	return entries
}
