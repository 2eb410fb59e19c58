package transform

import (
	"sort"
	"strings"

	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

// TemplateRegistry manages named what-if templates
type TemplateRegistry struct {
	templates map[string]Template
}

// Template is a named collection of transforms
type Template struct {
	Name        string
	Description string
	Transforms  []RequestTransform
}

// NewTemplateRegistry creates an empty template registry
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		templates: make(map[string]Template),
	}
}

// Register adds a template to the registry
func (tr *TemplateRegistry) Register(t Template) {
	tr.templates[strings.ToLower(t.Name)] = t
}

// Get retrieves a template by name (case-insensitive)
func (tr *TemplateRegistry) Get(name string) (Template, bool) {
	t, ok := tr.templates[strings.ToLower(name)]
	return t, ok
}

// List returns the sorted template names
func (tr *TemplateRegistry) List() []string {
	names := make([]string, 0, len(tr.templates))
	for name := range tr.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateBuiltInTemplates returns the common payroll what-ifs
func CreateBuiltInTemplates() *TemplateRegistry {
	registry := NewTemplateRegistry()

	for _, pct := range []int64{5, 10} {
		registry.Register(Template{
			Name:        "raise_" + decimal.NewFromInt(pct).String() + "pct",
			Description: "Raise gross pay by " + decimal.NewFromInt(pct).String() + "%",
			Transforms:  []RequestTransform{&RaiseGrossPay{Percent: decimal.NewFromInt(pct)}},
		})
	}

	registry.Register(Template{
		Name:        "next_month",
		Description: "Pay the same request one month later",
		Transforms:  []RequestTransform{&ShiftPayrollDate{Months: 1}},
	})
	registry.Register(Template{
		Name:        "last_year",
		Description: "Pay the same request twelve months earlier",
		Transforms:  []RequestTransform{&ShiftPayrollDate{Months: -12}},
	})
	registry.Register(Template{
		Name:        "no_housing_levy",
		Description: "Drop the housing levy from the payslip",
		Transforms:  []RequestTransform{&RemoveComponent{Component: domain.ComponentHousingLevy}},
	})

	return registry
}
