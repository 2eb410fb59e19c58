package components

import (
	"fmt"
	"strings"

	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/rgehrsitz/kepay/internal/tui/tuistyles"
)

// FormulaDetail renders everything the browser shows about one formula
func FormulaDetail(f domain.Formula) string {
	var b strings.Builder

	b.WriteString(tuistyles.TitleStyle.Render(f.Version))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(tuistyles.LabelStyle.Render(fmt.Sprintf("%-11s", label)))
		b.WriteString(" ")
		b.WriteString(tuistyles.ValueStyle.Render(value))
		b.WriteString("\n")
	}

	field("ID", f.ID)
	field("Group", f.Key().String())
	field("Status", tuistyles.StatusStyle(string(f.Status)).Render(string(f.Status)))
	field("Effective", effectiveWindow(f))
	field("Source", f.RegulatorySource)
	if r := f.Relief; r != nil && r.IsActive {
		field("Relief", fmt.Sprintf("%s, %s%% of %s up to %s", r.Kind, r.Percentage, r.PercentOf, r.FixedLimit.StringFixed(2)))
	}
	split := f.Split()
	field("Split", fmt.Sprintf("employee %s%% / employer %s%%", split.EmployeePercentage, split.EmployerPercentage))
	if f.MinimumAmount != nil {
		field("Minimum", f.MinimumAmount.StringFixed(2))
	}
	for _, po := range f.DeductionOrder {
		names := make([]string, len(po.Components))
		for i, c := range po.Components {
			names[i] = string(c)
		}
		field(string(po.Phase), strings.Join(names, ", "))
	}

	b.WriteString("\n")
	b.WriteString(TierTable(f.Tiers))

	if f.Notes != "" {
		b.WriteString("\n")
		b.WriteString(tuistyles.InfoStyle.Render(f.Notes))
	}
	return b.String()
}

// TierTable renders tiers one per line
func TierTable(tiers []domain.Tier) string {
	var b strings.Builder
	b.WriteString(tuistyles.LabelStyle.Render(fmt.Sprintf("%12s  %12s  %s", "From", "To", "Rate")))
	b.WriteString("\n")
	for _, t := range tiers {
		to := "∞"
		if t.AmountTo != nil {
			to = t.AmountTo.StringFixed(2)
		}
		rate := "?"
		if t.Rate != nil {
			rate = t.Rate.String()
		}
		b.WriteString(fmt.Sprintf("%12s  %12s  %s\n", t.AmountFrom.StringFixed(2), to, rate))
	}
	return b.String()
}

func effectiveWindow(f domain.Formula) string {
	if f.EffectiveTo == nil {
		return f.EffectiveFrom.String() + " onwards"
	}
	return f.EffectiveFrom.String() + " to " + f.EffectiveTo.String()
}
