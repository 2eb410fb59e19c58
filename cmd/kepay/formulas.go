package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rgehrsitz/kepay/internal/calculation"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/spf13/cobra"
)

var resolveOpts struct {
	component string
	typ       string
	category  string
	date      string
	override  string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show the formula that applies to a group on a date",
	Example: `  kepay resolve --component paye --date 2024-12-20
  kepay resolve --type deduction --category social_security_fund --date 2025-01-31 --override nssf-2024`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		group, err := groupFromFlags(resolveOpts.component, resolveOpts.typ, resolveOpts.category)
		if err != nil {
			return err
		}
		date, err := parseDate(resolveOpts.date)
		if err != nil {
			return err
		}

		rt, err := loadRuntime(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.resolver.ResolveDetailed(group, date, resolveOpts.override)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			rt.log.Warn(w)
		}

		if outputFormat("console") == "json" {
			return writeJSON(cmd.OutOrStdout(), resolutionView(res, date))
		}
		writeResolution(cmd.OutOrStdout(), res, date)
		return nil
	},
}

var formulasOpts struct {
	typ      string
	category string
}

var formulasCmd = &cobra.Command{
	Use:     "formulas",
	Aliases: []string{"list"},
	Short:   "List the formulas in the catalog",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		var rows []domain.Formula
		groups := 0
		for _, g := range rt.catalog.Groups() {
			if formulasOpts.typ != "" && string(g.Type) != formulasOpts.typ {
				continue
			}
			if formulasOpts.category != "" && string(g.Category) != formulasOpts.category {
				continue
			}
			groups++
			rows = append(rows, rt.catalog.List(g)...)
		}

		if outputFormat("console") == "json" {
			views := make([]formulaView, 0, len(rows))
			for i := range rows {
				views = append(views, newFormulaView(&rows[i]))
			}
			return writeJSON(cmd.OutOrStdout(), views)
		}
		fmt.Fprintln(cmd.OutOrStdout(), formulaTable(rows))
		fmt.Fprintf(cmd.OutOrStdout(), "%d formulas, %d groups\n", len(rows), groups)
		return nil
	},
}

var activateExpect string

var activateCmd = &cobra.Command{
	Use:   "activate [formula-id]",
	Short: "Make a formula the current one of its group",
	Long: `Activate marks a formula current and demotes the group's previous current
formula to superseded. With --expect the write only happens if the named
formula is still current, so two operators cannot silently overwrite each
other.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := loadRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		var f domain.Formula
		if activateExpect != "" {
			f, err = rt.catalog.CompareAndActivate(ctx, args[0], activateExpect)
		} else {
			f, err = rt.catalog.Activate(ctx, args[0])
		}
		if err != nil {
			return err
		}
		warnIfVolatile(rt)
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now current for %s\n", f.ID, f.Version, f.Key())
		return nil
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate [formula-id]",
	Short: "Mark a current formula superseded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := loadRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		f, err := rt.catalog.Deactivate(ctx, args[0])
		if err != nil {
			return err
		}
		warnIfVolatile(rt)
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s; %s has no current formula\n", f.ID, f.Version, f.Status, f.Key())
		return nil
	},
}

func warnIfVolatile(rt *runtime) {
	if !rt.Persistent() {
		rt.log.Warn("catalog source is a YAML file; the change is not saved. Import the file with 'kepay import' to keep lifecycle changes")
	}
}

// groupFromFlags takes either a component key or an explicit type and category
func groupFromFlags(component, typ, category string) (domain.GroupKey, error) {
	if component != "" {
		group, ok := domain.DefaultComponentRegistry().Lookup(domain.ComponentKey(component))
		if !ok {
			return domain.GroupKey{}, fmt.Errorf("unknown component %q", component)
		}
		return group, nil
	}
	if typ == "" || category == "" {
		return domain.GroupKey{}, fmt.Errorf("either --component or both --type and --category are required")
	}
	return domain.GroupKey{Type: domain.FormulaType(typ), Category: domain.Category(category)}, nil
}

// parseDate parses YYYY-MM-DD; an empty value means today
func parseDate(s string) (civil.Date, error) {
	if s == "" {
		return civil.DateOf(time.Now()), nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

type tierView struct {
	From string `json:"from"`
	To   string `json:"to,omitempty"`
	Rate string `json:"rate"`
}

type formulaView struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Category         string     `json:"category"`
	Component        string     `json:"component,omitempty"`
	Version          string     `json:"version"`
	EffectiveFrom    string     `json:"effective_from"`
	EffectiveTo      string     `json:"effective_to,omitempty"`
	Status           string     `json:"status"`
	RegulatorySource string     `json:"regulatory_source,omitempty"`
	Tiers            []tierView `json:"tiers"`
}

func newFormulaView(f *domain.Formula) formulaView {
	v := formulaView{
		ID:               f.ID,
		Type:             string(f.Type),
		Category:         string(f.Category),
		Version:          f.Version,
		EffectiveFrom:    f.EffectiveFrom.String(),
		Status:           string(f.Status),
		RegulatorySource: f.RegulatorySource,
	}
	if key, ok := domain.DefaultComponentRegistry().ComponentFor(f.Key()); ok {
		v.Component = string(key)
	}
	if f.EffectiveTo != nil {
		v.EffectiveTo = f.EffectiveTo.String()
	}
	for _, t := range f.Tiers {
		tv := tierView{From: t.AmountFrom.StringFixed(2), Rate: t.Rate.String()}
		if t.AmountTo != nil {
			tv.To = t.AmountTo.StringFixed(2)
		}
		v.Tiers = append(v.Tiers, tv)
	}
	return v
}

type resolutionJSON struct {
	Date     string      `json:"date"`
	Source   string      `json:"source"`
	Warnings []string    `json:"warnings,omitempty"`
	Formula  formulaView `json:"formula"`
}

func resolutionView(res calculation.Resolution, date civil.Date) resolutionJSON {
	return resolutionJSON{
		Date:     date.String(),
		Source:   string(res.Source),
		Warnings: res.Warnings,
		Formula:  newFormulaView(&res.Formula),
	}
}

func writeResolution(w io.Writer, res calculation.Resolution, date civil.Date) {
	f := &res.Formula
	effective := f.EffectiveFrom.String() + " onwards"
	if f.EffectiveTo != nil {
		effective = f.EffectiveFrom.String() + " to " + f.EffectiveTo.String()
	}

	fmt.Fprintf(w, "%s on %s\n", f.Key(), date)
	fmt.Fprintf(w, "  Formula:   %s (%s)\n", f.ID, f.Version)
	fmt.Fprintf(w, "  Source:    %s\n", res.Source)
	fmt.Fprintf(w, "  Status:    %s\n", f.Status)
	fmt.Fprintf(w, "  Effective: %s\n", effective)
	if f.RegulatorySource != "" {
		fmt.Fprintf(w, "  Authority: %s\n", f.RegulatorySource)
	}
	if f.Relief != nil && f.Relief.IsActive {
		fmt.Fprintf(w, "  Relief:    %s, limit %s\n", f.Relief.Kind, f.Relief.FixedLimit.StringFixed(2))
	}
	fmt.Fprintln(w, "  Tiers:")
	for _, t := range newFormulaView(f).Tiers {
		to := "and above"
		if t.To != "" {
			to = "to " + t.To
		}
		fmt.Fprintf(w, "    %s %s: %s\n", t.From, to, t.Rate)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}

func formulaTable(formulas []domain.Formula) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	registry := domain.DefaultComponentRegistry()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "COMPONENT", "GROUP", "VERSION", "FROM", "TO", "STATUS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, f := range formulas {
		to := ""
		if f.EffectiveTo != nil {
			to = f.EffectiveTo.String()
		}
		component, _ := registry.ComponentFor(f.Key())
		t.Row(f.ID, string(component), f.Key().String(), f.Version, f.EffectiveFrom.String(), to, string(f.Status))
	}
	return t.Render()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, strings.TrimSpace(string(data)))
	return err
}

func init() {
	rf := resolveCmd.Flags()
	rf.StringVar(&resolveOpts.component, "component", "", "Component key, e.g. paye or nssf")
	rf.StringVar(&resolveOpts.typ, "type", "", "Formula type (income, deduction, fbt)")
	rf.StringVar(&resolveOpts.category, "category", "", "Formula category")
	rf.StringVar(&resolveOpts.date, "date", "", "Payroll date YYYY-MM-DD (default today)")
	rf.StringVar(&resolveOpts.override, "override", "", "Formula id to use instead of normal resolution")

	formulasCmd.Flags().StringVar(&formulasOpts.typ, "type", "", "Only formulas of this type")
	formulasCmd.Flags().StringVar(&formulasOpts.category, "category", "", "Only formulas of this category")

	activateCmd.Flags().StringVar(&activateExpect, "expect", "", "Only activate if this formula id is still current")
}
