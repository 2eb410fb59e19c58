package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rgehrsitz/kepay/internal/compare"
	"github.com/rgehrsitz/kepay/internal/config"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/rgehrsitz/kepay/internal/transform"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var compareOpts struct {
	employee  string
	date      string
	gross     string
	overrides []string
	presets   []string
	with      []string
	compact   bool
	list      bool
	payslips  bool
}

var compareCmd = &cobra.Command{
	Use:   "compare [payslips-file]",
	Short: "Compare one payslip under alternative dates, pay, formulas or orders",
	Long: `Compare calculates one employee's payslip as given and again under each
alternative, then reports the differences in net pay, PAYE and employer cost.

--date, --gross and --override together form one what-if alternative. Each
--preset adds a built-in deduction order:
  order-2025       SHIF and housing levy deducted before PAYE
  order-pre-2025   SHIF and housing levy deducted after PAYE

Each --with adds a template (see --list-templates) or a transform spec such as
raise_gross:percent=10 or override:component=nssf,formula=nssf-2024.

Formats: table (default), json, csv.`,
	Example: `  kepay compare testdata/payslips.yaml --employee E001 --date 2024-12-20
  kepay compare testdata/payslips.yaml --override nssf=nssf-2024 --preset order-pre-2025
  kepay compare testdata/payslips.yaml --gross 60000 --format csv
  kepay compare testdata/payslips.yaml --with raise_10pct --with shift_date:months=-1
  kepay compare --list-templates`,
	Args: func(cmd *cobra.Command, args []string) error {
		if compareOpts.list {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if compareOpts.list {
			writeTemplates(cmd.OutOrStdout())
			return nil
		}

		run, err := config.NewInputParser().LoadPayrollRun(args[0])
		if err != nil {
			return err
		}
		base, err := pickPayslip(run, compareOpts.employee)
		if err != nil {
			return err
		}
		alternatives, err := buildAlternatives()
		if err != nil {
			return err
		}

		rt, err := loadRuntime(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		set, err := compare.NewCompareEngine(rt.engine).Compare(base, alternatives)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch format := outputFormat("table"); format {
		case "csv":
			s, err := (&compare.CSVFormatter{}).Format(set)
			if err != nil {
				return err
			}
			fmt.Fprint(out, s)
		case "json":
			s, err := (&compare.JSONFormatter{Pretty: true, Payslips: compareOpts.payslips}).Format(set)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, s)
		case "table", "console":
			tf := &compare.TableFormatter{}
			if compareOpts.compact {
				fmt.Fprintln(out, tf.FormatCompact(set))
			} else {
				fmt.Fprint(out, tf.Format(set))
			}
		default:
			return fmt.Errorf("unsupported format: %s (want table, json or csv)", format)
		}
		return nil
	},
}

func pickPayslip(run *config.PayrollRun, employee string) (domain.PayslipRequest, error) {
	if employee == "" {
		return run.Payslips[0], nil
	}
	for _, p := range run.Payslips {
		if p.EmployeeID == employee {
			return p, nil
		}
	}
	return domain.PayslipRequest{}, fmt.Errorf("employee %s not found in payroll run", employee)
}

func buildAlternatives() ([]compare.Alternative, error) {
	var alts []compare.Alternative

	whatIf := compare.Alternative{Name: "what-if"}
	changed := false
	if compareOpts.date != "" {
		d, err := parseDate(compareOpts.date)
		if err != nil {
			return nil, err
		}
		whatIf.PayrollDate = &d
		changed = true
	}
	if compareOpts.gross != "" {
		g, err := decimal.NewFromString(compareOpts.gross)
		if err != nil {
			return nil, fmt.Errorf("invalid gross pay %q: %w", compareOpts.gross, err)
		}
		if g.IsNegative() {
			return nil, fmt.Errorf("gross pay cannot be negative")
		}
		whatIf.GrossPay = &g
		changed = true
	}
	if len(compareOpts.overrides) > 0 {
		overrides, err := parseOverrides(compareOpts.overrides)
		if err != nil {
			return nil, err
		}
		whatIf.Overrides = overrides
		changed = true
	}
	if changed {
		alts = append(alts, whatIf)
	}

	for _, name := range compareOpts.presets {
		p, ok := compare.Preset(name)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(compare.PresetNames(), ", "))
		}
		alts = append(alts, p)
	}

	templates := transform.CreateBuiltInTemplates()
	registry := transform.NewTransformRegistry()
	for _, spec := range compareOpts.with {
		if tmpl, ok := templates.Get(spec); ok {
			alts = append(alts, compare.Alternative{Name: tmpl.Name, Description: tmpl.Description, Transforms: tmpl.Transforms})
			continue
		}
		t, err := registry.ParseTransformSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("--with %s: %w", spec, err)
		}
		alts = append(alts, compare.Alternative{Name: t.Name(), Transforms: []transform.RequestTransform{t}})
	}

	if len(alts) == 0 {
		return nil, fmt.Errorf("nothing to compare: give --date, --gross, --override, --preset or --with")
	}
	return alts, nil
}

func writeTemplates(w io.Writer) {
	templates := transform.CreateBuiltInTemplates()
	fmt.Fprintln(w, "Templates:")
	for _, name := range templates.List() {
		tmpl, _ := templates.Get(name)
		fmt.Fprintf(w, "  %-18s %s\n", name, tmpl.Description)
	}
	fmt.Fprintln(w, "Presets:")
	for _, name := range compare.PresetNames() {
		p, _ := compare.Preset(name)
		fmt.Fprintf(w, "  %-18s %s\n", name, p.Description)
	}
	fmt.Fprintf(w, "Transforms: %s\n", strings.Join(transform.NewTransformRegistry().List(), ", "))
}

// parseOverrides reads component=formula-id pairs
func parseOverrides(pairs []string) (map[domain.ComponentKey]string, error) {
	out := make(map[domain.ComponentKey]string, len(pairs))
	for _, p := range pairs {
		key, id, ok := strings.Cut(p, "=")
		if !ok || key == "" || id == "" {
			return nil, fmt.Errorf("invalid override %q: want component=formula-id", p)
		}
		out[domain.ComponentKey(key)] = id
	}
	return out, nil
}

func init() {
	cf := compareCmd.Flags()
	cf.BoolVar(&compareOpts.payslips, "payslips", false, "Include every full payslip in JSON output")
	cf.StringVar(&compareOpts.employee, "employee", "", "Employee to compare (default the first payslip)")
	cf.StringVar(&compareOpts.date, "date", "", "Alternative payroll date YYYY-MM-DD")
	cf.StringVar(&compareOpts.gross, "gross", "", "Alternative gross pay")
	cf.StringSliceVar(&compareOpts.overrides, "override", nil, "Alternative formula override component=formula-id (repeatable)")
	cf.StringSliceVar(&compareOpts.presets, "preset", nil, "Built-in alternative to add (repeatable)")
	cf.StringArrayVar(&compareOpts.with, "with", nil, "Template name or transform spec to add as an alternative (repeatable)")
	cf.BoolVar(&compareOpts.list, "list-templates", false, "List templates, presets and transforms")
	cf.BoolVar(&compareOpts.compact, "compact", false, "Print a one-line net pay summary")
}
