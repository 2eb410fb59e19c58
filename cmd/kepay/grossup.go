package main

import (
	"fmt"

	"github.com/rgehrsitz/kepay/internal/breakeven"
	"github.com/rgehrsitz/kepay/internal/config"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var grossupOpts struct {
	employee     string
	net          string
	employerCost string
	preserveOn   string
}

var grossupCmd = &cobra.Command{
	Use:   "grossup [payslips-file]",
	Short: "Find the gross pay that yields a target net pay or employer cost",
	Long: `Grossup solves a payslip backwards. With --net it finds the gross pay that
pays exactly that net; with --employer-cost the gross pay whose total cost
to the employer is that budget. With --preserve-net-on it grosses up every
payslip in the run so each employee keeps today's net pay on another date.

Formats: table (default), json.`,
	Example: `  kepay grossup testdata/payslips.yaml --employee E001 --net 45000
  kepay grossup testdata/payslips.yaml --employee E002 --employer-cost 160000
  kepay grossup testdata/payslips.yaml --preserve-net-on 2024-12-20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		run, err := config.NewInputParser().LoadPayrollRun(args[0])
		if err != nil {
			return err
		}

		format := outputFormat("table")
		if format != "table" && format != "console" && format != "json" {
			return fmt.Errorf("unsupported format: %s (want table or json)", format)
		}

		req := breakeven.Request{}
		if grossupOpts.preserveOn == "" {
			req, err = grossupRequest(run)
			if err != nil {
				return err
			}
		}

		rt, err := loadRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		solver := breakeven.NewDefaultSolver(rt.engine)
		out := cmd.OutOrStdout()

		if grossupOpts.preserveOn != "" {
			date, err := parseDate(grossupOpts.preserveOn)
			if err != nil {
				return err
			}
			result, err := solver.PreserveNet(ctx, run.Payslips, date)
			if err != nil {
				return err
			}
			if format == "json" {
				s, err := (&breakeven.JSONFormatter{Pretty: true}).Format(result)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, s)
				return nil
			}
			fmt.Fprint(out, (&breakeven.TableFormatter{}).FormatRun(result))
			return nil
		}

		result, err := solver.Solve(ctx, req)
		if err != nil {
			return err
		}
		if !result.Success {
			rt.log.Warn(result.ConvergenceInfo)
		}
		if format == "json" {
			s, err := (&breakeven.JSONFormatter{Pretty: true}).Format(result)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, s)
			return nil
		}
		fmt.Fprint(out, (&breakeven.TableFormatter{}).Format(result))
		return nil
	},
}

func grossupRequest(run *config.PayrollRun) (breakeven.Request, error) {
	base, err := pickPayslip(run, grossupOpts.employee)
	if err != nil {
		return breakeven.Request{}, err
	}

	var goal breakeven.Goal
	var raw string
	switch {
	case grossupOpts.net != "" && grossupOpts.employerCost != "":
		return breakeven.Request{}, fmt.Errorf("--net and --employer-cost are mutually exclusive")
	case grossupOpts.net != "":
		goal, raw = breakeven.GoalNetPay, grossupOpts.net
	case grossupOpts.employerCost != "":
		goal, raw = breakeven.GoalEmployerCost, grossupOpts.employerCost
	default:
		return breakeven.Request{}, fmt.Errorf("one of --net, --employer-cost or --preserve-net-on is required")
	}

	target, err := decimal.NewFromString(raw)
	if err != nil {
		return breakeven.Request{}, fmt.Errorf("invalid target %q: %w", raw, err)
	}
	return breakeven.Request{
		Base:        base,
		Goal:        goal,
		Constraints: breakeven.Constraints{Target: target},
	}, nil
}

func init() {
	gf := grossupCmd.Flags()
	gf.StringVar(&grossupOpts.employee, "employee", "", "Employee to gross up (default the first payslip)")
	gf.StringVar(&grossupOpts.net, "net", "", "Target net pay")
	gf.StringVar(&grossupOpts.employerCost, "employer-cost", "", "Target total employer cost")
	gf.StringVar(&grossupOpts.preserveOn, "preserve-net-on", "", "Gross up the whole run to keep net pay on this date")
}
