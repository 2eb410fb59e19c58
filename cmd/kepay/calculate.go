package main

import (
	"fmt"

	"github.com/rgehrsitz/kepay/internal/config"
	"github.com/rgehrsitz/kepay/internal/output"
	"github.com/spf13/cobra"
)

var calculateSave bool

var calculateCmd = &cobra.Command{
	Use:   "calculate [payslips-file]",
	Short: "Calculate the payslips of a payroll run",
	Long: `Calculate every payslip in a payroll run file and print an itemised report.

Formats: console (default), json, csv.`,
	Example: `  kepay calculate testdata/payslips.yaml
  kepay calculate testdata/payslips.yaml --format csv --save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		run, err := config.NewInputParser().LoadPayrollRun(args[0])
		if err != nil {
			return err
		}

		rt, err := loadRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		results, err := rt.engine.CalculateBatch(ctx, run.Payslips)
		if err != nil {
			return fmt.Errorf("calculation failed: %w", err)
		}
		report := &output.PayrollReport{Name: run.Name, Payslips: results}

		format := outputFormat("console")
		if calculateSave {
			f := output.GetFormatterByName(format)
			if f == nil {
				return fmt.Errorf("unsupported format: %s", format)
			}
			filename, err := output.WriteFormatted(f, report, extensionFor(format))
			if err != nil {
				return err
			}
			rt.log.Infof("report written to %s", filename)
			fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", filename)
			return nil
		}
		return output.GenerateReport(cmd.OutOrStdout(), report, format)
	},
}

func extensionFor(format string) string {
	switch format {
	case "json", "csv":
		return format
	default:
		return "txt"
	}
}

func init() {
	calculateCmd.Flags().BoolVar(&calculateSave, "save", false, "Write the report to a timestamped file instead of stdout")
}
