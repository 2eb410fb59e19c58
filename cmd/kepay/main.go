package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are the persistent flags shared by every subcommand
type globalFlags struct {
	configPath  string
	catalogPath string
	dbPath      string
	format      string
	debug       bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "kepay",
	Short: "Kenyan statutory payroll deduction engine",
	Long: `kepay resolves the PAYE, NSSF, NHIF, SHIF, Housing Levy and FBT formulas
in force on a payroll date and computes itemised payslips from them.

Formulas come from a YAML catalog or a SQLite database. Settings are read
from --config or $KEPAY_CONFIG; a .env file in the working directory is
loaded first.`,
	SilenceUsage: true,
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kepay %s (commit %s, built %s)\n", version, commit, date)
			if info := buildInfo(); info != "" {
				fmt.Fprintln(out, info)
			}
		},
	}
}

func buildInfo() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		return bi.String()
	}
	return ""
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Settings file (default $KEPAY_CONFIG)")
	pf.StringVar(&flags.catalogPath, "catalog", "", "YAML formula catalog; overrides the settings file")
	pf.StringVar(&flags.dbPath, "db", "", "SQLite formula database; overrides the settings file")
	pf.StringVarP(&flags.format, "format", "f", "", "Output format (default console; compare defaults to table)")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(calculateCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(grossupCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(formulasCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
