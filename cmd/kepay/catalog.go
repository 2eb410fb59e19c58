package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rgehrsitz/kepay/internal/catalog"
	"github.com/rgehrsitz/kepay/internal/catalog/sqlite"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [catalog-file]",
	Short: "Check a formula catalog for integrity problems",
	Long: `Validate reports malformed formulas, groups with more than one current
formula, groups with none, and overlapping effective windows. It exits
non-zero only when an error is found; warnings are printed but tolerated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		formulas, err := catalog.LoadYAML(args[0])
		if err != nil {
			return err
		}

		report := catalog.Validate(formulas)
		for _, f := range report.Findings {
			fmt.Fprintln(out, f.String())
		}
		errs, warns := len(report.Errors()), len(report.Warnings())
		fmt.Fprintf(out, "%d formulas checked: %d errors, %d warnings\n", len(formulas), errs, warns)
		if report.HasErrors() {
			return fmt.Errorf("%s failed validation with %d errors", args[0], errs)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [catalog-file]",
	Short: "Load a YAML catalog into the SQLite formula database",
	Long: `Import validates a YAML catalog and writes every formula into the database
named by --db or the settings file, recording one reload event. Existing
formulas with the same id are updated in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		log, err := newLogger(cmd.ErrOrStderr(), settings.Log.Level, flags.debug)
		if err != nil {
			return err
		}

		formulas, err := catalog.LoadYAML(args[0])
		if err != nil {
			return err
		}
		report := catalog.Validate(formulas)
		for _, w := range report.Warnings() {
			log.Warn(w.String())
		}
		if report.HasErrors() {
			for _, e := range report.Errors() {
				log.Error(e.String())
			}
			return fmt.Errorf("%s failed validation; nothing imported", args[0])
		}

		store, err := sqlite.New(settings.Catalog.DB)
		if err != nil {
			return err
		}
		defer store.Close()

		event := catalog.ChangeEvent{
			ID:   uuid.NewString(),
			Kind: catalog.EventReloaded,
			At:   time.Now().UTC(),
		}
		for _, f := range formulas {
			event.FormulaIDs = append(event.FormulaIDs, f.ID)
		}
		if err := store.SaveFormulas(ctx, formulas, event); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		log.WithField("event", event.ID).Infof("imported %s", args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d formulas into %s\n", len(formulas), settings.Catalog.DB)
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the catalog change log of the formula database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := loadRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		if !rt.Persistent() {
			return fmt.Errorf("history needs the sqlite catalog source; pass --db or set catalog.source")
		}

		events, err := rt.store.Events(ctx, historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, ev := range events {
			fmt.Fprintf(out, "%s  %-11s %-32s %v\n", ev.At.Format(time.RFC3339), ev.Kind, ev.Group, ev.FormulaIDs)
		}
		fmt.Fprintf(out, "%d events\n", len(events))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of most recent events to show")
}
