package main

import (
	"context"
	"fmt"

	"github.com/rgehrsitz/kepay/internal/calculation"
	"github.com/rgehrsitz/kepay/internal/catalog"
	"github.com/rgehrsitz/kepay/internal/catalog/sqlite"
	"github.com/rgehrsitz/kepay/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// runtime is the catalog, engine and logger a command works against
type runtime struct {
	settings *config.Settings
	log      *logrus.Entry
	catalog  *catalog.Catalog
	store    *sqlite.Store // nil unless the catalog source is sqlite
	resolver *calculation.Resolver
	engine   *calculation.PayrollEngine
}

// loadSettings reads .env, the settings file and the global flag overrides
func loadSettings() (*config.Settings, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	parser := config.NewInputParser()
	settings, err := parser.Resolve(flags.configPath)
	if err != nil {
		return nil, err
	}

	if flags.catalogPath != "" && flags.dbPath != "" {
		return nil, fmt.Errorf("--catalog and --db are mutually exclusive")
	}
	if flags.catalogPath != "" {
		settings.Catalog.Source = config.SourceYAML
		settings.Catalog.Path = flags.catalogPath
	}
	if flags.dbPath != "" {
		settings.Catalog.Source = config.SourceSQLite
		settings.Catalog.DB = flags.dbPath
	}
	if err := parser.ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}
	return settings, nil
}

// loadRuntime opens the configured catalog and builds an engine over it.
// Callers must Close the runtime.
func loadRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cmd.ErrOrStderr(), settings.Log.Level, flags.debug)
	if err != nil {
		return nil, err
	}

	rt := &runtime{settings: settings, log: log}
	switch settings.Catalog.Source {
	case config.SourceSQLite:
		log.Debugf("opening catalog database %s", settings.Catalog.DB)
		store, err := sqlite.New(settings.Catalog.DB)
		if err != nil {
			return nil, err
		}
		formulas, err := store.LoadFormulas(ctx)
		if err != nil {
			store.Close()
			return nil, err
		}
		c, err := catalog.New(formulas)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("%s: %w", settings.Catalog.DB, err)
		}
		c.SetPersister(store)
		rt.catalog, rt.store = c, store
	default:
		log.Debugf("loading catalog file %s", settings.Catalog.Path)
		c, err := catalog.LoadFile(settings.Catalog.Path)
		if err != nil {
			return nil, err
		}
		rt.catalog = c
	}
	rt.catalog.Subscribe(logChanges(log))

	if settings.Cache.Enabled {
		rt.resolver = calculation.Attach(rt.catalog, calculation.NewMemoryCache())
	} else {
		rt.resolver = calculation.NewResolver(rt.catalog)
	}
	rt.engine = calculation.NewPayrollEngine(rt.resolver)
	rt.engine.Concurrency = settings.Batch.Concurrency
	rt.engine.SetLogger(log)
	return rt, nil
}

// Persistent reports whether catalog writes survive the process
func (rt *runtime) Persistent() bool {
	return rt.store != nil
}

func (rt *runtime) Close() error {
	if rt.store != nil {
		return rt.store.Close()
	}
	return nil
}

// outputFormat returns the --format flag or def when it is unset
func outputFormat(def string) string {
	if flags.format != "" {
		return flags.format
	}
	return def
}
