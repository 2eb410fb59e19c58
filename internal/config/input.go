package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Catalog sources
const (
	SourceYAML   = "yaml"
	SourceSQLite = "sqlite"
)

// Environment variables consulted when no flag is given
const (
	EnvConfig = "KEPAY_CONFIG"
	EnvDB     = "KEPAY_DB"
)

// Settings is the engine settings file
type Settings struct {
	Catalog CatalogSettings `yaml:"catalog"`
	Cache   CacheSettings   `yaml:"cache"`
	Log     LogSettings     `yaml:"log"`
	Batch   BatchSettings   `yaml:"batch"`
}

// CatalogSettings says where formulas are loaded from
type CatalogSettings struct {
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
	DB     string `yaml:"db"`
}

type CacheSettings struct {
	Enabled bool `yaml:"enabled"`
}

type LogSettings struct {
	Level string `yaml:"level"`
}

type BatchSettings struct {
	// Concurrency bounds CalculateBatch; 0 means one goroutine per payslip
	Concurrency int `yaml:"concurrency"`
}

// DefaultSettings returns the settings used when no file is given
func DefaultSettings() Settings {
	return Settings{
		Catalog: CatalogSettings{Source: SourceYAML, Path: "testdata/kenya_formulas.yaml", DB: "kepay.db"},
		Cache:   CacheSettings{Enabled: true},
		Log:     LogSettings{Level: "info"},
		Batch:   BatchSettings{Concurrency: 4},
	}
}

// PayrollRun is a payslip request file: one pay run for many employees
type PayrollRun struct {
	Name     string                  `yaml:"name"`
	Payslips []domain.PayslipRequest `yaml:"payslips"`
}

// InputParser handles parsing of settings and payslip request files
type InputParser struct{}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadSettings loads engine settings from a YAML file. Keys missing from the
// file keep their DefaultSettings values.
func (ip *InputParser) LoadSettings(filename string) (*Settings, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ip.ValidateSettings(&settings); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}
	return &settings, nil
}

// ValidateSettings validates loaded settings
func (ip *InputParser) ValidateSettings(s *Settings) error {
	switch s.Catalog.Source {
	case SourceYAML:
		if s.Catalog.Path == "" {
			return fmt.Errorf("catalog path is required for the yaml source")
		}
	case SourceSQLite:
		if s.Catalog.DB == "" {
			return fmt.Errorf("catalog db is required for the sqlite source")
		}
	default:
		return fmt.Errorf("unknown catalog source %q (want %s or %s)", s.Catalog.Source, SourceYAML, SourceSQLite)
	}

	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", s.Log.Level)
	}

	if s.Batch.Concurrency < 0 {
		return fmt.Errorf("batch concurrency cannot be negative")
	}
	return nil
}

// LoadPayrollRun loads a payslip request file
func (ip *InputParser) LoadPayrollRun(filename string) (*PayrollRun, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var run PayrollRun
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ip.ValidatePayrollRun(&run); err != nil {
		return nil, fmt.Errorf("payroll run validation failed: %w", err)
	}
	return &run, nil
}

// ValidatePayrollRun validates every payslip of a run. Whether a component
// key is known is left to the engine, whose registry may be extended.
func (ip *InputParser) ValidatePayrollRun(run *PayrollRun) error {
	if len(run.Payslips) == 0 {
		return fmt.Errorf("no payslips provided")
	}

	seen := make(map[string]bool, len(run.Payslips))
	for i := range run.Payslips {
		p := &run.Payslips[i]
		if err := ip.validatePayslip(p); err != nil {
			return fmt.Errorf("payslip %d (%s) validation failed: %w", i, p.EmployeeID, err)
		}
		if seen[p.EmployeeID] {
			return fmt.Errorf("employee %s appears more than once", p.EmployeeID)
		}
		seen[p.EmployeeID] = true
	}
	return nil
}

func (ip *InputParser) validatePayslip(p *domain.PayslipRequest) error {
	if p.EmployeeID == "" {
		return fmt.Errorf("employee id is required")
	}
	if p.GrossPay.LessThan(decimal.Zero) {
		return fmt.Errorf("gross pay cannot be negative")
	}
	if p.PayrollDate.IsZero() {
		return fmt.Errorf("payroll date is required")
	}
	if !p.PayrollDate.IsValid() {
		return fmt.Errorf("payroll date %s is not a calendar date", p.PayrollDate)
	}
	if len(p.Components) == 0 {
		return fmt.Errorf("at least one component is required")
	}

	for key, v := range p.BasisValues {
		if v.LessThan(decimal.Zero) {
			return fmt.Errorf("basis value for %s cannot be negative", key)
		}
	}
	for key, v := range p.Bases {
		if v.LessThan(decimal.Zero) {
			return fmt.Errorf("base for %s cannot be negative", key)
		}
	}
	for key, id := range p.Overrides {
		if id == "" {
			return fmt.Errorf("override for %s has an empty formula id", key)
		}
	}
	return nil
}

// LoadEnv reads .env style files into the process environment without
// overwriting variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// SettingsPath returns flagValue, or $KEPAY_CONFIG when the flag is empty
func SettingsPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfig)
}

// Resolve loads the settings file named by flagValue or $KEPAY_CONFIG, or
// the defaults when neither is set, then applies $KEPAY_DB.
func (ip *InputParser) Resolve(flagValue string) (*Settings, error) {
	var settings *Settings
	if path := SettingsPath(flagValue); path != "" {
		s, err := ip.LoadSettings(path)
		if err != nil {
			return nil, err
		}
		settings = s
	} else {
		d := DefaultSettings()
		settings = &d
	}

	if db := os.Getenv(EnvDB); db != "" {
		settings.Catalog.DB = db
	}
	return settings, nil
}
