package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Dataset is the declarative catalog file written by seeders and by WriteYAML
type Dataset struct {
	Metadata DatasetMetadata `yaml:"metadata"`
	Formulas []FormulaDoc    `yaml:"formulas"`
}

// DatasetMetadata describes where a dataset came from
type DatasetMetadata struct {
	Jurisdiction string `yaml:"jurisdiction,omitempty"`
	Currency     string `yaml:"currency,omitempty"`
	Description  string `yaml:"description,omitempty"`
}

// FormulaDoc is the YAML shape of a domain.Formula
type FormulaDoc struct {
	ID               string           `yaml:"id,omitempty"`
	Type             string           `yaml:"type"`
	Category         string           `yaml:"category"`
	Version          string           `yaml:"version"`
	EffectiveFrom    civil.Date       `yaml:"effective_from"`
	EffectiveTo      *civil.Date      `yaml:"effective_to,omitempty"`
	Status           string           `yaml:"status,omitempty"`
	PersonalRelief   decimal.Decimal  `yaml:"personal_relief,omitempty"`
	Relief           *ReliefDoc       `yaml:"relief,omitempty"`
	SplitRatio       *SplitDoc        `yaml:"split_ratio,omitempty"`
	MinimumAmount    *decimal.Decimal `yaml:"minimum_amount,omitempty"`
	DeductionOrder   []PhaseDoc       `yaml:"deduction_order,omitempty"`
	Tiers            []TierDoc        `yaml:"tiers"`
	RegulatorySource string           `yaml:"regulatory_source,omitempty"`
	Notes            string           `yaml:"notes,omitempty"`
}

// ReliefDoc is the YAML shape of a domain.Relief
type ReliefDoc struct {
	Kind       string          `yaml:"kind"`
	Percentage decimal.Decimal `yaml:"percentage"`
	FixedLimit decimal.Decimal `yaml:"fixed_limit"`
	PercentOf  string          `yaml:"percent_of"`
	IsActive   bool            `yaml:"is_active"`
}

// SplitDoc is the YAML shape of a domain.SplitRatio
type SplitDoc struct {
	EmployeePercentage decimal.Decimal `yaml:"employee_percentage"`
	EmployerPercentage decimal.Decimal `yaml:"employer_percentage"`
}

// PhaseDoc is one entry of a deduction order
type PhaseDoc struct {
	Phase      string   `yaml:"phase"`
	Components []string `yaml:"components"`
}

// TierDoc carries either rate_percentage or fixed_amount. Setting both is
// rejected on load; setting neither leaves a nil rate that validation reports.
type TierDoc struct {
	AmountFrom     decimal.Decimal  `yaml:"amount_from"`
	AmountTo       *decimal.Decimal `yaml:"amount_to,omitempty"`
	RatePercentage *decimal.Decimal `yaml:"rate_percentage,omitempty"`
	FixedAmount    *decimal.Decimal `yaml:"fixed_amount,omitempty"`
}

// LoadYAML reads a dataset file and returns its formulas
func LoadYAML(filename string) ([]domain.Formula, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	formulas, err := DecodeYAML(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return formulas, nil
}

// LoadFile reads a dataset file into a new Catalog
func LoadFile(filename string) (*Catalog, error) {
	formulas, err := LoadYAML(filename)
	if err != nil {
		return nil, err
	}
	c, err := New(formulas)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return c, nil
}

// DecodeYAML parses a dataset. Formulas without an id get a random UUID, and
// a formula that states personal_relief without an explicit relief gets a
// personal relief capped at that figure.
func DecodeYAML(r io.Reader) ([]domain.Formula, error) {
	var ds Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	formulas := make([]domain.Formula, 0, len(ds.Formulas))
	for i, doc := range ds.Formulas {
		f, err := doc.toFormula()
		if err != nil {
			return nil, fmt.Errorf("formula %d (%s): %w", i, doc.Version, err)
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		formulas = append(formulas, f)
	}
	return formulas, nil
}

// WriteYAML writes formulas in the dataset format
func WriteYAML(w io.Writer, meta DatasetMetadata, formulas []domain.Formula) error {
	ds := Dataset{Metadata: meta, Formulas: make([]FormulaDoc, 0, len(formulas))}
	for i := range formulas {
		ds.Formulas = append(ds.Formulas, fromFormula(&formulas[i]))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&ds); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func (d FormulaDoc) toFormula() (domain.Formula, error) {
	f := domain.Formula{
		ID:               d.ID,
		Type:             domain.FormulaType(d.Type),
		Category:         domain.Category(d.Category),
		Version:          d.Version,
		EffectiveFrom:    d.EffectiveFrom,
		EffectiveTo:      d.EffectiveTo,
		Status:           domain.LifecycleState(d.Status),
		PersonalRelief:   d.PersonalRelief,
		MinimumAmount:    d.MinimumAmount,
		RegulatorySource: d.RegulatorySource,
		Notes:            d.Notes,
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = domain.StateDraft
	}

	switch {
	case d.Relief != nil:
		f.Relief = &domain.Relief{
			Kind:       domain.ReliefKind(d.Relief.Kind),
			Percentage: d.Relief.Percentage,
			FixedLimit: d.Relief.FixedLimit,
			PercentOf:  domain.ReliefBasis(d.Relief.PercentOf),
			IsActive:   d.Relief.IsActive,
		}
	case d.PersonalRelief.IsPositive():
		f.Relief = &domain.Relief{
			Kind:       domain.ReliefPersonal,
			Percentage: decimal.NewFromInt(100),
			FixedLimit: d.PersonalRelief,
			PercentOf:  domain.BasisActual,
			IsActive:   true,
		}
	}

	if d.SplitRatio != nil {
		f.SplitRatio = &domain.SplitRatio{
			EmployeePercentage: d.SplitRatio.EmployeePercentage,
			EmployerPercentage: d.SplitRatio.EmployerPercentage,
		}
	}

	for _, po := range d.DeductionOrder {
		order := domain.PhaseOrder{Phase: domain.Phase(po.Phase)}
		for _, c := range po.Components {
			order.Components = append(order.Components, domain.ComponentKey(c))
		}
		f.DeductionOrder = append(f.DeductionOrder, order)
	}

	for i, t := range d.Tiers {
		tier := domain.Tier{AmountFrom: t.AmountFrom, AmountTo: t.AmountTo}
		switch {
		case t.RatePercentage != nil && t.FixedAmount != nil:
			return f, &domain.MalformedFormulaDataError{
				FormulaID: f.ID,
				Version:   f.Version,
				TierIndex: i,
				Reason:    "tier sets both rate_percentage and fixed_amount",
			}
		case t.RatePercentage != nil:
			tier.Rate = domain.PercentageRate{Percent: *t.RatePercentage}
		case t.FixedAmount != nil:
			tier.Rate = domain.FixedAmount{Amount: *t.FixedAmount}
		}
		f.Tiers = append(f.Tiers, tier)
	}
	return f, nil
}

func fromFormula(f *domain.Formula) FormulaDoc {
	d := FormulaDoc{
		ID:               f.ID,
		Type:             string(f.Type),
		Category:         string(f.Category),
		Version:          f.Version,
		EffectiveFrom:    f.EffectiveFrom,
		EffectiveTo:      f.EffectiveTo,
		Status:           string(f.Status),
		PersonalRelief:   f.PersonalRelief,
		MinimumAmount:    f.MinimumAmount,
		RegulatorySource: f.RegulatorySource,
		Notes:            f.Notes,
	}
	if r := f.Relief; r != nil {
		d.Relief = &ReliefDoc{
			Kind:       string(r.Kind),
			Percentage: r.Percentage,
			FixedLimit: r.FixedLimit,
			PercentOf:  string(r.PercentOf),
			IsActive:   r.IsActive,
		}
	}
	if s := f.SplitRatio; s != nil {
		d.SplitRatio = &SplitDoc{EmployeePercentage: s.EmployeePercentage, EmployerPercentage: s.EmployerPercentage}
	}
	for _, po := range f.DeductionOrder {
		pd := PhaseDoc{Phase: string(po.Phase)}
		for _, c := range po.Components {
			pd.Components = append(pd.Components, string(c))
		}
		d.DeductionOrder = append(d.DeductionOrder, pd)
	}
	for _, t := range f.Tiers {
		td := TierDoc{AmountFrom: t.AmountFrom, AmountTo: t.AmountTo}
		switch rate := t.Rate.(type) {
		case domain.PercentageRate:
			p := rate.Percent
			td.RatePercentage = &p
		case domain.FixedAmount:
			a := rate.Amount
			td.FixedAmount = &a
		}
		d.Tiers = append(d.Tiers, td)
	}
	return d
}
