package catalog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML_Dataset(t *testing.T) {
	formulas, err := LoadYAML(datasetPath)
	require.NoError(t, err)
	require.Len(t, formulas, 13)

	byID := map[string]domain.Formula{}
	for _, f := range formulas {
		byID[f.ID] = f
	}

	paye := byID["paye-2018"]
	assert.Equal(t, domain.FormulaTypeIncome, paye.Type)
	assert.Equal(t, date("2018-01-01"), paye.EffectiveFrom)
	require.NotNil(t, paye.EffectiveTo)
	assert.Equal(t, date("2020-04-25"), *paye.EffectiveTo)
	require.NotNil(t, paye.Relief, "personal_relief derives a relief")
	assert.Equal(t, domain.ReliefPersonal, paye.Relief.Kind)
	assert.Equal(t, "1408", paye.Relief.FixedLimit.String())
	assert.True(t, paye.Relief.IsActive)

	phase, ok := paye.PhaseOf(domain.ComponentSHIF)
	require.True(t, ok)
	assert.Equal(t, domain.PhaseAfterPaye, phase)

	nhif := byID["nhif-2015"]
	require.Len(t, nhif.Tiers, 17)
	assert.IsType(t, domain.FixedAmount{}, nhif.Tiers[0].Rate)
	assert.Nil(t, nhif.Tiers[16].AmountTo)

	shif := byID["shif-2024"]
	assert.Equal(t, "S.H.I.F – 2024 Onwards", shif.Version)
	assert.Nil(t, shif.MinimumAmount)
	assert.Nil(t, shif.SplitRatio)
	assert.Nil(t, shif.Relief)

	nssf := byID["nssf-2025"]
	require.NotNil(t, nssf.SplitRatio)
	assert.Equal(t, "100", nssf.SplitRatio.EmployerPercentage.String())
	assert.Contains(t, nssf.Notes, "4,800")
}

func TestDecodeYAML_AssignsIDs(t *testing.T) {
	src := `
formulas:
  - type: deduction
    category: housing_levy
    version: "2023"
    effective_from: "2023-07-01"
    tiers:
      - {amount_from: 0, rate_percentage: 1.5}
`
	formulas, err := DecodeYAML(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, formulas, 1)

	_, err = uuid.Parse(formulas[0].ID)
	assert.NoError(t, err, "missing id is replaced by a uuid")
	assert.Equal(t, domain.StateDraft, formulas[0].Status)
}

func TestDecodeYAML_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		sentinel error
		contains string
	}{
		{
			name: "both rate kinds",
			src: `
formulas:
  - {id: x, type: deduction, category: nhif, version: v, effective_from: "2020-01-01",
     tiers: [{amount_from: 0, rate_percentage: 1, fixed_amount: 150}]}
`,
			sentinel: domain.ErrMalformedFormulaData,
			contains: "both",
		},
		{
			name: "neither rate kind",
			src: `
formulas:
  - {id: x, type: deduction, category: nhif, version: v, effective_from: "2020-01-01",
     tiers: [{amount_from: 0}]}
`,
			sentinel: domain.ErrMalformedFormulaData,
			contains: "neither",
		},
		{
			name: "window ends before it starts",
			src: `
formulas:
  - {id: x, type: deduction, category: nhif, version: v, effective_from: "2020-01-01", effective_to: "2019-01-01",
     tiers: [{amount_from: 0, fixed_amount: 1}]}
`,
			sentinel: domain.ErrMalformedFormulaData,
			contains: "effective_to",
		},
		{
			name:     "unknown field",
			src:      "formulas:\n  - {id: x, colour: blue}\n",
			contains: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeYAML(strings.NewReader(tt.src))
			require.Error(t, err)
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			}
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	formulas, err := LoadYAML(datasetPath)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, DatasetMetadata{Jurisdiction: "KE"}, formulas))

	again, err := DecodeYAML(&buf)
	require.NoError(t, err)
	require.Len(t, again, len(formulas))

	for i := range formulas {
		assert.Equal(t, formulas[i].ID, again[i].ID)
		assert.Equal(t, formulas[i].EffectiveTo, again[i].EffectiveTo)
		require.Len(t, again[i].Tiers, len(formulas[i].Tiers))
		for j := range formulas[i].Tiers {
			assert.Equal(t, formulas[i].Tiers[j].Rate.String(), again[i].Tiers[j].Rate.String())
		}
	}
}

func TestLoadYAML_MissingFile(t *testing.T) {
	_, err := LoadYAML("does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}
