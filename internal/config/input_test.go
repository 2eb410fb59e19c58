package config

import (
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func validRequest() domain.PayslipRequest {
	return domain.PayslipRequest{
		EmployeeID:  "E001",
		GrossPay:    decimal.NewFromInt(50000),
		PayrollDate: civil.Date{Year: 2025, Month: 1, Day: 31},
		Components:  []domain.ComponentKey{domain.ComponentPAYE, domain.ComponentNSSF},
	}
}

func TestNewInputParser(t *testing.T) {
	parser := NewInputParser()
	assert.NotNil(t, parser, "Should create input parser")
}

func TestInputParser_LoadPayrollRun_FileNotFound(t *testing.T) {
	parser := NewInputParser()

	run, err := parser.LoadPayrollRun("nonexistent.yaml")

	assert.Error(t, err, "Should error for nonexistent file")
	assert.Nil(t, run)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestInputParser_LoadPayrollRun_InvalidYAML(t *testing.T) {
	path := writeFile(t, "invalid.yaml", "payslips: [unclosed")

	run, err := NewInputParser().LoadPayrollRun(path)

	assert.Error(t, err)
	assert.Nil(t, run)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestInputParser_LoadPayrollRun_ValidYAML(t *testing.T) {
	path := writeFile(t, "run.yaml", `
name: January 2025
payslips:
  - employee_id: E001
    gross_pay: 50000
    payroll_date: "2025-01-31"
    components: [paye, nssf, shif, housing_levy]
  - employee_id: E002
    gross_pay: "120000.50"
    payroll_date: "2025-01-31"
    components: [paye, nssf, fbt]
    overrides:
      paye: paye-2023
    basis_values:
      paye: 10000
    bases:
      fbt: 2500
`)

	run, err := NewInputParser().LoadPayrollRun(path)
	require.NoError(t, err)

	assert.Equal(t, "January 2025", run.Name)
	require.Len(t, run.Payslips, 2)

	first := run.Payslips[0]
	assert.Equal(t, "E001", first.EmployeeID)
	assert.True(t, first.GrossPay.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, civil.Date{Year: 2025, Month: 1, Day: 31}, first.PayrollDate)
	assert.Equal(t, []domain.ComponentKey{"paye", "nssf", "shif", "housing_levy"}, first.Components)

	second := run.Payslips[1]
	assert.Equal(t, "120000.5", second.GrossPay.String())
	assert.Equal(t, "paye-2023", second.Overrides[domain.ComponentPAYE])
	assert.Equal(t, "10000", second.BasisValues[domain.ComponentPAYE].String())
	assert.Equal(t, "2500", second.Bases[domain.ComponentFBT].String())
}

func TestInputParser_LoadPayrollRun_Fixture(t *testing.T) {
	run, err := NewInputParser().LoadPayrollRun("../../testdata/payslips.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, run.Payslips)
}

func TestValidatePayrollRun(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *domain.PayslipRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(r *domain.PayslipRequest) {}},
		{
			name:    "missing employee id",
			mutate:  func(r *domain.PayslipRequest) { r.EmployeeID = "" },
			wantErr: "employee id is required",
		},
		{
			name:    "negative gross",
			mutate:  func(r *domain.PayslipRequest) { r.GrossPay = decimal.NewFromInt(-1) },
			wantErr: "gross pay cannot be negative",
		},
		{
			name:    "missing date",
			mutate:  func(r *domain.PayslipRequest) { r.PayrollDate = civil.Date{} },
			wantErr: "payroll date is required",
		},
		{
			name:    "impossible date",
			mutate:  func(r *domain.PayslipRequest) { r.PayrollDate = civil.Date{Year: 2025, Month: 2, Day: 30} },
			wantErr: "is not a calendar date",
		},
		{
			name:    "no components",
			mutate:  func(r *domain.PayslipRequest) { r.Components = nil },
			wantErr: "at least one component is required",
		},
		{
			name: "negative basis value",
			mutate: func(r *domain.PayslipRequest) {
				r.BasisValues = map[domain.ComponentKey]decimal.Decimal{domain.ComponentPAYE: decimal.NewFromInt(-5)}
			},
			wantErr: "basis value for paye cannot be negative",
		},
		{
			name: "negative base",
			mutate: func(r *domain.PayslipRequest) {
				r.Bases = map[domain.ComponentKey]decimal.Decimal{domain.ComponentFBT: decimal.NewFromInt(-5)}
			},
			wantErr: "base for fbt cannot be negative",
		},
		{
			name: "empty override",
			mutate: func(r *domain.PayslipRequest) {
				r.Overrides = map[domain.ComponentKey]string{domain.ComponentNSSF: ""}
			},
			wantErr: "override for nssf has an empty formula id",
		},
	}

	parser := NewInputParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := parser.ValidatePayrollRun(&PayrollRun{Payslips: []domain.PayslipRequest{req}})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidatePayrollRun_RunLevel(t *testing.T) {
	parser := NewInputParser()

	err := parser.ValidatePayrollRun(&PayrollRun{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no payslips provided")

	dup := validRequest()
	err = parser.ValidatePayrollRun(&PayrollRun{Payslips: []domain.PayslipRequest{validRequest(), dup}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "employee E001 appears more than once")
}
