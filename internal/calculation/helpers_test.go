package calculation

import (
	"sync"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/rgehrsitz/kepay/internal/catalog"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const datasetPath = "../../testdata/kenya_formulas.yaml"

func loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.LoadFile(datasetPath)
	require.NoError(t, err)
	return c
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(s string) *civil.Date {
	d := date(s)
	return &d
}

func pct(p string) domain.TierRate { return domain.PercentageRate{Percent: dec(p)} }

func fixed(a string) domain.TierRate { return domain.FixedAmount{Amount: dec(a)} }

var (
	payeGroup    = domain.GroupKey{Type: domain.FormulaTypeIncome, Category: domain.CategoryPrimary}
	nssfGroup    = domain.GroupKey{Type: domain.FormulaTypeDeduction, Category: domain.CategorySocialSecurityFund}
	nhifGroup    = domain.GroupKey{Type: domain.FormulaTypeDeduction, Category: domain.CategoryNHIF}
	shifGroup    = domain.GroupKey{Type: domain.FormulaTypeDeduction, Category: domain.CategorySHIF}
	housingGroup = domain.GroupKey{Type: domain.FormulaTypeDeduction, Category: domain.CategoryHousingLevy}
)

// assertDecimal compares decimals by value so 1375 equals 1375.00
func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, dec(expected).Equal(actual), "expected %s, got %s %v", expected, actual.String(), msgAndArgs)
}

// TestLogger is a simple logger for testing
type TestLogger struct {
	mu       sync.Mutex
	messages []string
}

func (tl *TestLogger) Debugf(format string, args ...interface{}) { tl.add("DEBUG: " + format) }
func (tl *TestLogger) Infof(format string, args ...interface{})  { tl.add("INFO: " + format) }
func (tl *TestLogger) Warnf(format string, args ...interface{})  { tl.add("WARN: " + format) }
func (tl *TestLogger) Errorf(format string, args ...interface{}) { tl.add("ERROR: " + format) }

func (tl *TestLogger) add(msg string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.messages = append(tl.messages, msg)
}

func (tl *TestLogger) count(prefix string) int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	n := 0
	for _, m := range tl.messages {
		if len(m) >= len(prefix) && m[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
