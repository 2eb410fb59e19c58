package compare

import (
	"encoding/json"
	"fmt"

	"github.com/rgehrsitz/kepay/internal/domain"
)

// JSONFormatter writes a ComparisonSet as JSON. With Payslips set the
// document also carries every payslip, audit lines included, keyed by
// scenario name.
type JSONFormatter struct {
	Pretty   bool
	Payslips bool
}

type comparisonDoc struct {
	*ComparisonSet
	Payslips map[string]*domain.PayslipResult `json:"payslips,omitempty"`
}

func (jf *JSONFormatter) Format(compSet *ComparisonSet) (string, error) {
	if compSet == nil || compSet.BaseResult == nil {
		return "", fmt.Errorf("comparison has no base result")
	}

	doc := comparisonDoc{ComparisonSet: compSet}
	if jf.Payslips {
		doc.Payslips = map[string]*domain.PayslipResult{
			compSet.BaseScenarioName: compSet.BaseResult.Payslip,
		}
		for _, r := range compSet.AlternativeResults {
			doc.Payslips[r.ScenarioName] = r.Payslip
		}
	}

	var data []byte
	var err error
	if jf.Pretty {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode comparison for %s: %w", compSet.EmployeeID, err)
	}
	return string(data), nil
}
