package output

import "encoding/json"

// JSONFormatter renders the report as indented JSON. Money values are
// decimal strings so no precision is lost.
type JSONFormatter struct{}

func (j JSONFormatter) Name() string { return "json" }

func (j JSONFormatter) Format(report *PayrollReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
