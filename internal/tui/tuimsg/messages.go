package tuimsg

import (
	"github.com/rgehrsitz/kepay/internal/calculation"
	"github.com/rgehrsitz/kepay/internal/catalog"
	"github.com/rgehrsitz/kepay/internal/domain"
)

// CatalogLoadedMsg signals the formula catalog is ready
type CatalogLoadedMsg struct {
	Catalog *catalog.Catalog
	Engine  *calculation.PayrollEngine
}

// ErrorMsg displays an error to the user
type ErrorMsg struct {
	Err error
}

// FormulaSelectedMsg signals a formula has been picked in the browser
type FormulaSelectedMsg struct {
	Formula domain.Formula
}

// PayslipRequestedMsg asks the root model to run the engine
type PayslipRequestedMsg struct {
	Request domain.PayslipRequest
}

// PayslipCalculatedMsg carries the engine's answer
type PayslipCalculatedMsg struct {
	Result *domain.PayslipResult
	Err    error
}
