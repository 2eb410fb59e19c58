package tui

import (
	"github.com/rgehrsitz/kepay/internal/tui/tuimsg"
)

// Scene represents different screens in the TUI
type Scene int

const (
	SceneFormulas Scene = iota
	ScenePayslip
	SceneHelp
)

// NavigateMsg switches to a different scene
type NavigateMsg struct {
	Scene Scene
}

// Messages shared with the scenes live in tuimsg
type (
	CatalogLoadedMsg     = tuimsg.CatalogLoadedMsg
	ErrorMsg             = tuimsg.ErrorMsg
	FormulaSelectedMsg   = tuimsg.FormulaSelectedMsg
	PayslipRequestedMsg  = tuimsg.PayslipRequestedMsg
	PayslipCalculatedMsg = tuimsg.PayslipCalculatedMsg
)
