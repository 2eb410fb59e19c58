package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Update handles all messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.formulasModel.SetSize(msg.Width, msg.Height)
		m.payslipModel.SetSize(msg.Width, msg.Height)
		return m, nil

	case NavigateMsg:
		m.previousScene = m.currentScene
		m.currentScene = msg.Scene
		return m, nil

	case ErrorMsg:
		m.loading = false
		m.err = msg.Err
		return m, nil

	case CatalogLoadedMsg:
		m.loading = false
		m.catalog = msg.Catalog
		m.engine = msg.Engine
		m.formulasModel.SetFormulas(msg.Catalog.All())
		m.formulasModel.SetSize(m.width, m.height)
		return m, nil

	case FormulaSelectedMsg:
		m.selectedFormula = msg.Formula.ID
		m.payslipModel.SetDate(msg.Formula.EffectiveFrom)
		m.previousScene = m.currentScene
		m.currentScene = ScenePayslip
		return m, nil

	case PayslipRequestedMsg:
		if m.engine == nil {
			m.payslipModel.SetResult(nil, fmt.Errorf("catalog not loaded yet"))
			return m, nil
		}
		m.loading = true
		m.loadingMessage = "Calculating payslip..."
		return m, calculatePayslipCmd(m.engine, msg.Request)

	case PayslipCalculatedMsg:
		m.loading = false
		m.payslipModel.SetResult(msg.Result, msg.Err)
		return m, nil
	}

	return m.updateCurrentScene(msg)
}

// handleKeyPress processes keyboard input. The payslip scene takes typed
// characters, so only control keys are global there.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.err != nil {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.err = nil
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.currentScene != SceneFormulas {
			return m, func() tea.Msg { return NavigateMsg{Scene: SceneFormulas} }
		}
		return m, nil
	}

	if m.currentScene == ScenePayslip {
		return m.updateCurrentScene(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "?":
		return m, func() tea.Msg { return NavigateMsg{Scene: SceneHelp} }
	case "p":
		return m, func() tea.Msg { return NavigateMsg{Scene: ScenePayslip} }
	}

	return m.updateCurrentScene(msg)
}

// updateCurrentScene delegates updates to the current scene's model
func (m Model) updateCurrentScene(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.currentScene {
	case SceneFormulas:
		updated, cmd := m.formulasModel.Update(msg)
		m.formulasModel = updated
		return m, cmd
	case ScenePayslip:
		updated, cmd := m.payslipModel.Update(msg)
		m.payslipModel = updated
		return m, cmd
	}
	return m, nil
}
