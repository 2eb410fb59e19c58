package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the current state of the application
func (m Model) View() string {
	if m.loading {
		return m.renderLoading()
	}
	if m.err != nil {
		return m.renderError()
	}

	var content string
	switch m.currentScene {
	case SceneFormulas:
		content = m.formulasModel.View()
	case ScenePayslip:
		content = m.payslipModel.View()
	case SceneHelp:
		content = m.renderHelp()
	default:
		content = "Unknown scene"
	}
	return m.renderApp(content)
}

// renderApp wraps content with title bar and status bar
func (m Model) renderApp(content string) string {
	return AppStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderTitleBar(),
		content,
		m.renderStatusBar(),
	))
}

func (m Model) renderTitleBar() string {
	title := TitleStyle.Render("KEPAY - Kenyan Payroll Formulas")

	breadcrumb := m.currentScene.String()
	if m.selectedFormula != "" && m.currentScene == ScenePayslip {
		breadcrumb = fmt.Sprintf("%s / %s", breadcrumb, m.selectedFormula)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, SubtitleStyle.Render(breadcrumb))
}

func (m Model) renderStatusBar() string {
	shortcuts := []string{
		formatShortcut("p", "payslip"),
		formatShortcut("esc", "formulas"),
		formatShortcut("?", "help"),
		formatShortcut("q", "quit"),
	}
	status := strings.Join(shortcuts, " • ")

	if m.catalog != nil {
		loaded := SubtitleStyle.Render(fmt.Sprintf("%d formulas", len(m.catalog.All())))
		gap := m.width - lipgloss.Width(status) - lipgloss.Width(loaded) - 4
		if gap > 0 {
			status += strings.Repeat(" ", gap)
		} else {
			status += "  "
		}
		status += loaded
	}
	return StatusBarStyle.Width(m.width).Render(status)
}

func formatShortcut(key, desc string) string {
	return StatusKeyStyle.Render(key) + " " + desc
}

func (m Model) renderLoading() string {
	message := m.loadingMessage
	if message == "" {
		message = "Loading..."
	}
	return m.renderApp(BorderStyle.Render("⠋ " + message))
}

func (m Model) renderError() string {
	return m.renderApp(ErrorStyle.Render(
		fmt.Sprintf("Error: %s\n\nPress any key to continue...", m.err.Error()),
	))
}

func (m Model) renderHelp() string {
	helpText := `KEPAY - Kenyan statutory payroll formulas

FORMULAS:
  ↑/k ↓/j  Move through the catalog
  f        Cycle the type filter (all, income, deduction, fbt)
  enter    Preview a payslip dated at the formula's effective date
  p        Open the payslip preview

PAYSLIP:
  tab      Next field
  enter    Calculate
  esc      Back to formulas

  ?        Show this help
  q/Ctrl+C Quit
`
	return BorderStyle.Render(helpText)
}
