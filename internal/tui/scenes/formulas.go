package scenes

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/rgehrsitz/kepay/internal/tui/components"
	"github.com/rgehrsitz/kepay/internal/tui/tuimsg"
	"github.com/rgehrsitz/kepay/internal/tui/tuistyles"
)

// typeFilters is the cycle of the "f" key; the empty type shows everything
var typeFilters = []domain.FormulaType{"", domain.FormulaTypeIncome, domain.FormulaTypeDeduction, domain.FormulaTypeFBT}

// FormulasModel is the catalog browser scene
type FormulasModel struct {
	formulas []domain.Formula
	visible  []domain.Formula
	filter   int
	table    table.Model
	width    int
	height   int
}

// NewFormulasModel creates an empty browser
func NewFormulasModel() *FormulasModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 18},
			{Title: "Group", Width: 30},
			{Title: "Version", Width: 24},
			{Title: "From", Width: 10},
			{Title: "To", Width: 10},
			{Title: "Status", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(tuistyles.ColorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(tuistyles.ColorForeground).
		Background(tuistyles.ColorPrimary).
		Bold(false)
	t.SetStyles(s)

	return &FormulasModel{table: t}
}

// SetFormulas replaces the browsed formulas
func (m *FormulasModel) SetFormulas(formulas []domain.Formula) {
	m.formulas = formulas
	m.refresh()
}

// SetSize updates the scene dimensions
func (m *FormulasModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	if h := height - 10; h > 3 {
		m.table.SetHeight(h)
	}
}

// Filter returns the formula type currently shown; empty means all
func (m *FormulasModel) Filter() domain.FormulaType {
	return typeFilters[m.filter]
}

// Visible returns the formulas that pass the filter, in table order
func (m *FormulasModel) Visible() []domain.Formula {
	return m.visible
}

// Selected returns the formula under the cursor
func (m *FormulasModel) Selected() (domain.Formula, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		return domain.Formula{}, false
	}
	return m.visible[i], true
}

// Update handles messages for the browser
func (m *FormulasModel) Update(msg tea.Msg) (*FormulasModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("f"))):
			m.filter = (m.filter + 1) % len(typeFilters)
			m.refresh()
			return m, nil

		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			f, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return tuimsg.FormulaSelectedMsg{Formula: f} }
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *FormulasModel) refresh() {
	want := m.Filter()
	m.visible = nil
	rows := make([]table.Row, 0, len(m.formulas))
	for _, f := range m.formulas {
		if want != "" && f.Type != want {
			continue
		}
		m.visible = append(m.visible, f)
		to := ""
		if f.EffectiveTo != nil {
			to = f.EffectiveTo.String()
		}
		rows = append(rows, table.Row{f.ID, f.Key().String(), f.Version, f.EffectiveFrom.String(), to, string(f.Status)})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(0)
	}
}

// View renders the table with the selected formula's details beside it
func (m *FormulasModel) View() string {
	if len(m.formulas) == 0 {
		return "No formulas loaded.\n\nStart kepay-tui with a catalog file."
	}

	filter := "all types"
	if f := m.Filter(); f != "" {
		filter = string(f)
	}
	header := tuistyles.LabelStyle.Render("Showing: ") + tuistyles.ValueStyle.Render(filter)

	left := tuistyles.BorderStyle.Render(header + "\n\n" + m.table.View())

	right := ""
	if f, ok := m.Selected(); ok {
		right = tuistyles.ActiveBorderStyle.Render(components.FormulaDetail(f))
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
	return content + "\n" + tuistyles.HelpStyle.Render("↑/k up • ↓/j down • f filter type • enter preview payslip • p payslip • ? help • q quit")
}
