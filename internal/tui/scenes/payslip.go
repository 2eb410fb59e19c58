package scenes

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/rgehrsitz/kepay/internal/tui/components"
	"github.com/rgehrsitz/kepay/internal/tui/tuimsg"
	"github.com/rgehrsitz/kepay/internal/tui/tuistyles"
)

const (
	inputGross = iota
	inputDate
	inputComponents
)

var inputLabels = []string{"Gross pay", "Payroll date", "Components"}

// DefaultComponents is what the preview calculates unless edited
const DefaultComponents = "paye, nssf, shif, housing_levy"

// PayslipModel is the payslip preview scene: three inputs and the result
type PayslipModel struct {
	inputs []textinput.Model
	focus  int
	result *domain.PayslipResult
	err    error
	width  int
	height int
}

// NewPayslipModel creates the preview with its inputs
func NewPayslipModel() *PayslipModel {
	gross := textinput.New()
	gross.Placeholder = "e.g., 50000"
	gross.CharLimit = 14
	gross.Width = 20

	date := textinput.New()
	date.Placeholder = "YYYY-MM-DD"
	date.CharLimit = 10
	date.Width = 12

	comps := textinput.New()
	comps.Placeholder = DefaultComponents
	comps.SetValue(DefaultComponents)
	comps.CharLimit = 80
	comps.Width = 40

	m := &PayslipModel{inputs: []textinput.Model{gross, date, comps}}
	m.inputs[inputGross].Focus()
	return m
}

// SetSize updates the scene dimensions
func (m *PayslipModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetDate fills the date input
func (m *PayslipModel) SetDate(d civil.Date) {
	m.inputs[inputDate].SetValue(d.String())
}

// SetGross fills the gross pay input
func (m *PayslipModel) SetGross(v string) {
	m.inputs[inputGross].SetValue(v)
}

// SetResult shows a calculated payslip or the error that prevented it
func (m *PayslipModel) SetResult(res *domain.PayslipResult, err error) {
	m.result = res
	m.err = err
}

// Result returns the last calculated payslip
func (m *PayslipModel) Result() *domain.PayslipResult { return m.result }

// Err returns the last input or calculation error
func (m *PayslipModel) Err() error { return m.err }

// Focused returns the index of the focused input
func (m *PayslipModel) Focused() int { return m.focus }

// BuildRequest turns the inputs into a payslip request
func (m *PayslipModel) BuildRequest() (domain.PayslipRequest, error) {
	var req domain.PayslipRequest

	gross, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(m.inputs[inputGross].Value()), ",", ""))
	if err != nil {
		return req, fmt.Errorf("gross pay: %q is not a number", m.inputs[inputGross].Value())
	}
	date, err := civil.ParseDate(strings.TrimSpace(m.inputs[inputDate].Value()))
	if err != nil {
		return req, fmt.Errorf("payroll date: %q is not YYYY-MM-DD", m.inputs[inputDate].Value())
	}

	for _, part := range strings.Split(m.inputs[inputComponents].Value(), ",") {
		if c := strings.TrimSpace(part); c != "" {
			req.Components = append(req.Components, domain.ComponentKey(c))
		}
	}
	if len(req.Components) == 0 {
		return req, fmt.Errorf("components: list at least one")
	}

	req.EmployeeID = "preview"
	req.GrossPay = gross
	req.PayrollDate = date
	return req, nil
}

// Update handles messages for the preview
func (m *PayslipModel) Update(msg tea.Msg) (*PayslipModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("tab", "down"))):
			return m, m.setFocus((m.focus + 1) % len(m.inputs))

		case key.Matches(msg, key.NewBinding(key.WithKeys("shift+tab", "up"))):
			return m, m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs))

		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			req, err := m.BuildRequest()
			if err != nil {
				m.err = err
				return m, nil
			}
			m.err = nil
			return m, func() tea.Msg { return tuimsg.PayslipRequestedMsg{Request: req} }
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *PayslipModel) setFocus(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[i].Focus()
}

// View renders the form and, once calculated, the payslip
func (m *PayslipModel) View() string {
	var form strings.Builder
	for i, in := range m.inputs {
		style := tuistyles.BlurredInputStyle
		if i == m.focus {
			style = tuistyles.FocusedInputStyle
		}
		form.WriteString(style.Render(fmt.Sprintf("%-13s", inputLabels[i])))
		form.WriteString(in.View())
		form.WriteString("\n")
	}
	if m.err != nil {
		form.WriteString("\n" + tuistyles.ErrorStyle.Render(m.err.Error()) + "\n")
	}

	content := tuistyles.BorderStyle.Render(form.String())
	if m.result != nil {
		content = lipgloss.JoinVertical(lipgloss.Left, content, renderPayslip(m.result))
	}
	return content + "\n" + tuistyles.HelpStyle.Render("tab next field • enter calculate • esc back to formulas")
}

func renderPayslip(p *domain.PayslipResult) string {
	var lines strings.Builder
	lines.WriteString(tuistyles.LabelStyle.Render(fmt.Sprintf("%-13s %-24s %-11s %12s %12s %12s", "Component", "Formula", "Phase", "Relief", "Employee", "Employer")))
	lines.WriteString("\n")
	for _, c := range p.Components {
		lines.WriteString(fmt.Sprintf("%-13s %-24s %-11s %12s %12s %12s\n",
			c.Component, truncate(c.FormulaVersion, 24), c.Phase,
			c.ReliefAmount.StringFixed(2), c.EmployeeAmount.StringFixed(2), c.EmployerAmount.StringFixed(2)))
	}
	for _, w := range p.Warnings {
		lines.WriteString(tuistyles.WarningStyle.Render("! "+w) + "\n")
	}

	cards := []*components.MetricCard{
		components.NewMetricCard("Gross pay", tuistyles.FormatCurrency(p.GrossPay)),
		components.NewMetricCard("Taxable pay", tuistyles.FormatCurrency(p.TaxablePay)),
		components.NewMetricCard("Employee deductions", tuistyles.FormatCurrency(p.TotalEmployeeDeductions)),
		components.NewMetricCard("Employer cost", tuistyles.FormatCurrency(p.TotalEmployerContributions)),
		components.NewMetricCard("Net pay", tuistyles.FormatCurrency(p.NetPay)),
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		tuistyles.BorderStyle.Render(lines.String()),
		components.MetricGrid(cards, 5),
	)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
