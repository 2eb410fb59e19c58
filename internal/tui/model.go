package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rgehrsitz/kepay/internal/calculation"
	"github.com/rgehrsitz/kepay/internal/catalog"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/rgehrsitz/kepay/internal/tui/scenes"
)

// Model represents the entire application state
type Model struct {
	currentScene  Scene
	previousScene Scene

	width  int
	height int

	catalogPath string
	catalog     *catalog.Catalog
	engine      *calculation.PayrollEngine

	selectedFormula string

	formulasModel *scenes.FormulasModel
	payslipModel  *scenes.PayslipModel

	err error

	loading        bool
	loadingMessage string
}

// NewModel creates a new application model for the catalog file at catalogPath
func NewModel(catalogPath string) Model {
	return Model{
		currentScene:   SceneFormulas,
		catalogPath:    catalogPath,
		formulasModel:  scenes.NewFormulasModel(),
		payslipModel:   scenes.NewPayslipModel(),
		width:          80,
		height:         24,
		loading:        true,
		loadingMessage: "Loading catalog...",
	}
}

// Init initializes the model (required by tea.Model interface)
func (m Model) Init() tea.Cmd {
	return loadCatalogCmd(m.catalogPath)
}

// loadCatalogCmd loads the YAML catalog and wires a cached engine to it
func loadCatalogCmd(path string) tea.Cmd {
	return func() tea.Msg {
		c, err := catalog.LoadFile(path)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		resolver := calculation.Attach(c, calculation.NewMemoryCache())
		return CatalogLoadedMsg{Catalog: c, Engine: calculation.NewPayrollEngine(resolver)}
	}
}

// calculatePayslipCmd runs the engine off the update loop
func calculatePayslipCmd(engine *calculation.PayrollEngine, req domain.PayslipRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := engine.Calculate(req)
		return PayslipCalculatedMsg{Result: res, Err: err}
	}
}

func (s Scene) String() string {
	switch s {
	case SceneFormulas:
		return "Formulas"
	case ScenePayslip:
		return "Payslip"
	case SceneHelp:
		return "Help"
	default:
		return "Unknown"
	}
}
