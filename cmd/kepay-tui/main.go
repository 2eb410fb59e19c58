package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rgehrsitz/kepay/internal/tui"
)

func main() {
	catalogPath := ""
	if len(os.Args) > 1 {
		catalogPath = os.Args[1]
	} else {
		fmt.Println("Usage: kepay-tui <catalog-file>")
		os.Exit(1)
	}

	if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
		fmt.Printf("Error: catalog file not found: %s\n", catalogPath)
		os.Exit(1)
	}

	model := tui.NewModel(catalogPath)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
