package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/shelf/pkg/app/screens"
)

// App is the interactive front end over a controller.
type App struct {
	env *screens.Env
}

func NewApp(env *screens.Env) *App {
	return &App{env: env}
}

func (a *App) Run() error {
	model := screens.NewRootScreen(a.env)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
