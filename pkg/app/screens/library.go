package screens

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/shelf/pkg/app/components"
	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/data"
)

type LibraryScreen struct {
	env      *Env
	workList *components.WorkList
	notice   string
	width    int
	height   int
	err      error
}

func NewLibraryScreen(env *Env) *LibraryScreen {
	return &LibraryScreen{
		env:      env,
		workList: components.NewWorkList(),
	}
}

func (s *LibraryScreen) Init() tea.Cmd {
	return s.loadLibrary
}

func (s *LibraryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.workList.Width = msg.Width - 4
		s.workList.Height = msg.Height - 10

	case tea.KeyMsg:
		selected := s.workList.Selected()
		switch msg.String() {
		case "up", "k":
			s.workList.Prev()
		case "down", "j":
			s.workList.Next()
		case "r":
			return s, s.loadLibrary
		case "d":
			if selected != nil {
				return s, s.forget(selected.URL)
			}
		case "e":
			if selected != nil {
				s.notice = "exporting " + selected.Title + "..."
				return s, s.export(selected.Root)
			}
		case "u":
			if selected != nil {
				return s, switchTo("download", selected.Root)
			}
		case "enter":
			if selected != nil {
				return s, switchTo("details", selected)
			}
		}

	case libraryLoadedMsg:
		s.workList.SetItems(msg.works)
		s.err = msg.err

	case exportedMsg:
		s.err = msg.err
		s.notice = ""
		if msg.err == nil {
			s.notice = "exported " + strings.Join(msg.paths, ", ")
		}

	case forgottenMsg:
		s.err = msg.err
		return s, s.loadLibrary
	}

	return s, nil
}

func (s *LibraryScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}

	header := styles.TitleStyle.Render("Library")

	var status string
	if s.err != nil {
		status = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	} else if s.notice != "" {
		status = styles.StatusComplete.Render(s.notice) + "\n\n"
	}

	help := styles.HelpStyle.Render(
		"↑/k ↓/j: move • enter: chapters • u: update • e: export • d: forget • r: refresh • tab: switch view • q: quit",
	)

	return fmt.Sprintf("%s\n\n%s%s\n%s", header, status, s.workList.View(), help)
}

type libraryLoadedMsg struct {
	works []*data.WorkRecord
	err   error
}

type exportedMsg struct {
	paths []string
	err   error
}

type forgottenMsg struct {
	err error
}

func (s *LibraryScreen) loadLibrary() tea.Msg {
	works, err := s.env.Controller.Works()
	return libraryLoadedMsg{works: works, err: err}
}

func (s *LibraryScreen) export(root string) tea.Cmd {
	return func() tea.Msg {
		t, err := s.env.openTree(root)
		if err != nil {
			return exportedMsg{err: err}
		}
		paths, err := s.env.Exporter.Export(t, s.env.Merge)
		return exportedMsg{paths: paths, err: err}
	}
}

func (s *LibraryScreen) forget(url string) tea.Cmd {
	return func() tea.Msg {
		return forgottenMsg{err: s.env.Controller.Forget(url)}
	}
}
