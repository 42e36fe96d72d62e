package screens

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/services"
)

type screenType int

const (
	libraryView screenType = iota
	downloadView
	detailsView
)

// eventKinds are the pipeline events shown on the download screen.
var eventKinds = []services.EventKind{
	services.EventFetchTitle,
	services.EventFetchChapters,
	services.EventFetchPages,
	services.EventFetchEnd,
	services.EventDownload,
	services.EventChunk,
	services.EventPageErrorAllowed,
	services.EventPageErrorRejected,
	services.EventPageWrite,
	services.EventPageEnd,
}

type RootScreen struct {
	env    *Env
	events chan services.Event

	currentView screenType
	library     *LibraryScreen
	download    *DownloadScreen
	details     *DetailsScreen

	width  int
	height int
}

// NewRootScreen builds the screens and subscribes to the controller bus.
func NewRootScreen(env *Env) *RootScreen {
	r := &RootScreen{
		env:         env,
		events:      make(chan services.Event, 1024),
		currentView: libraryView,
		library:     NewLibraryScreen(env),
		download:    NewDownloadScreen(env),
	}
	bus := env.Controller.Bus()
	for _, kind := range eventKinds {
		bus.OnFunc(kind, func(e services.Event) { r.events <- e })
	}
	return r
}

func (r *RootScreen) Init() tea.Cmd {
	return tea.Batch(r.library.Init(), r.download.Init(), r.listen)
}

// listen waits for the next pipeline event.
func (r *RootScreen) listen() tea.Msg {
	return EventMsg(<-r.events)
}

func (r *RootScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height
		// every screen keeps its own size
		r.library.Update(msg)
		r.download.Update(msg)
		if r.details != nil {
			r.details.Update(msg)
		}
		return r, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return r, tea.Quit
		case "q":
			if r.currentView != downloadView {
				return r, tea.Quit
			}
		case "tab":
			if r.currentView == detailsView {
				break
			}
			if r.currentView == libraryView {
				r.currentView = downloadView
				return r, r.download.Init()
			}
			r.currentView = libraryView
			return r, r.library.Init()
		}

	case EventMsg:
		_, cmd = r.download.Update(msg)
		return r, tea.Batch(cmd, r.listen)

	case downloadDoneMsg:
		_, cmd = r.download.Update(msg)
		return r, tea.Batch(cmd, r.library.Init())

	case SwitchScreenMsg:
		switch msg.Screen {
		case "library":
			r.currentView = libraryView
			cmd = r.library.Init()
		case "download":
			r.currentView = downloadView
			if root, ok := msg.Data.(string); ok {
				cmd = r.download.Start(root)
			}
		case "details":
			if work, ok := msg.Data.(*data.WorkRecord); ok {
				r.details = NewDetailsScreen(r.env, work)
				r.details.Update(tea.WindowSizeMsg{Width: r.width, Height: r.height})
				r.currentView = detailsView
				cmd = r.details.Init()
			}
		}
		return r, cmd
	}

	switch r.currentView {
	case libraryView:
		_, cmd = r.library.Update(msg)
	case downloadView:
		_, cmd = r.download.Update(msg)
	case detailsView:
		if r.details != nil {
			_, cmd = r.details.Update(msg)
		}
	}
	return r, cmd
}

func (r *RootScreen) View() string {
	var content string
	switch r.currentView {
	case libraryView:
		content = r.library.View()
	case downloadView:
		content = r.download.View()
	case detailsView:
		if r.details != nil {
			content = r.details.View()
		}
	}
	if r.currentView == detailsView {
		return content
	}
	return fmt.Sprintf("%s\n\n%s", r.renderTabs(), content)
}

func (r *RootScreen) renderTabs() string {
	libraryTab := styles.InactiveTabStyle.Render("Library")
	downloadTab := styles.InactiveTabStyle.Render("Download")
	if r.currentView == libraryView {
		libraryTab = styles.ActiveTabStyle.Render("Library")
	} else {
		downloadTab = styles.ActiveTabStyle.Render("Download")
	}
	if r.download.Running() {
		downloadTab += styles.StatusActive.Render(" ●")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, libraryTab, downloadTab)
}
