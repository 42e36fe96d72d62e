package screens

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/shelf/pkg/integrations"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/kerbaras/shelf/pkg/tree"
)

// Env is what the screens share: the controller running downloads and the
// settings every run uses.
type Env struct {
	Controller *services.MangaController
	Exporter   integrations.Exporter
	Merge      integrations.Merge
	Fetch      services.FetchOptions
	Download   services.DownloadOptions
}

// openTree rebuilds the tree of the work mirrored in root.
func (e *Env) openTree(root string) (*tree.Tree, error) {
	return tree.Open(root,
		tree.WithChapterFormat(e.Download.ChapterFormat),
		tree.WithImageFormat(e.Download.ImageFormat),
	)
}

// SwitchScreenMsg asks the root screen to show another screen.
type SwitchScreenMsg struct {
	Screen string
	Data   any
}

func switchTo(screen string, data any) tea.Cmd {
	return func() tea.Msg {
		return SwitchScreenMsg{Screen: screen, Data: data}
	}
}
