package screens

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/kerbaras/shelf/pkg/app/components"
	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/kerbaras/shelf/pkg/sources"
	"github.com/kerbaras/shelf/pkg/tree"
)

// DownloadScreen takes a work URL or a work directory and mirrors it.
type DownloadScreen struct {
	env      *Env
	input    textinput.Model
	progress *components.ProgressTracker
	cancel   context.CancelFunc
	report   *services.Report
	width    int
	height   int
	err      error
}

func NewDownloadScreen(env *Env) *DownloadScreen {
	ti := textinput.New()
	ti.Placeholder = "Work URL or directory..."
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 60

	return &DownloadScreen{
		env:      env,
		input:    ti,
		progress: components.NewProgressTracker(80),
	}
}

func (s *DownloadScreen) Init() tea.Cmd {
	return textinput.Blink
}

// Running reports whether a download is in flight.
func (s *DownloadScreen) Running() bool {
	return s.cancel != nil
}

// Start downloads target right away.
func (s *DownloadScreen) Start(target string) tea.Cmd {
	if s.Running() {
		return nil
	}
	s.input.SetValue(target)
	return s.start(target)
}

func (s *DownloadScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.progress.SetWidth(msg.Width - 4)

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			target := strings.TrimSpace(s.input.Value())
			if target != "" && !s.Running() {
				return s, s.start(target)
			}
			return s, nil
		case "esc":
			if s.Running() {
				s.cancel()
			}
			return s, nil
		}

	case EventMsg:
		s.progress.Update(services.Event(msg))
		return s, nil

	case downloadDoneMsg:
		s.cancel = nil
		s.report = msg.report
		s.err = msg.err
		s.progress.Finish()
		return s, nil
	}

	if !s.Running() {
		s.input, cmd = s.input.Update(msg)
	}
	return s, cmd
}

func (s *DownloadScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}

	header := styles.TitleStyle.Render("Download")

	inputStyle := styles.InputStyle
	if s.input.Focused() && !s.Running() {
		inputStyle = styles.FocusedInputStyle
	}

	var status string
	switch {
	case s.err != nil:
		status = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err))
	case s.report != nil:
		status = styles.StatusComplete.Render(fmt.Sprintf(
			"%s: %d written, %d skipped, %d already on disk, took %s",
			s.report.Title, s.report.Written, s.report.Skipped,
			s.report.Expected-s.report.Missing, s.report.Duration.Round(time.Millisecond),
		))
		status += "\n" + styles.MutedStyle.Render(fmt.Sprintf("%s • %s pages in the work", s.report.Root, humanize.Comma(int64(s.report.Expected))))
	}

	help := "enter: start • tab: switch view • q: quit"
	if s.Running() {
		help = "esc: stop • tab: switch view"
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s\n%s",
		header,
		inputStyle.Render(s.input.View()),
		s.progress.View(),
		status,
		styles.HelpStyle.Render(help),
	)
}

// EventMsg carries a pipeline event into the program.
type EventMsg services.Event

type downloadDoneMsg struct {
	report *services.Report
	err    error
}

func (s *DownloadScreen) start(target string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.report = nil
	s.err = nil
	s.progress.Clear()

	env := s.env
	return func() tea.Msg {
		defer cancel()

		var (
			manga *data.Manga
			src   sources.Source
			err   error
		)
		if tree.IsWorkRoot(target) {
			manga, src, err = env.Controller.Resume(target, env.Fetch)
		} else {
			manga, src, err = env.Controller.Fetch(ctx, target, env.Fetch)
		}
		if err != nil {
			return downloadDoneMsg{err: err}
		}
		report, err := env.Controller.Download(ctx, manga, src, downloadOptions(env.Download, target))
		return downloadDoneMsg{report: report, err: err}
	}
}

// downloadOptions keeps a resumed work in the directory it already lives in.
func downloadOptions(opts services.DownloadOptions, target string) services.DownloadOptions {
	if tree.IsWorkRoot(target) {
		opts.WorkDir = target
	}
	return opts
}
