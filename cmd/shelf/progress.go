package cmd

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/shelf/pkg/app/components"
	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/services"
)

type eventMsg services.Event

type doneMsg struct {
	report *services.Report
	err    error
}

// progressModel draws a single download run.
type progressModel struct {
	events  chan services.Event
	tracker *components.ProgressTracker
	run     func() tea.Msg
	cancel  context.CancelFunc
	done    *doneMsg
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.run, m.listen)
}

func (m *progressModel) listen() tea.Msg {
	return eventMsg(<-m.events)
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.tracker.SetWidth(msg.Width)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancel()
		}
	case eventMsg:
		m.tracker.Update(services.Event(msg))
		return m, m.listen
	case doneMsg:
		m.done = &msg
		m.tracker.Finish()
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) View() string {
	if m.done != nil {
		return m.tracker.View()
	}
	return m.tracker.View() + styles.HelpStyle.Render("q: stop") + "\n"
}

// runWithProgress runs fn while drawing its events from bus.
func runWithProgress(ctx context.Context, bus *services.Bus, fn func(context.Context) (*services.Report, error)) (*services.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := &progressModel{
		events:  make(chan services.Event, 1024),
		tracker: components.NewProgressTracker(80),
		cancel:  cancel,
	}
	m.run = func() tea.Msg {
		report, err := fn(ctx)
		return doneMsg{report: report, err: err}
	}
	for _, kind := range []services.EventKind{
		services.EventFetchTitle, services.EventFetchChapters, services.EventFetchPages, services.EventFetchEnd,
		services.EventDownload, services.EventChunk,
		services.EventPageErrorAllowed, services.EventPageErrorRejected, services.EventPageWrite, services.EventPageEnd,
	} {
		bus.OnFunc(kind, func(e services.Event) {
			select {
			case m.events <- e:
			case <-ctx.Done():
			}
		})
	}

	if _, err := tea.NewProgram(m).Run(); err != nil {
		return nil, err
	}
	if m.done == nil {
		return nil, ctx.Err()
	}
	return m.done.report, m.done.err
}
