package screens

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/data"
)

const chapterWindow = 10

// DetailsScreen shows the chapter states of one library work.
type DetailsScreen struct {
	env             *Env
	work            *data.WorkRecord
	chapters        []data.ChapterRecord
	selectedChapter int
	width           int
	height          int
	err             error
}

func NewDetailsScreen(env *Env, work *data.WorkRecord) *DetailsScreen {
	return &DetailsScreen{env: env, work: work}
}

func (s *DetailsScreen) Init() tea.Cmd {
	return s.loadChapters
}

func (s *DetailsScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.selectedChapter > 0 {
				s.selectedChapter--
			}
		case "down", "j":
			if s.selectedChapter < len(s.chapters)-1 {
				s.selectedChapter++
			}
		case "r":
			return s, s.loadChapters
		case "u":
			return s, switchTo("download", s.work.Root)
		case "esc", "backspace":
			return s, switchTo("library", nil)
		}

	case chaptersLoadedMsg:
		s.chapters = msg.chapters
		s.err = msg.err
		if s.selectedChapter >= len(s.chapters) {
			s.selectedChapter = 0
		}
	}

	return s, nil
}

func (s *DetailsScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}

	header := styles.TitleStyle.Render(s.work.Title)

	var errorMsg string
	if s.err != nil {
		errorMsg = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	}

	help := styles.HelpStyle.Render("↑/k ↓/j: move • u: update • r: refresh • esc: back • q: quit")

	return fmt.Sprintf("%s\n\n%s%s\n%s\n%s", header, errorMsg, s.renderInfo(), s.renderChapters(), help)
}

func (s *DetailsScreen) renderInfo() string {
	status := styles.StatusOf(s.work.Present, s.work.Pages)
	info := lipgloss.JoinVertical(
		lipgloss.Left,
		styles.StatusStyle(status).Render(fmt.Sprintf("%s • %d/%d pages", status, s.work.Present, s.work.Pages)),
		styles.MutedStyle.Render("Source: "+s.work.URL),
		styles.MutedStyle.Render("Directory: "+s.work.Root),
		styles.MutedStyle.Render("Updated "+humanize.Time(s.work.UpdatedAt)),
	)
	return styles.CardStyle.Width(s.width - 4).Render(info)
}

func (s *DetailsScreen) renderChapters() string {
	if len(s.chapters) == 0 {
		return styles.MutedStyle.Render("No chapters recorded")
	}

	var b strings.Builder
	b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("Chapters (%d total):", len(s.chapters))))
	b.WriteString("\n\n")

	start, end := 0, len(s.chapters)
	if end > chapterWindow {
		start = max(s.selectedChapter-chapterWindow/2, 0)
		end = start + chapterWindow
		if end > len(s.chapters) {
			end = len(s.chapters)
			start = end - chapterWindow
		}
	}

	for i := start; i < end; i++ {
		ch := s.chapters[i]
		label := (&data.Chapter{Title: ch.Title, Index: ch.Index, Volume: ch.Volume}).Label()
		status := styles.StatusOf(ch.Present, ch.Pages)

		icon := "○"
		switch status {
		case styles.Complete:
			icon = "●"
		case styles.Partial:
			icon = "◐"
		}

		line := fmt.Sprintf("%s %s (%d/%d)", icon, label, ch.Present, ch.Pages)
		if i == s.selectedChapter {
			line = styles.SelectedStyle.Render("> " + line)
		} else {
			line = styles.StatusStyle(status).Render("  " + line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(s.chapters) > chapterWindow {
		b.WriteString("\n")
		b.WriteString(styles.MutedStyle.Render(
			fmt.Sprintf("Showing %d-%d of %d chapters", start+1, end, len(s.chapters)),
		))
	}
	return b.String()
}

type chaptersLoadedMsg struct {
	chapters []data.ChapterRecord
	err      error
}

func (s *DetailsScreen) loadChapters() tea.Msg {
	chapters, err := s.env.Controller.Chapters(s.work.URL)
	return chaptersLoadedMsg{chapters: chapters, err: err}
}
