package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/data"
)

// WorkList is a selectable list of library works.
type WorkList struct {
	Items         []*data.WorkRecord
	SelectedIndex int
	Width         int
	Height        int
}

func NewWorkList() *WorkList {
	return &WorkList{
		Width:  80,
		Height: 20,
	}
}

func (m *WorkList) SetItems(items []*data.WorkRecord) {
	m.Items = items
	if m.SelectedIndex >= len(items) && len(items) > 0 {
		m.SelectedIndex = len(items) - 1
	}
	if len(items) == 0 {
		m.SelectedIndex = 0
	}
}

func (m *WorkList) Next() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex = (m.SelectedIndex + 1) % len(m.Items)
}

func (m *WorkList) Prev() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex--
	if m.SelectedIndex < 0 {
		m.SelectedIndex = len(m.Items) - 1
	}
}

func (m *WorkList) Selected() *data.WorkRecord {
	if len(m.Items) == 0 || m.SelectedIndex >= len(m.Items) {
		return nil
	}
	return m.Items[m.SelectedIndex]
}

// visible returns the window of items that fits the height, keeping the
// selection in view. Each card takes four lines.
func (m *WorkList) visible() (int, int) {
	per := m.Height / 4
	if per < 1 {
		per = 1
	}
	if len(m.Items) <= per {
		return 0, len(m.Items)
	}
	start := m.SelectedIndex - per/2
	if start < 0 {
		start = 0
	}
	end := start + per
	if end > len(m.Items) {
		end = len(m.Items)
		start = end - per
	}
	return start, end
}

func (m *WorkList) View() string {
	if len(m.Items) == 0 {
		empty := styles.MutedStyle.Render("No works in the library yet")
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, empty)
	}

	var b strings.Builder
	start, end := m.visible()
	for i := start; i < end; i++ {
		work := m.Items[i]
		cardStyle := styles.CardStyle
		if i == m.SelectedIndex {
			cardStyle = styles.ActiveCardStyle
		}

		status := styles.StatusOf(work.Present, work.Pages)
		progress := fmt.Sprintf("%s • %d/%d pages • %d chapters",
			status, work.Present, work.Pages, work.Chapters)

		content := lipgloss.JoinVertical(
			lipgloss.Left,
			styles.SelectedStyle.Render(work.Title),
			styles.StatusStyle(status).Render(progress),
			styles.MutedStyle.Render(fmt.Sprintf("%s • updated %s", work.Root, humanize.Time(work.UpdatedAt))),
		)
		b.WriteString(cardStyle.Width(m.Width - 4).Render(content))
		b.WriteString("\n")
	}
	if start > 0 || end < len(m.Items) {
		b.WriteString(styles.MutedStyle.Render(
			fmt.Sprintf("Showing %d-%d of %d works", start+1, end, len(m.Items)),
		))
	}
	return b.String()
}
