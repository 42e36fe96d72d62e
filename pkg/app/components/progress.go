package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"

	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/services"
)

const maxFailures = 5

// ProgressTracker folds pipeline events into a progress view of one
// download run.
type ProgressTracker struct {
	title    string
	stage    string
	total    int
	settled  int
	written  int
	skipped  int
	retries  int
	chunk    int
	chunks   int
	failures []string
	active   bool

	bar   progress.Model
	width int
}

func NewProgressTracker(width int) *ProgressTracker {
	p := &ProgressTracker{bar: progress.New(progress.WithDefaultGradient())}
	p.SetWidth(width)
	return p
}

func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
	p.bar.Width = width - 4
	if p.bar.Width < 10 {
		p.bar.Width = 10
	}
}

// Update applies one event.
func (p *ProgressTracker) Update(e services.Event) {
	switch e.Kind {
	case services.EventFetchTitle:
		p.Clear()
		p.active = true
		p.stage = "fetching title"
	case services.EventFetchChapters:
		p.title = e.Title
		p.stage = "listing chapters"
	case services.EventFetchPages:
		p.stage = fmt.Sprintf("listing pages of %d chapters", e.Chapters)
	case services.EventFetchEnd:
		p.stage = "discovered"
	case services.EventDownload:
		p.active = true
		if e.Title != "" {
			p.title = e.Title
		}
		p.total = e.Pages
		p.chunks = e.Chunks
		p.stage = "downloading"
	case services.EventChunk:
		p.chunk = e.Chunk
		p.chunks = e.Chunks
	case services.EventPageWrite:
		p.written++
	case services.EventPageErrorAllowed:
		p.retries++
	case services.EventPageErrorRejected:
		p.skipped++
		if e.Err != nil {
			p.failures = append(p.failures, fmt.Sprintf("%s: %v", e.URL, e.Err))
			if len(p.failures) > maxFailures {
				p.failures = p.failures[len(p.failures)-maxFailures:]
			}
		}
	case services.EventPageEnd:
		p.settled++
	}
}

// Finish marks the run as over.
func (p *ProgressTracker) Finish() {
	p.active = false
	p.stage = "done"
}

func (p *ProgressTracker) Clear() {
	*p = ProgressTracker{bar: p.bar, width: p.width}
}

func (p *ProgressTracker) HasActive() bool {
	return p.active
}

// Percent is the share of pages settled, in [0, 1].
func (p *ProgressTracker) Percent() float64 {
	if p.total == 0 {
		return 0
	}
	done := float64(p.settled) / float64(p.total)
	if done > 1 {
		done = 1
	}
	return done
}

func (p *ProgressTracker) View() string {
	if p.stage == "" {
		return ""
	}

	var b strings.Builder
	if p.title != "" {
		b.WriteString(styles.SubtitleStyle.Render(p.title))
		b.WriteString("\n")
	}
	stage := p.stage
	if p.chunks > 1 && p.active {
		stage = fmt.Sprintf("%s (chunk %d/%d)", stage, p.chunk, p.chunks)
	}
	b.WriteString(styles.StatusActive.Render(stage))
	b.WriteString("\n")

	if p.total > 0 {
		b.WriteString(p.bar.ViewAs(p.Percent()))
		b.WriteString("\n")
		b.WriteString(styles.MutedStyle.Render(fmt.Sprintf(
			"%s/%s pages • %s written • %s skipped • %s retries",
			humanize.Comma(int64(p.settled)), humanize.Comma(int64(p.total)),
			humanize.Comma(int64(p.written)), humanize.Comma(int64(p.skipped)),
			humanize.Comma(int64(p.retries)),
		)))
		b.WriteString("\n")
	}

	for _, f := range p.failures {
		b.WriteString(styles.StatusError.Render(f))
		b.WriteString("\n")
	}
	return b.String()
}
