// Package tree maps a work onto a deterministic directory layout and keeps
// the on-disk state needed to resume an interrupted download.
package tree

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/utils"
)

// DefaultChapterFormat names chapter directories "<index> <title>".
const DefaultChapterFormat = "{index} {title}"

// DefaultImageFormat is the extension used for pages and the cover.
const DefaultImageFormat = "png"

var imageFormats = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

// ValidImageFormat reports whether format can be used as a page extension.
func ValidImageFormat(format string) bool {
	return imageFormats[strings.ToLower(format)]
}

// Tree is the layout of one work under a download root:
//
//	<root>/<title>/
//	    .recovery
//	    cover.<ext>
//	    <chapter>/<page>.<ext>
type Tree struct {
	root          string
	manga         *data.Manga
	chapterFormat string
	imageFormat   string
}

// Option configures a Tree.
type Option func(*Tree)

// WithChapterFormat sets the chapter directory template. The placeholders
// {index}, {title} and {volume} are substituted.
func WithChapterFormat(format string) Option {
	return func(t *Tree) {
		if format != "" {
			t.chapterFormat = format
		}
	}
}

// WithImageFormat sets the extension used for pages and the cover.
func WithImageFormat(format string) Option {
	return func(t *Tree) {
		if format != "" {
			t.imageFormat = strings.ToLower(strings.TrimPrefix(format, "."))
		}
	}
}

// WithLayout applies a recorded layout. Empty fields are ignored.
func WithLayout(l Layout) Option {
	return func(t *Tree) {
		WithChapterFormat(l.ChapterFormat)(t)
		WithImageFormat(l.ImageFormat)(t)
	}
}

// Layout is the naming scheme of the files of a work.
type Layout struct {
	ChapterFormat string `yaml:"chapter_format"`
	ImageFormat   string `yaml:"image_format"`
}

// Dir is the work directory of manga under the download root.
func Dir(root string, manga *data.Manga) string {
	return filepath.Join(root, utils.SanitizeFilename(manga.Title))
}

// New builds the tree of manga under root.
func New(root string, manga *data.Manga, opts ...Option) (*Tree, error) {
	if manga == nil {
		return nil, fmt.Errorf("manga cannot be nil")
	}
	t := &Tree{
		manga:         manga,
		chapterFormat: DefaultChapterFormat,
		imageFormat:   DefaultImageFormat,
	}
	for _, opt := range opts {
		opt(t)
	}
	if !imageFormats[t.imageFormat] {
		return nil, fmt.Errorf("unsupported image format %q", t.imageFormat)
	}
	t.root = Dir(root, manga)
	return t, nil
}

// Root is the work directory.
func (t *Tree) Root() string { return t.root }

// Manga is the work the tree was built for.
func (t *Tree) Manga() *data.Manga { return t.manga }

// ImageFormat is the page file extension, without the dot.
func (t *Tree) ImageFormat() string { return t.imageFormat }

// Layout is the naming scheme the tree maps files with.
func (t *Tree) Layout() Layout {
	return Layout{ChapterFormat: t.chapterFormat, ImageFormat: t.imageFormat}
}

// Chapter returns the directory of chapter.
func (t *Tree) Chapter(chapter *data.Chapter) string {
	volume := ""
	if chapter.Volume != nil {
		volume = data.FormatNumber(*chapter.Volume)
	}
	name := strings.NewReplacer(
		"{index}", data.FormatNumber(chapter.Index),
		"{title}", chapter.Title,
		"{volume}", volume,
	).Replace(t.chapterFormat)
	return filepath.Join(t.root, utils.SanitizeFilename(name))
}

// Page returns the file path of page within chapter.
func (t *Tree) Page(chapter *data.Chapter, page *data.Page) string {
	return filepath.Join(t.Chapter(chapter), utils.SanitizeFilename(page.Index)+"."+t.imageFormat)
}

// Cover returns the file path of the work cover.
func (t *Tree) Cover() string {
	return filepath.Join(t.root, "cover."+t.imageFormat)
}

// Target is a single page together with where it lives on disk.
type Target struct {
	Chapter *data.Chapter
	Page    *data.Page
	Path    string
}

// Flatten lists every page of chapters in order, chapter by chapter.
func (t *Tree) Flatten(chapters []data.Chapter) []Target {
	var targets []Target
	for i := range chapters {
		chapter := &chapters[i]
		for j := range chapter.Pages {
			page := &chapter.Pages[j]
			targets = append(targets, Target{
				Chapter: chapter,
				Page:    page,
				Path:    t.Page(chapter, page),
			})
		}
	}
	return targets
}
