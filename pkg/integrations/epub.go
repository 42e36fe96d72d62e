package integrations

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-shiori/go-epub"
	"github.com/phuslu/log"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/logging"
	"github.com/kerbaras/shelf/pkg/shelf"
	"github.com/kerbaras/shelf/pkg/tree"
	"github.com/kerbaras/shelf/pkg/utils"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrNothingToExport is returned when no page of the work is on disk.
var ErrNothingToExport = errors.New("no downloaded pages to export")

// EPubBuilder packs mirrored works into EPUB files.
type EPubBuilder struct {
	outputDir string
	logger    *log.Logger
}

var _ Exporter = (*EPubBuilder)(nil)

// NewEPubBuilder writes books into outputDir. A nil logger discards output.
func NewEPubBuilder(outputDir string, logger *log.Logger) *EPubBuilder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &EPubBuilder{outputDir: outputDir, logger: logger}
}

// book is one output file and the chapters it holds.
type book struct {
	name     string
	title    string
	chapters []data.Chapter
}

// Export writes the pages found under t into one or more books and returns
// their paths. Pages that are not on disk are left out; chapters with no
// page on disk are dropped.
func (p *EPubBuilder) Export(t *tree.Tree, merge Merge) ([]string, error) {
	manga := t.Manga()
	if len(manga.Chapters) == 0 {
		return nil, ErrNothingToExport
	}
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	for _, b := range p.books(manga, merge) {
		path, err := p.write(t, b)
		if errors.Is(err, ErrNothingToExport) {
			p.logger.Debug().Str("book", b.title).Msg("skipping book without pages")
			continue
		}
		if err != nil {
			return paths, err
		}
		p.logger.Info().Str("path", path).Int("chapters", len(b.chapters)).Msg("book written")
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return nil, ErrNothingToExport
	}
	return paths, nil
}

func (p *EPubBuilder) books(manga *data.Manga, merge Merge) []book {
	sorted := shelf.New(manga).Sort()
	if merge != MergeVolume {
		return []book{{name: manga.Title, title: manga.Title, chapters: sorted.Manga.Chapters}}
	}

	volumes, loose := sorted.SplitVolumes()
	numbers := make([]float64, 0, len(volumes))
	for v := range volumes {
		numbers = append(numbers, v)
	}
	sort.Float64s(numbers)

	books := make([]book, 0, len(numbers)+1)
	for _, v := range numbers {
		title := fmt.Sprintf("%s - Vol. %s", manga.Title, data.FormatNumber(v))
		books = append(books, book{name: title, title: title, chapters: volumes[v]})
	}
	if len(loose) > 0 {
		title := manga.Title + " - Extras"
		books = append(books, book{name: title, title: title, chapters: loose})
	}
	return books
}

func (p *EPubBuilder) write(t *tree.Tree, b book) (string, error) {
	e, err := epub.NewEpub(b.title)
	if err != nil {
		return "", fmt.Errorf("failed to create EPub: %w", err)
	}
	e.SetLang("en")
	if manga := t.Manga(); manga.URL != "" {
		e.SetIdentifier(manga.URL)
		e.SetDescription("Mirrored from " + manga.URL)
	}

	if ok, _ := utils.Exists(t.Cover()); ok {
		if err := p.addCover(e, t.Cover()); err != nil {
			p.logger.Warn().Err(err).Str("cover", t.Cover()).Msg("cover left out")
		}
	}

	sections, images := 0, 0
	for i := range b.chapters {
		added, err := p.addChapter(e, t, &b.chapters[i], &images)
		if err != nil {
			return "", fmt.Errorf("failed to add chapter %s: %w", data.FormatNumber(b.chapters[i].Index), err)
		}
		if added {
			sections++
		}
	}
	if sections == 0 {
		return "", ErrNothingToExport
	}

	out := filepath.Join(p.outputDir, utils.SanitizeFilename(b.name)+".epub")
	if err := e.Write(out); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}
	return out, nil
}

func (p *EPubBuilder) addCover(e *epub.Epub, path string) error {
	if _, err := decodeConfig(path); err != nil {
		return err
	}
	internal, err := e.AddImage(path, "cover"+filepath.Ext(path))
	if err != nil {
		return err
	}
	e.SetCover(internal, "")
	return nil
}

// addChapter appends one section holding every page of chapter found on
// disk, in page order. It reports false when no page is present. images
// numbers the files inside the book.
func (p *EPubBuilder) addChapter(e *epub.Epub, t *tree.Tree, chapter *data.Chapter, images *int) (bool, error) {
	pages := make([]data.Page, len(chapter.Pages))
	copy(pages, chapter.Pages)
	sort.SliceStable(pages, func(i, j int) bool {
		return data.ComparePageIndex(pages[i].Index, pages[j].Index) < 0
	})

	label := chapter.Label()
	var html strings.Builder
	fmt.Fprintf(&html, "<h1>%s</h1>\n", escape(label))

	found := 0
	for i := range pages {
		path := t.Page(chapter, &pages[i])
		cfg, err := decodeConfig(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			p.logger.Warn().Err(err).Str("page", path).Msg("unreadable page left out")
			continue
		}

		*images++
		internal, err := e.AddImage(path, fmt.Sprintf("page%05d%s", *images, filepath.Ext(path)))
		if err != nil {
			return false, fmt.Errorf("failed to add image %s: %w", path, err)
		}
		fmt.Fprintf(&html,
			`<div class="page"><img src="%s" alt="Page %s" width="%d" height="%d" style="width:100%%;height:auto;"/></div>`+"\n",
			internal, escape(pages[i].Index), cfg.Width, cfg.Height,
		)
		found++
	}
	if found == 0 {
		return false, nil
	}

	if _, err := e.AddSection(html.String(), label, "", ""); err != nil {
		return false, fmt.Errorf("failed to add section: %w", err)
	}
	return true, nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}

var escape = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;").Replace
