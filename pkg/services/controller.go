package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/shelf"
	"github.com/kerbaras/shelf/pkg/sources"
	"github.com/kerbaras/shelf/pkg/tree"
	"github.com/kerbaras/shelf/pkg/utils"
)

// Repository is the library catalog the controller keeps in sync.
type Repository interface {
	SaveWork(work *data.WorkRecord, chapters []data.ChapterRecord) error
	GetWork(url string) (*data.WorkRecord, error)
	ListWorks() ([]*data.WorkRecord, error)
	GetChapters(workURL string) ([]data.ChapterRecord, error)
	DeleteWork(url string) error
}

// ControllerOptions wires a MangaController.
type ControllerOptions struct {
	Registry *sources.Registry
	Sessions SessionFactory
	// Repo is optional. Without it the library is not updated.
	Repo   Repository
	Bus    *Bus
	Logger *log.Logger
	// Retry defaults to DefaultRetryPolicy when nil.
	Retry             *RetryPolicy
	RequestsPerSecond float64
}

// MangaController runs the whole pipeline: discovery, recovery record,
// missing page detection, download and library sync.
type MangaController struct {
	registry *sources.Registry
	sessions SessionFactory
	repo     Repository
	bus      *Bus
	logger   *log.Logger
	retry    RetryPolicy
	rps      float64
	scraper  *Scraper
}

func NewMangaController(opts ControllerOptions) *MangaController {
	c := &MangaController{
		registry: opts.Registry,
		sessions: opts.Sessions,
		repo:     opts.Repo,
		bus:      opts.Bus,
		logger:   opts.Logger,
		retry:    DefaultRetryPolicy(),
		rps:      opts.RequestsPerSecond,
	}
	if opts.Retry != nil {
		c.retry = *opts.Retry
	}
	if c.sessions == nil {
		c.sessions = func() (*sources.Session, error) { return sources.NewSession(nil), nil }
	}
	c.scraper = NewScraper(c.bus, c.logger)
	return c
}

// Bus is the event bus the controller reports on.
func (c *MangaController) Bus() *Bus { return c.bus }

// FetchOptions selects the chapters to keep.
type FetchOptions struct {
	Include shelf.Filter
	Exclude shelf.Filter
	// InfoOnly skips page discovery.
	InfoOnly bool
}

// Fetch discovers the work at url with the adapter routed for it.
func (c *MangaController) Fetch(ctx context.Context, url string, opts FetchOptions) (*data.Manga, sources.Source, error) {
	src, err := c.registry.Route(url)
	if err != nil {
		return nil, nil, err
	}
	session, err := c.sessions()
	if err != nil {
		return nil, nil, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	var manga *data.Manga
	if opts.InfoOnly {
		manga, err = c.scraper.FetchInfo(ctx, src, session, url, opts.Include, opts.Exclude)
	} else {
		manga, err = c.scraper.Fetch(ctx, src, session, url, opts.Include, opts.Exclude)
	}
	if err != nil {
		return nil, nil, err
	}
	return manga, src, nil
}

// Resume loads the work mirrored in dir from its recovery record and
// applies the filters to it. The source is routed from the recorded URL so
// page headers still apply; it is nil when no adapter handles the URL.
func (c *MangaController) Resume(dir string, opts FetchOptions) (*data.Manga, sources.Source, error) {
	manga, err := tree.ReadRecovery(dir)
	if err != nil {
		return nil, nil, err
	}
	src, err := c.registry.Route(manga.URL)
	if err != nil && !errors.Is(err, sources.ErrUnsupportedSource) {
		return nil, nil, err
	}
	filtered := shelf.New(manga).Filter(shelf.Combine(opts.Include, opts.Exclude)).Manga
	return filtered, src, nil
}

// DownloadOptions tunes one download run.
type DownloadOptions struct {
	// Root is the download directory. The work is mirrored under
	// Root/<title>.
	Root string
	// WorkDir, when set, is the existing directory of the work and
	// replaces Root/<title>.
	WorkDir       string
	Method        Method
	RateLimit     int
	ChapterFormat string
	ImageFormat   string
	SkipCover     bool
}

// Report summarizes a download run.
type Report struct {
	RunID    string
	Title    string
	Root     string
	Expected int // pages in the work
	Missing  int // pages absent before the run
	Written  int
	Skipped  int // pages given up on; pages never attempted are not counted
	Cover    bool
	Duration time.Duration
}

// Download mirrors manga under opts.Root, or in opts.WorkDir when set. src
// supplies page headers and may be nil. Only the pages absent from disk are
// fetched, so running it again after an interruption resumes where the
// previous run stopped. A work already on disk keeps the layout of its
// recovery record over the formats in opts.
func (c *MangaController) Download(ctx context.Context, manga *data.Manga, src sources.Source, opts DownloadOptions) (*Report, error) {
	start := time.Now()
	dir := opts.WorkDir
	if dir == "" {
		dir = tree.Dir(opts.Root, manga)
	}
	t, err := tree.At(dir, manga,
		tree.WithChapterFormat(opts.ChapterFormat),
		tree.WithImageFormat(opts.ImageFormat),
	)
	if err != nil {
		return nil, err
	}

	unlock, err := t.Lock()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			c.logger.Warn().Err(err).Str("root", t.Root()).Msg("release lock")
		}
	}()

	report := &Report{
		RunID:    uuid.NewString(),
		Title:    manga.Title,
		Root:     t.Root(),
		Expected: manga.PageCount(),
	}

	if err := t.WriteRecovery(manga); err != nil {
		return nil, err
	}
	missing, err := t.Missing(manga)
	if err != nil {
		return nil, err
	}
	report.Missing = missing.PageCount()
	c.logger.Info().Str("run", report.RunID).
		Str("title", manga.Title).
		Int("pages", report.Expected).
		Int("missing", report.Missing).
		Msg("starting download")

	endpointOpts := []EndpointsOption{WithRetryPolicy(c.retry), WithRequestsPerSecond(c.rps)}
	if src != nil {
		endpointOpts = append(endpointOpts, WithSourceHeaders(src))
	}
	endpoints := NewEndpoints(c.bus, c.logger, endpointOpts...)

	if !opts.SkipCover && manga.Cover != "" {
		if report.Cover, err = c.cover(ctx, endpoints, t, manga.Cover); err != nil {
			return nil, err
		}
	}

	d := NewDownloader(endpoints, missing, t, DownloaderOptions{
		RateLimit: opts.RateLimit,
		Sessions:  c.sessions,
		Bus:       c.bus,
		Logger:    c.logger,
	})
	_, dlErr := d.Download(ctx, opts.Method)
	report.Written = d.Written()
	report.Skipped = d.Skipped()
	report.Duration = time.Since(start)

	if err := c.sync(t, manga); err != nil {
		c.logger.Warn().Err(err).Str("title", manga.Title).Msg("library sync failed")
	}
	if dlErr != nil {
		return report, dlErr
	}

	c.logger.Info().Str("run", report.RunID).
		Int("written", report.Written).
		Int("skipped", report.Skipped).
		Dur("took", report.Duration).
		Msg("download finished")
	return report, nil
}

func (c *MangaController) cover(ctx context.Context, endpoints *Endpoints, t *tree.Tree, url string) (bool, error) {
	ok, err := utils.Exists(t.Cover())
	if err != nil || ok {
		return false, err
	}
	session, err := c.sessions()
	if err != nil {
		return false, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()
	return endpoints.Cover(ctx, session, url, t.Cover())
}

// sync records the on-disk state of manga in the library.
func (c *MangaController) sync(t *tree.Tree, manga *data.Manga) error {
	if c.repo == nil {
		return nil
	}
	statuses, err := t.Status(manga)
	if err != nil {
		return err
	}

	work := &data.WorkRecord{
		URL:   manga.URL,
		Title: manga.Title,
		Root:  t.Root(),
	}
	if ok, _ := utils.Exists(t.Cover()); ok {
		work.Cover = t.Cover()
	}

	// keep chapters mirrored by earlier runs with other filters
	type key struct {
		index float64
		title string
	}
	known := make(map[key]data.ChapterRecord)
	previous, err := c.repo.GetChapters(manga.URL)
	if err != nil {
		return err
	}
	for _, ch := range previous {
		known[key{ch.Index, ch.Title}] = ch
	}
	for _, s := range statuses {
		known[key{s.Chapter.Index, s.Chapter.Title}] = data.ChapterRecord{
			WorkURL: manga.URL,
			URL:     s.Chapter.URL,
			Title:   s.Chapter.Title,
			Index:   s.Chapter.Index,
			Volume:  s.Chapter.Volume,
			Pages:   s.Total,
			Present: s.Present,
		}
	}
	chapters := make([]data.ChapterRecord, 0, len(known))
	for _, ch := range known {
		chapters = append(chapters, ch)
	}
	return c.repo.SaveWork(work, chapters)
}

// Works lists the library.
func (c *MangaController) Works() ([]*data.WorkRecord, error) {
	if c.repo == nil {
		return nil, nil
	}
	return c.repo.ListWorks()
}

// Chapters lists the recorded chapters of a library work.
func (c *MangaController) Chapters(url string) ([]data.ChapterRecord, error) {
	if c.repo == nil {
		return nil, nil
	}
	return c.repo.GetChapters(url)
}

// Forget removes a work from the library. Its files are kept.
func (c *MangaController) Forget(url string) error {
	if c.repo == nil {
		return nil
	}
	return c.repo.DeleteWork(url)
}
