package services

import (
	"context"
	"fmt"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/shelf"
	"github.com/kerbaras/shelf/pkg/sources"
)

// Scraper discovers a whole work through a source adapter.
type Scraper struct {
	bus    *Bus
	logger *log.Logger
}

func NewScraper(bus *Bus, logger *log.Logger) *Scraper {
	return &Scraper{bus: bus, logger: logger}
}

// Fetch discovers the title, cover, chapters and pages of the work at url
// and keeps the chapters accepted by include & ~exclude. Nil filters accept
// everything and exclude nothing. Page lists are fetched concurrently, one
// request per chapter. Any adapter error aborts the discovery.
func (s *Scraper) Fetch(ctx context.Context, src sources.Source, session *sources.Session, url string, include, exclude shelf.Filter) (*data.Manga, error) {
	manga, err := s.FetchInfo(ctx, src, session, url, include, exclude)
	if err != nil {
		return nil, err
	}

	s.bus.Dispatch(Event{Kind: EventFetchPages, URL: url, Chapters: len(manga.Chapters)})
	pages := make([][]data.Page, len(manga.Chapters))
	g, gctx := errgroup.WithContext(ctx)
	for i := range manga.Chapters {
		chapter := &manga.Chapters[i]
		g.Go(func() error {
			p, err := src.Pages(gctx, session, chapter)
			if err != nil {
				return fmt.Errorf("fetch pages of %s: %w", chapter.Label(), err)
			}
			pages[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range manga.Chapters {
		manga.Chapters[i].Pages = pages[i]
		manga.Chapters[i].SortPages()
	}

	s.logger.Debug().Str("title", manga.Title).Int("chapters", len(manga.Chapters)).Int("pages", manga.PageCount()).Msg("discovered work")
	s.bus.Dispatch(Event{Kind: EventFetchEnd, URL: url, Title: manga.Title, Chapters: len(manga.Chapters)})
	return manga, nil
}

// FetchInfo is Fetch without page discovery: chapters come back without
// pages.
func (s *Scraper) FetchInfo(ctx context.Context, src sources.Source, session *sources.Session, url string, include, exclude shelf.Filter) (*data.Manga, error) {
	s.bus.Dispatch(Event{Kind: EventFetchTitle, URL: url})
	title, err := src.Title(ctx, session, url)
	if err != nil {
		return nil, fmt.Errorf("fetch title: %w", err)
	}
	cover, err := src.Cover(ctx, session, url)
	if err != nil {
		return nil, fmt.Errorf("fetch cover: %w", err)
	}

	s.bus.Dispatch(Event{Kind: EventFetchChapters, URL: url, Title: title})
	chapters, err := src.Chapters(ctx, session, url)
	if err != nil {
		return nil, fmt.Errorf("fetch chapters: %w", err)
	}

	manga := &data.Manga{URL: url, Title: title, Cover: cover, Chapters: chapters}
	// filters only read chapter fields, so pruning before page discovery
	// gives the same work with fewer requests
	return shelf.New(manga).Filter(shelf.Combine(include, exclude)).Manga, nil
}
