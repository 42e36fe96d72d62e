package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/sources"
	"github.com/kerbaras/shelf/pkg/tree"
	"github.com/kerbaras/shelf/pkg/utils"
)

// DefaultRateLimit is the default number of page fetches in flight.
const DefaultRateLimit = 200

// Method splits the page list of a download into sequential chunks.
type Method struct {
	size int
}

// SingleChunk downloads every page in one chunk.
func SingleChunk() Method { return Method{} }

// Chunked downloads pages in chunks of size n. n <= 0 is a single chunk.
func Chunked(n int) Method { return Method{size: n} }

func (m Method) String() string {
	if m.size <= 0 {
		return "single"
	}
	return fmt.Sprintf("chunks of %d", m.size)
}

// SessionFactory opens a fresh HTTP session.
type SessionFactory func() (*sources.Session, error)

// DownloaderOptions tunes a Downloader.
type DownloaderOptions struct {
	// RateLimit bounds the fetches in flight over the whole download.
	RateLimit int
	Sessions  SessionFactory
	Bus       *Bus
	Logger    *log.Logger
}

// Downloader fetches every page of a work into its tree.
type Downloader struct {
	endpoints *Endpoints
	manga     *data.Manga
	tree      *tree.Tree
	rateLimit int
	sessions  SessionFactory
	bus       *Bus
	logger    *log.Logger

	written atomic.Int64
	skipped atomic.Int64
}

func NewDownloader(endpoints *Endpoints, manga *data.Manga, t *tree.Tree, opts DownloaderOptions) *Downloader {
	d := &Downloader{
		endpoints: endpoints,
		manga:     manga,
		tree:      t,
		rateLimit: opts.RateLimit,
		sessions:  opts.Sessions,
		bus:       opts.Bus,
		logger:    opts.Logger,
	}
	if d.rateLimit <= 0 {
		d.rateLimit = DefaultRateLimit
	}
	if d.sessions == nil {
		d.sessions = func() (*sources.Session, error) { return sources.NewSession(nil), nil }
	}
	return d
}

// Written is the number of pages written by the last Download.
func (d *Downloader) Written() int {
	return int(d.written.Load())
}

// Skipped is the number of pages the last Download attempted and gave up
// on.
func (d *Downloader) Skipped() int {
	return int(d.skipped.Load())
}

// Download fetches every page of the work. Chunks run one after another:
// a chunk starts only once every fetch of the previous one has settled.
// The rate limit caps fetches in flight across all chunks. The first
// filesystem or context error stops the download once its chunk settles.
func (d *Downloader) Download(ctx context.Context, method Method) (*tree.Tree, error) {
	d.written.Store(0)
	d.skipped.Store(0)
	sem := semaphore.NewWeighted(int64(d.rateLimit))
	targets := d.tree.Flatten(d.manga.Chapters)
	chunks := utils.Chunks(targets, method.size)

	d.bus.Dispatch(Event{Kind: EventDownload, Title: d.manga.Title, Pages: len(targets), Chunks: len(chunks)})
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return d.tree, err
		}
		if err := d.chunk(ctx, sem, i+1, len(chunks), chunk); err != nil {
			return d.tree, err
		}
	}
	return d.tree, nil
}

func (d *Downloader) chunk(ctx context.Context, sem *semaphore.Weighted, n, total int, targets []tree.Target) error {
	session, err := d.sessions()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	d.bus.Dispatch(Event{Kind: EventChunk, Chunk: n, Chunks: total, ChunkSize: len(targets)})
	d.logger.Debug().Int("chunk", n).Int("chunks", total).Int("pages", len(targets)).Msg("downloading chunk")

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			return d.page(gctx, session, target)
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	d.bus.Dispatch(Event{Kind: EventChunkEnd, Chunk: n, Chunks: total, ChunkSize: len(targets)})
	return err
}

func (d *Downloader) page(ctx context.Context, session *sources.Session, target tree.Target) error {
	written, err := d.endpoints.Page(ctx, session, target)
	if err != nil {
		return fmt.Errorf("page %s of %s: %w", target.Page.Index, target.Chapter.Label(), err)
	}
	if written {
		d.written.Add(1)
	} else {
		d.skipped.Add(1)
	}
	return nil
}
