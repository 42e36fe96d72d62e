// Package sources holds the adapters that discover the chapters and pages
// of a work on a remote site.
package sources

import (
	"context"
	"errors"
	"net/http"

	"github.com/kerbaras/shelf/pkg/data"
)

// ErrUnsupportedSource is returned when no adapter handles a URL.
var ErrUnsupportedSource = errors.New("no source handles this url")

// Source discovers the structure of a work. All calls of one discovery pass
// share a Session.
type Source interface {
	Name() string
	Title(ctx context.Context, s *Session, url string) (string, error)
	// Cover returns the cover image URL, or "" when the work has none.
	Cover(ctx context.Context, s *Session, url string) (string, error)
	// Chapters lists the chapters of the work in order, without pages.
	Chapters(ctx context.Context, s *Session, url string) ([]data.Chapter, error)
	// Pages lists the pages of chapter in order.
	Pages(ctx context.Context, s *Session, chapter *data.Chapter) ([]data.Page, error)
}

// HeaderProvider is implemented by sources whose image hosts need extra
// request headers.
type HeaderProvider interface {
	PageHeaders(chapter *data.Chapter, page *data.Page) http.Header
}

// PageHeaders returns the headers src wants for page, or nil.
func PageHeaders(src Source, chapter *data.Chapter, page *data.Page) http.Header {
	if hp, ok := src.(HeaderProvider); ok {
		return hp.PageHeaders(chapter, page)
	}
	return nil
}
