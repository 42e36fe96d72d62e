package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/sources"
)

// createTestPNG builds a small PNG image.
func createTestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// imageServer serves the same PNG on every path and counts requests.
type imageServer struct {
	*httptest.Server
	png  []byte
	hits atomic.Int32

	mu     sync.Mutex
	paths  []string
	handle func(w http.ResponseWriter, r *http.Request) bool
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()
	s := &imageServer{png: createTestPNG(t)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		handle := s.handle
		s.mu.Unlock()
		if handle != nil && handle(w, r) {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(s.png)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) setHandler(h func(w http.ResponseWriter, r *http.Request) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = h
}

func (s *imageServer) sessions() SessionFactory {
	return func() (*sources.Session, error) {
		return sources.NewSession(s.Client()), nil
	}
}

// dropConnection closes the connection without a response.
func dropConnection(t *testing.T, w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Errorf("response writer cannot be hijacked")
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		t.Errorf("hijack: %v", err)
		return
	}
	conn.Close()
}

// mockSource is a source adapter driven by function fields.
type mockSource struct {
	titleFunc    func(url string) (string, error)
	coverFunc    func(url string) (string, error)
	chaptersFunc func(url string) ([]data.Chapter, error)
	pagesFunc    func(chapter *data.Chapter) ([]data.Page, error)
	pageCalls    atomic.Int32
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) Title(_ context.Context, _ *sources.Session, url string) (string, error) {
	if m.titleFunc != nil {
		return m.titleFunc(url)
	}
	return "T", nil
}

func (m *mockSource) Cover(_ context.Context, _ *sources.Session, url string) (string, error) {
	if m.coverFunc != nil {
		return m.coverFunc(url)
	}
	return "", nil
}

func (m *mockSource) Chapters(_ context.Context, _ *sources.Session, url string) ([]data.Chapter, error) {
	if m.chaptersFunc != nil {
		return m.chaptersFunc(url)
	}
	return nil, nil
}

func (m *mockSource) Pages(_ context.Context, _ *sources.Session, chapter *data.Chapter) ([]data.Page, error) {
	m.pageCalls.Add(1)
	if m.pagesFunc != nil {
		return m.pagesFunc(chapter)
	}
	return nil, nil
}

// scenarioSource serves the work
//
//	T
//	  1 A: pages 1, 2
//	  2 B: page 1
//
// with page images hosted on baseURL.
func scenarioSource(baseURL string) *mockSource {
	return &mockSource{
		chaptersFunc: func(string) ([]data.Chapter, error) {
			return []data.Chapter{
				{URL: baseURL + "/c/1", Title: "A", Index: 1},
				{URL: baseURL + "/c/2", Title: "B", Index: 2},
			}, nil
		},
		pagesFunc: func(chapter *data.Chapter) ([]data.Page, error) {
			n := 2
			if strings.HasSuffix(chapter.URL, "/2") {
				n = 1
			}
			pages := make([]data.Page, n)
			for i := range pages {
				pages[i] = data.NewPage(chapter.URL+"/p/"+data.FormatNumber(float64(i+1))+".png", i+1)
			}
			return pages, nil
		},
	}
}

// recorder collects bus events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) listen(bus *Bus, kinds ...EventKind) {
	for _, k := range kinds {
		bus.On(k, r)
	}
}

var allEvents = []EventKind{
	EventFetchTitle, EventFetchChapters, EventFetchPages, EventFetchEnd,
	EventDownload, EventChunk, EventChunkEnd,
	EventPage, EventPageErrorAllowed, EventPageErrorRejected, EventPageWrite, EventPageEnd,
	EventCover,
}
