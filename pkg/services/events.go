package services

import (
	"fmt"
	"sync"

	"github.com/phuslu/log"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/tree"
)

// EventKind names a pipeline notification.
type EventKind string

const (
	EventFetchTitle    EventKind = "fetch.title"
	EventFetchChapters EventKind = "fetch.chapters"
	EventFetchPages    EventKind = "fetch.pages"
	EventFetchEnd      EventKind = "fetch.end"

	EventDownload EventKind = "download"
	EventChunk    EventKind = "chunk"
	EventChunkEnd EventKind = "chunk.end"

	EventPage              EventKind = "page"
	EventPageErrorAllowed  EventKind = "page.error.allowed"
	EventPageErrorRejected EventKind = "page.error.not_allowed"
	EventPageWrite         EventKind = "page.write"
	EventPageEnd           EventKind = "page.end"

	EventCover EventKind = "cover"
)

// Event is a notification dispatched on a Bus. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind EventKind

	URL      string
	Title    string
	Chapters int
	Pages    int
	Chapter  *data.Chapter

	Chunk     int // 1-based
	ChunkSize int
	Chunks    int

	Target  *tree.Target
	Attempt int
	Err     error
}

// Observer receives events.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// Bus fans events out to observers. Observers run synchronously in the
// dispatching goroutine, one at a time. A slow observer stalls whoever
// dispatched the event.
type Bus struct {
	mu        sync.Mutex
	observers map[EventKind][]Observer
	logger    *log.Logger
}

func NewBus(logger *log.Logger) *Bus {
	return &Bus{observers: make(map[EventKind][]Observer), logger: logger}
}

// On registers o for events of kind.
func (b *Bus) On(kind EventKind, o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[kind] = append(b.observers[kind], o)
}

// OnFunc registers fn for events of kind.
func (b *Bus) OnFunc(kind EventKind, fn func(Event)) {
	b.On(kind, ObserverFunc(fn))
}

// Dispatch delivers e to every observer registered for its kind. A
// panicking observer is logged and the remaining observers still run.
func (b *Bus) Dispatch(e Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.observers[e.Kind] {
		b.notify(o, e)
	}
}

func (b *Bus) notify(o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error().Str("event", string(e.Kind)).Err(fmt.Errorf("%v", r)).Msg("event observer panicked")
		}
	}()
	o.Notify(e)
}
