package sources

import (
	"fmt"
	"regexp"
)

// Factory builds a source adapter.
type Factory func() Source

type entry struct {
	name    string
	pattern *regexp.Regexp
	factory Factory
}

// Registry routes URLs to source adapters. Entries are tried in
// registration order and the first match wins.
type Registry struct {
	entries []entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an adapter for URLs matching pattern.
func (r *Registry) Register(name, pattern string, factory Factory) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("source %s: invalid pattern: %w", name, err)
	}
	r.entries = append(r.entries, entry{name: name, pattern: re, factory: factory})
	return nil
}

// MustRegister is like Register but panics on an invalid pattern.
func (r *Registry) MustRegister(name, pattern string, factory Factory) {
	if err := r.Register(name, pattern, factory); err != nil {
		panic(err)
	}
}

// Route returns a fresh adapter for url.
func (r *Registry) Route(url string) (Source, error) {
	for _, e := range r.entries {
		if e.pattern.MatchString(url) {
			return e.factory(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, url)
}

// Names lists the registered adapters in routing order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Options configures the built-in adapters.
type Options struct {
	Language    string
	MangaDexAPI string
}

// DefaultRegistry registers the built-in adapters.
func DefaultRegistry(opts Options) *Registry {
	r := NewRegistry()
	r.MustRegister("mangadex", MangaDexPattern, func() Source {
		return NewMangaDex(WithLanguage(opts.Language), WithAPI(opts.MangaDexAPI))
	})
	r.MustRegister("manganelo", ManganeloPattern, func() Source {
		return NewManganelo()
	})
	return r
}
