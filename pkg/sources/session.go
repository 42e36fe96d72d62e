package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

// StatusError is a response outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Session is the HTTP context of one run. It caches response bodies by URL
// so adapters can read the same document for title, cover and chapters
// with a single request. A Session is never shared between runs.
type Session struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string][]byte
	group singleflight.Group
}

// NewSession wraps client. A nil client uses http.DefaultClient.
func NewSession(client *http.Client) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	return &Session{client: client, cache: make(map[string][]byte)}
}

// Client is the underlying HTTP client.
func (s *Session) Client() *http.Client {
	return s.client
}

// Get returns the body behind url, from the cache when it was already
// fetched by this session. Only successful responses are cached.
func (s *Session) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	s.mu.Lock()
	body, ok := s.cache[url]
	s.mu.Unlock()
	if ok {
		return body, nil
	}

	v, err, _ := s.group.Do(url, func() (any, error) {
		body, err := s.fetch(ctx, url, header)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[url] = body
		s.mu.Unlock()
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Do sends req without caching. The caller closes the response body.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.client.Do(req)
}

func (s *Session) fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}

// Close drops the cache and the idle connections of the session.
func (s *Session) Close() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()
	s.client.CloseIdleConnections()
}
