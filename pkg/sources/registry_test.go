package sources

import (
	"context"
	"testing"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct{ name string }

func (s *stubSource) Name() string { return s.name }
func (s *stubSource) Title(context.Context, *Session, string) (string, error) {
	return s.name, nil
}
func (s *stubSource) Cover(context.Context, *Session, string) (string, error) { return "", nil }
func (s *stubSource) Chapters(context.Context, *Session, string) ([]data.Chapter, error) {
	return nil, nil
}
func (s *stubSource) Pages(context.Context, *Session, *data.Chapter) ([]data.Page, error) {
	return nil, nil
}

func TestRegistryRoute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("first", `^https://a\.example/`, func() Source { return &stubSource{name: "first"} }))
	require.NoError(t, r.Register("second", `^https://a\.example/special/`, func() Source { return &stubSource{name: "second"} }))
	require.NoError(t, r.Register("third", `^https://b\.example/`, func() Source { return &stubSource{name: "third"} }))

	src, err := r.Route("https://a.example/special/1")
	require.NoError(t, err)
	assert.Equal(t, "first", src.Name(), "first match wins")

	src, err = r.Route("https://b.example/x")
	require.NoError(t, err)
	assert.Equal(t, "third", src.Name())

	assert.Equal(t, []string{"first", "second", "third"}, r.Names())
}

func TestRegistryNoMatch(t *testing.T) {
	_, err := NewRegistry().Route("https://nowhere.example/")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestRegistryInvalidPattern(t *testing.T) {
	err := NewRegistry().Register("bad", `(`, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedSource)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(Options{Language: "es"})
	assert.Equal(t, []string{"mangadex", "manganelo"}, r.Names())

	src, err := r.Route("https://mangadex.org/title/6b1eb93e-473a-4ab3-9922-1a66d2a29a4a/naruto")
	require.NoError(t, err)
	require.IsType(t, &MangaDex{}, src)
	assert.Equal(t, "es", src.(*MangaDex).language)

	src, err = r.Route("https://manganelo.com/manga/abc")
	require.NoError(t, err)
	assert.Equal(t, "manganelo", src.Name())

	_, err = r.Route("https://example.com/")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestPageHeaders(t *testing.T) {
	chapter := &data.Chapter{URL: "https://manganelo.com/chapter/1"}
	page := &data.Page{URL: "https://img.example/1.png", Index: "0"}

	assert.Nil(t, PageHeaders(&stubSource{}, chapter, page))
	assert.Equal(t, chapter.URL, PageHeaders(NewManganelo(), chapter, page).Get("Referer"))
}
