package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workHTML = `<html><body>
<div class="thumb"><div style="background-image: url('https://img.example/cover.jpg');"></div></div>
<div class="info"><h1> The Work </h1></div>
<div class="all-chapers"><table><tbody>
<tr><td><a href="%[1]s/chapter/3">Vol.2 #3: Third</a></td></tr>
<tr><td><a href="%[1]s/chapter/2.5">Vol.1 #2.5: Bonus</a></td></tr>
<tr><td><a href="%[1]s/chapter/1">Vol. #1: First</a></td></tr>
<tr><td><a href="%[1]s/chapter/x">Announcement</a></td></tr>
</tbody></table></div>
</body></html>`

const chapterHTML = `<html><head><script>
var mangaData = [{"url":"https://img.example/a.jpg"},{"url":"https://img.example/b.jpg"}];
</script></head><body></body></html>`

func newManganeloServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var workHits atomic.Int32
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/manga/work", func(w http.ResponseWriter, r *http.Request) {
		workHits.Add(1)
		fmt.Fprintf(w, workHTML, server.URL)
	})
	mux.HandleFunc("/chapter/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chapterHTML))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &workHits
}

func TestManganeloWork(t *testing.T) {
	server, hits := newManganeloServer(t)
	m := NewManganelo()
	s := NewSession(server.Client())
	ctx := context.Background()
	url := server.URL + "/manga/work"

	title, err := m.Title(ctx, s, url)
	require.NoError(t, err)
	assert.Equal(t, "The Work", title)

	cover, err := m.Cover(ctx, s, url)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/cover.jpg", cover)

	chapters, err := m.Chapters(ctx, s, url)
	require.NoError(t, err)
	require.Len(t, chapters, 3, "unparseable entries are skipped")

	assert.Equal(t, 1.0, chapters[0].Index)
	assert.Equal(t, "First", chapters[0].Title)
	assert.Nil(t, chapters[0].Volume)
	assert.Equal(t, 2.5, chapters[1].Index)
	require.NotNil(t, chapters[1].Volume)
	assert.Equal(t, 1.0, *chapters[1].Volume)
	assert.Equal(t, server.URL+"/chapter/3", chapters[2].URL)

	assert.Equal(t, int32(1), hits.Load(), "the work page is fetched once per session")
}

func TestManganeloPages(t *testing.T) {
	server, _ := newManganeloServer(t)
	chapter := &data.Chapter{URL: server.URL + "/chapter/1", Index: 1}

	pages, err := NewManganelo().Pages(context.Background(), NewSession(server.Client()), chapter)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, data.Page{URL: "https://img.example/a.jpg", Index: "0"}, pages[0])
	assert.Equal(t, "1", pages[1].Index)
}

func TestManganeloPagesMissingData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	_, err := NewManganelo().Pages(context.Background(), NewSession(server.Client()), &data.Chapter{URL: server.URL})
	assert.Error(t, err)
}

func TestParseChapterLabel(t *testing.T) {
	tests := []struct {
		label  string
		ok     bool
		index  float64
		volume *float64
		title  string
	}{
		{"Vol.3 #12: Name", true, 12, data.Vol(3), "Name"},
		{"Vol. #7.5:Side", true, 7.5, nil, "Side"},
		{"Vol.1 #2:", false, 0, nil, ""},
		{"Vol.1 #x: Title", false, 0, nil, ""},
		{"Chapter 4", false, 0, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			chapter, ok := parseChapterLabel(tt.label)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.index, chapter.Index)
			assert.Equal(t, tt.volume, chapter.Volume)
			assert.Equal(t, tt.title, chapter.Title)
		})
	}
}
