package services

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/logging"
	"github.com/kerbaras/shelf/pkg/shelf"
	"github.com/kerbaras/shelf/pkg/sources"
	"github.com/kerbaras/shelf/pkg/tree"
)

type mockRepository struct {
	mu       sync.Mutex
	works    map[string]*data.WorkRecord
	chapters map[string][]data.ChapterRecord
	saveErr  error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		works:    make(map[string]*data.WorkRecord),
		chapters: make(map[string][]data.ChapterRecord),
	}
}

func (m *mockRepository) SaveWork(work *data.WorkRecord, chapters []data.ChapterRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.works[work.URL] = work
	m.chapters[work.URL] = chapters
	return nil
}

func (m *mockRepository) GetWork(url string) (*data.WorkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.works[url], nil
}

func (m *mockRepository) ListWorks() ([]*data.WorkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.WorkRecord
	for _, w := range m.works {
		out = append(out, w)
	}
	return out, nil
}

func (m *mockRepository) GetChapters(url string) ([]data.ChapterRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chapters[url], nil
}

func (m *mockRepository) DeleteWork(url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.works, url)
	delete(m.chapters, url)
	return nil
}

type controllerFixture struct {
	server *imageServer
	src    *mockSource
	repo   *mockRepository
	ctrl   *MangaController
	rec    *recorder
	root   string
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	server := newImageServer(t)
	src := scenarioSource(server.URL)

	registry := sources.NewRegistry()
	registry.MustRegister("mock", `^test://`, func() sources.Source { return src })

	bus := NewBus(logging.Nop())
	rec := &recorder{}
	rec.listen(bus, allEvents...)
	repo := newMockRepository()

	ctrl := NewMangaController(ControllerOptions{
		Registry: registry,
		Sessions: server.sessions(),
		Repo:     repo,
		Bus:      bus,
		Logger:   logging.Nop(),
	})
	return &controllerFixture{server: server, src: src, repo: repo, ctrl: ctrl, rec: rec, root: t.TempDir()}
}

func (f *controllerFixture) download(t *testing.T, manga *data.Manga) *Report {
	t.Helper()
	report, err := f.ctrl.Download(context.Background(), manga, f.src, DownloadOptions{Root: f.root, Method: Chunked(2)})
	require.NoError(t, err)
	return report
}

func TestControllerEndToEnd(t *testing.T) {
	f := newControllerFixture(t)

	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{Include: shelf.IndexIn(1)})
	require.NoError(t, err)
	require.Len(t, manga.Chapters, 1)
	assert.Equal(t, 1.0, manga.Chapters[0].Index)
	assert.Len(t, manga.Chapters[0].Pages, 2)

	report := f.download(t, manga)
	assert.Equal(t, 2, report.Expected)
	assert.Equal(t, 2, report.Missing)
	assert.Equal(t, 2, report.Written)
	assert.Zero(t, report.Skipped)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, filepath.Join(f.root, "T"), report.Root)

	assert.FileExists(t, filepath.Join(f.root, "T", "1 A", "1.png"))
	assert.FileExists(t, filepath.Join(f.root, "T", "1 A", "2.png"))
	assert.NoDirExists(t, filepath.Join(f.root, "T", "2 B"))

	recovered, err := tree.ReadRecovery(report.Root)
	require.NoError(t, err)
	assert.Equal(t, manga, recovered)
}

func TestControllerIdempotent(t *testing.T) {
	f := newControllerFixture(t)
	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{})
	require.NoError(t, err)

	first := f.download(t, manga)
	assert.Equal(t, 3, first.Written)
	hits := f.server.hits.Load()
	before := listFiles(t, first.Root)

	second := f.download(t, manga)
	assert.Zero(t, second.Missing)
	assert.Zero(t, second.Written)
	assert.Equal(t, hits, f.server.hits.Load(), "second run performs no fetch")
	assert.Equal(t, before, listFiles(t, second.Root))
}

func TestControllerResumes(t *testing.T) {
	f := newControllerFixture(t)
	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{})
	require.NoError(t, err)

	first := f.download(t, manga)
	kept := filepath.Join(first.Root, "1 A", "1.png")
	removed := filepath.Join(first.Root, "2 B", "1.png")
	require.NoError(t, os.Remove(removed))
	stamp := time.Unix(1_000_000, 0)
	require.NoError(t, os.Chtimes(kept, stamp, stamp))
	keptBytes, err := os.ReadFile(kept)
	require.NoError(t, err)

	hits := f.server.hits.Load()
	second := f.download(t, manga)

	assert.Equal(t, 1, second.Missing)
	assert.Equal(t, 1, second.Written)
	assert.Equal(t, hits+1, f.server.hits.Load(), "only the gap is fetched")
	assert.FileExists(t, removed)

	info, err := os.Stat(kept)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(stamp), "present pages are not rewritten")
	content, err := os.ReadFile(kept)
	require.NoError(t, err)
	assert.Equal(t, keptBytes, content)
}

func TestControllerWritesRecoveryBeforeFetching(t *testing.T) {
	f := newControllerFixture(t)
	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{})
	require.NoError(t, err)

	recoveryPath := filepath.Join(f.root, "T", tree.RecoveryFile)
	var mu sync.Mutex
	seen := true
	f.ctrl.Bus().OnFunc(EventPage, func(Event) {
		mu.Lock()
		defer mu.Unlock()
		if _, err := os.Stat(recoveryPath); err != nil {
			seen = false
		}
	})

	f.download(t, manga)
	assert.True(t, seen)
}

func TestControllerRecoveryHoldsFilteredWork(t *testing.T) {
	f := newControllerFixture(t)
	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{})
	require.NoError(t, err)
	first := f.download(t, manga)

	// everything is on disk, yet the record keeps the full intent
	recovered, err := tree.ReadRecovery(first.Root)
	require.NoError(t, err)
	assert.Equal(t, 3, recovered.PageCount())
}

func TestControllerLocked(t *testing.T) {
	f := newControllerFixture(t)
	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{})
	require.NoError(t, err)

	tr, err := tree.New(f.root, manga)
	require.NoError(t, err)
	unlock, err := tr.Lock()
	require.NoError(t, err)
	defer unlock()

	_, err = f.ctrl.Download(context.Background(), manga, f.src, DownloadOptions{Root: f.root})
	assert.ErrorIs(t, err, tree.ErrLocked)
	assert.Zero(t, f.server.hits.Load())
}

func TestControllerResume(t *testing.T) {
	f := newControllerFixture(t)
	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{})
	require.NoError(t, err)
	report := f.download(t, manga)

	resumed, src, err := f.ctrl.Resume(report.Root, FetchOptions{Exclude: shelf.IndexIn(1)})
	require.NoError(t, err)
	assert.Same(t, f.src, src)
	require.Len(t, resumed.Chapters, 1)
	assert.Equal(t, "B", resumed.Chapters[0].Title)

	_, _, err = f.ctrl.Resume(t.TempDir(), FetchOptions{})
	assert.ErrorIs(t, err, tree.ErrNoRecovery)
}

func TestControllerResumeUnknownSource(t *testing.T) {
	f := newControllerFixture(t)
	manga := &data.Manga{URL: "https://elsewhere.example/t", Title: "Other"}
	tr, err := tree.New(f.root, manga)
	require.NoError(t, err)
	require.NoError(t, tr.WriteRecovery(manga))

	resumed, src, err := f.ctrl.Resume(tr.Root(), FetchOptions{})
	require.NoError(t, err)
	assert.Nil(t, src)
	assert.Equal(t, "Other", resumed.Title)
}

func TestControllerUnsupportedSource(t *testing.T) {
	f := newControllerFixture(t)
	_, _, err := f.ctrl.Fetch(context.Background(), "https://nowhere.example/", FetchOptions{})
	assert.ErrorIs(t, err, sources.ErrUnsupportedSource)
}

func TestControllerCover(t *testing.T) {
	f := newControllerFixture(t)
	f.src.coverFunc = func(string) (string, error) { return f.server.URL + "/cover.png", nil }
	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{})
	require.NoError(t, err)

	report := f.download(t, manga)
	assert.True(t, report.Cover)
	assert.FileExists(t, filepath.Join(report.Root, "cover.png"))

	again := f.download(t, manga)
	assert.False(t, again.Cover, "an existing cover is not fetched again")
}

func TestControllerSyncsLibrary(t *testing.T) {
	f := newControllerFixture(t)
	f.server.setHandler(func(w http.ResponseWriter, r *http.Request) bool {
		if strings.HasSuffix(r.URL.Path, "/c/1/p/2.png") {
			http.NotFound(w, r)
			return true
		}
		return false
	})
	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{})
	require.NoError(t, err)

	report := f.download(t, manga)
	assert.Equal(t, 1, report.Skipped)

	works, err := f.ctrl.Works()
	require.NoError(t, err)
	require.Len(t, works, 1)
	assert.Equal(t, "T", works[0].Title)
	assert.Equal(t, report.Root, works[0].Root)

	chapters, err := f.ctrl.Chapters("test://t")
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	present := map[float64]int{}
	for _, ch := range chapters {
		present[ch.Index] = ch.Present
	}
	assert.Equal(t, map[float64]int{1: 1, 2: 1}, present)

	require.NoError(t, f.ctrl.Forget("test://t"))
	works, err = f.ctrl.Works()
	require.NoError(t, err)
	assert.Empty(t, works)
}

func TestControllerSyncKeepsEarlierChapters(t *testing.T) {
	f := newControllerFixture(t)

	first, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{Include: shelf.IndexIn(1)})
	require.NoError(t, err)
	f.download(t, first)

	second, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{Include: shelf.IndexIn(2)})
	require.NoError(t, err)
	f.download(t, second)

	chapters, err := f.ctrl.Chapters("test://t")
	require.NoError(t, err)
	assert.Len(t, chapters, 2)
}

func listFiles(t *testing.T, root string) map[string]int64 {
	t.Helper()
	files := map[string]int64{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[rel] = info.Size()
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestControllerResumesInPlace(t *testing.T) {
	f := newControllerFixture(t)
	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{})
	require.NoError(t, err)
	first := f.download(t, manga)

	moved := filepath.Join(f.root, "My Copy")
	require.NoError(t, os.Rename(first.Root, moved))
	before := listFiles(t, moved)
	hits := f.server.hits.Load()

	resume := func(t *testing.T, dir string) *Report {
		t.Helper()
		resumed, src, err := f.ctrl.Resume(dir, FetchOptions{})
		require.NoError(t, err)
		report, err := f.ctrl.Download(context.Background(), resumed, src, DownloadOptions{Root: f.root, WorkDir: dir})
		require.NoError(t, err)
		return report
	}

	t.Run("renamed directory", func(t *testing.T) {
		report := resume(t, moved)
		assert.Equal(t, moved, report.Root)
		assert.Zero(t, report.Missing)
		assert.Zero(t, report.Written)
	})

	t.Run("current directory", func(t *testing.T) {
		t.Chdir(moved)
		report := resume(t, ".")
		assert.Zero(t, report.Missing)
		assert.Zero(t, report.Written)
		assert.NoDirExists(t, filepath.Join(moved, "T"))
	})

	assert.Equal(t, hits, f.server.hits.Load(), "nothing is fetched again")
	assert.NoDirExists(t, filepath.Join(f.root, "T"))
	assert.Equal(t, before, listFiles(t, moved))
}

func TestControllerKeepsRecordedLayout(t *testing.T) {
	f := newControllerFixture(t)
	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{})
	require.NoError(t, err)

	first, err := f.ctrl.Download(context.Background(), manga, f.src, DownloadOptions{
		Root:          f.root,
		ImageFormat:   "jpg",
		ChapterFormat: "{index}",
	})
	require.NoError(t, err)
	require.Equal(t, 3, first.Written)
	assert.FileExists(t, filepath.Join(first.Root, "1", "1.jpg"))
	hits := f.server.hits.Load()

	// the configuration went back to the defaults since
	second := f.download(t, manga)
	assert.Zero(t, second.Missing)
	assert.Equal(t, hits, f.server.hits.Load())
	assert.NoDirExists(t, filepath.Join(second.Root, "1 A"))

	layout, err := tree.ReadLayout(second.Root)
	require.NoError(t, err)
	require.NotNil(t, layout)
	assert.Equal(t, tree.Layout{ChapterFormat: "{index}", ImageFormat: "jpg"}, *layout)
}

func TestControllerSkippedCountsOnlyAttemptedPages(t *testing.T) {
	f := newControllerFixture(t)
	manga, _, err := f.ctrl.Fetch(context.Background(), "test://t", FetchOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.ctrl.Bus().OnFunc(EventPageWrite, func(Event) { cancel() })

	report, err := f.ctrl.Download(ctx, manga, f.src, DownloadOptions{Root: f.root, Method: Chunked(1), RateLimit: 1})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 3, report.Missing)
	assert.Equal(t, 1, report.Written)
	assert.Zero(t, report.Skipped, "pages never attempted are not skipped")
}
