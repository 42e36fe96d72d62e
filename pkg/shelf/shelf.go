package shelf

import (
	"sort"

	"github.com/kerbaras/shelf/pkg/data"
)

// Shelf is a read-only view over a Manga. Operations return new shelves and
// never modify the manga they were built from.
type Shelf struct {
	Manga *data.Manga
}

func New(manga *data.Manga) *Shelf {
	return &Shelf{Manga: manga}
}

// Filter keeps the chapters accepted by f, preserving their order.
func (s *Shelf) Filter(f Filter) *Shelf {
	if f == nil {
		return s
	}
	kept := make([]data.Chapter, 0, len(s.Manga.Chapters))
	for i := range s.Manga.Chapters {
		if f(&s.Manga.Chapters[i]) {
			kept = append(kept, s.Manga.Chapters[i])
		}
	}
	return New(s.Manga.WithChapters(kept))
}

// Sort orders chapters by index, then volume. Chapters without a volume
// come before volumed ones with the same index. The sort is stable.
func (s *Shelf) Sort() *Shelf {
	sorted := make([]data.Chapter, len(s.Manga.Chapters))
	copy(sorted, s.Manga.Chapters)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		switch {
		case a.Volume == nil:
			return b.Volume != nil
		case b.Volume == nil:
			return false
		}
		return *a.Volume < *b.Volume
	})
	return New(s.Manga.WithChapters(sorted))
}

// SplitVolumes groups chapters by volume number, keeping shelf order inside
// each group. Chapters without a volume are returned separately.
func (s *Shelf) SplitVolumes() (map[float64][]data.Chapter, []data.Chapter) {
	volumes := make(map[float64][]data.Chapter)
	var loose []data.Chapter
	for _, ch := range s.Manga.Chapters {
		if ch.Volume == nil {
			loose = append(loose, ch)
			continue
		}
		volumes[*ch.Volume] = append(volumes[*ch.Volume], ch)
	}
	return volumes, loose
}
