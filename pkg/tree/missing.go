package tree

import (
	"fmt"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/utils"
)

// Missing returns a copy of manga that only holds the pages not yet on
// disk. Chapters left without pages are dropped. manga is not modified.
func (t *Tree) Missing(manga *data.Manga) (*data.Manga, error) {
	var chapters []data.Chapter
	for i := range manga.Chapters {
		chapter := &manga.Chapters[i]
		var pages []data.Page
		for j := range chapter.Pages {
			ok, err := utils.Exists(t.Page(chapter, &chapter.Pages[j]))
			if err != nil {
				return nil, fmt.Errorf("check page %s of %s: %w", chapter.Pages[j].Index, chapter.Label(), err)
			}
			if !ok {
				pages = append(pages, chapter.Pages[j])
			}
		}
		if len(pages) == 0 {
			continue
		}
		reduced := *chapter
		reduced.Pages = pages
		chapters = append(chapters, reduced)
	}
	return manga.WithChapters(chapters), nil
}

// ChapterStatus counts the pages of a chapter present on disk.
type ChapterStatus struct {
	Chapter data.Chapter
	Total   int
	Present int
}

// Complete reports whether every page of the chapter is on disk.
func (s ChapterStatus) Complete() bool {
	return s.Present >= s.Total
}

// Status reports, for every chapter of manga, how many pages are on disk.
func (t *Tree) Status(manga *data.Manga) ([]ChapterStatus, error) {
	statuses := make([]ChapterStatus, 0, len(manga.Chapters))
	for i := range manga.Chapters {
		chapter := &manga.Chapters[i]
		status := ChapterStatus{Chapter: *chapter, Total: len(chapter.Pages)}
		for j := range chapter.Pages {
			ok, err := utils.Exists(t.Page(chapter, &chapter.Pages[j]))
			if err != nil {
				return nil, fmt.Errorf("check page %s of %s: %w", chapter.Pages[j].Index, chapter.Label(), err)
			}
			if ok {
				status.Present++
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
