package data

import (
	"sort"
	"strconv"
)

// Manga is a serialized work: a title plus its ordered chapters.
type Manga struct {
	URL      string    `yaml:"url" json:"url" toml:"url"`
	Title    string    `yaml:"title" json:"title" toml:"title"`
	Cover    string    `yaml:"cover" json:"cover" toml:"cover,omitempty"`
	Chapters []Chapter `yaml:"chapters" json:"chapters" toml:"chapters"`
}

// Chapter is an ordered unit of a Manga. Index may be fractional for
// sub-releases (e.g. 10.5). Volume is nil when the source does not group
// chapters into volumes.
type Chapter struct {
	URL    string   `yaml:"url" json:"url" toml:"url"`
	Title  string   `yaml:"title" json:"title" toml:"title"`
	Index  float64  `yaml:"index" json:"index" toml:"index"`
	Volume *float64 `yaml:"volume" json:"volume" toml:"volume,omitempty"`
	Pages  []Page   `yaml:"pages" json:"pages" toml:"pages"`
}

// Page is the smallest fetchable unit. Index is both the ordering key and
// the file name stem on disk.
type Page struct {
	URL   string `yaml:"url" json:"url" toml:"url"`
	Index string `yaml:"index" json:"index" toml:"index"`
}

// NewPage builds a page with a numeric index.
func NewPage(url string, index int) Page {
	return Page{URL: url, Index: strconv.Itoa(index)}
}

// Vol returns a pointer to v, handy for building chapters with a volume.
func Vol(v float64) *float64 {
	return &v
}

// FormatNumber renders chapter and volume numbers without trailing zeros.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// PageCount returns the total number of pages across all chapters.
func (m *Manga) PageCount() int {
	total := 0
	for i := range m.Chapters {
		total += len(m.Chapters[i].Pages)
	}
	return total
}

// WithChapters returns a shallow copy of m holding the given chapters. The
// receiver is left untouched.
func (m *Manga) WithChapters(chapters []Chapter) *Manga {
	out := *m
	out.Chapters = chapters
	return &out
}

// HasVolume reports whether the chapter belongs to a volume.
func (c *Chapter) HasVolume() bool {
	return c.Volume != nil
}

// Label is a human readable chapter name.
func (c *Chapter) Label() string {
	label := "Chapter " + FormatNumber(c.Index)
	if c.Volume != nil {
		label = "Vol. " + FormatNumber(*c.Volume) + ", " + label
	}
	if c.Title != "" {
		label += ": " + c.Title
	}
	return label
}

// SortPages orders the chapter pages ascending by index.
func (c *Chapter) SortPages() {
	sort.SliceStable(c.Pages, func(i, j int) bool {
		return ComparePageIndex(c.Pages[i].Index, c.Pages[j].Index) < 0
	})
}

// ComparePageIndex compares two page indices. Numeric indices compare by
// value; anything else falls back to a lexical comparison, with numbers
// sorting first.
func ComparePageIndex(a, b string) int {
	na, errA := strconv.ParseFloat(a, 64)
	nb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
