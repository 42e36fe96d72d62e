package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kerbaras/shelf/pkg/data"
)

// ManganeloPattern matches Manganelo and MangaRock work URLs.
const ManganeloPattern = `^https?://(www\.)?(manganelo\.com|mangarock\.to)/`

var (
	manganeloLabel = regexp.MustCompile(`Vol\.(\d*) *#(.*): *(.*)`)
	manganeloCover = regexp.MustCompile(`background-image: *url\(['"]?(.*?)['"]?\)`)
	manganeloPages = regexp.MustCompile(`var mangaData = (.*?);`)
)

// Manganelo scrapes works from the Manganelo HTML pages.
type Manganelo struct{}

func NewManganelo() *Manganelo {
	return &Manganelo{}
}

func (m *Manganelo) Name() string { return "manganelo" }

func (m *Manganelo) document(ctx context.Context, s *Session, url string) (*goquery.Document, []byte, error) {
	body, err := s.Get(ctx, url, nil)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, body, nil
}

func (m *Manganelo) Title(ctx context.Context, s *Session, url string) (string, error) {
	doc, _, err := m.document(ctx, s, url)
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(doc.Find("div.info h1").First().Text())
	if title == "" {
		return "", fmt.Errorf("no title on %s", url)
	}
	return title, nil
}

func (m *Manganelo) Cover(ctx context.Context, s *Session, url string) (string, error) {
	doc, _, err := m.document(ctx, s, url)
	if err != nil {
		return "", err
	}
	style, ok := doc.Find("div.thumb div").First().Attr("style")
	if !ok {
		return "", nil
	}
	match := manganeloCover.FindStringSubmatch(style)
	if match == nil {
		return "", nil
	}
	return match[1], nil
}

func (m *Manganelo) Chapters(ctx context.Context, s *Session, url string) ([]data.Chapter, error) {
	doc, _, err := m.document(ctx, s, url)
	if err != nil {
		return nil, err
	}

	var chapters []data.Chapter
	doc.Find("div.all-chapers tbody a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		chapter, ok := parseChapterLabel(strings.TrimSpace(a.Text()))
		if !ok {
			return
		}
		chapter.URL = href
		chapters = append(chapters, chapter)
	})

	// listings are newest first
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Index < chapters[j].Index
	})
	return chapters, nil
}

// parseChapterLabel reads labels like "Vol.2 #10.5: Title".
func parseChapterLabel(label string) (data.Chapter, bool) {
	match := manganeloLabel.FindStringSubmatch(label)
	if match == nil {
		return data.Chapter{}, false
	}
	index, err := strconv.ParseFloat(strings.TrimSpace(match[2]), 64)
	title := strings.TrimSpace(match[3])
	if err != nil || title == "" {
		return data.Chapter{}, false
	}
	chapter := data.Chapter{Index: index, Title: title}
	if v, err := strconv.ParseFloat(match[1], 64); err == nil {
		chapter.Volume = data.Vol(v)
	}
	return chapter, true
}

func (m *Manganelo) Pages(ctx context.Context, s *Session, chapter *data.Chapter) ([]data.Page, error) {
	_, body, err := m.document(ctx, s, chapter.URL)
	if err != nil {
		return nil, err
	}
	match := manganeloPages.FindSubmatch(body)
	if match == nil {
		return nil, fmt.Errorf("no page data on %s", chapter.URL)
	}
	var images []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(match[1], &images); err != nil {
		return nil, fmt.Errorf("decode page data of %s: %w", chapter.URL, err)
	}
	pages := make([]data.Page, len(images))
	for i, img := range images {
		pages[i] = data.NewPage(img.URL, i)
	}
	return pages, nil
}

// PageHeaders sends the chapter as referer, which the image hosts require.
func (m *Manganelo) PageHeaders(chapter *data.Chapter, _ *data.Page) http.Header {
	return http.Header{"Referer": {chapter.URL}}
}
