package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/utils"
)

// MangaDexPattern matches MangaDex title URLs.
const MangaDexPattern = `^https?://(www\.)?mangadex\.org/title/`

const (
	mangaDexAPI     = "https://api.mangadex.org"
	mangaDexUploads = "https://uploads.mangadex.org"
	mangaDexSite    = "https://mangadex.org"
	feedPageSize    = 500
)

var (
	mangaDexTitleID   = regexp.MustCompile(`/title/([0-9a-fA-F-]{36})`)
	mangaDexChapterID = regexp.MustCompile(`/chapter/([0-9a-fA-F-]{36})`)
)

type mangaDexManga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title map[string]string `json:"title"`
	} `json:"attributes"`
	Relationships []struct {
		Type       string `json:"type"`
		Attributes struct {
			FileName string `json:"fileName"`
		} `json:"attributes"`
	} `json:"relationships"`
}

func (m *mangaDexManga) title(language string) string {
	if t, ok := m.Attributes.Title[language]; ok {
		return t
	}
	if t, ok := m.Attributes.Title["en"]; ok {
		return t
	}
	keys := make([]string, 0, len(m.Attributes.Title))
	for k := range m.Attributes.Title {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return m.ID
	}
	sort.Strings(keys)
	return m.Attributes.Title[keys[0]]
}

type mangaDexChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title    string `json:"title"`
		Language string `json:"translatedLanguage"`
		Volume   string `json:"volume"`
		Number   string `json:"chapter"`
	} `json:"attributes"`
}

func (c *mangaDexChapter) toChapter(site string) data.Chapter {
	chapter := data.Chapter{
		URL:   fmt.Sprintf("%s/chapter/%s", site, c.ID),
		Title: c.Attributes.Title,
	}
	// oneshots carry no chapter number
	if n, err := strconv.ParseFloat(c.Attributes.Number, 64); err == nil {
		chapter.Index = n
	}
	if v, err := strconv.ParseFloat(c.Attributes.Volume, 64); err == nil {
		chapter.Volume = data.Vol(v)
	}
	return chapter
}

// MangaDex reads works through the public MangaDex JSON API.
type MangaDex struct {
	baseURL    string
	uploadsURL string
	siteURL    string
	language   string
}

// MangaDexOption configures the MangaDex adapter.
type MangaDexOption func(*MangaDex)

// WithLanguage restricts chapters to one translated language.
func WithLanguage(language string) MangaDexOption {
	return func(m *MangaDex) {
		if language != "" {
			m.language = language
		}
	}
}

// WithAPI points the adapter at another API host.
func WithAPI(baseURL string) MangaDexOption {
	return func(m *MangaDex) {
		if baseURL != "" {
			m.baseURL = baseURL
		}
	}
}

// WithUploads points cover URLs at another uploads host.
func WithUploads(uploadsURL string) MangaDexOption {
	return func(m *MangaDex) {
		if uploadsURL != "" {
			m.uploadsURL = uploadsURL
		}
	}
}

func NewMangaDex(opts ...MangaDexOption) *MangaDex {
	m := &MangaDex{
		baseURL:    mangaDexAPI,
		uploadsURL: mangaDexUploads,
		siteURL:    mangaDexSite,
		language:   "en",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MangaDex) Name() string { return "mangadex" }

func (m *MangaDex) manga(ctx context.Context, s *Session, rawURL string) (*mangaDexManga, error) {
	id, err := matchID(mangaDexTitleID, rawURL)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Data mangaDexManga `json:"data"`
	}
	params := url.Values{"includes[]": {"cover_art"}}
	if err := utils.NewAPI(s, m.baseURL).Get(ctx, "/manga/"+id, params, &resp); err != nil {
		return nil, fmt.Errorf("get manga %s: %w", id, err)
	}
	return &resp.Data, nil
}

func (m *MangaDex) Title(ctx context.Context, s *Session, rawURL string) (string, error) {
	manga, err := m.manga(ctx, s, rawURL)
	if err != nil {
		return "", err
	}
	return manga.title(m.language), nil
}

func (m *MangaDex) Cover(ctx context.Context, s *Session, rawURL string) (string, error) {
	manga, err := m.manga(ctx, s, rawURL)
	if err != nil {
		return "", err
	}
	for _, rel := range manga.Relationships {
		if rel.Type == "cover_art" && rel.Attributes.FileName != "" {
			return fmt.Sprintf("%s/covers/%s/%s", m.uploadsURL, manga.ID, rel.Attributes.FileName), nil
		}
	}
	return "", nil
}

func (m *MangaDex) Chapters(ctx context.Context, s *Session, rawURL string) ([]data.Chapter, error) {
	id, err := matchID(mangaDexTitleID, rawURL)
	if err != nil {
		return nil, err
	}
	api := utils.NewAPI(s, m.baseURL)

	var chapters []data.Chapter
	for offset := 0; ; offset += feedPageSize {
		var feed struct {
			Data  []mangaDexChapter `json:"data"`
			Total int               `json:"total"`
		}
		params := url.Values{
			"translatedLanguage[]": {m.language},
			"order[volume]":        {"asc"},
			"order[chapter]":       {"asc"},
			"limit":                {strconv.Itoa(feedPageSize)},
			"offset":               {strconv.Itoa(offset)},
		}
		if err := api.Get(ctx, "/manga/"+id+"/feed", params, &feed); err != nil {
			return nil, fmt.Errorf("get feed of %s: %w", id, err)
		}
		for i := range feed.Data {
			chapters = append(chapters, feed.Data[i].toChapter(m.siteURL))
		}
		if len(feed.Data) == 0 || offset+len(feed.Data) >= feed.Total {
			break
		}
	}
	return chapters, nil
}

func (m *MangaDex) Pages(ctx context.Context, s *Session, chapter *data.Chapter) ([]data.Page, error) {
	id, err := matchID(mangaDexChapterID, chapter.URL)
	if err != nil {
		return nil, err
	}
	var server struct {
		BaseURL string `json:"baseUrl"`
		Chapter struct {
			Hash string   `json:"hash"`
			Data []string `json:"data"`
		} `json:"chapter"`
	}
	if err := utils.NewAPI(s, m.baseURL).Get(ctx, "/at-home/server/"+id, nil, &server); err != nil {
		return nil, fmt.Errorf("get pages of %s: %w", id, err)
	}
	pages := make([]data.Page, len(server.Chapter.Data))
	for i, file := range server.Chapter.Data {
		pages[i] = data.NewPage(fmt.Sprintf("%s/data/%s/%s", server.BaseURL, server.Chapter.Hash, file), i+1)
	}
	return pages, nil
}

func matchID(re *regexp.Regexp, rawURL string) (string, error) {
	match := re.FindStringSubmatch(rawURL)
	if match == nil {
		return "", fmt.Errorf("no id in %s", rawURL)
	}
	return match[1], nil
}
