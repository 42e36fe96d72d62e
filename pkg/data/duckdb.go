package data

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS works (
	url        VARCHAR PRIMARY KEY,
	title      VARCHAR NOT NULL,
	cover      VARCHAR,
	root       VARCHAR NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS chapters (
	work_url VARCHAR NOT NULL,
	url      VARCHAR,
	title    VARCHAR,
	idx      DOUBLE NOT NULL,
	volume   DOUBLE,
	pages    INTEGER NOT NULL,
	present  INTEGER NOT NULL
);
`

// WorkRecord is a mirrored work as tracked by the library.
type WorkRecord struct {
	URL       string
	Title     string
	Cover     string
	Root      string // work root directory on disk
	UpdatedAt time.Time

	// Aggregates, filled by ListWorks and GetWork.
	Chapters int
	Pages    int
	Present  int
}

// Complete reports whether every known page is on disk.
func (w *WorkRecord) Complete() bool {
	return w.Pages > 0 && w.Present >= w.Pages
}

// ChapterRecord is the on-disk state of one chapter.
type ChapterRecord struct {
	WorkURL string
	URL     string
	Title   string
	Index   float64
	Volume  *float64
	Pages   int
	Present int
}

// InitDuckDB opens the database at path, creating parent directories and
// the library schema when missing.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// Repository is the library catalog of mirrored works.
type Repository struct {
	db *sql.DB
}

// NewDuckDBRepository opens (or creates) the library database at path.
func NewDuckDBRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveWork upserts a work together with its chapter states.
func (r *Repository) SaveWork(work *WorkRecord, chapters []ChapterRecord) error {
	if work == nil {
		return errors.New("work cannot be nil")
	}
	if work.UpdatedAt.IsZero() {
		work.UpdatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO works (url, title, cover, root, updated_at) VALUES (?, ?, ?, ?, ?)`,
		work.URL, work.Title, work.Cover, work.Root, work.UpdatedAt,
	); err != nil {
		return fmt.Errorf("save work: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chapters WHERE work_url = ?`, work.URL); err != nil {
		return fmt.Errorf("clear chapters: %w", err)
	}
	for _, ch := range chapters {
		var volume sql.NullFloat64
		if ch.Volume != nil {
			volume = sql.NullFloat64{Float64: *ch.Volume, Valid: true}
		}
		if _, err := tx.Exec(
			`INSERT INTO chapters (work_url, url, title, idx, volume, pages, present) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			work.URL, ch.URL, ch.Title, ch.Index, volume, ch.Pages, ch.Present,
		); err != nil {
			return fmt.Errorf("save chapter %s: %w", FormatNumber(ch.Index), err)
		}
	}
	return tx.Commit()
}

const workSelect = `
SELECT w.url, w.title, COALESCE(w.cover, ''), w.root, w.updated_at,
	COUNT(c.idx),
	CAST(COALESCE(SUM(c.pages), 0) AS BIGINT),
	CAST(COALESCE(SUM(c.present), 0) AS BIGINT)
FROM works w
LEFT JOIN chapters c ON c.work_url = w.url`

func scanWork(row interface{ Scan(...any) error }) (*WorkRecord, error) {
	var w WorkRecord
	var chapters, pages, present int64
	if err := row.Scan(&w.URL, &w.Title, &w.Cover, &w.Root, &w.UpdatedAt, &chapters, &pages, &present); err != nil {
		return nil, err
	}
	w.Chapters = int(chapters)
	w.Pages = int(pages)
	w.Present = int(present)
	return &w, nil
}

// GetWork returns the work stored under url, or nil when unknown.
func (r *Repository) GetWork(url string) (*WorkRecord, error) {
	row := r.db.QueryRow(workSelect+`
WHERE w.url = ?
GROUP BY w.url, w.title, w.cover, w.root, w.updated_at`, url)
	w, err := scanWork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work: %w", err)
	}
	return w, nil
}

// ListWorks returns every work in the library ordered by title.
func (r *Repository) ListWorks() ([]*WorkRecord, error) {
	rows, err := r.db.Query(workSelect + `
GROUP BY w.url, w.title, w.cover, w.root, w.updated_at
ORDER BY w.title`)
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	defer rows.Close()

	var works []*WorkRecord
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work: %w", err)
		}
		works = append(works, w)
	}
	return works, rows.Err()
}

// GetChapters returns the chapter states of a work ordered by volume and
// index.
func (r *Repository) GetChapters(workURL string) ([]ChapterRecord, error) {
	rows, err := r.db.Query(`
SELECT work_url, COALESCE(url, ''), COALESCE(title, ''), idx, volume, pages, present
FROM chapters
WHERE work_url = ?
ORDER BY volume NULLS FIRST, idx`, workURL)
	if err != nil {
		return nil, fmt.Errorf("get chapters: %w", err)
	}
	defer rows.Close()

	var chapters []ChapterRecord
	for rows.Next() {
		var ch ChapterRecord
		var volume sql.NullFloat64
		var pages, present int32
		if err := rows.Scan(&ch.WorkURL, &ch.URL, &ch.Title, &ch.Index, &volume, &pages, &present); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		if volume.Valid {
			ch.Volume = Vol(volume.Float64)
		}
		ch.Pages = int(pages)
		ch.Present = int(present)
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// DeleteWork removes a work and its chapters from the library. Files on
// disk are left alone.
func (r *Repository) DeleteWork(url string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chapters WHERE work_url = ?`, url); err != nil {
		return fmt.Errorf("delete chapters: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM works WHERE url = ?`, url); err != nil {
		return fmt.Errorf("delete work: %w", err)
	}
	return tx.Commit()
}
