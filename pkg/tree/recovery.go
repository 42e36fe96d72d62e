package tree

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/utils"
)

// RecoveryFile is the name of the recovery record inside a work root.
const RecoveryFile = ".recovery"

// ErrNoRecovery is returned when a directory holds no recovery record.
var ErrNoRecovery = errors.New("no recovery record")

// record is the content of a recovery file: the work plus the layout its
// files were written with.
type record struct {
	Manga  data.Manga `yaml:",inline"`
	Layout *Layout    `yaml:"layout,omitempty"`
}

// RecoveryPath is the location of the recovery record.
func (t *Tree) RecoveryPath() string {
	return filepath.Join(t.root, RecoveryFile)
}

// WriteRecovery persists manga and the layout of the tree as its recovery
// record. The record is replaced atomically.
func (t *Tree) WriteRecovery(manga *data.Manga) error {
	layout := t.Layout()
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(record{Manga: *manga, Layout: &layout}); err != nil {
		return fmt.Errorf("encode recovery: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode recovery: %w", err)
	}
	if err := utils.WriteFileAtomic(t.RecoveryPath(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write recovery: %w", err)
	}
	return nil
}

// ReadRecovery loads the work of a recovery record. path is either a work
// root or the record file itself.
func ReadRecovery(path string) (*data.Manga, error) {
	rec, err := readRecord(path)
	if err != nil {
		return nil, err
	}
	return &rec.Manga, nil
}

// ReadLayout loads the layout stored in a recovery record. It returns nil
// for records written without one.
func ReadLayout(path string) (*Layout, error) {
	rec, err := readRecord(path)
	if err != nil {
		return nil, err
	}
	return rec.Layout, nil
}

func readRecord(path string) (*record, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRecovery, path)
		}
		return nil, err
	}
	if info.IsDir() {
		path = filepath.Join(path, RecoveryFile)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRecovery, path)
		}
		return nil, err
	}
	var rec record
	if err := yaml.Unmarshal(content, &rec); err != nil {
		return nil, fmt.Errorf("read recovery %s: %w", path, err)
	}
	return &rec, nil
}

// IsWorkRoot reports whether dir holds a recovery record.
func IsWorkRoot(dir string) bool {
	ok, err := utils.Exists(filepath.Join(dir, RecoveryFile))
	return err == nil && ok
}

// Open rebuilds the tree of the work mirrored in dir from its recovery
// record. The recorded layout wins over opts, which only fill in what an
// older record lacks.
func Open(dir string, opts ...Option) (*Tree, error) {
	rec, err := readRecord(dir)
	if err != nil {
		return nil, err
	}
	return at(dir, &rec.Manga, rec.Layout, opts)
}

// At builds the tree of manga rooted at dir itself, whatever its name.
// When dir already holds a recovery record, its layout wins over opts.
func At(dir string, manga *data.Manga, opts ...Option) (*Tree, error) {
	rec, err := readRecord(dir)
	switch {
	case err == nil:
		return at(dir, manga, rec.Layout, opts)
	case errors.Is(err, ErrNoRecovery):
		return at(dir, manga, nil, opts)
	}
	return nil, err
}

func at(dir string, manga *data.Manga, layout *Layout, opts []Option) (*Tree, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if layout != nil {
		opts = append(opts[:len(opts):len(opts)], WithLayout(*layout))
	}
	t, err := New(filepath.Dir(abs), manga, opts...)
	if err != nil {
		return nil, err
	}
	t.root = abs
	return t, nil
}
