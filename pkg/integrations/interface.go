package integrations

import (
	"fmt"
	"strings"

	"github.com/kerbaras/shelf/pkg/tree"
)

// Merge decides how many books an export produces.
type Merge string

const (
	// MergeWork packs the whole work into one book.
	MergeWork Merge = "work"
	// MergeVolume produces one book per volume. Chapters without a volume
	// share a book of their own.
	MergeVolume Merge = "volume"
)

// ParseMerge maps a user supplied name to a Merge mode.
func ParseMerge(name string) (Merge, error) {
	switch Merge(strings.ToLower(strings.TrimSpace(name))) {
	case MergeWork, "":
		return MergeWork, nil
	case MergeVolume:
		return MergeVolume, nil
	}
	return "", fmt.Errorf("unsupported merge mode %q", name)
}

// Exporter turns a mirrored work into reader files.
type Exporter interface {
	Export(t *tree.Tree, merge Merge) ([]string, error)
}
