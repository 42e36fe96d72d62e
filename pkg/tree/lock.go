package tree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is the name of the run lock inside a work root.
const LockFile = ".lock"

// ErrLocked is returned when another run holds the work root.
var ErrLocked = errors.New("work root is locked by another run")

// Lock takes the run lock of the work root. The returned function releases
// it.
func (t *Tree) Lock() (func() error, error) {
	if err := os.MkdirAll(t.root, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	lock := flock.New(filepath.Join(t.root, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, t.root)
	}
	return lock.Unlock, nil
}
