package fsstate

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
)

// ErrNoSource is returned by Entry.Contents for entries that were loaded
// from a persisted snapshot and have no backing file.
var ErrNoSource = errors.New("entry has no backing file")

// Entry is one file, directory or symlink found by a snapshot walk.
type Entry struct {
	Path  string // slash-separated, relative to the snapshot root
	Size  int64  // 0 for directories
	IsDir bool

	abs      string
	once     sync.Once
	contents []byte
	err      error
}

// NewEntry builds an entry without a backing file.
func NewEntry(path string, size int64, isDir bool) *Entry {
	return &Entry{Path: path, Size: size, IsDir: isDir}
}

// Contents reads the file on first call and caches the result.
// The read reflects the file at call time, not at snapshot time.
func (e *Entry) Contents() ([]byte, error) {
	e.once.Do(func() {
		switch {
		case e.abs == "":
			e.err = ErrNoSource
		case e.IsDir:
			e.err = fmt.Errorf("%s is a directory", e.Path)
		default:
			e.contents, e.err = os.ReadFile(e.abs)
		}
	})
	return e.contents, e.err
}

// Entries is a set of entries keyed by relative path.
type Entries map[string]*Entry

// Has reports whether path is present.
func (es Entries) Has(path string) bool {
	_, ok := es[path]
	return ok
}

// Paths returns the keys in sorted order.
func (es Entries) Paths() []string {
	return sortedKeys(es)
}

func sortedKeys(m map[string]*Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
