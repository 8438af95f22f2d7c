package fsstate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Snapshot maps relative paths to the entries found under one root.
type Snapshot map[string]*Entry

// TakeOptions controls a snapshot walk.
type TakeOptions struct {
	// Exclude lists path prefixes that are neither recorded nor descended into.
	Exclude []string
}

// Has reports whether path is present.
func (s Snapshot) Has(path string) bool {
	_, ok := s[path]
	return ok
}

// Paths returns the keys in sorted order.
func (s Snapshot) Paths() []string {
	return sortedKeys(s)
}

// Take walks root recursively and records every entry beneath it.
// Symlinks are recorded with their own size and never followed.
// Hidden files are included. The root itself is not an entry.
func Take(root string, opts TakeOptions) (Snapshot, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot %s: not a directory", root)
	}

	snap := make(Snapshot)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if hasAnyPrefix(rel, opts.Exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		entry := &Entry{Path: rel, IsDir: fi.IsDir(), abs: path}
		if !entry.IsDir {
			entry.Size = fi.Size()
		}
		snap[rel] = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", root, err)
	}
	return snap, nil
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
