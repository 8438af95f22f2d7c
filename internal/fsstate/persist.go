package fsstate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/roach88/pkgprobe/internal/canon"
)

// MarshalCanonical encodes the snapshot as canonical JSON:
//
//	{"entries":{"<path>":{"dir":false,"size":12}}}
//
// Paths are keyed by QuotePath so names that are not NFC UTF-8 keep
// their exact bytes.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	entries := make(map[string]any, len(s))
	for path, e := range s {
		entries[QuotePath(path)] = map[string]any{
			"size": e.Size,
			"dir":  e.IsDir,
		}
	}
	return canon.MarshalCanonical(map[string]any{"entries": entries})
}

type persistedSnapshot struct {
	Entries map[string]struct {
		Size int64 `json:"size"`
		Dir  bool  `json:"dir"`
	} `json:"entries"`
}

// ParseSnapshot decodes a snapshot written by MarshalCanonical.
// Entries of a parsed snapshot have no backing file.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var p persistedSnapshot
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if p.Entries == nil {
		return nil, fmt.Errorf("parse snapshot: missing entries")
	}
	snap := make(Snapshot, len(p.Entries))
	for key, e := range p.Entries {
		path, err := UnquotePath(key)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot: %w", err)
		}
		if snap.Has(path) {
			return nil, fmt.Errorf("parse snapshot: duplicate path %q", path)
		}
		snap[path] = NewEntry(path, e.Size, e.Dir)
	}
	return snap, nil
}

// LoadSnapshot reads a persisted snapshot from path.
func LoadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return ParseSnapshot(data)
}
