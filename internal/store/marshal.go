package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/pkgprobe/internal/canon"
)

// marshalStrings converts a string list to canonical JSON TEXT for storage.
// A nil list is stored as [].
func marshalStrings(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := canon.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings parses JSON TEXT to a string list. Returns an empty,
// non-nil slice for empty input.
func unmarshalStrings(data string) ([]string, error) {
	list := []string{}
	if data == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}
