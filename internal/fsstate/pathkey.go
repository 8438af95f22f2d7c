package fsstate

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// hexPrefix marks a quoted path whose bytes are hex-encoded.
const hexPrefix = "hex:"

// QuotePath returns a form of p that survives canonical JSON unchanged.
// Valid UTF-8 already in NFC is returned as is; anything else, and any
// path that itself starts with "hex:", becomes "hex:" followed by the
// hex encoding of its bytes. Distinct paths never quote to the same string.
func QuotePath(p string) string {
	if utf8.ValidString(p) && norm.NFC.IsNormalString(p) && !strings.HasPrefix(p, hexPrefix) {
		return p
	}
	return hexPrefix + hex.EncodeToString([]byte(p))
}

// UnquotePath reverses QuotePath.
func UnquotePath(q string) (string, error) {
	rest, ok := strings.CutPrefix(q, hexPrefix)
	if !ok {
		return q, nil
	}
	b, err := hex.DecodeString(rest)
	if err != nil {
		return "", fmt.Errorf("quoted path %q: %w", q, err)
	}
	return string(b), nil
}

// QuotePaths applies QuotePath to every element. The input is not modified.
func QuotePaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = QuotePath(p)
	}
	return out
}
