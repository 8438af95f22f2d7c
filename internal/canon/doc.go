// Package canon provides deterministic JSON serialization for pkgprobe.
//
// Golden traces and persisted snapshots must be byte-identical across runs,
// so they are never written with encoding/json directly. MarshalCanonical
// sorts object keys by UTF-16 code units, disables HTML escaping and
// NFC-normalizes every string, following RFC 8785.
//
// Only strings, integers, booleans, slices and string-keyed maps are
// accepted. Floats and nulls are rejected.
package canon
