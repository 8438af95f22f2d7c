// Package fsstate records filesystem snapshots and computes the difference
// between two of them.
//
// A Snapshot maps slash-separated paths, relative to the directory that was
// walked, to Entry values. Entries carry their size eagerly; contents are only
// read from disk when Contents is called.
//
// Diff classifies paths into deleted, created and updated. Change detection
// is size-only: a file rewritten with different bytes of the same length is
// reported as unchanged, and modification times are never consulted.
package fsstate
