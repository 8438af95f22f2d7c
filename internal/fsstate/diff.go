package fsstate

// StateDiff is the classified difference between two snapshots.
// Deleted carries entries from the start snapshot; Created and Updated
// carry entries from the end snapshot.
type StateDiff struct {
	Deleted Entries
	Created Entries
	Updated Entries
}

// Empty reports whether no path changed.
func (d StateDiff) Empty() bool {
	return len(d.Deleted) == 0 && len(d.Created) == 0 && len(d.Updated) == 0
}

// Diff compares two snapshots. Keys with any of the ignore prefixes are
// dropped from both sides first, so they never appear in the result.
// A path present in both snapshots counts as updated only when its size
// differs.
func Diff(start, end Snapshot, ignore []string) StateDiff {
	d := StateDiff{
		Deleted: make(Entries),
		Created: make(Entries),
		Updated: make(Entries),
	}

	for path, before := range start {
		if hasAnyPrefix(path, ignore) {
			continue
		}
		after, ok := end[path]
		if !ok {
			d.Deleted[path] = before
			continue
		}
		if before.Size != after.Size {
			d.Updated[path] = after
		}
	}

	for path, after := range end {
		if hasAnyPrefix(path, ignore) {
			continue
		}
		if _, ok := start[path]; !ok {
			d.Created[path] = after
		}
	}

	return d
}
