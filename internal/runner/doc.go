// Package runner executes one command inside a sandbox root and reports the
// filesystem changes it caused.
//
// Every run snapshots the root before and after the process, diffs the two
// with fsstate.Diff, and returns the captured output together with the
// created, deleted and updated entries. Arguments are always passed as a
// literal argument vector; no shell is involved.
//
// The runner owns a temp-capture directory beneath the root (tmp/ by
// default) which is exported to the child as TMPDIR, TEMP and TMP. Anything
// the child leaves there is reported as a LeftoverTempError unless the call
// allows it.
package runner
