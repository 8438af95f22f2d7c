// Package store provides SQLite-backed history of harness runs.
//
// The store is append-only and holds three tables:
//   - runs: one row per scenario execution, keyed by a UUIDv7 and
//     carrying a digest of its canonical trace
//   - commands: the steps of a run, in execution order
//   - changes: the files each command created, deleted or updated
//
// # Ordering
//
// Runs sort by id, which for UUIDv7 ids is creation order. Commands sort by
// seq within a run. Changes sort by kind then path, byte-wise. Reads are
// therefore stable for a given database.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Argument vectors and error lists are stored as canonical JSON.
package store
