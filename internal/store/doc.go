// Package store persists the single medtrack document.
//
// The document lives under three keys of a key/value Backend:
//   - medtrack.state: the serialized AppState
//   - medtrack.state.checksum: djb2 of those exact bytes, 8 hex digits
//   - medtrack.state.backup: the last known-good document, one generation
//     behind, with its own checksum and write timestamp
//
// # Write Ordering
//
// Save validates the current primary, copies it to the backup slot if it
// still verifies, then writes the new primary and finally its checksum.
// A crash between the last two steps leaves a checksum mismatch that Load
// repairs from the backup.
//
// # Load
//
//   - Absent primary: migrate a legacy (pre-schema) layout if present,
//     else create a default document with one profile
//   - Checksum mismatch or undecodable primary: recover from backup and
//     rewrite the primary
//   - Backup also invalid: StorageError with KindCorruptionUnrecoverable
//
// # Migrations
//
// Migrate runs the linear chain v1→v2→v3→v4 on the raw JSON form. Steps
// only add absent fields with explicit defaults, so re-running a step is a
// no-op. Migrated documents are persisted immediately.
//
// Backends: SQLiteBackend (github.com/mattn/go-sqlite3) for devices and the
// CLI, MemoryBackend for tests and embedding.
package store
