// Package model defines the persisted document for medtrack and the value
// types every other package shares.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - AppState is the single root document; it is rewritten whole on save
//   - Events are append-only; status is always derived, never stored
//   - Schedule recurrence is a sealed sum type (Scheme), one struct per variant
//   - All JSON tags use lowerCamelCase to stay readable by older documents
//   - Timestamps are stored in UTC; calendar dates are civil (no zone)
package model
