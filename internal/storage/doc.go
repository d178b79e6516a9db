// Package storage keeps an optional audit trail of release announcements.
//
// Drivers:
//   - "none" (default): every call returns ErrDisabled
//   - "file": append-only JSON Lines file
//   - "sqlite": SQLite database (modernc.org/sqlite) with schema migrations
//
// The seen-version set is never stored here; it is rebuilt from the first
// manifest fetch after every start.
package storage
