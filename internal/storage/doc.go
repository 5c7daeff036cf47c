// Package storage persists finished task runs so history survives restarts.
//
// Drivers:
//   - "file": JSON Lines run log, compacted once it grows past twice the
//     retention window
//   - "sqlite": SQLite database (modernc.org/sqlite, no cgo)
//
// The in-memory scheduler history stays authoritative; the store is an
// append-only audit trail behind it.
package storage
