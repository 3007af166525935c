// Package store provides SQLite-backed storage for subjects and their
// observations.
//
// The store holds:
//   - Subjects with filter and indicator metadata
//   - Locations, shared between subjects
//   - Observations and their per-filter item coordinates
//
// # Request-scoped scratch tables
//
// A Session pins one pooled connection for the lifetime of a query. Staged
// id lists and the materialized matched set are TEMP tables on that
// connection, which SQLite makes invisible to every other connection.
// Session.Release drops them and returns the connection; callers defer it.
//
// # Deterministic Query Results
//
// Every row-returning query ends in ORDER BY ... COLLATE BINARY.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Pragmas are passed in the DSN so that every pooled connection gets them.
//
// Observation ingestion is not part of this package's contract; the write
// helpers exist to load fixtures.
package store
