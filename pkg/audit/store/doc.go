// Package store provides audit log storage backends.
//
// Two implementations are available:
//
//   - MemoryStore: an in-process slice with an optional entry cap, suitable
//     for tests and single-process deployments without durability needs.
//   - SQLiteStore: durable storage backed by SQLite, suitable for
//     single-instance deployments that must survive restarts.
//
// Both satisfy audit.Store and preserve append order. Neither re-anchors the
// hash chain on deletion; see the audit package documentation for the
// post-pruning verification semantics.
package store
