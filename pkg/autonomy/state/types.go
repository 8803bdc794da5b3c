// Package state provides optional persistence for the engine's mutable
// aggregates (approval requests, daily usage counters) so they survive
// process restarts. The engine works without a backend; everything it stores
// here is a recoverable snapshot, never the source of truth for a decision
// in flight.
package state

import (
	"context"
	"encoding/json"
	"time"
)

// Record kinds persisted by the engine.
const (
	KindApproval = "approval"
	KindUsage    = "usage"
)

// Record is one persisted snapshot, keyed by (kind, key).
type Record struct {
	// Kind groups records: "approval", "usage".
	Kind string `json:"kind"`

	// Key identifies the record within its kind (request id, day stamp).
	Key string `json:"key"`

	// Value is the JSON-encoded snapshot.
	Value json.RawMessage `json:"value"`

	// UpdatedAt is when the record was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// Backend is the persistence interface. Implementations must be safe for
// concurrent use.
type Backend interface {
	// Save persists a record, replacing any existing record with the
	// same kind and key.
	Save(ctx context.Context, record *Record) error

	// Load retrieves a record by kind and key. Returns nil when absent.
	Load(ctx context.Context, kind, key string) (*Record, error)

	// Delete removes a record. No-op when absent.
	Delete(ctx context.Context, kind, key string) error

	// List returns all records of a kind.
	List(ctx context.Context, kind string) ([]*Record, error)

	// Close releases resources held by the backend.
	Close() error
}
