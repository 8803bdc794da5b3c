package audit

import (
	"context"
	"time"
)

// EntryType identifies the kind of transition an audit entry records.
type EntryType string

const (
	EntryActionReceived    EntryType = "action_received"
	EntryRiskAssessed      EntryType = "risk_assessed"
	EntryDecisionMade      EntryType = "decision_made"
	EntryQueuedApproval    EntryType = "queued_approval"
	EntryApproved          EntryType = "approved"
	EntryRejected          EntryType = "rejected"
	EntryExecuted          EntryType = "executed"
	EntryExecutionFailed   EntryType = "execution_failed"
	EntryRolledBack        EntryType = "rolled_back"
	EntryBoundaryViolation EntryType = "boundary_violation"
	EntryEscalated         EntryType = "escalated"
	EntryExpired           EntryType = "expired"
)

// Entry is one link in the audit chain. Entries are immutable once appended;
// Hash covers every field above it including PrevHash.
type Entry struct {
	ID         string         `json:"id"`
	Sequence   int64          `json:"sequence"` // assigned by the logger, strictly increasing
	Timestamp  time.Time      `json:"timestamp"`
	Type       EntryType      `json:"type"`
	ActionID   string         `json:"action_id"`
	DecisionID string         `json:"decision_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	PrevHash   string         `json:"prev_hash"`
	Hash       string         `json:"hash"`
}

// Query filters audit entries for reads, exports, and retention.
type Query struct {
	// Time range, inclusive on both ends.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Filters
	Type     EntryType `json:"type,omitempty"`
	ActionID string    `json:"action_id,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Store is the abstract ordered store behind the logger. Implementations
// must be safe for concurrent use and must return entries in append order.
type Store interface {
	// Append persists an entry at the end of the log.
	Append(ctx context.Context, entry *Entry) error

	// List returns entries matching the query in append order.
	List(ctx context.Context, query *Query) ([]*Entry, error)

	// Last returns the most recently appended entry, or nil when the log
	// is empty.
	Last(ctx context.Context) (*Entry, error)

	// Count returns the number of stored entries matching the query.
	Count(ctx context.Context, query *Query) (int64, error)

	// DeleteBefore removes entries with Sequence strictly below seq,
	// returning the deleted entries in append order so callers can
	// archive them. Pruning never rewrites surviving entries.
	DeleteBefore(ctx context.Context, seq int64) ([]*Entry, error)

	// Close releases resources held by the backend.
	Close() error
}

// VerifyResult reports the outcome of a chain integrity walk.
type VerifyResult struct {
	Valid bool `json:"valid"`

	// Entries is the number of entries verified.
	Entries int `json:"entries"`

	// BrokenIndex is the index (within the surviving chain, 0-based) of
	// the first entry that failed verification. -1 when the chain is valid.
	BrokenIndex int `json:"broken_index"`

	// Reason describes what broke at BrokenIndex.
	Reason string `json:"reason,omitempty"`
}
