package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hook is invoked after every successful append. Used to feed metrics.
type Hook func(*Entry)

// Logger appends hash-chained entries to a Store. It is the single writer:
// the previous-hash link and sequence counter are guarded by one mutex so
// concurrent callers always see a consistent chain tail.
type Logger struct {
	store Store
	log   *slog.Logger
	hook  Hook

	mu       sync.Mutex
	lastHash string
	nextSeq  int64
}

// NewLogger creates a logger on top of store, resuming the chain from the
// most recently persisted entry when the store is not empty.
func NewLogger(ctx context.Context, store Store) (*Logger, error) {
	l := &Logger{
		store: store,
		log:   slog.Default().With("component", "audit.logger"),
	}

	last, err := store.Last(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain tail: %w", err)
	}
	if last != nil {
		l.lastHash = last.Hash
		l.nextSeq = last.Sequence + 1
	}

	return l, nil
}

// SetHook registers a post-append hook. Must be called before concurrent use.
func (l *Logger) SetHook(hook Hook) {
	l.hook = hook
}

// Log appends one entry to the chain and returns it. The entry is persisted
// before Log returns, so every transition reaches the store before the call
// that triggered it completes.
func (l *Logger) Log(ctx context.Context, entryType EntryType, actionID, decisionID string, data map[string]any) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := &Entry{
		ID:         uuid.New().String(),
		Sequence:   l.nextSeq,
		Timestamp:  time.Now().UTC(),
		Type:       entryType,
		ActionID:   actionID,
		DecisionID: decisionID,
		Data:       data,
		PrevHash:   l.lastHash,
	}

	hash, err := ComputeHash(entry)
	if err != nil {
		return nil, fmt.Errorf("hash audit entry: %w", err)
	}
	entry.Hash = hash

	if err := l.store.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}

	l.lastHash = entry.Hash
	l.nextSeq++

	l.log.Debug("audit entry appended",
		"entry_id", entry.ID,
		"type", string(entry.Type),
		"action_id", entry.ActionID,
		"sequence", entry.Sequence,
	)

	if l.hook != nil {
		l.hook(entry)
	}

	return entry, nil
}

// List returns entries matching the query in append order.
func (l *Logger) List(ctx context.Context, query *Query) ([]*Entry, error) {
	return l.store.List(ctx, query)
}

// Count returns the number of stored entries matching the query.
func (l *Logger) Count(ctx context.Context, query *Query) (int64, error) {
	return l.store.Count(ctx, query)
}

// VerifyIntegrity walks the chain from the oldest surviving entry and fails
// at the first index where either the previous-hash link is broken or the
// stored hash does not match a fresh recomputation.
//
// The oldest surviving entry's previous hash is not chased: after retention
// pruning it legitimately points at a deleted entry (the chain is re-anchored
// there). Tampering with that field is still detected because the previous
// hash is covered by the entry's own hash.
func (l *Logger) VerifyIntegrity(ctx context.Context) (*VerifyResult, error) {
	entries, err := l.store.List(ctx, &Query{})
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	for i, entry := range entries {
		if i > 0 && entry.PrevHash != entries[i-1].Hash {
			return &VerifyResult{
				Valid:       false,
				Entries:     len(entries),
				BrokenIndex: i,
				Reason:      "previous-hash link does not match preceding entry",
			}, nil
		}

		recomputed, err := ComputeHash(entry)
		if err != nil {
			return nil, fmt.Errorf("recompute hash at index %d: %w", i, err)
		}
		if recomputed != entry.Hash {
			return &VerifyResult{
				Valid:       false,
				Entries:     len(entries),
				BrokenIndex: i,
				Reason:      "stored hash does not match recomputation",
			}, nil
		}
	}

	return &VerifyResult{Valid: true, Entries: len(entries), BrokenIndex: -1}, nil
}

// Close closes the underlying store.
func (l *Logger) Close() error {
	return l.store.Close()
}
