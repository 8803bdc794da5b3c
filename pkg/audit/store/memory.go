package store

import (
	"context"
	"sync"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
)

// MemoryStore implements audit.Store using an in-memory slice.
//
// MaxEntries caps the store: once the cap is reached, the oldest entries are
// dropped to make room (oldest pruned first). A zero cap means unbounded.
type MemoryStore struct {
	entries []*audit.Entry
	max     int
	mu      sync.RWMutex
}

// NewMemoryStore creates an in-memory audit store capped at maxEntries.
// Pass 0 for an unbounded store.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{max: maxEntries}
}

// Append persists an entry at the end of the log, evicting the oldest
// entries when the cap is exceeded.
func (s *MemoryStore) Append(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := *entry
	s.entries = append(s.entries, &entryCopy)

	if s.max > 0 && len(s.entries) > s.max {
		overflow := len(s.entries) - s.max
		s.entries = append([]*audit.Entry(nil), s.entries[overflow:]...)
	}

	return nil
}

// List returns entries matching the query in append order.
func (s *MemoryStore) List(ctx context.Context, query *audit.Query) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*audit.Entry
	for _, entry := range s.entries {
		if matchesQuery(entry, query) {
			entryCopy := *entry
			results = append(results, &entryCopy)
		}
	}

	return paginate(results, query), nil
}

// Last returns the most recently appended entry, or nil when empty.
func (s *MemoryStore) Last(ctx context.Context) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}

	entryCopy := *s.entries[len(s.entries)-1]
	return &entryCopy, nil
}

// Count returns the number of stored entries matching the query.
func (s *MemoryStore) Count(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, entry := range s.entries {
		if matchesQuery(entry, query) {
			n++
		}
	}
	return n, nil
}

// DeleteBefore removes entries with Sequence below seq and returns them in
// append order.
func (s *MemoryStore) DeleteBefore(ctx context.Context, seq int64) ([]*audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted []*audit.Entry
	kept := s.entries[:0]
	for _, entry := range s.entries {
		if entry.Sequence < seq {
			deleted = append(deleted, entry)
		} else {
			kept = append(kept, entry)
		}
	}
	s.entries = kept

	return deleted, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// matchesQuery checks an entry against query filters. A nil query matches
// everything.
func matchesQuery(entry *audit.Entry, query *audit.Query) bool {
	if query == nil {
		return true
	}
	if query.Type != "" && entry.Type != query.Type {
		return false
	}
	if query.ActionID != "" && entry.ActionID != query.ActionID {
		return false
	}
	if query.StartTime != nil && entry.Timestamp.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && entry.Timestamp.After(*query.EndTime) {
		return false
	}
	return true
}

// paginate applies offset/limit to an already filtered result set.
func paginate(results []*audit.Entry, query *audit.Query) []*audit.Entry {
	if query == nil {
		return results
	}

	start := query.Offset
	if start > len(results) {
		return []*audit.Entry{}
	}

	end := len(results)
	if query.Limit > 0 && start+query.Limit < end {
		end = start + query.Limit
	}

	return results[start:end]
}
