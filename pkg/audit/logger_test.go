package audit

import (
	"context"
	"testing"
)

// sliceStore is a minimal Store that hands back its internal entries without
// copying, so tests can tamper with persisted entries in place.
type sliceStore struct {
	entries []*Entry
}

func (s *sliceStore) Append(ctx context.Context, entry *Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *sliceStore) List(ctx context.Context, query *Query) ([]*Entry, error) {
	return s.entries, nil
}

func (s *sliceStore) Last(ctx context.Context) (*Entry, error) {
	if len(s.entries) == 0 {
		return nil, nil
	}
	return s.entries[len(s.entries)-1], nil
}

func (s *sliceStore) Count(ctx context.Context, query *Query) (int64, error) {
	return int64(len(s.entries)), nil
}

func (s *sliceStore) DeleteBefore(ctx context.Context, seq int64) ([]*Entry, error) {
	var deleted []*Entry
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Sequence < seq {
			deleted = append(deleted, e)
		} else {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return deleted, nil
}

func (s *sliceStore) Close() error { return nil }

func appendEntries(t *testing.T, logger *Logger, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := logger.Log(context.Background(), EntryActionReceived, "action-1", "", map[string]any{"n": i}); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
}

func TestLogger_ChainLinks(t *testing.T) {
	store := &sliceStore{}
	logger, err := NewLogger(context.Background(), store)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	appendEntries(t, logger, 5)

	if store.entries[0].PrevHash != "" {
		t.Errorf("first entry PrevHash = %q, want empty", store.entries[0].PrevHash)
	}
	for i := 1; i < len(store.entries); i++ {
		if store.entries[i].PrevHash != store.entries[i-1].Hash {
			t.Errorf("entry %d PrevHash = %q, want %q", i, store.entries[i].PrevHash, store.entries[i-1].Hash)
		}
		if store.entries[i].Sequence != store.entries[i-1].Sequence+1 {
			t.Errorf("entry %d Sequence = %d, want %d", i, store.entries[i].Sequence, store.entries[i-1].Sequence+1)
		}
	}
}

func TestLogger_VerifyIntegrity_Valid(t *testing.T) {
	store := &sliceStore{}
	logger, _ := NewLogger(context.Background(), store)
	appendEntries(t, logger, 10)

	result, err := logger.VerifyIntegrity(context.Background())
	if err != nil {
		t.Fatalf("VerifyIntegrity() error = %v", err)
	}
	if !result.Valid {
		t.Errorf("Valid = false, want true (reason: %s)", result.Reason)
	}
	if result.Entries != 10 {
		t.Errorf("Entries = %d, want 10", result.Entries)
	}
	if result.BrokenIndex != -1 {
		t.Errorf("BrokenIndex = %d, want -1", result.BrokenIndex)
	}
}

func TestLogger_VerifyIntegrity_TamperedData(t *testing.T) {
	store := &sliceStore{}
	logger, _ := NewLogger(context.Background(), store)
	appendEntries(t, logger, 5)

	// Flip a data field without recomputing the hash.
	store.entries[2].Data["n"] = 999

	result, err := logger.VerifyIntegrity(context.Background())
	if err != nil {
		t.Fatalf("VerifyIntegrity() error = %v", err)
	}
	if result.Valid {
		t.Fatal("Valid = true, want false after tampering")
	}
	if result.BrokenIndex != 2 {
		t.Errorf("BrokenIndex = %d, want 2", result.BrokenIndex)
	}
}

func TestLogger_VerifyIntegrity_BrokenLink(t *testing.T) {
	store := &sliceStore{}
	logger, _ := NewLogger(context.Background(), store)
	appendEntries(t, logger, 5)

	// Delete an entry from the middle: the successor's link breaks.
	store.entries = append(store.entries[:2], store.entries[3:]...)

	result, err := logger.VerifyIntegrity(context.Background())
	if err != nil {
		t.Fatalf("VerifyIntegrity() error = %v", err)
	}
	if result.Valid {
		t.Fatal("Valid = true, want false after deleting a middle entry")
	}
	if result.BrokenIndex != 2 {
		t.Errorf("BrokenIndex = %d, want 2", result.BrokenIndex)
	}
}

func TestLogger_VerifyIntegrity_AfterPruning(t *testing.T) {
	store := &sliceStore{}
	logger, _ := NewLogger(context.Background(), store)
	appendEntries(t, logger, 10)

	// Drop the first half; the oldest survivor keeps a dangling PrevHash,
	// which verification must tolerate.
	if _, err := store.DeleteBefore(context.Background(), 5); err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}

	result, err := logger.VerifyIntegrity(context.Background())
	if err != nil {
		t.Fatalf("VerifyIntegrity() error = %v", err)
	}
	if !result.Valid {
		t.Errorf("Valid = false, want true after pruning (reason: %s)", result.Reason)
	}
	if result.Entries != 5 {
		t.Errorf("Entries = %d, want 5", result.Entries)
	}
}

func TestLogger_ResumesChain(t *testing.T) {
	store := &sliceStore{}
	ctx := context.Background()

	first, _ := NewLogger(ctx, store)
	appendEntries(t, first, 3)
	tail := store.entries[len(store.entries)-1]

	// A new logger over the same store must continue the existing chain.
	second, err := NewLogger(ctx, store)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	entry, err := second.Log(ctx, EntryExecuted, "action-2", "decision-1", nil)
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	if entry.PrevHash != tail.Hash {
		t.Errorf("resumed PrevHash = %q, want %q", entry.PrevHash, tail.Hash)
	}
	if entry.Sequence != tail.Sequence+1 {
		t.Errorf("resumed Sequence = %d, want %d", entry.Sequence, tail.Sequence+1)
	}

	result, _ := second.VerifyIntegrity(ctx)
	if !result.Valid {
		t.Errorf("Valid = false after resume (reason: %s)", result.Reason)
	}
}

func TestLogger_Hook(t *testing.T) {
	store := &sliceStore{}
	logger, _ := NewLogger(context.Background(), store)

	var seen []EntryType
	logger.SetHook(func(e *Entry) {
		seen = append(seen, e.Type)
	})

	logger.Log(context.Background(), EntryActionReceived, "a", "", nil)
	logger.Log(context.Background(), EntryDecisionMade, "a", "d", nil)

	if len(seen) != 2 || seen[0] != EntryActionReceived || seen[1] != EntryDecisionMade {
		t.Errorf("hook saw %v, want [action_received decision_made]", seen)
	}
}

func TestComputeHash_Deterministic(t *testing.T) {
	entry := &Entry{
		ID:       "id-1",
		Type:     EntryExecuted,
		ActionID: "action-1",
		Data:     map[string]any{"b": 2, "a": 1},
		PrevHash: "prev",
	}

	h1, err := ComputeHash(entry)
	if err != nil {
		t.Fatalf("ComputeHash() error = %v", err)
	}
	h2, _ := ComputeHash(entry)
	if h1 != h2 {
		t.Errorf("ComputeHash() not deterministic: %q vs %q", h1, h2)
	}

	entry.PrevHash = "other"
	h3, _ := ComputeHash(entry)
	if h3 == h1 {
		t.Error("ComputeHash() ignored PrevHash change")
	}
}
