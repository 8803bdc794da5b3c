package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	config := DefaultSQLiteConfig()
	config.Path = filepath.Join(t.TempDir(), "audit.db")

	s, err := NewSQLiteStore(config)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	entry := makeEntry(0, audit.EntryDecisionMade, "a1", now)
	entry.DecisionID = "d1"
	entry.Data = map[string]any{"outcome": "auto_execute"}
	entry.PrevHash = "prev"

	if err := s.Append(ctx, entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := s.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List() returned %d entries, want 1", len(entries))
	}

	got := entries[0]
	if got.ID != entry.ID || got.Type != entry.Type || got.ActionID != entry.ActionID {
		t.Errorf("round-tripped entry = %+v, want %+v", got, entry)
	}
	if got.DecisionID != "d1" || got.PrevHash != "prev" || got.Hash != entry.Hash {
		t.Errorf("round-tripped chain fields = %q/%q/%q", got.DecisionID, got.PrevHash, got.Hash)
	}
	if got.Data["outcome"] != "auto_execute" {
		t.Errorf("round-tripped Data = %v", got.Data)
	}
}

func TestSQLiteStore_LastAndCount(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	last, err := s.Last(ctx)
	if err != nil {
		t.Fatalf("Last() error = %v", err)
	}
	if last != nil {
		t.Errorf("Last() on empty store = %+v, want nil", last)
	}

	for i := int64(0); i < 4; i++ {
		entryType := audit.EntryActionReceived
		if i%2 == 1 {
			entryType = audit.EntryExecuted
		}
		if err := s.Append(ctx, makeEntry(i, entryType, "a1", now)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	last, _ = s.Last(ctx)
	if last == nil || last.Sequence != 3 {
		t.Fatalf("Last() = %+v, want Sequence 3", last)
	}

	n, err := s.Count(ctx, &audit.Query{Type: audit.EntryExecuted})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count(executed) = %d, want 2", n)
	}
}

func TestSQLiteStore_DeleteBefore(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := int64(0); i < 5; i++ {
		s.Append(ctx, makeEntry(i, audit.EntryActionReceived, "a1", now))
	}

	deleted, err := s.DeleteBefore(ctx, 3)
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if len(deleted) != 3 {
		t.Fatalf("DeleteBefore() removed %d entries, want 3", len(deleted))
	}

	remaining, _ := s.List(ctx, nil)
	if len(remaining) != 2 || remaining[0].Sequence != 3 {
		t.Errorf("surviving = %d entries starting at %d, want 2 starting at 3",
			len(remaining), remaining[0].Sequence)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	config := DefaultSQLiteConfig()
	config.Path = path

	s, err := NewSQLiteStore(config)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	s.Append(ctx, makeEntry(0, audit.EntryActionReceived, "a1", time.Now().UTC()))
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteStore(config)
	if err != nil {
		t.Fatalf("NewSQLiteStore() reopen error = %v", err)
	}
	defer reopened.Close()

	n, _ := reopened.Count(ctx, nil)
	if n != 1 {
		t.Errorf("Count() after reopen = %d, want 1", n)
	}
}
