package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
)

func makeEntry(seq int64, entryType audit.EntryType, actionID string, ts time.Time) *audit.Entry {
	return &audit.Entry{
		ID:        fmt.Sprintf("entry-%d", seq),
		Sequence:  seq,
		Timestamp: ts,
		Type:      entryType,
		ActionID:  actionID,
		Hash:      fmt.Sprintf("hash-%d", seq),
	}
}

func TestMemoryStore_AppendAndList(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := int64(0); i < 5; i++ {
		if err := s.Append(ctx, makeEntry(i, audit.EntryActionReceived, "a1", now)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	entries, err := s.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("List() returned %d entries, want 5", len(entries))
	}
	for i, e := range entries {
		if e.Sequence != int64(i) {
			t.Errorf("entry %d Sequence = %d, want %d", i, e.Sequence, i)
		}
	}
}

func TestMemoryStore_CapEvictsOldest(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := int64(0); i < 5; i++ {
		s.Append(ctx, makeEntry(i, audit.EntryActionReceived, "a1", now))
	}

	entries, _ := s.List(ctx, nil)
	if len(entries) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(entries))
	}
	if entries[0].Sequence != 2 {
		t.Errorf("oldest surviving Sequence = %d, want 2", entries[0].Sequence)
	}
}

func TestMemoryStore_QueryFilters(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Append(ctx, makeEntry(0, audit.EntryActionReceived, "a1", base))
	s.Append(ctx, makeEntry(1, audit.EntryExecuted, "a1", base.Add(time.Hour)))
	s.Append(ctx, makeEntry(2, audit.EntryExecuted, "a2", base.Add(2*time.Hour)))
	s.Append(ctx, makeEntry(3, audit.EntryRejected, "a2", base.Add(3*time.Hour)))

	tests := []struct {
		name  string
		query *audit.Query
		want  int
	}{
		{"by type", &audit.Query{Type: audit.EntryExecuted}, 2},
		{"by action", &audit.Query{ActionID: "a1"}, 2},
		{"type and action", &audit.Query{Type: audit.EntryExecuted, ActionID: "a2"}, 1},
		{"since", &audit.Query{StartTime: timePtr(base.Add(90 * time.Minute))}, 2},
		{"until", &audit.Query{EndTime: timePtr(base.Add(90 * time.Minute))}, 2},
		{"limit", &audit.Query{Limit: 3}, 3},
		{"offset past end", &audit.Query{Offset: 10}, 0},
		{"limit and offset", &audit.Query{Offset: 1, Limit: 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.List(ctx, tt.query)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("List() returned %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestMemoryStore_Last(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	last, err := s.Last(ctx)
	if err != nil {
		t.Fatalf("Last() error = %v", err)
	}
	if last != nil {
		t.Errorf("Last() on empty store = %v, want nil", last)
	}

	s.Append(ctx, makeEntry(0, audit.EntryActionReceived, "a1", time.Now()))
	s.Append(ctx, makeEntry(1, audit.EntryExecuted, "a1", time.Now()))

	last, _ = s.Last(ctx)
	if last == nil || last.Sequence != 1 {
		t.Errorf("Last() = %+v, want Sequence 1", last)
	}
}

func TestMemoryStore_DeleteBefore(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := int64(0); i < 6; i++ {
		s.Append(ctx, makeEntry(i, audit.EntryActionReceived, "a1", now))
	}

	deleted, err := s.DeleteBefore(ctx, 4)
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if len(deleted) != 4 {
		t.Fatalf("DeleteBefore() removed %d entries, want 4", len(deleted))
	}
	for i, e := range deleted {
		if e.Sequence != int64(i) {
			t.Errorf("deleted[%d].Sequence = %d, want %d", i, e.Sequence, i)
		}
	}

	remaining, _ := s.List(ctx, nil)
	if len(remaining) != 2 || remaining[0].Sequence != 4 {
		t.Errorf("surviving entries = %d starting at seq %d, want 2 starting at 4",
			len(remaining), remaining[0].Sequence)
	}
}

func TestMemoryStore_ListCopies(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	s.Append(ctx, makeEntry(0, audit.EntryActionReceived, "a1", time.Now()))

	entries, _ := s.List(ctx, nil)
	entries[0].ActionID = "mutated"

	again, _ := s.List(ctx, nil)
	if again[0].ActionID != "a1" {
		t.Errorf("store entry mutated through List result: ActionID = %q", again[0].ActionID)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
