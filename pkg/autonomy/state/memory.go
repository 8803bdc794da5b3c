package state

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend implements Backend with an in-memory map. It is the default
// backend; all data is lost when the process exits.
type MemoryBackend struct {
	records map[string]*Record // keyed by kind + "/" + key
	mu      sync.RWMutex
}

// NewMemoryBackend creates an in-memory state backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]*Record)}
}

func compositeKey(kind, key string) string {
	return kind + "/" + key
}

// Save persists a record, replacing any existing record with the same key.
func (b *MemoryBackend) Save(ctx context.Context, record *Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	recordCopy := *record
	recordCopy.UpdatedAt = time.Now().UTC()
	b.records[compositeKey(record.Kind, record.Key)] = &recordCopy

	return nil
}

// Load retrieves a record by kind and key. Returns nil when absent.
func (b *MemoryBackend) Load(ctx context.Context, kind, key string) (*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.records[compositeKey(kind, key)]
	if !ok {
		return nil, nil
	}

	recordCopy := *record
	return &recordCopy, nil
}

// Delete removes a record. No-op when absent.
func (b *MemoryBackend) Delete(ctx context.Context, kind, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.records, compositeKey(kind, key))
	return nil
}

// List returns all records of a kind.
func (b *MemoryBackend) List(ctx context.Context, kind string) ([]*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var results []*Record
	for _, record := range b.records {
		if record.Kind == kind {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}

	return results, nil
}

// Close is a no-op for the memory backend.
func (b *MemoryBackend) Close() error {
	return nil
}
