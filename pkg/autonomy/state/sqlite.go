package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// stateSchema creates the snapshot table.
const stateSchema = `
CREATE TABLE IF NOT EXISTS engine_state (
    kind TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (kind, key)
);

CREATE INDEX IF NOT EXISTS idx_state_kind ON engine_state(kind);
`

// SQLiteBackend implements Backend using SQLite for persistence across
// restarts. Suitable for single-instance deployments.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

// SQLiteBackendConfig configures the SQLite state backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a SQLite state backend and initializes its schema.
func NewSQLiteBackend(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("state backend: db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(stateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state schema: %w", err)
	}

	b := &SQLiteBackend{
		db:     db,
		logger: slog.Default().With("component", "state.sqlite"),
	}

	b.logger.Info("sqlite state backend initialized", "path", cfg.DBPath)
	return b, nil
}

// Save persists a record, replacing any existing record with the same key.
func (b *SQLiteBackend) Save(ctx context.Context, record *Record) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO engine_state (kind, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		record.Kind, record.Key, string(record.Value), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save state record: %w", err)
	}
	return nil
}

// Load retrieves a record by kind and key. Returns nil when absent.
func (b *SQLiteBackend) Load(ctx context.Context, kind, key string) (*Record, error) {
	record := &Record{Kind: kind, Key: key}
	var value string

	err := b.db.QueryRowContext(ctx,
		"SELECT value, updated_at FROM engine_state WHERE kind = ? AND key = ?", kind, key,
	).Scan(&value, &record.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state record: %w", err)
	}

	record.Value = []byte(value)
	return record, nil
}

// Delete removes a record. No-op when absent.
func (b *SQLiteBackend) Delete(ctx context.Context, kind, key string) error {
	if _, err := b.db.ExecContext(ctx,
		"DELETE FROM engine_state WHERE kind = ? AND key = ?", kind, key); err != nil {
		return fmt.Errorf("delete state record: %w", err)
	}
	return nil
}

// List returns all records of a kind.
func (b *SQLiteBackend) List(ctx context.Context, kind string) ([]*Record, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT key, value, updated_at FROM engine_state WHERE kind = ?", kind)
	if err != nil {
		return nil, fmt.Errorf("list state records: %w", err)
	}
	defer rows.Close()

	var results []*Record
	for rows.Next() {
		record := &Record{Kind: kind}
		var value string
		if err := rows.Scan(&record.Key, &value, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan state record: %w", err)
		}
		record.Value = []byte(value)
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list state records: %w", err)
	}

	return results, nil
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
