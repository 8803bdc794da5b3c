package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Kermit457/gICM-sub020/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite audit store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements audit.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a SQLite-backed audit store, initializing the schema
// and enabling WAL mode if configured.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, audit.NewStoreError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "audit.store.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("sqlite audit store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize applies pragmas and creates the schema.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return audit.NewStoreError("sqlite", "pragma", err)
		}
	}

	busyMillis := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", busyMillis)); err != nil {
		return audit.NewStoreError("sqlite", "pragma", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStoreError("sqlite", "create schema", err)
	}

	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
		return audit.NewStoreError("sqlite", "schema version", err)
	}

	return nil
}

// Append persists an entry at the end of the log.
func (s *SQLiteStore) Append(ctx context.Context, entry *audit.Entry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return audit.NewStoreError("sqlite", "append", fmt.Errorf("marshal data: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries
		(id, sequence, timestamp, entry_type, action_id, decision_id, data, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Sequence, entry.Timestamp.UTC(), string(entry.Type),
		entry.ActionID, entry.DecisionID, string(data), entry.PrevHash, entry.Hash,
	)
	if err != nil {
		return audit.NewStoreError("sqlite", "append", err)
	}

	return nil
}

// List returns entries matching the query in append order.
func (s *SQLiteStore) List(ctx context.Context, query *audit.Query) ([]*audit.Entry, error) {
	where, args := buildWhere(query)

	q := "SELECT id, sequence, timestamp, entry_type, action_id, decision_id, data, prev_hash, hash FROM audit_entries" +
		where + " ORDER BY sequence ASC"

	if query != nil && query.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", query.Limit, query.Offset)
	} else if query != nil && query.Offset > 0 {
		q += fmt.Sprintf(" LIMIT -1 OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, audit.NewStoreError("sqlite", "list", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, audit.NewStoreError("sqlite", "list", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, audit.NewStoreError("sqlite", "list", err)
	}

	return entries, nil
}

// Last returns the most recently appended entry, or nil when the log is empty.
func (s *SQLiteStore) Last(ctx context.Context) (*audit.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sequence, timestamp, entry_type, action_id, decision_id, data, prev_hash, hash
		FROM audit_entries ORDER BY sequence DESC LIMIT 1`)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, audit.NewStoreError("sqlite", "last", err)
	}

	return entry, nil
}

// Count returns the number of stored entries matching the query.
func (s *SQLiteStore) Count(ctx context.Context, query *audit.Query) (int64, error) {
	where, args := buildWhere(query)

	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries"+where, args...).Scan(&n)
	if err != nil {
		return 0, audit.NewStoreError("sqlite", "count", err)
	}

	return n, nil
}

// DeleteBefore removes entries with Sequence below seq, returning the deleted
// entries in append order so callers can archive them first.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, seq int64) ([]*audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sequence, timestamp, entry_type, action_id, decision_id, data, prev_hash, hash
		FROM audit_entries WHERE sequence < ? ORDER BY sequence ASC`, seq)
	if err != nil {
		return nil, audit.NewStoreError("sqlite", "delete", err)
	}
	defer rows.Close()

	var deleted []*audit.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, audit.NewStoreError("sqlite", "delete", err)
		}
		deleted = append(deleted, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStoreError("sqlite", "delete", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM audit_entries WHERE sequence < ?", seq); err != nil {
		return nil, audit.NewStoreError("sqlite", "delete", err)
	}

	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanEntry.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry reads one audit entry from a row.
func scanEntry(row rowScanner) (*audit.Entry, error) {
	var (
		entry      audit.Entry
		entryType  string
		decisionID sql.NullString
		data       sql.NullString
	)

	err := row.Scan(&entry.ID, &entry.Sequence, &entry.Timestamp, &entryType,
		&entry.ActionID, &decisionID, &data, &entry.PrevHash, &entry.Hash)
	if err != nil {
		return nil, err
	}

	entry.Type = audit.EntryType(entryType)
	entry.DecisionID = decisionID.String

	if data.Valid && data.String != "" && data.String != "null" {
		if err := json.Unmarshal([]byte(data.String), &entry.Data); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}
	}

	return &entry, nil
}

// buildWhere translates a query into a WHERE clause and args.
func buildWhere(query *audit.Query) (string, []any) {
	if query == nil {
		return "", nil
	}

	var (
		conds []string
		args  []any
	)

	if query.Type != "" {
		conds = append(conds, "entry_type = ?")
		args = append(args, string(query.Type))
	}
	if query.ActionID != "" {
		conds = append(conds, "action_id = ?")
		args = append(args, query.ActionID)
	}
	if query.StartTime != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, query.StartTime.UTC())
	}
	if query.EndTime != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, query.EndTime.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}
