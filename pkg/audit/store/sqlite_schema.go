package store

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
const Schema = `
-- Audit chain table. Sequence preserves append order across restarts.
CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    sequence INTEGER NOT NULL UNIQUE,
    timestamp TIMESTAMP NOT NULL,
    entry_type TEXT NOT NULL,
    action_id TEXT NOT NULL,
    decision_id TEXT,
    data TEXT,
    prev_hash TEXT NOT NULL,
    hash TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_sequence ON audit_entries(sequence);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_action_id ON audit_entries(action_id);
CREATE INDEX IF NOT EXISTS idx_audit_entry_type ON audit_entries(entry_type);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`
