package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB for the switchboard host. The same handle is shared
// with loaded handlers for their private tables; the tables created by
// the schema below are reserved for the host.
type DB struct {
	*sql.DB
	path string
}

// ReservedTables are the table names owned by the host. Handlers must not
// create or write tables with these names.
var ReservedTables = []string{
	"user_sessions",
	"admins",
	"open_handlers",
	"handler_grants",
	"usage_events",
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Each pool connection would get its own empty in-memory database.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// Path returns the filesystem path of the database.
func (d *DB) Path() string { return d.path }

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full host-owned database schema.
const schema = `
CREATE TABLE IF NOT EXISTS user_sessions (
    user_id TEXT PRIMARY KEY,
    current_handler TEXT,
    last_active DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS admins (
    user_id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS open_handlers (
    handler TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS handler_grants (
    handler TEXT NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY(handler, user_id)
);

CREATE TABLE IF NOT EXISTS usage_events (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    handler TEXT NOT NULL,
    action TEXT NOT NULL CHECK(action IN ('message','switch','error')),
    message_preview TEXT,
    metadata TEXT NOT NULL DEFAULT '{}',
    timestamp DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_usage_events_user ON usage_events(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_events_handler ON usage_events(handler, timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_events_timestamp ON usage_events(timestamp);
`
