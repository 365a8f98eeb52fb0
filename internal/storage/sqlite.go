package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures the gateway tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := Bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Bootstrap creates tables and indexes if missing.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS webhook_delivery (
  id                  TEXT PRIMARY KEY,
  source              TEXT NOT NULL,
  payload             BLOB NOT NULL,
  signature_timestamp INTEGER NOT NULL,
  status              TEXT NOT NULL,
  received_at         TEXT NOT NULL,
  started_at          TEXT,
  completed_at        TEXT,
  last_error          TEXT
);`,
		`CREATE TABLE IF NOT EXISTS seen_signature (
  key        TEXT PRIMARY KEY,
  expires_at INTEGER NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS transcript (
  conversation_id TEXT PRIMARY KEY,
  agent_id        TEXT NOT NULL,
  delivery_id     TEXT NOT NULL,
  lines           JSON NOT NULL,
  event_at        TEXT,
  stored_at       TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS webhook_delivery_status_received_idx ON webhook_delivery(status, received_at);`,
		`CREATE INDEX IF NOT EXISTS seen_signature_expires_idx ON seen_signature(expires_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
