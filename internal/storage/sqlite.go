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
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	placement, err := InspectPlacement(path)
	if err != nil {
		return nil, err
	}
	if err := placement.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer connection per process; other processes wait on busy_timeout.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(pctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
  id                 TEXT PRIMARY KEY,
  customer_id        TEXT NOT NULL,
  service_type       TEXT NOT NULL,
  vehicle_type       TEXT NOT NULL DEFAULT '',
  lat                REAL NOT NULL DEFAULT 0,
  lng                REAL NOT NULL DEFAULT 0,
  address            TEXT NOT NULL DEFAULT '',
  estimated_payout   REAL NOT NULL DEFAULT 0,
  currency           TEXT NOT NULL DEFAULT '',
  status             TEXT NOT NULL,
  assigned_worker_id TEXT,
  created_at         TEXT NOT NULL,
  updated_at         TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS booking_history (
  id         TEXT PRIMARY KEY,
  booking_id TEXT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
  action     TEXT NOT NULL,
  worker_id  TEXT,
  position   INTEGER NOT NULL DEFAULT 0,
  note       TEXT,
  at         TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS dispatch_snapshots (
  job_id     TEXT PRIMARY KEY,
  body       BLOB NOT NULL,
  expires_at INTEGER NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS dispatch_offers (
  job_id     TEXT PRIMARY KEY,
  body       BLOB NOT NULL,
  expires_at INTEGER NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS dispatch_seq (
  job_id     TEXT PRIMARY KEY,
  seq        INTEGER NOT NULL,
  expires_at INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS bookings_status_idx ON bookings(status);`,
		`CREATE INDEX IF NOT EXISTS booking_history_booking_idx ON booking_history(booking_id, at);`,
		`CREATE INDEX IF NOT EXISTS dispatch_snapshots_expires_idx ON dispatch_snapshots(expires_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
