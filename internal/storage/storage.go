// Package storage provides SQLite-backed persistence for the append-only
// depth event log and the tick history store.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database for all persistence operations.
type Store struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/depthwatch/data.db.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "depthwatch", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS depth_events (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			market_id       TEXT NOT NULL,
			total_yes_depth REAL NOT NULL,
			total_no_depth  REAL NOT NULL,
			top_gap_yes     REAL NOT NULL,
			top_gap_no      REAL NOT NULL,
			imbalance       REAL NOT NULL,
			signal_type     TEXT NOT NULL,
			threshold_hit   TEXT NOT NULL,
			mode            TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_depth_events_market
			ON depth_events(market_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS ticks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			market_id   TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			yes_price   REAL NOT NULL,
			no_price    REAL NOT NULL,
			volume      REAL NOT NULL,
			depth_json  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_market
			ON ticks(market_id, timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
