// Package database is the Database collaborator: a thin SQLite-backed store
// for the server table's online/offline lifecycle columns, consulted by the
// Registry on markOnline/markOffline.
package database

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages the SQLite3 connection backing the server table.
type Store struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	timeout time.Duration
}

// Open opens path, sets WAL mode and a busy timeout, and ensures the server
// table exists.
func Open(path string, timeoutSec int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", timeoutSec*1000)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	s := &Store{db: db, path: path, timeout: time.Duration(timeoutSec) * time.Second}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS server (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ip TEXT NOT NULL,
			queryport INTEGER NOT NULL,
			gameport INTEGER,
			name TEXT,
			online INTEGER NOT NULL DEFAULT 0,
			lastseen INTEGER,
			UNIQUE(ip, queryport)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating server table: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ResolveID looks up the databaseId for (ip, queryPort), returning 0 if no
// row exists. Callers should cache a 0 result to avoid repeated lookups.
func (s *Store) ResolveID(ip string, queryPort uint16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, fmt.Errorf("database: not configured")
	}

	var id int
	var count int
	row := s.db.QueryRow(`SELECT COALESCE(id,0), COUNT(id) FROM server WHERE ip=? AND queryport=?`, ip, queryPort)
	if err := row.Scan(&id, &count); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	return id, nil
}

// MarkOnline updates an existing row's online state and liveness columns.
// id must already have been resolved via ResolveID; id == 0 is a no-op per
// the core's "never auto-insert" contract.
func (s *Store) MarkOnline(id int, gamePort uint16, name string, lastSeen time.Time) error {
	if id == 0 {
		return nil
	}
	if len(name) > 100 {
		name = name[:100]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("database: not configured")
	}
	_, err := s.db.Exec(
		`UPDATE server SET online=1, gameport=?, name=?, lastseen=? WHERE id=?`,
		gamePort, name, lastSeen.Unix(), id,
	)
	return err
}

// MarkOffline flips online to 0 for an already-resolved id. A no-op when id
// is 0.
func (s *Store) MarkOffline(id int) error {
	if id == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("database: not configured")
	}
	_, err := s.db.Exec(`UPDATE server SET online=0 WHERE id=?`, id)
	return err
}
