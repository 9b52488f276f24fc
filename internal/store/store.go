// Package store implements the engram metadata store on SQLite. It holds the
// authoritative records: GHAP entries, tasks, reviews, workers, memories,
// journal entries, counters, and session handoffs. The vector index is derived
// state and lives elsewhere; on drift the reindex job rebuilds it from here.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"engram/internal/logging"
)

// ErrNotFound is returned when a named record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoActiveEntry is returned by operations that require an active GHAP
// entry when none exists.
var ErrNoActiveEntry = errors.New("no active GHAP entry")

// ActiveEntryError reports a start attempt while another entry is active. The
// message carries the active id and names the two ways out so a caller can
// self-correct without a lookup.
type ActiveEntryError struct {
	ActiveID string
}

func (e *ActiveEntryError) Error() string {
	return fmt.Sprintf(
		"an active GHAP entry already exists: %s; resolve it with resolve_ghap or amend it with update_ghap",
		e.ActiveID)
}

// Store wraps the SQLite connection. A single connection plus WAL keeps the
// transaction discipline simple; the mutex serializes multi-statement
// operations that must observe a consistent snapshot.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the SQLite database at the given path.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening metadata store at %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Metadata store ready")
	return s, nil
}

// openDB opens the SQLite file and applies the connection pragmas.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL is safe with WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable foreign keys: %v", err)
	}
	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("Closing metadata store")
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.dbPath
}

// withTx runs fn inside an immediate transaction, retrying once when SQLite
// reports transient contention. A second failure surfaces to the caller.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(25 * time.Millisecond)
		}
		err := s.runTx(fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		logging.StoreWarn("transaction contention (attempt %d): %v", attempt+1, err)
		lastErr = err
	}
	return fmt.Errorf("transaction failed after retry: %w", lastErr)
}

func (s *Store) runTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// isBusy detects SQLITE_BUSY / SQLITE_LOCKED from the driver error text.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "busy") ||
		strings.Contains(msg, "locked")
}

// GetStats returns row counts per table.
func (s *Store) GetStats() (map[string]int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetStats")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{
		"ghap_entries", "tasks", "reviews", "workers",
		"memories", "journal_entries", "counters", "session_handoffs",
	}
	for _, table := range tables {
		var count int64
		err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			logging.StoreDebug("Table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}
	return stats, nil
}
