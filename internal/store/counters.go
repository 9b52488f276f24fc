package store

import (
	"database/sql"
	"fmt"
)

// ============================================================================
// COUNTERS
// ============================================================================
//
// Counters back merge locks and batch triggers (merges_since_e2e,
// merges_since_docs). The tool-invocation counter is file-backed instead and
// lives in internal/bus.

// Well-known counter names.
const (
	CounterMergeLock       = "merge_lock"
	CounterMergesSinceE2E  = "merges_since_e2e"
	CounterMergesSinceDocs = "merges_since_docs"
)

// IncrementCounter atomically adds 1 to a counter, creating it at 1 when
// absent, and returns the new value.
func (s *Store) IncrementCounter(name string) (int64, error) {
	return s.addToCounter(name, 1)
}

// DecrementCounter atomically subtracts 1, flooring at 0, and returns the new
// value.
func (s *Store) DecrementCounter(name string) (int64, error) {
	return s.addToCounter(name, -1)
}

func (s *Store) addToCounter(name string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value int64
	err := s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO counters (name, value) VALUES (?, 0)
			 ON CONFLICT(name) DO NOTHING`, name); err != nil {
			return fmt.Errorf("failed to seed counter %s: %w", name, err)
		}
		if _, err := tx.Exec(
			`UPDATE counters SET value = MAX(0, value + ?) WHERE name = ?`,
			delta, name); err != nil {
			return fmt.Errorf("failed to bump counter %s: %w", name, err)
		}
		if err := tx.QueryRow(
			`SELECT value FROM counters WHERE name = ?`, name).Scan(&value); err != nil {
			return fmt.Errorf("failed to read counter %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// GetCounter returns the current value; absent counters read as 0.
func (s *Store) GetCounter(name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value int64
	err := s.db.QueryRow(`SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", name, err)
	}
	return value, nil
}

// SetCounter forces a counter to a value, creating it when absent.
func (s *Store) SetCounter(name string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO counters (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value)
	if err != nil {
		return fmt.Errorf("failed to set counter %s: %w", name, err)
	}
	return nil
}

// ListCounters returns every counter keyed by name.
func (s *Store) ListCounters() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name, value FROM counters ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list counters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			name  string
			value int64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}
