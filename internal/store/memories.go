package store

import (
	"database/sql"
	"fmt"

	"engram/internal/types"
)

// ============================================================================
// MEMORIES
// ============================================================================

// StoreMemory inserts a long-lived note.
func (s *Store) StoreMemory(m *types.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO memories (id, content, category, importance, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Content, string(m.Category), m.Importance,
		types.FormatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to store memory %s: %w", m.ID, err)
	}
	return nil
}

// GetMemory returns one memory by id.
func (s *Store) GetMemory(id string) (*types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(memorySelect+` WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load memory %s: %w", id, err)
	}
	return m, nil
}

// ListMemories returns memories newest first, optionally filtered by
// category. limit <= 0 means no limit.
func (s *Store) ListMemories(category types.MemoryCategory, limit int) ([]*types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := memorySelect
	args := []interface{}{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var memories []*types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// MemoryUpdate names the mutable memory fields. Nil pointers leave the
// stored value alone.
type MemoryUpdate struct {
	Content    *string
	Category   *types.MemoryCategory
	Importance *float64
}

// UpdateMemory applies a partial update and returns the updated row.
func (s *Store) UpdateMemory(id string, u MemoryUpdate) (*types.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *types.Memory
	err := s.withTx(func(tx *sql.Tx) error {
		row := tx.QueryRow(memorySelect+` WHERE id = ?`, id)
		m, err := scanMemory(row)
		if err == sql.ErrNoRows {
			return fmt.Errorf("memory %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load memory %s: %w", id, err)
		}
		if u.Content != nil {
			m.Content = *u.Content
		}
		if u.Category != nil {
			m.Category = *u.Category
		}
		if u.Importance != nil {
			m.Importance = *u.Importance
		}
		_, err = tx.Exec(
			`UPDATE memories SET content = ?, category = ?, importance = ? WHERE id = ?`,
			m.Content, string(m.Category), m.Importance, m.ID)
		if err != nil {
			return fmt.Errorf("failed to update memory %s: %w", id, err)
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteMemory removes a memory by id.
func (s *Store) DeleteMemory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return nil
}

const memorySelect = `SELECT id, content, category, importance, created_at FROM memories`

func scanMemory(row rowScanner) (*types.Memory, error) {
	var (
		m          types.Memory
		category   string
		createdRaw string
	)
	err := row.Scan(&m.ID, &m.Content, &category, &m.Importance, &createdRaw)
	if err != nil {
		return nil, err
	}
	m.Category = types.MemoryCategory(category)
	if m.CreatedAt, err = types.ParseTimeString(createdRaw); err != nil {
		return nil, fmt.Errorf("bad created_at for %s: %w", m.ID, err)
	}
	return &m, nil
}
