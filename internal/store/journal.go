package store

import (
	"database/sql"
	"fmt"

	"engram/internal/types"
)

// ============================================================================
// JOURNAL
// ============================================================================

// AddJournalEntry inserts a reflection note.
func (s *Store) AddJournalEntry(e *types.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, err := marshalStringList(e.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO journal_entries (id, content, category, tags, reflected, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Content, e.Category, tags, boolToInt(e.Reflected),
		types.FormatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to add journal entry %s: %w", e.ID, err)
	}
	return nil
}

// GetJournalEntry returns one entry by id.
func (s *Store) GetJournalEntry(id string) (*types.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(journalSelect+` WHERE id = ?`, id)
	e, err := scanJournal(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load journal entry %s: %w", id, err)
	}
	return e, nil
}

// ListJournal returns entries newest first. With unreflectedOnly only entries
// not yet consumed by a reflection pass are returned. limit <= 0 means no
// limit.
func (s *Store) ListJournal(unreflectedOnly bool, limit int) ([]*types.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := journalSelect
	args := []interface{}{}
	if unreflectedOnly {
		query += ` WHERE reflected = 0`
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	defer rows.Close()

	var entries []*types.JournalEntry
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkReflected flags entries as consumed by a reflection pass.
func (s *Store) MarkReflected(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.Exec(`UPDATE journal_entries SET reflected = 1 WHERE id = ?`, id)
			if err != nil {
				return fmt.Errorf("failed to mark %s reflected: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
			}
		}
		return nil
	})
}

const journalSelect = `SELECT id, content, category, tags, reflected, created_at FROM journal_entries`

func scanJournal(row rowScanner) (*types.JournalEntry, error) {
	var (
		e          types.JournalEntry
		tags       string
		reflected  int
		createdRaw string
	)
	err := row.Scan(&e.ID, &e.Content, &e.Category, &tags, &reflected, &createdRaw)
	if err != nil {
		return nil, err
	}
	e.Reflected = reflected != 0
	if e.Tags, err = unmarshalStringList(tags); err != nil {
		return nil, fmt.Errorf("bad tags for %s: %w", e.ID, err)
	}
	if e.CreatedAt, err = types.ParseTimeString(createdRaw); err != nil {
		return nil, fmt.Errorf("bad created_at for %s: %w", e.ID, err)
	}
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
