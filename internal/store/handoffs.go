package store

import (
	"database/sql"
	"fmt"
	"time"

	"engram/internal/logging"
	"engram/internal/types"
)

// ============================================================================
// SESSION HANDOFFS
// ============================================================================

// SaveHandoff records end-of-session state for a later session to pick up.
func (s *Store) SaveHandoff(h *types.SessionHandoff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO session_handoffs
			(id, handoff_content, needs_continuation, created_at)
		 VALUES (?, ?, ?, ?)`,
		h.ID, h.HandoffContent, boolToInt(h.NeedsContinuation),
		types.FormatTime(h.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save handoff %s: %w", h.ID, err)
	}
	logging.Store("Saved session handoff %s (needs_continuation=%v)", h.ID, h.NeedsContinuation)
	return nil
}

// GetPendingHandoff returns the most recent handoff that still needs
// continuation and has not been resumed, or nil when none is pending.
func (s *Store) GetPendingHandoff() (*types.SessionHandoff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, handoff_content, needs_continuation, created_at, resumed_at
		 FROM session_handoffs
		 WHERE needs_continuation = 1 AND resumed_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`)
	h, err := scanHandoff(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending handoff: %w", err)
	}
	return h, nil
}

// MarkHandoffResumed stamps resumed_at so the handoff stops being offered.
func (s *Store) MarkHandoffResumed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE session_handoffs SET resumed_at = ? WHERE id = ?`,
		types.FormatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to mark handoff %s resumed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("handoff %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListHandoffs returns handoffs newest first. limit <= 0 means no limit.
func (s *Store) ListHandoffs(limit int) ([]*types.SessionHandoff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, handoff_content, needs_continuation, created_at, resumed_at
		FROM session_handoffs ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list handoffs: %w", err)
	}
	defer rows.Close()

	var handoffs []*types.SessionHandoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		handoffs = append(handoffs, h)
	}
	return handoffs, rows.Err()
}

func scanHandoff(row rowScanner) (*types.SessionHandoff, error) {
	var (
		h          types.SessionHandoff
		needs      int
		createdRaw string
		resumedRaw sql.NullString
	)
	err := row.Scan(&h.ID, &h.HandoffContent, &needs, &createdRaw, &resumedRaw)
	if err != nil {
		return nil, err
	}
	h.NeedsContinuation = needs != 0
	if h.CreatedAt, err = types.ParseTimeString(createdRaw); err != nil {
		return nil, fmt.Errorf("bad created_at for %s: %w", h.ID, err)
	}
	if resumedRaw.Valid && resumedRaw.String != "" {
		t, err := types.ParseTimeString(resumedRaw.String)
		if err != nil {
			return nil, fmt.Errorf("bad resumed_at for %s: %w", h.ID, err)
		}
		h.ResumedAt = &t
	}
	return &h, nil
}
