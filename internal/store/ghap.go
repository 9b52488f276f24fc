package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"engram/internal/logging"
	"engram/internal/types"
)

// ============================================================================
// GHAP ENTRIES
// ============================================================================

// ActiveUpdate carries the mutable fields of an update call. Nil pointers
// leave the stored value untouched.
type ActiveUpdate struct {
	Hypothesis *string
	Prediction *string
}

// Resolution carries the terminal fields written when an entry resolves.
type Resolution struct {
	Status        types.OutcomeStatus
	OutcomeResult string
	Surprise      string
	RootCause     *types.RootCause
	Lesson        *types.Lesson
}

// StartEntry inserts a new active entry. If another entry is already active
// the insert is refused and the returned error identifies it.
func (s *Store) StartEntry(e *types.GHAPEntry) error {
	timer := logging.StartTimer(logging.CategoryStore, "StartEntry")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(func(tx *sql.Tx) error {
		var activeID string
		err := tx.QueryRow(
			`SELECT id FROM ghap_entries WHERE status = ?`, types.StatusActive,
		).Scan(&activeID)
		switch {
		case err == nil:
			return &ActiveEntryError{ActiveID: activeID}
		case err != sql.ErrNoRows:
			return fmt.Errorf("failed to check active entry: %w", err)
		}

		_, err = tx.Exec(
			`INSERT INTO ghap_entries
				(id, domain, strategy, goal, hypothesis, action, prediction,
				 iteration_count, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			e.ID, string(e.Domain), string(e.Strategy),
			e.Goal, e.Hypothesis, e.Action, e.Prediction,
			types.StatusActive, types.FormatTime(e.CreatedAt))
		if err != nil {
			// Backstop for the partial unique index: a concurrent start that
			// slipped past the select still surfaces as the typed error.
			if strings.Contains(strings.ToLower(err.Error()), "unique") {
				if selErr := tx.QueryRow(
					`SELECT id FROM ghap_entries WHERE status = ?`, types.StatusActive,
				).Scan(&activeID); selErr == nil {
					return &ActiveEntryError{ActiveID: activeID}
				}
				return &ActiveEntryError{}
			}
			return fmt.Errorf("failed to insert entry: %w", err)
		}
		return nil
	})
}

// UpdateActive mutates the active entry and increments its iteration count.
// Returns the entry as stored after the update.
func (s *Store) UpdateActive(u ActiveUpdate) (*types.GHAPEntry, error) {
	timer := logging.StartTimer(logging.CategoryStore, "UpdateActive")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *types.GHAPEntry
	err := s.withTx(func(tx *sql.Tx) error {
		entry, err := getActiveTx(tx)
		if err != nil {
			return err
		}
		if u.Hypothesis != nil {
			entry.Hypothesis = *u.Hypothesis
		}
		if u.Prediction != nil {
			entry.Prediction = *u.Prediction
		}
		entry.IterationCount++

		_, err = tx.Exec(
			`UPDATE ghap_entries
			 SET hypothesis = ?, prediction = ?, iteration_count = ?
			 WHERE id = ?`,
			entry.Hypothesis, entry.Prediction, entry.IterationCount, entry.ID)
		if err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		updated = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ResolveActive transitions the active entry to a terminal status, derives its
// confidence tier, and stamps resolved_at. Returns the resolved entry.
func (s *Store) ResolveActive(r Resolution) (*types.GHAPEntry, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ResolveActive")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	var resolved *types.GHAPEntry
	err := s.withTx(func(tx *sql.Tx) error {
		entry, err := getActiveTx(tx)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		entry.Status = string(r.Status)
		entry.OutcomeResult = r.OutcomeResult
		entry.Surprise = r.Surprise
		entry.RootCause = r.RootCause
		entry.Lesson = r.Lesson
		entry.ConfidenceTier = types.DeriveTier(r.Status, r.Lesson)
		entry.ResolvedAt = &now

		var rcCat, rcDesc, lessonWorked, lessonTakeaway string
		if r.RootCause != nil {
			rcCat = string(r.RootCause.Category)
			rcDesc = r.RootCause.Description
		}
		if r.Lesson != nil {
			lessonWorked = r.Lesson.WhatWorked
			lessonTakeaway = r.Lesson.Takeaway
		}

		_, err = tx.Exec(
			`UPDATE ghap_entries
			 SET status = ?, outcome_result = ?, surprise = ?,
			     root_cause_category = ?, root_cause_description = ?,
			     lesson_what_worked = ?, lesson_takeaway = ?,
			     confidence_tier = ?, resolved_at = ?
			 WHERE id = ?`,
			entry.Status, entry.OutcomeResult, entry.Surprise,
			rcCat, rcDesc, lessonWorked, lessonTakeaway,
			string(entry.ConfidenceTier), types.FormatTime(now), entry.ID)
		if err != nil {
			return fmt.Errorf("failed to resolve entry: %w", err)
		}
		resolved = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.Store("Resolved GHAP entry %s as %s (tier %s)",
		resolved.ID, resolved.Status, resolved.ConfidenceTier)
	return resolved, nil
}

// GetActive returns the active entry, or nil when none exists.
func (s *Store) GetActive() (*types.GHAPEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(ghapSelect+` WHERE status = ?`, types.StatusActive)
	entry, err := scanGHAP(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active entry: %w", err)
	}
	return entry, nil
}

// GetEntry returns the entry with the given id.
func (s *Store) GetEntry(id string) (*types.GHAPEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(ghapSelect+` WHERE id = ?`, id)
	entry, err := scanGHAP(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ghap entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %s: %w", id, err)
	}
	return entry, nil
}

// ListResolved pages across resolved entries in descending resolved_at order.
func (s *Store) ListResolved(limit, offset int) ([]*types.GHAPEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		ghapSelect+` WHERE resolved_at IS NOT NULL
		 ORDER BY resolved_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved entries: %w", err)
	}
	defer rows.Close()
	return collectGHAP(rows)
}

// ListAllEntries returns every entry, oldest first. Used by reindexing.
func (s *Store) ListAllEntries() ([]*types.GHAPEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(ghapSelect + ` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()
	return collectGHAP(rows)
}

// ============================================================================
// ROW MAPPING
// ============================================================================

const ghapSelect = `SELECT id, domain, strategy, goal, hypothesis, action,
	prediction, iteration_count, status, outcome_result, surprise,
	root_cause_category, root_cause_description,
	lesson_what_worked, lesson_takeaway, confidence_tier,
	created_at, resolved_at FROM ghap_entries`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGHAP(row rowScanner) (*types.GHAPEntry, error) {
	var (
		e                            types.GHAPEntry
		domain, strategy, tier       string
		rcCat, rcDesc                string
		lessonWorked, lessonTakeaway string
		createdAt                    string
		resolvedAt                   sql.NullString
	)
	err := row.Scan(&e.ID, &domain, &strategy, &e.Goal, &e.Hypothesis,
		&e.Action, &e.Prediction, &e.IterationCount, &e.Status,
		&e.OutcomeResult, &e.Surprise, &rcCat, &rcDesc,
		&lessonWorked, &lessonTakeaway, &tier, &createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	e.Domain = types.Domain(domain)
	e.Strategy = types.Strategy(strategy)
	e.ConfidenceTier = types.ConfidenceTier(tier)
	if rcCat != "" || rcDesc != "" {
		e.RootCause = &types.RootCause{
			Category:    types.RootCauseCategory(rcCat),
			Description: rcDesc,
		}
	}
	if lessonWorked != "" || lessonTakeaway != "" {
		e.Lesson = &types.Lesson{WhatWorked: lessonWorked, Takeaway: lessonTakeaway}
	}
	if e.CreatedAt, err = types.ParseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at for %s: %w", e.ID, err)
	}
	if resolvedAt.Valid && resolvedAt.String != "" {
		t, err := types.ParseTimeString(resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("bad resolved_at for %s: %w", e.ID, err)
		}
		e.ResolvedAt = &t
	}
	return &e, nil
}

func collectGHAP(rows *sql.Rows) ([]*types.GHAPEntry, error) {
	var entries []*types.GHAPEntry
	for rows.Next() {
		e, err := scanGHAP(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// getActiveTx loads the active entry inside a transaction.
func getActiveTx(tx *sql.Tx) (*types.GHAPEntry, error) {
	row := tx.QueryRow(ghapSelect+` WHERE status = ?`, types.StatusActive)
	entry, err := scanGHAP(row)
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveEntry
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active entry: %w", err)
	}
	return entry, nil
}
