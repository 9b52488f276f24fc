package store

import (
	"database/sql"
	"fmt"

	"engram/internal/logging"
	"engram/internal/types"
)

// ============================================================================
// REVIEWS
// ============================================================================

// Quorum is the number of distinct approvals that satisfy a review type.
const Quorum = 2

// RecordReview stores one reviewer's verdict. A changes_requested verdict
// clears every prior review of that type for the task in the same
// transaction, so the quorum restarts from zero.
func (s *Store) RecordReview(r *types.Review) error {
	timer := logging.StartTimer(logging.CategoryStore, "RecordReview")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRow(`SELECT 1 FROM tasks WHERE id = ?`, r.TaskID).Scan(&one)
		if err == sql.ErrNoRows {
			return fmt.Errorf("task %s: %w", r.TaskID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check task %s: %w", r.TaskID, err)
		}

		if r.Result == types.ReviewChangesRequested {
			if _, err := tx.Exec(
				`DELETE FROM reviews WHERE task_id = ? AND review_type = ?`,
				r.TaskID, string(r.ReviewType)); err != nil {
				return fmt.Errorf("failed to clear reviews: %w", err)
			}
		}

		_, err = tx.Exec(
			`INSERT INTO reviews
				(id, task_id, review_type, result, worker_id, notes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.TaskID, string(r.ReviewType), string(r.Result),
			r.WorkerID, r.Notes, types.FormatTime(r.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to record review: %w", err)
		}
		return nil
	})
}

// ListReviews returns all reviews for a task, oldest first. An empty
// reviewType returns every type.
func (s *Store) ListReviews(taskID string, reviewType types.ReviewType) ([]*types.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, task_id, review_type, result, worker_id, notes, created_at
		FROM reviews WHERE task_id = ?`
	args := []interface{}{taskID}
	if reviewType != "" {
		query += ` AND review_type = ?`
		args = append(args, string(reviewType))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*types.Review
	for rows.Next() {
		var (
			r            types.Review
			rtype, rres  string
			createdAtRaw string
		)
		if err := rows.Scan(&r.ID, &r.TaskID, &rtype, &rres,
			&r.WorkerID, &r.Notes, &createdAtRaw); err != nil {
			return nil, err
		}
		r.ReviewType = types.ReviewType(rtype)
		r.Result = types.ReviewResult(rres)
		if r.CreatedAt, err = types.ParseTimeString(createdAtRaw); err != nil {
			return nil, fmt.Errorf("bad created_at for review %s: %w", r.ID, err)
		}
		reviews = append(reviews, &r)
	}
	return reviews, rows.Err()
}

// CheckReviews reports whether the quorum is met for (task, type) and how
// many distinct approvals exist. Approvals from the same worker count once;
// anonymous approvals each count.
func (s *Store) CheckReviews(taskID string, reviewType types.ReviewType) (bool, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM (
			SELECT CASE WHEN worker_id = '' THEN id ELSE worker_id END AS reviewer
			FROM reviews
			WHERE task_id = ? AND review_type = ? AND result = ?
			GROUP BY reviewer
		)`,
		taskID, string(reviewType), string(types.ReviewApproved)).Scan(&count)
	if err != nil {
		return false, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count >= Quorum, count, nil
}
