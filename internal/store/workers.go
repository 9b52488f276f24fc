package store

import (
	"database/sql"
	"fmt"
	"time"

	"engram/internal/logging"
	"engram/internal/types"
)

// ============================================================================
// WORKERS
// ============================================================================

// RegisterWorker records a newly spawned worker.
func (s *Store) RegisterWorker(w *types.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO workers (id, task_id, role, status, started_at, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.TaskID, w.Role, string(w.Status),
		types.FormatTime(w.StartedAt), w.Reason)
	if err != nil {
		return fmt.Errorf("failed to register worker %s: %w", w.ID, err)
	}
	logging.Store("Registered worker %s (role %s, task %s)", w.ID, w.Role, w.TaskID)
	return nil
}

// UpdateWorkerStatus transitions a worker and records why.
func (s *Store) UpdateWorkerStatus(id string, status types.WorkerStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE workers SET status = ?, reason = ? WHERE id = ?`,
		string(status), reason, id)
	if err != nil {
		return fmt.Errorf("failed to update worker %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("worker %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetWorker returns one worker by id.
func (s *Store) GetWorker(id string) (*types.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(workerSelect+` WHERE id = ?`, id)
	w, err := scanWorker(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("worker %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load worker %s: %w", id, err)
	}
	return w, nil
}

// ListWorkers returns workers newest first, optionally filtered by status.
func (s *Store) ListWorkers(status types.WorkerStatus) ([]*types.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = s.db.Query(workerSelect+` WHERE status = ? ORDER BY started_at DESC`, string(status))
	} else {
		rows, err = s.db.Query(workerSelect + ` ORDER BY started_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	var workers []*types.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// SweepStaleWorkers promotes active workers older than the horizon to
// session_ended. Returns how many were swept.
func (s *Store) SweepStaleWorkers(horizon time.Duration) (int, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SweepStaleWorkers")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := types.FormatTime(time.Now().UTC().Add(-horizon))
	res, err := s.db.Exec(
		`UPDATE workers SET status = ?, reason = 'stale worker sweep'
		 WHERE status = ? AND started_at < ?`,
		string(types.WorkerSessionEnded), string(types.WorkerActive), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep workers: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("Swept %d stale workers past %s horizon", n, horizon)
	}
	return int(n), nil
}

const workerSelect = `SELECT id, task_id, role, status, started_at, reason FROM workers`

func scanWorker(row rowScanner) (*types.Worker, error) {
	var (
		w          types.Worker
		status     string
		startedRaw string
	)
	err := row.Scan(&w.ID, &w.TaskID, &w.Role, &status, &startedRaw, &w.Reason)
	if err != nil {
		return nil, err
	}
	w.Status = types.WorkerStatus(status)
	if w.StartedAt, err = types.ParseTimeString(startedRaw); err != nil {
		return nil, fmt.Errorf("bad started_at for %s: %w", w.ID, err)
	}
	return &w, nil
}
