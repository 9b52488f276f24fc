package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"engram/internal/logging"
	"engram/internal/types"
)

// ============================================================================
// TASKS
// ============================================================================

// CreateTask inserts a new task. The caller sets the initial phase; the phase
// machine is consulted before any later phase write, not here.
func (s *Store) CreateTask(t *types.Task) error {
	timer := logging.StartTimer(logging.CategoryStore, "CreateTask")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	blocked, err := marshalStringList(t.BlockedBy)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO tasks
			(id, title, task_type, phase, spec_id, specialist, notes,
			 blocked_by, worktree_path, project_path, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, string(t.TaskType), string(t.Phase),
		t.SpecID, t.Specialist, t.Notes, blocked,
		t.WorktreePath, t.ProjectPath,
		types.FormatTime(t.CreatedAt), types.FormatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", t.ID, err)
	}
	logging.Store("Created task %s (%s, phase %s)", t.ID, t.TaskType, t.Phase)
	return nil
}

// GetTask returns the task with the given id.
func (s *Store) GetTask(id string) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTaskLocked(id)
}

func (s *Store) getTaskLocked(id string) (*types.Task, error) {
	row := s.db.QueryRow(taskSelect+` WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	return t, nil
}

// ListTasks returns tasks newest first, optionally filtered by phase.
func (s *Store) ListTasks(phase types.Phase) ([]*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rows *sql.Rows
		err  error
	)
	if phase != "" {
		rows, err = s.db.Query(taskSelect+` WHERE phase = ? ORDER BY created_at DESC`, string(phase))
	} else {
		rows, err = s.db.Query(taskSelect + ` ORDER BY created_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SetTaskPhase writes a new phase. Transition legality is the caller's
// responsibility; this is the single point that touches the phase column.
func (s *Store) SetTaskPhase(id string, phase types.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTaskColumn(id, "phase", string(phase))
}

// SetTaskWorktree records the worktree path for a task ("" clears it).
func (s *Store) SetTaskWorktree(id, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTaskColumn(id, "worktree_path", path)
}

// SetTaskNotes replaces the task notes.
func (s *Store) SetTaskNotes(id, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTaskColumn(id, "notes", notes)
}

// SetTaskBlockers replaces the blocked_by set.
func (s *Store) SetTaskBlockers(id string, blockedBy []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocked, err := marshalStringList(blockedBy)
	if err != nil {
		return err
	}
	return s.updateTaskColumn(id, "blocked_by", blocked)
}

// DeleteTask removes a task; its reviews cascade.
func (s *Store) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	logging.Store("Deleted task %s", id)
	return nil
}

func (s *Store) updateTaskColumn(id, column, value string) error {
	res, err := s.db.Exec(
		fmt.Sprintf(`UPDATE tasks SET %s = ?, updated_at = ? WHERE id = ?`, column),
		value, types.FormatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// ============================================================================
// ROW MAPPING
// ============================================================================

const taskSelect = `SELECT id, title, task_type, phase, spec_id, specialist,
	notes, blocked_by, worktree_path, project_path, created_at, updated_at
	FROM tasks`

func scanTask(row rowScanner) (*types.Task, error) {
	var (
		t                    types.Task
		taskType, phase      string
		blocked              string
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.Title, &taskType, &phase, &t.SpecID,
		&t.Specialist, &t.Notes, &blocked, &t.WorktreePath, &t.ProjectPath,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.TaskType = types.TaskType(taskType)
	t.Phase = types.Phase(phase)
	if t.BlockedBy, err = unmarshalStringList(blocked); err != nil {
		return nil, fmt.Errorf("bad blocked_by for %s: %w", t.ID, err)
	}
	if t.CreatedAt, err = types.ParseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at for %s: %w", t.ID, err)
	}
	if t.UpdatedAt, err = types.ParseTimeString(updatedAt); err != nil {
		return nil, fmt.Errorf("bad updated_at for %s: %w", t.ID, err)
	}
	return &t, nil
}

func marshalStringList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func unmarshalStringList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list, nil
}
