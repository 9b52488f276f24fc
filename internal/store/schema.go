package store

import (
	"fmt"

	"engram/internal/logging"
)

// ============================================================================
// SCHEMA
// ============================================================================

// schemaStatements are executed in order at startup. Every statement is
// idempotent so re-opening an existing database is safe.
//
// Timestamps are stored as RFC 3339 text in UTC. List-valued columns
// (blocked_by, tags) are JSON arrays stored as text.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ghap_entries (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		strategy TEXT NOT NULL,
		goal TEXT NOT NULL,
		hypothesis TEXT NOT NULL,
		action TEXT NOT NULL,
		prediction TEXT NOT NULL,
		iteration_count INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'active',
		outcome_result TEXT NOT NULL DEFAULT '',
		surprise TEXT NOT NULL DEFAULT '',
		root_cause_category TEXT NOT NULL DEFAULT '',
		root_cause_description TEXT NOT NULL DEFAULT '',
		lesson_what_worked TEXT NOT NULL DEFAULT '',
		lesson_takeaway TEXT NOT NULL DEFAULT '',
		confidence_tier TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		resolved_at TEXT
	)`,

	// The single-active invariant lives in the schema, not only in code:
	// at most one row may hold status='active' at any time.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_ghap_single_active
		ON ghap_entries(status) WHERE status = 'active'`,

	`CREATE INDEX IF NOT EXISTS idx_ghap_resolved_at
		ON ghap_entries(resolved_at)`,

	`CREATE INDEX IF NOT EXISTS idx_ghap_domain
		ON ghap_entries(domain)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		task_type TEXT NOT NULL,
		phase TEXT NOT NULL,
		spec_id TEXT NOT NULL DEFAULT '',
		specialist TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		blocked_by TEXT NOT NULL DEFAULT '[]',
		worktree_path TEXT NOT NULL DEFAULT '',
		project_path TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_phase ON tasks(phase)`,

	`CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		review_type TEXT NOT NULL,
		result TEXT NOT NULL,
		worker_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_reviews_task_type
		ON reviews(task_id, review_type)`,

	`CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_workers_status ON workers(status)`,

	`CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		category TEXT NOT NULL,
		importance REAL NOT NULL DEFAULT 0.5,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		reflected INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_journal_reflected
		ON journal_entries(reflected)`,

	`CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS session_handoffs (
		id TEXT PRIMARY KEY,
		handoff_content TEXT NOT NULL,
		needs_continuation INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		resumed_at TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_handoffs_pending
		ON session_handoffs(needs_continuation, created_at)`,
}

// initialize creates all tables and indexes.
func (s *Store) initialize() error {
	timer := logging.StartTimer(logging.CategoryStore, "initialize")
	defer timer.Stop()

	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
