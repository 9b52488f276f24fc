// Package types provides shared type definitions used across engram packages.
// This package exists to break import cycles between the store, collector, and
// dispatch layers. Types in this package are foundational data structures with
// no dependencies beyond the standard library and uuid.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ID prefixes. Every record id is "{prefix}_{uuid}" so log lines and error
// messages identify the record kind without a lookup.
const (
	PrefixGHAP    = "ghap"
	PrefixMemory  = "mem"
	PrefixValue   = "val"
	PrefixJournal = "jrn"
	PrefixReview  = "rev"
	PrefixWorker  = "wrk"
	PrefixHandoff = "hand"
)

// NewID returns a fresh prefixed identifier.
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// =============================================================================
// GHAP RECORD
// =============================================================================

// RootCause explains why a falsified hypothesis was wrong.
type RootCause struct {
	Category    RootCauseCategory `json:"category"`
	Description string            `json:"description"`
}

// Lesson captures what a resolved entry taught.
type Lesson struct {
	WhatWorked string `json:"what_worked"`
	Takeaway   string `json:"takeaway"`
}

// GHAPEntry is the atomic hypothesis record: goal, hypothesis, action,
// prediction, plus resolution fields once terminal. Created and mutated only
// by the collector; immutable after resolution.
type GHAPEntry struct {
	ID             string         `json:"id"`
	Domain         Domain         `json:"domain"`
	Strategy       Strategy       `json:"strategy"`
	Goal           string         `json:"goal"`
	Hypothesis     string         `json:"hypothesis"`
	Action         string         `json:"action"`
	Prediction     string         `json:"prediction"`
	IterationCount int            `json:"iteration_count"`
	Status         string         `json:"status"`
	OutcomeResult  string         `json:"outcome_result,omitempty"`
	Surprise       string         `json:"surprise,omitempty"`
	RootCause      *RootCause     `json:"root_cause,omitempty"`
	Lesson         *Lesson        `json:"lesson,omitempty"`
	ConfidenceTier ConfidenceTier `json:"confidence_tier,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

// CanonicalText is the serialization embedded into the full axis. The layout
// is stable: reindexing an old entry must reproduce the original embedding
// input byte for byte.
func (e *GHAPEntry) CanonicalText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\n", e.Domain)
	fmt.Fprintf(&b, "Strategy: %s\n", e.Strategy)
	fmt.Fprintf(&b, "Goal: %s\n", e.Goal)
	fmt.Fprintf(&b, "Hypothesis: %s\n", e.Hypothesis)
	fmt.Fprintf(&b, "Action: %s\n", e.Action)
	fmt.Fprintf(&b, "Prediction: %s\n", e.Prediction)
	fmt.Fprintf(&b, "Outcome: %s\n", e.Status)
	if e.OutcomeResult != "" {
		fmt.Fprintf(&b, "Result: %s\n", e.OutcomeResult)
	}
	if e.Surprise != "" {
		fmt.Fprintf(&b, "Surprise: %s\n", e.Surprise)
	}
	if e.RootCause != nil {
		fmt.Fprintf(&b, "Root cause (%s): %s\n", e.RootCause.Category, e.RootCause.Description)
	}
	if e.Lesson != nil {
		fmt.Fprintf(&b, "Lesson: %s. Takeaway: %s\n", e.Lesson.WhatWorked, e.Lesson.Takeaway)
	}
	return b.String()
}

// AxisText returns the text embedded for one axis. Absent optional fields
// yield "" so every resolved entry lands in all four collections and the
// collections stay id-aligned.
func (e *GHAPEntry) AxisText(axis Axis) string {
	switch axis {
	case AxisFull:
		return e.CanonicalText()
	case AxisStrategy:
		return string(e.Strategy)
	case AxisSurprise:
		return e.Surprise
	case AxisRootCause:
		if e.RootCause == nil {
			return ""
		}
		return fmt.Sprintf("%s: %s", e.RootCause.Category, e.RootCause.Description)
	default:
		return ""
	}
}

// IsResolved reports whether the entry reached a terminal status.
func (e *GHAPEntry) IsResolved() bool {
	return e.Status != StatusActive && e.Status != ""
}

// =============================================================================
// MEMORY, JOURNAL, VALUE
// =============================================================================

// Memory is a small long-lived factual note consumed by the context assembler.
type Memory struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Category   MemoryCategory `json:"category"`
	Importance float64        `json:"importance"`
	CreatedAt  time.Time      `json:"created_at"`
}

// JournalEntry is a free-form reflection note. Reflected entries have been
// consumed by a later distillation pass.
type JournalEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Reflected bool      `json:"reflected"`
	CreatedAt time.Time `json:"created_at"`
}

// Value is a curated lesson anchored to a cluster. ClusterID serializes as
// "{axis}_{label}".
type Value struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Axis      Axis      `json:"axis"`
	ClusterID string    `json:"cluster_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ClusterID formats the caller-visible cluster identifier.
func ClusterID(axis Axis, label int) string {
	return fmt.Sprintf("%s_%d", axis, label)
}

// ParseClusterID splits "{axis}_{label}" back into its parts. The axis
// root_cause itself contains an underscore, so the split is on the last one.
func ParseClusterID(id string) (Axis, int, error) {
	i := strings.LastIndex(id, "_")
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("invalid cluster_id %q (expected {axis}_{label})", id)
	}
	axis, err := ParseAxis(id[:i])
	if err != nil {
		return "", 0, fmt.Errorf("invalid cluster_id %q: %w", id, err)
	}
	var label int
	if _, err := fmt.Sscanf(id[i+1:], "%d", &label); err != nil || label < 0 {
		return "", 0, fmt.Errorf("invalid cluster_id %q (label must be a non-negative integer)", id)
	}
	return axis, label, nil
}

// =============================================================================
// ORCHESTRATION RECORDS
// =============================================================================

// Task is the orchestration unit a worktree and reviews hang off.
type Task struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	TaskType     TaskType  `json:"task_type"`
	Phase        Phase     `json:"phase"`
	SpecID       string    `json:"spec_id,omitempty"`
	Specialist   string    `json:"specialist,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	BlockedBy    []string  `json:"blocked_by,omitempty"`
	WorktreePath string    `json:"worktree_path,omitempty"`
	ProjectPath  string    `json:"project_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Review is one reviewer's verdict on a task artifact.
type Review struct {
	ID         string       `json:"id"`
	TaskID     string       `json:"task_id"`
	ReviewType ReviewType   `json:"review_type"`
	Result     ReviewResult `json:"result"`
	WorkerID   string       `json:"worker_id,omitempty"`
	Notes      string       `json:"notes,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Worker tracks a spawned specialist process working a task.
type Worker struct {
	ID        string       `json:"id"`
	TaskID    string       `json:"task_id"`
	Role      string       `json:"role"`
	Status    WorkerStatus `json:"status"`
	StartedAt time.Time    `json:"started_at"`
	Reason    string       `json:"reason,omitempty"`
}

// SessionHandoff carries work-in-progress notes across host sessions.
type SessionHandoff struct {
	ID                string     `json:"id"`
	HandoffContent    string     `json:"handoff_content"`
	NeedsContinuation bool       `json:"needs_continuation"`
	CreatedAt         time.Time  `json:"created_at"`
	ResumedAt         *time.Time `json:"resumed_at,omitempty"`
}
