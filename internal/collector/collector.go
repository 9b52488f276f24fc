// Package collector implements the GHAP lifecycle: start one hypothesis at a
// time, iterate on it, and resolve it to a terminal status. Resolution
// commits metadata first and then indexes the entry into the four axis
// collections; indexing failures are logged, not rolled back, and a later
// reindex repairs them.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"engram/internal/embedding"
	"engram/internal/logging"
	"engram/internal/store"
	"engram/internal/types"
	"engram/internal/vector"
)

// ============================================================================
// COLLECTOR
// ============================================================================

// Collector owns the GHAP lifecycle. It validates tool input, drives the
// metadata store, and keeps the axis collections in sync with resolutions.
type Collector struct {
	store   *store.Store
	vectors vector.Store
	engine  embedding.Engine
}

// New wires a collector over its three backends.
func New(st *store.Store, vs vector.Store, eng embedding.Engine) *Collector {
	return &Collector{store: st, vectors: vs, engine: eng}
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// StartRequest carries the six required fields of a new entry.
type StartRequest struct {
	Domain     string
	Strategy   string
	Goal       string
	Hypothesis string
	Action     string
	Prediction string
}

// Start opens a new active entry. All six fields are required, domain and
// strategy must come from their closed sets, and only one entry may be
// active at a time.
func (c *Collector) Start(req StartRequest) (*types.GHAPEntry, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"domain", req.Domain},
		{"strategy", req.Strategy},
		{"goal", req.Goal},
		{"hypothesis", req.Hypothesis},
		{"action", req.Action},
		{"prediction", req.Prediction},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	domain, err := types.ParseDomain(req.Domain)
	if err != nil {
		return nil, err
	}
	strategy, err := types.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}

	entry := &types.GHAPEntry{
		ID:             types.NewID(types.PrefixGHAP),
		Domain:         domain,
		Strategy:       strategy,
		Goal:           strings.TrimSpace(req.Goal),
		Hypothesis:     strings.TrimSpace(req.Hypothesis),
		Action:         strings.TrimSpace(req.Action),
		Prediction:     strings.TrimSpace(req.Prediction),
		IterationCount: 1,
		Status:         types.StatusActive,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.store.StartEntry(entry); err != nil {
		return nil, err
	}
	logging.Collector("Started entry %s (domain=%s strategy=%s)", entry.ID, domain, strategy)
	return entry, nil
}

// UpdateRequest revises the active entry. Nil fields stay untouched; at
// least one must be set.
type UpdateRequest struct {
	Hypothesis *string
	Prediction *string
}

// Update mutates the active entry and bumps its iteration count.
func (c *Collector) Update(req UpdateRequest) (*types.GHAPEntry, error) {
	if req.Hypothesis == nil && req.Prediction == nil {
		return nil, fmt.Errorf("update requires at least one of hypothesis, prediction")
	}
	if req.Hypothesis != nil && strings.TrimSpace(*req.Hypothesis) == "" {
		return nil, fmt.Errorf("hypothesis must not be empty")
	}
	if req.Prediction != nil && strings.TrimSpace(*req.Prediction) == "" {
		return nil, fmt.Errorf("prediction must not be empty")
	}

	entry, err := c.store.UpdateActive(store.ActiveUpdate{
		Hypothesis: req.Hypothesis,
		Prediction: req.Prediction,
	})
	if err != nil {
		return nil, err
	}
	logging.CollectorDebug("Updated entry %s (iteration %d)", entry.ID, entry.IterationCount)
	return entry, nil
}

// ResolveRequest carries the terminal fields of a resolution. RootCause is
// mandatory when the status is falsified.
type ResolveRequest struct {
	Status    string
	Result    string
	Surprise  string
	RootCause *types.RootCause
	Lesson    *types.Lesson
}

// Resolve transitions the active entry to a terminal status, derives its
// confidence tier, and indexes it across the axis collections. The metadata
// commit always lands first; an indexing failure does not fail the call.
func (c *Collector) Resolve(ctx context.Context, req ResolveRequest) (*types.GHAPEntry, error) {
	timer := logging.StartTimer(logging.CategoryCollector, "Resolve")
	defer timer.Stop()

	status, err := types.ParseOutcomeStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Result) == "" {
		return nil, fmt.Errorf("result is required")
	}
	if status == types.OutcomeFalsified && req.RootCause == nil {
		return nil, fmt.Errorf("root_cause is required when status is falsified")
	}
	if req.RootCause != nil {
		if _, err := types.ParseRootCauseCategory(string(req.RootCause.Category)); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.RootCause.Description) == "" {
			return nil, fmt.Errorf("root_cause.description is required")
		}
	}

	entry, err := c.store.ResolveActive(store.Resolution{
		Status:        status,
		OutcomeResult: strings.TrimSpace(req.Result),
		Surprise:      strings.TrimSpace(req.Surprise),
		RootCause:     req.RootCause,
		Lesson:        req.Lesson,
	})
	if err != nil {
		return nil, err
	}

	if err := c.IndexEntry(ctx, entry); err != nil {
		logging.CollectorError("Failed to index entry %s: %v", entry.ID, err)
	}
	return entry, nil
}

// ============================================================================
// AXIS INDEXING
// ============================================================================

// IndexEntry embeds a resolved entry and upserts it into the four axis
// collections under its own id. Collections are created on first use. Absent
// optional fields embed as "" so the collections stay id-aligned.
func (c *Collector) IndexEntry(ctx context.Context, e *types.GHAPEntry) error {
	if !e.IsResolved() {
		return fmt.Errorf("entry %s is not resolved", e.ID)
	}

	payload := map[string]interface{}{
		"id":              e.ID,
		"domain":          string(e.Domain),
		"confidence_tier": string(e.ConfidenceTier),
	}
	for _, axis := range types.Axes() {
		vec, err := embedding.EmbedDocument(ctx, c.engine, e.AxisText(axis))
		if err != nil {
			return fmt.Errorf("embed %s axis for %s: %w", axis, e.ID, err)
		}
		coll := string(axis)
		if err := c.vectors.CreateCollection(coll, c.engine.Dimensions()); err != nil {
			return fmt.Errorf("create collection %s: %w", coll, err)
		}
		point := vector.Point{ID: e.ID, Vector: vec, Payload: payload}
		if err := c.vectors.Upsert(coll, []vector.Point{point}); err != nil {
			return fmt.Errorf("upsert into %s: %w", coll, err)
		}
	}
	logging.CollectorDebug("Indexed entry %s across %d axes", e.ID, len(types.Axes()))
	return nil
}

// ============================================================================
// QUERIES
// ============================================================================

// GetActive returns the active entry, or nil when none exists.
func (c *Collector) GetActive() (*types.GHAPEntry, error) {
	return c.store.GetActive()
}

// ListResolved pages resolved entries newest first.
func (c *Collector) ListResolved(limit, offset int) ([]*types.GHAPEntry, error) {
	return c.store.ListResolved(limit, offset)
}
