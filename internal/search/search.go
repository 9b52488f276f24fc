// Package search implements semantic retrieval over the vector collections.
// Queries are embedded with the retrieval task type, run as cosine kNN
// against one collection, and hydrated into flat result records: every field
// is a JSON primitive, never a nested object graph. A missing collection is
// an empty result, not an error, so a fresh install searches cleanly before
// anything has been indexed.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"engram/internal/embedding"
	"engram/internal/logging"
	"engram/internal/store"
	"engram/internal/types"
	"engram/internal/vector"
)

// Limit bounds accepted by every search operation.
const (
	MinLimit = 1
	MaxLimit = 50
)

// Searcher runs embedded queries against the vector index and hydrates hits
// from the metadata store.
type Searcher struct {
	store   *store.Store
	vectors vector.Store
	engine  embedding.Engine
}

// New wires a searcher over its backends.
func New(st *store.Store, vs vector.Store, eng embedding.Engine) *Searcher {
	return &Searcher{store: st, vectors: vs, engine: eng}
}

func checkLimit(limit int) error {
	if limit < MinLimit || limit > MaxLimit {
		return fmt.Errorf("limit must be between %d and %d, got %d", MinLimit, MaxLimit, limit)
	}
	return nil
}

// knn embeds the query and searches one collection. A collection that does
// not exist yet yields no hits.
func (s *Searcher) knn(ctx context.Context, collection, query string, limit int, filters map[string]interface{}, code bool) ([]vector.ScoredPoint, error) {
	embed := embedding.EmbedQuery
	if code {
		embed = embedding.EmbedCodeQuery
	}
	vec, err := embed(ctx, s.engine, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.vectors.Search(collection, vec, limit, filters)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// ============================================================================
// EXPERIENCES
// ============================================================================

// ExperiencesRequest scopes a GHAP search. Domain and Outcome are optional;
// the domain filter only applies on the full axis, which is the collection
// that carries it.
type ExperiencesRequest struct {
	Query   string
	Axis    string
	Domain  string
	Outcome string
	Limit   int
}

// ExperienceResult is a resolved entry flattened for transport, plus the
// cosine score of the hit.
type ExperienceResult struct {
	ID                   string  `json:"id"`
	Domain               string  `json:"domain"`
	Strategy             string  `json:"strategy"`
	Goal                 string  `json:"goal"`
	Hypothesis           string  `json:"hypothesis"`
	Action               string  `json:"action"`
	Prediction           string  `json:"prediction"`
	IterationCount       int     `json:"iteration_count"`
	Status               string  `json:"status"`
	OutcomeResult        string  `json:"outcome_result,omitempty"`
	Surprise             string  `json:"surprise,omitempty"`
	RootCauseCategory    string  `json:"root_cause_category,omitempty"`
	RootCauseDescription string  `json:"root_cause_description,omitempty"`
	LessonWhatWorked     string  `json:"lesson_what_worked,omitempty"`
	LessonTakeaway       string  `json:"lesson_takeaway,omitempty"`
	ConfidenceTier       string  `json:"confidence_tier,omitempty"`
	Score                float64 `json:"score"`
	CreatedAt            string  `json:"created_at"`
	ResolvedAt           string  `json:"resolved_at,omitempty"`
}

// SearchExperiences embeds the query, runs kNN on the chosen axis, and
// hydrates each hit from the metadata store. Hits whose entry has been
// deleted since indexing are skipped. The outcome filter applies after
// hydration because axis payloads do not carry status; the search overfetches
// to compensate.
func (s *Searcher) SearchExperiences(ctx context.Context, req ExperiencesRequest) ([]ExperienceResult, error) {
	timer := logging.StartTimer(logging.CategorySearch, "SearchExperiences")
	defer timer.Stop()

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query_text is required")
	}
	axis, err := types.ParseAxis(req.Axis)
	if err != nil {
		return nil, err
	}
	if err := checkLimit(req.Limit); err != nil {
		return nil, err
	}
	if req.Domain != "" {
		if _, err := types.ParseDomain(req.Domain); err != nil {
			return nil, err
		}
	}
	if req.Outcome != "" {
		if _, err := types.ParseOutcomeStatus(req.Outcome); err != nil {
			return nil, err
		}
	}

	var filters map[string]interface{}
	if req.Domain != "" && axis == types.AxisFull {
		filters = map[string]interface{}{"domain": req.Domain}
	}
	fetch := req.Limit
	if req.Outcome != "" {
		fetch = req.Limit * 3
	}

	hits, err := s.knn(ctx, string(axis), req.Query, fetch, filters, false)
	if err != nil {
		return nil, err
	}

	results := make([]ExperienceResult, 0, len(hits))
	for _, h := range hits {
		entry, err := s.store.GetEntry(h.ID)
		if errors.Is(err, store.ErrNotFound) {
			logging.SearchDebug("Skipping stale vector %s on axis %s", h.ID, axis)
			continue
		}
		if err != nil {
			return nil, err
		}
		if req.Outcome != "" && entry.Status != req.Outcome {
			continue
		}
		results = append(results, flattenExperience(entry, h.Score))
		if len(results) == req.Limit {
			break
		}
	}
	logging.SearchDebug("Experiences query on %s returned %d of %d hits", axis, len(results), len(hits))
	return results, nil
}

func flattenExperience(e *types.GHAPEntry, score float64) ExperienceResult {
	r := ExperienceResult{
		ID:             e.ID,
		Domain:         string(e.Domain),
		Strategy:       string(e.Strategy),
		Goal:           e.Goal,
		Hypothesis:     e.Hypothesis,
		Action:         e.Action,
		Prediction:     e.Prediction,
		IterationCount: e.IterationCount,
		Status:         e.Status,
		OutcomeResult:  e.OutcomeResult,
		Surprise:       e.Surprise,
		ConfidenceTier: string(e.ConfidenceTier),
		Score:          score,
		CreatedAt:      types.FormatTime(e.CreatedAt),
	}
	if e.RootCause != nil {
		r.RootCauseCategory = string(e.RootCause.Category)
		r.RootCauseDescription = e.RootCause.Description
	}
	if e.Lesson != nil {
		r.LessonWhatWorked = e.Lesson.WhatWorked
		r.LessonTakeaway = e.Lesson.Takeaway
	}
	if e.ResolvedAt != nil {
		r.ResolvedAt = types.FormatTime(*e.ResolvedAt)
	}
	return r
}

// ============================================================================
// MEMORIES
// ============================================================================

// MemoryResult is a memory hit flattened for transport.
type MemoryResult struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Importance float64 `json:"importance"`
	Score      float64 `json:"score"`
	CreatedAt  string  `json:"created_at"`
}

// SearchMemories runs kNN over the memories collection, optionally scoped to
// one category, and hydrates hits from the metadata store.
func (s *Searcher) SearchMemories(ctx context.Context, query, category string, limit int) ([]MemoryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query_text is required")
	}
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	var filters map[string]interface{}
	if category != "" {
		if _, err := types.ParseMemoryCategory(category); err != nil {
			return nil, err
		}
		filters = map[string]interface{}{"category": category}
	}

	hits, err := s.knn(ctx, vector.CollectionMemories, query, limit, filters, false)
	if err != nil {
		return nil, err
	}
	results := make([]MemoryResult, 0, len(hits))
	for _, h := range hits {
		m, err := s.store.GetMemory(h.ID)
		if errors.Is(err, store.ErrNotFound) {
			logging.SearchDebug("Skipping stale memory vector %s", h.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, MemoryResult{
			ID:         m.ID,
			Content:    m.Content,
			Category:   string(m.Category),
			Importance: m.Importance,
			Score:      h.Score,
			CreatedAt:  types.FormatTime(m.CreatedAt),
		})
	}
	return results, nil
}

// ============================================================================
// VALUES
// ============================================================================

// ValueResult is a value hit. Values live entirely in vector payloads, so
// hydration reads the payload.
type ValueResult struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Axis      string  `json:"axis"`
	ClusterID string  `json:"cluster_id"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"created_at"`
}

// SearchValues runs kNN over the values collection, optionally scoped to the
// axis the values were distilled from.
func (s *Searcher) SearchValues(ctx context.Context, query, axis string, limit int) ([]ValueResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query_text is required")
	}
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	var filters map[string]interface{}
	if axis != "" {
		if _, err := types.ParseAxis(axis); err != nil {
			return nil, err
		}
		filters = map[string]interface{}{"axis": axis}
	}

	hits, err := s.knn(ctx, vector.CollectionValues, query, limit, filters, false)
	if err != nil {
		return nil, err
	}
	results := make([]ValueResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, ValueResult{
			ID:        h.ID,
			Text:      payloadString(h.Payload, "text"),
			Axis:      payloadString(h.Payload, "axis"),
			ClusterID: payloadString(h.Payload, "cluster_id"),
			Score:     h.Score,
			CreatedAt: payloadString(h.Payload, "created_at"),
		})
	}
	return results, nil
}

// ============================================================================
// CODE UNITS AND COMMITS
// ============================================================================

// CodeResult is an indexed code unit hit.
type CodeResult struct {
	ID       string  `json:"id"`
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Language string  `json:"language"`
	Content  string  `json:"content,omitempty"`
	Score    float64 `json:"score"`
}

// SearchCode runs kNN over indexed code units with the code-retrieval task
// type, optionally scoped to one language.
func (s *Searcher) SearchCode(ctx context.Context, query, language string, limit int) ([]CodeResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query_text is required")
	}
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	var filters map[string]interface{}
	if language != "" {
		filters = map[string]interface{}{"language": language}
	}

	hits, err := s.knn(ctx, vector.CollectionCodeUnits, query, limit, filters, true)
	if err != nil {
		return nil, err
	}
	results := make([]CodeResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, CodeResult{
			ID:       h.ID,
			Path:     payloadString(h.Payload, "path"),
			Name:     payloadString(h.Payload, "name"),
			Kind:     payloadString(h.Payload, "kind"),
			Language: payloadString(h.Payload, "language"),
			Content:  payloadString(h.Payload, "content"),
			Score:    h.Score,
		})
	}
	return results, nil
}

// CommitResult is an indexed commit hit.
type CommitResult struct {
	SHA         string  `json:"sha"`
	Subject     string  `json:"subject"`
	Author      string  `json:"author"`
	Score       float64 `json:"score"`
	CommittedAt string  `json:"committed_at"`
}

// SearchCommits runs kNN over indexed commit messages.
func (s *Searcher) SearchCommits(ctx context.Context, query string, limit int) ([]CommitResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query_text is required")
	}
	if err := checkLimit(limit); err != nil {
		return nil, err
	}

	hits, err := s.knn(ctx, vector.CollectionCommits, query, limit, nil, false)
	if err != nil {
		return nil, err
	}
	results := make([]CommitResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, CommitResult{
			SHA:         h.ID,
			Subject:     payloadString(h.Payload, "subject"),
			Author:      payloadString(h.Payload, "author"),
			Score:       h.Score,
			CommittedAt: payloadString(h.Payload, "committed_at"),
		})
	}
	return results, nil
}

func payloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	v, _ := payload[key].(string)
	return v
}
