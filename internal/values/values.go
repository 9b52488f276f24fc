// Package values manages the curated lesson store. A value is a short text
// distilled from a cluster of experiences; admission is gated on cosine
// similarity between the candidate and the cluster centroid, so only lessons
// that actually describe their cluster get in.
package values

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"engram/internal/cluster"
	"engram/internal/embedding"
	"engram/internal/logging"
	"engram/internal/types"
	"engram/internal/vector"
)

// DefaultSimilarityThreshold is the minimum cosine similarity between a
// candidate text and its cluster centroid.
const DefaultSimilarityThreshold = 0.7

// Service validates and stores values against cluster centroids.
type Service struct {
	vectors   vector.Store
	engine    embedding.Engine
	runner    *cluster.Runner
	threshold float64
}

// New wires a value service. A non-positive threshold falls back to the 0.7
// default.
func New(vs vector.Store, eng embedding.Engine, runner *cluster.Runner, threshold float64) *Service {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Service{vectors: vs, engine: eng, runner: runner, threshold: threshold}
}

// ValidationResult reports an admission decision. Similarity is nil when the
// centroid could not be resolved; serializers must omit the field then, never
// emit a null.
type ValidationResult struct {
	Valid      bool
	ClusterID  string
	Similarity *float64
}

// Validate embeds the candidate text and compares it to the centroid of the
// named cluster. A cluster id whose axis holds no such cluster yields
// Valid=false with no similarity.
func (s *Service) Validate(ctx context.Context, text, clusterID string) (*ValidationResult, error) {
	timer := logging.StartTimer(logging.CategoryCluster, "ValidateValue")
	defer timer.Stop()

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	if _, _, err := types.ParseClusterID(clusterID); err != nil {
		return nil, err
	}

	centroid, err := s.runner.CentroidFor(clusterID)
	if err != nil {
		return nil, err
	}
	res := &ValidationResult{ClusterID: clusterID}
	if centroid == nil {
		logging.ClusterDebug("No centroid for %s; rejecting candidate", clusterID)
		return res, nil
	}

	vec, err := embedding.EmbedDocument(ctx, s.engine, text)
	if err != nil {
		return nil, fmt.Errorf("embed candidate: %w", err)
	}
	sim := vector.CosineSimilarity(vec, centroid)
	res.Similarity = &sim
	res.Valid = sim >= s.threshold
	return res, nil
}

// Store admits the value if Validate accepts it, then embeds and upserts it
// into the values collection. A rejected candidate returns the validation
// result with a nil value and no error; callers shape the rejection.
func (s *Service) Store(ctx context.Context, text, clusterID, axis string) (*types.Value, *ValidationResult, error) {
	parsedAxis, err := types.ParseAxis(axis)
	if err != nil {
		return nil, nil, err
	}

	res, err := s.Validate(ctx, text, clusterID)
	if err != nil {
		return nil, nil, err
	}
	if !res.Valid {
		return nil, res, nil
	}

	value := &types.Value{
		ID:        types.NewID(types.PrefixValue),
		Text:      strings.TrimSpace(text),
		Axis:      parsedAxis,
		ClusterID: clusterID,
		CreatedAt: time.Now().UTC(),
	}

	vec, err := embedding.EmbedDocument(ctx, s.engine, value.Text)
	if err != nil {
		return nil, nil, fmt.Errorf("embed value: %w", err)
	}
	if err := s.vectors.CreateCollection(vector.CollectionValues, s.engine.Dimensions()); err != nil {
		return nil, nil, fmt.Errorf("create values collection: %w", err)
	}
	point := vector.Point{
		ID:     value.ID,
		Vector: vec,
		Payload: map[string]interface{}{
			"text":       value.Text,
			"axis":       string(value.Axis),
			"cluster_id": value.ClusterID,
			"created_at": types.FormatTime(value.CreatedAt),
		},
	}
	if err := s.vectors.Upsert(vector.CollectionValues, []vector.Point{point}); err != nil {
		return nil, nil, fmt.Errorf("store value: %w", err)
	}
	logging.Cluster("Stored value %s for %s (similarity %.3f)", value.ID, clusterID, *res.Similarity)
	return value, res, nil
}

// List returns every stored value, newest first. Values live entirely in the
// vector collection payloads; a missing collection is an empty list.
func (s *Service) List() ([]*types.Value, error) {
	var values []*types.Value
	req := vector.ScrollRequest{Limit: 256}
	for {
		page, err := s.vectors.Scroll(vector.CollectionValues, req)
		if errors.Is(err, vector.ErrCollectionNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		for _, p := range page.Points {
			values = append(values, pointToValue(p))
		}
		if page.Done {
			break
		}
		req.Cursor = page.NextCursor
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].CreatedAt.After(values[j].CreatedAt)
	})
	return values, nil
}

func pointToValue(p vector.Point) *types.Value {
	v := &types.Value{ID: p.ID}
	if s, ok := p.Payload["text"].(string); ok {
		v.Text = s
	}
	if s, ok := p.Payload["axis"].(string); ok {
		v.Axis = types.Axis(s)
	}
	if s, ok := p.Payload["cluster_id"].(string); ok {
		v.ClusterID = s
	}
	if s, ok := p.Payload["created_at"].(string); ok {
		if t, err := types.ParseTimeString(s); err == nil {
			v.CreatedAt = t
		}
	}
	return v
}
