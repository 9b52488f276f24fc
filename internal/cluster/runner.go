package cluster

import (
	"errors"

	"engram/internal/logging"
	"engram/internal/metrics"
	"engram/internal/types"
	"engram/internal/vector"
)

// ScrollCap bounds how many points one axis run pulls from the vector index.
// Runs that hit it are truncated; the truncation is logged and counted so it
// surfaces in /metrics instead of silently shrinking clusters.
const ScrollCap = 10000

const scrollPageSize = 256

// Runner pulls an axis collection out of the vector index and clusters it.
type Runner struct {
	vectors   vector.Store
	clusterer *Clusterer
}

// NewRunner creates a Runner. A nil clusterer uses the calibrated defaults.
func NewRunner(vectors vector.Store, clusterer *Clusterer) *Runner {
	if clusterer == nil {
		clusterer = New(0, 0)
	}
	return &Runner{vectors: vectors, clusterer: clusterer}
}

// AxisResult pairs a clustering run with its axis so callers can mint the
// printable "{axis}_{label}" ids.
type AxisResult struct {
	Axis   types.Axis
	Result *Result
}

// ClusterID returns the printable id of one cluster in the run.
func (r *AxisResult) ClusterID(label int) string {
	return types.ClusterID(r.Axis, label)
}

// ClusterAxis scrolls the axis collection and clusters its points in stored
// order.
func (r *Runner) ClusterAxis(axis types.Axis) (*AxisResult, error) {
	points, err := r.loadAxis(axis)
	if err != nil {
		return nil, err
	}
	result, err := r.clusterer.Cluster(points)
	if err != nil {
		return nil, err
	}
	return &AxisResult{Axis: axis, Result: result}, nil
}

// CentroidFor resolves a printable cluster id to its centroid by re-running
// the axis. Returns nil when the axis holds no cluster with that label,
// including when the axis has never been indexed at all.
func (r *Runner) CentroidFor(clusterID string) ([]float32, error) {
	axis, label, err := types.ParseClusterID(clusterID)
	if err != nil {
		return nil, err
	}
	res, err := r.ClusterAxis(axis)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, cl := range res.Result.Clusters {
		if cl.Label == label {
			return cl.Centroid, nil
		}
	}
	return nil, nil
}

func (r *Runner) loadAxis(axis types.Axis) ([]Point, error) {
	collection := string(axis)
	var points []Point
	req := vector.ScrollRequest{Limit: scrollPageSize, WithVectors: true}
	for {
		page, err := r.vectors.Scroll(collection, req)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Points {
			tier, _ := p.Payload["confidence_tier"].(string)
			points = append(points, Point{
				ID:     p.ID,
				Vector: p.Vector,
				Tier:   types.ConfidenceTier(tier),
			})
			if len(points) >= ScrollCap {
				logging.ClusterWarn("Axis %s reached the %d-point scroll cap; clustering a truncated set", axis, ScrollCap)
				metrics.ClusterScrollCapHits.WithLabelValues(string(axis)).Inc()
				return points, nil
			}
		}
		if page.Done {
			return points, nil
		}
		req.Cursor = page.NextCursor
	}
}
