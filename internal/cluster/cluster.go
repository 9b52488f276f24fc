// Package cluster groups an axis's embedding vectors with density-based
// clustering over cosine distance and produces tier-weighted centroids.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"engram/internal/logging"
	"engram/internal/types"
)

// Calibrated defaults. The earlier 5/3 settings left moderately sized
// cohesive groups unclustered; they are a documented prior, not a target.
const (
	DefaultMinClusterSize = 3
	DefaultMinSamples     = 2
)

// Point is one clustering input.
type Point struct {
	ID     string
	Vector []float32
	Tier   types.ConfidenceTier
}

// Cluster is one density cluster. Centroid is the tier-weighted mean of the
// unit-normalized member vectors and is deliberately not re-normalized.
type Cluster struct {
	Label     int       `json:"label"`
	Centroid  []float32 `json:"centroid"`
	MemberIDs []string  `json:"member_ids"`
	Size      int       `json:"size"`
	AvgWeight float64   `json:"avg_weight"`
}

// Result is one clustering run. Labels parallels the input order; noise
// points carry -1.
type Result struct {
	Labels     []int     `json:"labels"`
	Clusters   []Cluster `json:"clusters"`
	NoiseCount int       `json:"noise_count"`
}

// Clusterer runs density-based clustering with fixed parameters.
type Clusterer struct {
	minClusterSize int
	minSamples     int
}

// New creates a Clusterer. Non-positive parameters fall back to the
// calibrated defaults; minClusterSize below 2 is clamped to 2.
func New(minClusterSize, minSamples int) *Clusterer {
	if minClusterSize <= 0 {
		minClusterSize = DefaultMinClusterSize
	}
	if minClusterSize < 2 {
		minClusterSize = 2
	}
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Clusterer{minClusterSize: minClusterSize, minSamples: minSamples}
}

// Cluster labels every point and builds the weighted clusters. Labels are
// assigned ascending from 0 in order of each cluster's first member, so
// repeated runs over the same input produce identical labels.
func (c *Clusterer) Cluster(points []Point) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryCluster, "Cluster")
	defer timer.Stop()

	n := len(points)
	res := &Result{Labels: make([]int, n)}
	if n == 0 {
		return res, nil
	}

	dims := len(points[0].Vector)
	vecs := make([][]float64, n)
	for i, p := range points {
		if len(p.Vector) != dims {
			return nil, fmt.Errorf("point %s: vector dimension %d differs from %d", p.ID, len(p.Vector), dims)
		}
		vecs[i] = normalize(p.Vector)
	}

	if n < c.minClusterSize {
		for i := range res.Labels {
			res.Labels[i] = -1
		}
		res.NoiseCount = n
		logging.ClusterDebug("%d points below min_cluster_size %d; all noise", n, c.minClusterSize)
		return res, nil
	}

	core := coreDistances(vecs, c.minSamples)
	mst := buildMST(vecs, core)
	nodes := buildHierarchy(mst, n)
	condensed := condense(nodes, n, c.minClusterSize)
	selected := selectClusters(condensed)
	owner := assignments(condensed, selected, n)

	// Group points by owning condensed cluster, then order groups by their
	// first member for stable ascending labels.
	groups := make(map[int][]int)
	for p, ci := range owner {
		if ci >= 0 {
			groups[ci] = append(groups[ci], p)
		}
	}
	order := make([]int, 0, len(groups))
	for ci := range groups {
		order = append(order, ci)
	}
	sort.Slice(order, func(i, j int) bool {
		return groups[order[i]][0] < groups[order[j]][0]
	})

	for label, ci := range order {
		members := groups[ci]
		cl := Cluster{Label: label, Size: len(members)}
		centroid := make([]float64, dims)
		var weightSum float64
		for _, p := range members {
			res.Labels[p] = label
			w := points[p].Tier.Weight()
			weightSum += w
			for d := 0; d < dims; d++ {
				centroid[d] += w * vecs[p][d]
			}
			cl.MemberIDs = append(cl.MemberIDs, points[p].ID)
		}
		if weightSum > 0 {
			for d := range centroid {
				centroid[d] /= weightSum
			}
		}
		cl.Centroid = toFloat32(centroid)
		cl.AvgWeight = weightSum / float64(len(members))
		res.Clusters = append(res.Clusters, cl)
	}

	for p, ci := range owner {
		if ci < 0 {
			res.Labels[p] = -1
			res.NoiseCount++
		}
	}

	logging.Cluster("Clustered %d points into %d clusters (%d noise)", n, len(res.Clusters), res.NoiseCount)
	return res, nil
}

func normalize(vec []float32) []float64 {
	out := make([]float64, len(vec))
	var norm float64
	for i, v := range vec {
		out[i] = float64(v)
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i] /= norm
	}
	return out
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
