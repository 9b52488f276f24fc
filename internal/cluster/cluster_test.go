package cluster

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"engram/internal/types"
)

// blob generates count vectors scattered tightly around a random unit base.
func blob(rng *rand.Rand, dim, count int, jitter float64) [][]float32 {
	base := make([]float64, dim)
	var norm float64
	for i := range base {
		base[i] = rng.NormFloat64()
		norm += base[i] * base[i]
	}
	norm = math.Sqrt(norm)
	for i := range base {
		base[i] /= norm
	}

	out := make([][]float32, count)
	for k := 0; k < count; k++ {
		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = float32(base[i] + jitter*rng.NormFloat64())
		}
		out[k] = vec
	}
	return out
}

func pointsFrom(prefix string, vecs [][]float32, tier types.ConfidenceTier) []Point {
	points := make([]Point, len(vecs))
	for i, v := range vecs {
		points[i] = Point{ID: prefix + string(rune('0'+i%10)) + string(rune('a'+i/10)), Vector: v, Tier: tier}
	}
	return points
}

func TestThirtySimilarVectorsFormACluster(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	points := pointsFrom("p", blob(rng, 128, 30, 0.05), types.TierGold)

	res, err := New(3, 2).Cluster(points)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(res.Clusters) == 0 {
		t.Fatal("expected at least one cluster from 30 similar vectors")
	}
	largest := 0
	for _, cl := range res.Clusters {
		if cl.Size > largest {
			largest = cl.Size
		}
	}
	if largest < 3 {
		t.Errorf("largest cluster size %d, want >= 3", largest)
	}

	// Labels are ascending from 0 and sizes plus noise account for every
	// point.
	total := res.NoiseCount
	for i, cl := range res.Clusters {
		if cl.Label != i {
			t.Errorf("cluster %d carries label %d", i, cl.Label)
		}
		if cl.Size != len(cl.MemberIDs) {
			t.Errorf("cluster %d: size %d != %d members", i, cl.Size, len(cl.MemberIDs))
		}
		total += cl.Size
	}
	if total != 30 {
		t.Errorf("sizes + noise = %d, want 30", total)
	}
	if len(res.Labels) != 30 {
		t.Errorf("expected 30 labels, got %d", len(res.Labels))
	}
}

func TestSmallCohortBelowMinClusterSizeIsNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	points := pointsFrom("p", blob(rng, 128, 4, 0.05), types.TierGold)

	res, err := New(5, 3).Cluster(points)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(res.Clusters) != 0 {
		t.Errorf("expected 0 clusters with min_cluster_size=5 over 4 points, got %d", len(res.Clusters))
	}
	if res.NoiseCount != 4 {
		t.Errorf("expected 4 noise points, got %d", res.NoiseCount)
	}
	for i, label := range res.Labels {
		if label != -1 {
			t.Errorf("point %d labeled %d, want -1", i, label)
		}
	}
}

func TestSeparatedGroupsStayApart(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	groupA := pointsFrom("a", blob(rng, 64, 10, 0.02), types.TierGold)
	groupB := pointsFrom("b", blob(rng, 64, 10, 0.02), types.TierGold)
	points := append(append([]Point{}, groupA...), groupB...)

	res, err := New(3, 2).Cluster(points)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(res.Clusters) < 2 {
		t.Fatalf("expected at least 2 clusters, got %d", len(res.Clusters))
	}

	// No cluster may mix members of the two groups.
	sawA, sawB := false, false
	for _, cl := range res.Clusters {
		hasA, hasB := false, false
		for _, id := range cl.MemberIDs {
			if id[0] == 'a' {
				hasA = true
			} else {
				hasB = true
			}
		}
		if hasA && hasB {
			t.Errorf("cluster %d mixes both groups: %v", cl.Label, cl.MemberIDs)
		}
		sawA = sawA || hasA
		sawB = sawB || hasB
	}
	if !sawA || !sawB {
		t.Errorf("expected clusters from both groups (sawA=%v sawB=%v)", sawA, sawB)
	}
}

func TestCentroidIsTierWeightedMean(t *testing.T) {
	points := []Point{
		{ID: "g1", Vector: []float32{1, 0, 0, 0}, Tier: types.TierGold},
		{ID: "g2", Vector: []float32{0.8, 0.6, 0, 0}, Tier: types.TierGold},
		{ID: "b1", Vector: []float32{0, 1, 0, 0}, Tier: types.TierBronze},
	}

	res, err := New(3, 2).Cluster(points)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(res.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(res.Clusters))
	}
	cl := res.Clusters[0]

	// Weighted mean of the unit inputs: (1.0*g1 + 1.0*g2 + 0.5*b1) / 2.5.
	want := []float64{(1 + 0.8) / 2.5, (0.6 + 0.5) / 2.5, 0, 0}
	for d := range want {
		if math.Abs(float64(cl.Centroid[d])-want[d]) > 1e-5 {
			t.Errorf("centroid[%d] = %f, want %f", d, cl.Centroid[d], want[d])
		}
	}

	// The centroid is not re-normalized.
	var norm float64
	for _, v := range cl.Centroid {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) < 1e-6 {
		t.Error("centroid looks re-normalized; weighted mean should keep magnitude < 1 here")
	}

	if math.Abs(cl.AvgWeight-2.5/3.0) > 1e-9 {
		t.Errorf("avg weight = %f, want %f", cl.AvgWeight, 2.5/3.0)
	}
	if len(cl.MemberIDs) != 3 || cl.MemberIDs[0] != "g1" || cl.MemberIDs[2] != "b1" {
		t.Errorf("member ids should preserve input order, got %v", cl.MemberIDs)
	}
}

func TestClusterIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	points := append(
		pointsFrom("a", blob(rng, 32, 8, 0.03), types.TierGold),
		pointsFrom("b", blob(rng, 32, 6, 0.03), types.TierSilver)...)

	first, err := New(3, 2).Cluster(points)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	second, err := New(3, 2).Cluster(points)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("same input produced different results (-first +second):\n%s", diff)
	}
}

func TestClusterEmptyInput(t *testing.T) {
	res, err := New(3, 2).Cluster(nil)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(res.Labels) != 0 || len(res.Clusters) != 0 || res.NoiseCount != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestClusterDimensionMismatch(t *testing.T) {
	points := []Point{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{1, 0, 0}},
	}
	if _, err := New(3, 2).Cluster(points); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
