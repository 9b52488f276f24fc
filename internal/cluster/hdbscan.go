package cluster

import (
	"math"
	"sort"
)

// ============================================================================
// DENSITY CLUSTERING INTERNALS
// ============================================================================
//
// The pipeline follows the standard HDBSCAN construction: cosine distances,
// core distances from the min_samples-th neighbor, a minimum spanning tree
// over mutual reachability, a single-linkage hierarchy, a condensed tree
// pruned by min_cluster_size, and excess-of-mass cluster selection. The root
// cluster is selectable, so a single cohesive blob yields one cluster rather
// than all noise.

// minPositiveDist floors distances before inversion so duplicate points keep
// lambda values finite.
const minPositiveDist = 1e-10

func lambdaFor(dist float64) float64 {
	if dist < minPositiveDist {
		dist = minPositiveDist
	}
	return 1.0 / dist
}

// cosineDist is 1 - dot(a, b) for unit vectors, clamped at 0 against float
// rounding.
func cosineDist(a, b []float64) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	d := 1.0 - dot
	if d < 0 {
		return 0
	}
	return d
}

// coreDistances returns, per point, the distance to its minSamples-th
// nearest neighbor, the point itself included.
func coreDistances(vecs [][]float64, minSamples int) []float64 {
	n := len(vecs)
	k := minSamples
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	core := make([]float64, n)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				row[j] = 0
				continue
			}
			row[j] = cosineDist(vecs[i], vecs[j])
		}
		tmp := append([]float64(nil), row...)
		sort.Float64s(tmp)
		core[i] = tmp[k-1]
	}
	return core
}

// edge is one mutual-reachability MST edge.
type edge struct {
	a, b int
	w    float64
}

// buildMST runs Prim's algorithm over the implicit complete graph of mutual
// reachability distances. Distances are recomputed on the fly so memory
// stays O(n) even at the scroll cap.
func buildMST(vecs [][]float64, core []float64) []edge {
	n := len(vecs)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]edge, 0, n-1)
	cur := 0
	inTree[0] = true
	for len(edges) < n-1 {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			d := cosineDist(vecs[cur], vecs[j])
			if core[cur] > d {
				d = core[cur]
			}
			if core[j] > d {
				d = core[j]
			}
			if d < best[j] {
				best[j] = d
				from[j] = cur
			}
			if next == -1 || best[j] < best[next] {
				next = j
			}
		}
		edges = append(edges, edge{a: from[next], b: next, w: best[next]})
		inTree[next] = true
		cur = next
	}
	return edges
}

// mergeNode is one agglomeration in the single-linkage tree. Child ids below
// n reference input points; ids at or above n reference earlier merges.
type mergeNode struct {
	left, right int
	dist        float64
	size        int
}

type unionFind struct {
	parent []int
	size   []int
	nodeID []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		size:   make([]int, n),
		nodeID: make([]int, n),
	}
	for i := 0; i < n; i++ {
		uf.parent[i] = i
		uf.size[i] = 1
		uf.nodeID[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b, nodeID int) {
	ra, rb := u.find(a), u.find(b)
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
	u.nodeID[ra] = nodeID
}

// buildHierarchy merges MST edges in ascending weight order into a
// single-linkage dendrogram. Ties break on endpoint indexes so runs are
// deterministic.
func buildHierarchy(edges []edge, n int) []mergeNode {
	sorted := append([]edge(nil), edges...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].w != sorted[j].w {
			return sorted[i].w < sorted[j].w
		}
		if sorted[i].a != sorted[j].a {
			return sorted[i].a < sorted[j].a
		}
		return sorted[i].b < sorted[j].b
	})

	uf := newUnionFind(n)
	nodes := make([]mergeNode, 0, len(sorted))
	for _, e := range sorted {
		ra, rb := uf.find(e.a), uf.find(e.b)
		na, nb := uf.nodeID[ra], uf.nodeID[rb]
		nodes = append(nodes, mergeNode{
			left:  na,
			right: nb,
			dist:  e.w,
			size:  nodeSize(nodes, n, na) + nodeSize(nodes, n, nb),
		})
		uf.union(ra, rb, n+len(nodes)-1)
	}
	return nodes
}

func nodeSize(nodes []mergeNode, n, id int) int {
	if id < n {
		return 1
	}
	return nodes[id-n].size
}

func collectLeaves(nodes []mergeNode, n, id int, out []int) []int {
	if id < n {
		return append(out, id)
	}
	node := nodes[id-n]
	out = collectLeaves(nodes, n, node.left, out)
	return collectLeaves(nodes, n, node.right, out)
}

// condensedCluster is a node of the condensed tree: a cluster alive over a
// lambda interval, the points that drop out of it directly, and the split
// that ends it.
type condensedCluster struct {
	parent      int
	birth       float64
	death       float64
	children    []int
	points      []int
	lambdas     []float64
	totalPoints int
	stability   float64
}

// condense prunes the dendrogram by minClusterSize: splits where both sides
// reach the size survive as new clusters, smaller sides fall out of the
// current cluster at the split's lambda.
func condense(nodes []mergeNode, n, minClusterSize int) []condensedCluster {
	clusters := []condensedCluster{{parent: -1}}

	type frame struct {
		node    int
		cluster int
	}
	stack := []frame{{node: n + len(nodes) - 1, cluster: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := nodes[f.node-n]
		lambda := lambdaFor(node.dist)
		ls := nodeSize(nodes, n, node.left)
		rs := nodeSize(nodes, n, node.right)

		switch {
		case ls >= minClusterSize && rs >= minClusterSize:
			clusters[f.cluster].death = lambda
			li := len(clusters)
			clusters = append(clusters, condensedCluster{parent: f.cluster, birth: lambda})
			ri := len(clusters)
			clusters = append(clusters, condensedCluster{parent: f.cluster, birth: lambda})
			clusters[f.cluster].children = append(clusters[f.cluster].children, li, ri)
			stack = append(stack, frame{node.left, li}, frame{node.right, ri})
		case ls >= minClusterSize:
			dropLeaves(&clusters[f.cluster], nodes, n, node.right, lambda)
			stack = append(stack, frame{node.left, f.cluster})
		case rs >= minClusterSize:
			dropLeaves(&clusters[f.cluster], nodes, n, node.left, lambda)
			stack = append(stack, frame{node.right, f.cluster})
		default:
			dropLeaves(&clusters[f.cluster], nodes, n, node.left, lambda)
			dropLeaves(&clusters[f.cluster], nodes, n, node.right, lambda)
		}
	}

	// Children always carry higher indexes than their parents, so one reverse
	// pass computes sizes and stabilities bottom-up.
	for i := len(clusters) - 1; i >= 0; i-- {
		c := &clusters[i]
		c.totalPoints = len(c.points)
		passing := 0
		for _, ch := range c.children {
			c.totalPoints += clusters[ch].totalPoints
			passing += clusters[ch].totalPoints
		}
		for _, lam := range c.lambdas {
			c.stability += lam - c.birth
		}
		if passing > 0 {
			c.stability += (c.death - c.birth) * float64(passing)
		}
	}
	return clusters
}

func dropLeaves(c *condensedCluster, nodes []mergeNode, n, id int, lambda float64) {
	for _, p := range collectLeaves(nodes, n, id, nil) {
		c.points = append(c.points, p)
		c.lambdas = append(c.lambdas, lambda)
	}
}

// selectClusters applies excess-of-mass selection: a cluster survives when
// its stability exceeds the combined stability of its subtree, otherwise its
// descendants win.
func selectClusters(clusters []condensedCluster) []bool {
	selected := make([]bool, len(clusters))
	subtree := make([]float64, len(clusters))

	for i := len(clusters) - 1; i >= 0; i-- {
		c := clusters[i]
		if len(c.children) == 0 {
			selected[i] = true
			subtree[i] = c.stability
			continue
		}
		var childSum float64
		for _, ch := range c.children {
			childSum += subtree[ch]
		}
		if c.stability > childSum {
			selected[i] = true
			deselectDescendants(clusters, selected, i)
			subtree[i] = c.stability
		} else {
			subtree[i] = childSum
		}
	}
	return selected
}

func deselectDescendants(clusters []condensedCluster, selected []bool, root int) {
	stack := append([]int(nil), clusters[root].children...)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		selected[i] = false
		stack = append(stack, clusters[i].children...)
	}
}

// assignments maps every input point to the selected cluster owning it, or
// -1 for noise. A point belongs to the nearest selected ancestor of the
// condensed cluster it fell out of.
func assignments(clusters []condensedCluster, selected []bool, n int) []int {
	fellFrom := make([]int, n)
	for i := range fellFrom {
		fellFrom[i] = -1
	}
	for ci := range clusters {
		for _, p := range clusters[ci].points {
			fellFrom[p] = ci
		}
	}

	out := make([]int, n)
	for p := 0; p < n; p++ {
		out[p] = -1
		for ci := fellFrom[p]; ci != -1; ci = clusters[ci].parent {
			if selected[ci] {
				out[p] = ci
				break
			}
		}
	}
	return out
}
