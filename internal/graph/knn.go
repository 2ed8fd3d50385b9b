package graph

import (
	"sort"

	"github.com/coder/hnsw"
	"gonum.org/v1/gonum/mat"
)

// bruteForceCutoff is the node count below which exhaustive search beats the
// HNSW build cost.
const bruteForceCutoff = 512

// KNNConfig holds parameters for similarity-graph construction.
type KNNConfig struct {
	// K is the number of nearest neighbors per node. Default: 5.
	K int

	// M is the maximum HNSW neighbor count per node. Default: 16.
	M int

	// EfSearch is the HNSW search candidate pool. Default: 100.
	EfSearch int
}

func (c KNNConfig) withDefaults() KNNConfig {
	if c.K <= 0 {
		c.K = 5
	}
	if c.M == 0 {
		c.M = 16
	}
	if c.EfSearch == 0 {
		c.EfSearch = 100
	}
	return c
}

// BuildKNN derives the directed KNN edge list over the standardized feature
// matrix using euclidean distance. No self-loops; edges are not symmetrized.
// Small populations use exhaustive search, larger ones an HNSW graph.
func BuildKNN(std *mat.Dense, cfg KNNConfig) []Edge {
	cfg = cfg.withDefaults()
	n, _ := std.Dims()
	if n < 2 {
		return nil
	}
	k := cfg.K
	if k > n-1 {
		k = n - 1
	}

	if n <= bruteForceCutoff {
		return bruteForceKNN(std, k)
	}
	return hnswKNN(std, k, cfg)
}

func bruteForceKNN(std *mat.Dense, k int) []Edge {
	n, f := std.Dims()

	type cand struct {
		idx  int
		dist float64
	}

	edges := make([]Edge, 0, n*k)
	cands := make([]cand, 0, n-1)
	for i := 0; i < n; i++ {
		cands = cands[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			var d2 float64
			for c := 0; c < f; c++ {
				d := std.At(i, c) - std.At(j, c)
				d2 += d * d
			}
			cands = append(cands, cand{idx: j, dist: d2})
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].dist != cands[b].dist {
				return cands[a].dist < cands[b].dist
			}
			return cands[a].idx < cands[b].idx
		})
		for _, c := range cands[:k] {
			edges = append(edges, Edge{Src: i, Dst: c.idx})
		}
	}
	return edges
}

func hnswKNN(std *mat.Dense, k int, cfg KNNConfig) []Edge {
	n, f := std.Dims()

	g := hnsw.NewGraph[int]()
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Distance = hnsw.EuclideanDistance

	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, f)
		for j := 0; j < f; j++ {
			v[j] = float32(std.At(i, j))
		}
		vecs[i] = v
		g.Add(hnsw.MakeNode(i, v))
	}

	edges := make([]Edge, 0, n*k)
	for i := 0; i < n; i++ {
		// Query with k+1: the node itself comes back as its own nearest
		// neighbor and is skipped.
		nodes := g.Search(vecs[i], k+1)
		added := 0
		for _, nd := range nodes {
			if nd.Key == i || added == k {
				continue
			}
			edges = append(edges, Edge{Src: i, Dst: nd.Key})
			added++
		}
	}
	return edges
}
