package anomaly

import (
	"math"
	"math/rand"
)

// isoForest is an isolation forest: an ensemble of random partition trees
// whose average path length scores how easily a point is isolated from the
// training population. Immutable after build.
type isoForest struct {
	trees      []*isoNode
	sampleSize int
}

type isoNode struct {
	// Internal nodes split on feature < split
	feature int
	split   float64
	left    *isoNode
	right   *isoNode

	// External nodes record the remaining subset size
	size int
}

func (n *isoNode) external() bool { return n.left == nil }

// buildForest trains numTrees trees on random subsamples of the rows.
// Deterministic for a given rng seed.
func buildForest(rows [][]float64, numTrees, sampleSize int, rng *rand.Rand) *isoForest {
	if len(rows) == 0 || numTrees <= 0 {
		return nil
	}
	if sampleSize <= 0 || sampleSize > len(rows) {
		sampleSize = len(rows)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize))))
	if heightLimit < 1 {
		heightLimit = 1
	}

	f := &isoForest{trees: make([]*isoNode, numTrees), sampleSize: sampleSize}
	sample := make([][]float64, sampleSize)
	for t := 0; t < numTrees; t++ {
		perm := rng.Perm(len(rows))
		for i := 0; i < sampleSize; i++ {
			sample[i] = rows[perm[i]]
		}
		f.trees[t] = buildTree(sample, 0, heightLimit, rng)
	}
	return f
}

func buildTree(rows [][]float64, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(rows) <= 1 {
		return &isoNode{size: len(rows)}
	}

	// Candidate features are those with spread in this subset.
	width := len(rows[0])
	type span struct{ lo, hi float64 }
	spans := make([]span, width)
	var candidates []int
	for j := 0; j < width; j++ {
		lo, hi := rows[0][j], rows[0][j]
		for _, r := range rows[1:] {
			if r[j] < lo {
				lo = r[j]
			}
			if r[j] > hi {
				hi = r[j]
			}
		}
		spans[j] = span{lo, hi}
		if hi > lo {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &isoNode{size: len(rows)}
	}

	feature := candidates[rng.Intn(len(candidates))]
	sp := spans[feature]
	split := sp.lo + rng.Float64()*(sp.hi-sp.lo)

	var left, right [][]float64
	for _, r := range rows {
		if r[feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{size: len(rows)}
	}

	return &isoNode{
		feature: feature,
		split:   split,
		left:    buildTree(left, depth+1, limit, rng),
		right:   buildTree(right, depth+1, limit, rng),
	}
}

// score returns the isolation score s(x) = 2^(-E[h(x)] / c(sampleSize)),
// in (0, 1]: ~0.5 for average points, approaching 1 for easily isolated
// outliers.
func (f *isoForest) score(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0.5
	}
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, x, 0)
	}
	avg := total / float64(len(f.trees))
	return math.Pow(2, -avg/avgPathLength(f.sampleSize))
}

func pathLength(n *isoNode, x []float64, depth float64) float64 {
	if n.external() {
		return depth + avgPathLength(n.size)
	}
	if x[n.feature] < n.split {
		return pathLength(n.left, x, depth+1)
	}
	return pathLength(n.right, x, depth+1)
}

// avgPathLength is c(n), the average path length of an unsuccessful BST
// search over n points; normalizes tree depths.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	nf := float64(n)
	h := math.Log(nf-1) + 0.5772156649 // harmonic number approximation
	return 2*h - 2*(nf-1)/nf
}
