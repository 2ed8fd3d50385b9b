// Package graph holds the per-cycle similarity-graph snapshot consumed by the
// ATIS core: the feature matrix for the tracked population plus the directed
// k-nearest-neighbor edge list over it.
package graph

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/atis-project/atis/internal/models"
)

// ErrShape reports a feature matrix whose dimensions violate the input
// contract (wrong width, empty node set, out-of-range edge endpoint).
var ErrShape = errors.New("invalid input shape")

// ErrNotFound reports an object index or ID that is not in the snapshot.
var ErrNotFound = errors.New("object not found")

// Edge is a directed nearest-neighbor relation: Dst is among Src's nearest
// neighbors in feature space. Edges are not necessarily symmetric.
type Edge struct {
	Src int `json:"src"`
	Dst int `json:"dst"`
}

// Snapshot is an immutable per-cycle view of the tracked population.
// Construct with NewSnapshot; treat as read-only afterwards.
type Snapshot struct {
	// IDs[i] identifies node i (SPK-ID or equivalent)
	IDs []string

	// Features is the N x F matrix of physical feature values,
	// column order per models.Feat* indices
	Features *mat.Dense

	// Edges is the directed KNN edge list
	Edges []Edge
}

// NewSnapshot validates and assembles a snapshot. Rows must all have width
// models.FeatureCount; NaN and Inf values are rejected rather than sanitized
// so bad preprocessing fails loudly at the boundary.
func NewSnapshot(ids []string, features [][]float64, edges []Edge) (*Snapshot, error) {
	n := len(features)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty node set", ErrShape)
	}
	if len(ids) != n {
		return nil, fmt.Errorf("%w: %d ids for %d feature rows", ErrShape, len(ids), n)
	}

	m := mat.NewDense(n, models.FeatureCount, nil)
	for i, row := range features {
		if len(row) != models.FeatureCount {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d",
				ErrShape, i, len(row), models.FeatureCount)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite value at row %d column %s",
					ErrShape, i, models.FeatureName(j))
			}
			m.Set(i, j, v)
		}
	}

	for _, e := range edges {
		if e.Src < 0 || e.Src >= n || e.Dst < 0 || e.Dst >= n {
			return nil, fmt.Errorf("%w: edge %d->%d outside node range [0,%d)",
				ErrShape, e.Src, e.Dst, n)
		}
	}

	return &Snapshot{IDs: ids, Features: m, Edges: edges}, nil
}

// Len returns the node count N.
func (s *Snapshot) Len() int {
	n, _ := s.Features.Dims()
	return n
}

// Row returns a copy of node i's feature vector.
func (s *Snapshot) Row(i int) ([]float64, error) {
	if i < 0 || i >= s.Len() {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNotFound, i, s.Len())
	}
	row := make([]float64, models.FeatureCount)
	mat.Row(row, i, s.Features)
	return row, nil
}

// Index returns the node index for an object ID.
func (s *Snapshot) Index(id string) (int, error) {
	for i, v := range s.IDs {
		if v == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: id %q", ErrNotFound, id)
}

// Clone returns a deep copy. Used by routines that perturb single cells and
// must not mutate the shared per-cycle snapshot.
func (s *Snapshot) Clone() *Snapshot {
	ids := make([]string, len(s.IDs))
	copy(ids, s.IDs)
	edges := make([]Edge, len(s.Edges))
	copy(edges, s.Edges)
	var m mat.Dense
	m.CloneFrom(s.Features)
	return &Snapshot{IDs: ids, Features: &m, Edges: edges}
}

// Standardized returns a z-scaled copy of the feature matrix (per-column
// mean 0, std 1). Zero-variance columns map to all zeros. Graph distance is
// computed on this form; the threat combiner always reads the physical
// columns from Features directly.
func (s *Snapshot) Standardized() *mat.Dense {
	n, f := s.Features.Dims()
	out := mat.NewDense(n, f, nil)
	col := make([]float64, n)
	for j := 0; j < f; j++ {
		mat.Col(col, j, s.Features)
		var mean float64
		for _, v := range col {
			mean += v
		}
		mean /= float64(n)
		var variance float64
		for _, v := range col {
			d := v - mean
			variance += d * d
		}
		std := math.Sqrt(variance / float64(n))
		for i, v := range col {
			if std > 0 {
				out.Set(i, j, (v-mean)/std)
			} else {
				out.Set(i, j, 0)
			}
		}
	}
	return out
}
