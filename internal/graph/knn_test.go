package graph

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/atis-project/atis/internal/models"
)

// lineMatrix places n nodes at positions 0, 1, 2, ... along the first
// feature axis, so nearest neighbors are the adjacent indices.
func lineMatrix(n int) *mat.Dense {
	m := mat.NewDense(n, models.FeatureCount, nil)
	for i := 0; i < n; i++ {
		m.Set(i, 0, float64(i))
	}
	return m
}

func TestBuildKNN_NearestOnLine(t *testing.T) {
	edges := BuildKNN(lineMatrix(5), KNNConfig{K: 2})

	neighbors := make(map[int]map[int]bool)
	for _, e := range edges {
		if e.Src == e.Dst {
			t.Errorf("self loop on node %d", e.Src)
		}
		if neighbors[e.Src] == nil {
			neighbors[e.Src] = make(map[int]bool)
		}
		neighbors[e.Src][e.Dst] = true
	}

	for i := 0; i < 5; i++ {
		if len(neighbors[i]) != 2 {
			t.Errorf("node %d has %d neighbors, want 2", i, len(neighbors[i]))
		}
	}

	// Node 2's nearest two are 1 and 3
	if !neighbors[2][1] || !neighbors[2][3] {
		t.Errorf("node 2 neighbors = %v, want {1, 3}", neighbors[2])
	}
	// Node 0's nearest two are 1 and 2
	if !neighbors[0][1] || !neighbors[0][2] {
		t.Errorf("node 0 neighbors = %v, want {1, 2}", neighbors[0])
	}
}

func TestBuildKNN_KCappedAtPopulation(t *testing.T) {
	edges := BuildKNN(lineMatrix(3), KNNConfig{K: 10})

	// k caps at n-1, so 3 nodes x 2 neighbors
	if len(edges) != 6 {
		t.Errorf("expected 6 edges, got %d", len(edges))
	}
}

func TestBuildKNN_TinyPopulations(t *testing.T) {
	if edges := BuildKNN(lineMatrix(1), KNNConfig{}); edges != nil {
		t.Errorf("single node should produce no edges, got %v", edges)
	}

	edges := BuildKNN(lineMatrix(2), KNNConfig{})
	if len(edges) != 2 {
		t.Errorf("two nodes should produce 2 edges, got %d", len(edges))
	}
}

func TestBuildKNN_Deterministic(t *testing.T) {
	a := BuildKNN(lineMatrix(20), KNNConfig{K: 3})
	b := BuildKNN(lineMatrix(20), KNNConfig{K: 3})

	if len(a) != len(b) {
		t.Fatalf("edge counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("edge %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}
