package embed

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/atis-project/atis/internal/graph"
	"github.com/atis-project/atis/internal/models"
)

func testSnapshot(t *testing.T, rows [][]float64) *graph.Snapshot {
	t.Helper()
	ids := make([]string, len(rows))
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	var edges []graph.Edge
	for i := range rows {
		edges = append(edges, graph.Edge{Src: i, Dst: (i + 1) % len(rows)})
	}
	snap, err := graph.NewSnapshot(ids, rows, edges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return snap
}

func typicalRow() []float64 {
	row := make([]float64, models.FeatureCount)
	row[models.FeatEccentricity] = 0.22
	row[models.FeatSemiMajorAxis] = 1.45
	row[models.FeatInclination] = 10.8
	row[models.FeatLongitudeAscending] = 304.3
	row[models.FeatArgumentPerihelion] = 178.8
	row[models.FeatMeanAnomaly] = 320.1
	row[models.FeatPerihelionDist] = 1.13
	row[models.FeatAphelionDist] = 1.78
	row[models.FeatOrbitalPeriod] = 643.2
	row[models.FeatMeanMotion] = 0.56
	row[models.FeatAbsoluteMagnitude] = 10.4
	row[models.FeatDiameter] = 16.8
	row[models.FeatMOID] = 0.15
	return row
}

func TestModel_Embed_Shapes(t *testing.T) {
	m, err := NewModel(ModelConfig{Hidden: 16, Latent: 8}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := testSnapshot(t, [][]float64{typicalRow(), typicalRow(), typicalRow()})

	out, err := m.Embed(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r, c := out.Mu.Dims(); r != 3 || c != 8 {
		t.Errorf("mu dims = %dx%d, want 3x8", r, c)
	}
	if r, c := out.Sigma.Dims(); r != 3 || c != 8 {
		t.Errorf("sigma dims = %dx%d, want 3x8", r, c)
	}
	if len(out.HazardLogit) != 3 {
		t.Errorf("hazard logit length = %d, want 3", len(out.HazardLogit))
	}
}

func TestModel_Embed_SigmaNonNegative(t *testing.T) {
	m, err := NewModel(ModelConfig{Hidden: 16, Latent: 8}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Adversarial rows: all zeros, extreme magnitudes, mixed signs.
	extreme := make([]float64, models.FeatureCount)
	for j := range extreme {
		extreme[j] = 1e12
		if j%2 == 1 {
			extreme[j] = -1e12
		}
	}
	rows := [][]float64{
		typicalRow(),
		make([]float64, models.FeatureCount),
		extreme,
	}

	out, err := m.Embed(testSnapshot(t, rows))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, d := out.Sigma.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			s := out.Sigma.At(i, j)
			if s < 0 {
				t.Errorf("sigma[%d][%d] = %g, want >= 0", i, j, s)
			}
			if math.IsNaN(s) || math.IsInf(s, 0) {
				t.Errorf("sigma[%d][%d] = %g, want finite", i, j, s)
			}
			mu := out.Mu.At(i, j)
			if math.IsNaN(mu) || math.IsInf(mu, 0) {
				t.Errorf("mu[%d][%d] = %g, want finite", i, j, mu)
			}
		}
	}
	for i, v := range out.HazardLogit {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("hazard logit[%d] = %g, want finite", i, v)
		}
	}
}

func TestModel_Embed_Deterministic(t *testing.T) {
	snap := testSnapshot(t, [][]float64{typicalRow(), typicalRow()})

	m1, err := NewModel(DefaultModelConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m2, err := NewModel(DefaultModelConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out1, err := m1.Embed(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out2, err := m2.Embed(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !mat.Equal(out1.Mu, out2.Mu) {
		t.Error("default-initialized models should produce identical mu")
	}
	if !mat.Equal(out1.Sigma, out2.Sigma) {
		t.Error("default-initialized models should produce identical sigma")
	}
}

func TestModel_FallbackFlag(t *testing.T) {
	fallback, err := NewModel(DefaultModelConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fallback.Fallback() {
		t.Error("nil params should put model in fallback mode")
	}

	out, err := fallback.Embed(testSnapshot(t, [][]float64{typicalRow(), typicalRow()}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Fallback {
		t.Error("fallback flag should propagate to output")
	}

	trained, err := NewModel(ModelConfig{}, defaultParams(ModelConfig{Hidden: 8, Latent: 4}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trained.Fallback() {
		t.Error("explicit params should not set fallback mode")
	}
	if trained.LatentDim() != 4 {
		t.Errorf("latent dim should follow params, got %d", trained.LatentDim())
	}
}

func TestModel_Embed_WrongWidth(t *testing.T) {
	m, err := NewModel(ModelConfig{Hidden: 8, Latent: 4}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Bypass NewSnapshot to construct an invalid-width matrix directly.
	snap := &graph.Snapshot{
		IDs:      []string{"a"},
		Features: mat.NewDense(1, 3, []float64{1, 2, 3}),
	}
	if _, err := m.Embed(snap); err == nil {
		t.Error("expected shape error for wrong feature width")
	}
}

func TestToDense(t *testing.T) {
	m := toDense([][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})

	r, c := m.Dims()
	if r != 2 || c != 3 {
		t.Fatalf("dims = %dx%d, want 2x3", r, c)
	}
	want := [][]float64{{1, 2, 3}, {4, 5, 6}}
	for i := range want {
		for j := range want[i] {
			if got := m.At(i, j); got != want[i][j] {
				t.Errorf("at(%d,%d) = %f, want %f", i, j, got, want[i][j])
			}
		}
	}

	// The parameter weights must land in the model exactly as loaded.
	p := defaultParams(ModelConfig{Hidden: 8, Latent: 4})
	model, err := NewModel(ModelConfig{}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := model.inProj.At(2, 3); got != p.InProj[2][3] {
		t.Errorf("in_proj[2][3] = %g, want %g", got, p.InProj[2][3])
	}
	if got := model.muW.At(1, 1); got != p.MuW[1][1] {
		t.Errorf("mu_w[1][1] = %g, want %g", got, p.MuW[1][1])
	}
}

func TestOutput_Separation(t *testing.T) {
	out := &Output{Mu: mat.NewDense(4, 2, []float64{
		1, 0,
		1, 0,
		4, 4,
		4, 4,
	})}

	got := out.Separation([]bool{false, false, true, true})
	want := 5.0 // centroids (1,0) and (4,4)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("separation = %f, want %f", got, want)
	}

	if got := out.Separation([]bool{true, true, true, true}); got != 0 {
		t.Errorf("single-group separation should be 0, got %f", got)
	}
	if got := out.Separation([]bool{true}); got != 0 {
		t.Errorf("mismatched flag length should return 0, got %f", got)
	}
}
