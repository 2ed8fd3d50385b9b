package explain

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/atis-project/atis/internal/embed"
	"github.com/atis-project/atis/internal/graph"
	"github.com/atis-project/atis/internal/models"
	"github.com/atis-project/atis/internal/threat"
)

func testSnapshot(t *testing.T) *graph.Snapshot {
	t.Helper()

	row := func(e, q, h, moid float64) []float64 {
		f := make([]float64, models.FeatureCount)
		f[models.FeatEccentricity] = e
		f[models.FeatSemiMajorAxis] = 1.4
		f[models.FeatInclination] = 10
		f[models.FeatPerihelionDist] = q
		f[models.FeatAphelionDist] = 2.0
		f[models.FeatOrbitalPeriod] = 600
		f[models.FeatMeanMotion] = 0.6
		f[models.FeatAbsoluteMagnitude] = h
		f[models.FeatDiameter] = 0.3
		f[models.FeatMOID] = moid
		return f
	}

	snap, err := graph.NewSnapshot(
		[]string{"n1", "n2", "n3", "n4", "n5"},
		[][]float64{
			row(0.6, 0.05, 17, 0.01),
			row(0.2, 0.9, 22, 0.3),
			row(0.3, 0.8, 21, 0.2),
			row(0.25, 1.0, 24, 0.5),
			row(0.15, 1.1, 26, 0.8),
		},
		[]graph.Edge{{Src: 0, Dst: 1}, {Src: 1, Dst: 2}, {Src: 2, Dst: 0}, {Src: 3, Dst: 4}, {Src: 4, Dst: 3}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return snap
}

func fastConfig() ExplainerConfig {
	return ExplainerConfig{Samples: 3, Seed: 42, GradientStep: 1e-4}
}

func newTestExplainer(t *testing.T) *Explainer {
	t.Helper()
	model, err := embed.NewModel(embed.ModelConfig{Hidden: 16, Latent: 8}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	combiner := threat.NewCombiner(threat.DefaultCombinerConfig())
	return NewExplainer(model, combiner, fastConfig())
}

func TestExplainer_Explain(t *testing.T) {
	e := newTestExplainer(t)
	snap := testSnapshot(t)

	exp, err := e.Explain(snap, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exp.ObjectID != "n1" {
		t.Errorf("object id = %q, want n1", exp.ObjectID)
	}
	if exp.Prediction < 0 || exp.Prediction > 1 {
		t.Errorf("prediction = %f outside [0, 1]", exp.Prediction)
	}
	if len(exp.FeatureImportance) != models.FeatureCount {
		t.Errorf("importance has %d entries, want %d", len(exp.FeatureImportance), models.FeatureCount)
	}
	if len(exp.PerturbationValues) != models.FeatureCount {
		t.Errorf("perturbation values have %d entries, want %d", len(exp.PerturbationValues), models.FeatureCount)
	}
	if len(exp.TopFeatures) != 5 {
		t.Errorf("top features = %d, want 5", len(exp.TopFeatures))
	}
	if exp.ExplanationText == "" {
		t.Error("expected a narrative")
	}
	if !exp.FallbackModel {
		t.Error("default-initialized model should set fallback flag")
	}

	var sum float64
	for _, v := range exp.FeatureImportance {
		if v < 0 {
			t.Errorf("importance %f should be non-negative", v)
		}
		sum += v
	}
	if math.Abs(sum-100) > 1e-6 {
		t.Errorf("importance sum = %f, want 100", sum)
	}

	// Top features come back sorted, best first
	for i := 1; i < len(exp.TopFeatures); i++ {
		if exp.TopFeatures[i].Importance > exp.TopFeatures[i-1].Importance {
			t.Errorf("top features not sorted at %d: %f > %f",
				i, exp.TopFeatures[i].Importance, exp.TopFeatures[i-1].Importance)
		}
	}

	wantConf := 2 * math.Abs(exp.Prediction-0.5)
	if wantConf > 1 {
		wantConf = 1
	}
	if math.Abs(exp.Confidence-wantConf) > 1e-9 {
		t.Errorf("confidence = %f, want %f", exp.Confidence, wantConf)
	}
}

func TestExplainer_Explain_Idempotent(t *testing.T) {
	e := newTestExplainer(t)
	snap := testSnapshot(t)

	a, err := e.Explain(snap, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := e.Explain(snap, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Error("repeated calls with identical input should produce identical explanations")
	}
}

func TestExplainer_Explain_DoesNotMutateSnapshot(t *testing.T) {
	e := newTestExplainer(t)
	snap := testSnapshot(t)

	before := snap.Clone()
	if _, err := e.Explain(snap, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < snap.Len(); i++ {
		for j := 0; j < models.FeatureCount; j++ {
			if snap.Features.At(i, j) != before.Features.At(i, j) {
				t.Fatalf("snapshot mutated at [%d][%d]", i, j)
			}
		}
	}
}

func TestExplainer_Explain_NotFound(t *testing.T) {
	e := newTestExplainer(t)
	snap := testSnapshot(t)

	if _, err := e.Explain(snap, 99); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.Explain(snap, -1); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExplainer_Explain_VanishingGradients(t *testing.T) {
	// An all-zero parameter set collapses mu to zero everywhere, so every
	// gradient vanishes and importances stay unnormalized zeros.
	zeroMat := func(r, c int) [][]float64 {
		m := make([][]float64, r)
		for i := range m {
			m[i] = make([]float64, c)
		}
		return m
	}
	p := &embed.Params{
		Hidden: 4,
		Latent: 3,
		InProj: zeroMat(models.FeatureCount, 4),
		InBias: make([]float64, 4),
		Attn1W: zeroMat(4, 4),
		Norm1G: make([]float64, 4),
		Norm1B: make([]float64, 4),
		Attn2W: zeroMat(4, 3),
		Norm2G: make([]float64, 3),
		Norm2B: make([]float64, 3),
		MuW:    zeroMat(3, 3),
		MuB:    make([]float64, 3),
		SigmaW: zeroMat(3, 3),
		SigmaB: make([]float64, 3),
		LogitW: make([]float64, 3),
	}
	model, err := embed.NewModel(embed.ModelConfig{}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := NewExplainer(model, threat.NewCombiner(threat.DefaultCombinerConfig()), fastConfig())

	exp, err := e.Explain(testSnapshot(t), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for name, v := range exp.FeatureImportance {
		if v != 0 {
			t.Errorf("importance[%s] = %f, want 0 for vanishing gradients", name, v)
		}
	}
	if exp.FallbackModel {
		t.Error("explicit params should not set fallback flag")
	}
}

func TestPredictionLabel(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{p: 0.9, want: "High Threat"},
		{p: 0.5, want: "Medium Threat"},
		{p: 0.1, want: "Low Threat"},
	}
	for _, tt := range tests {
		if got := predictionLabel(tt.p); got != tt.want {
			t.Errorf("predictionLabel(%f) = %q, want %q", tt.p, got, tt.want)
		}
	}
}
