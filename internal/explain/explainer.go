// Package explain attributes a threat prediction to the input features of
// one object, combining gradient-based sensitivity with perturbation-based
// (SHAP-style) attribution, and renders a templated narrative.
package explain

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/atis-project/atis/internal/embed"
	"github.com/atis-project/atis/internal/graph"
	"github.com/atis-project/atis/internal/models"
	"github.com/atis-project/atis/internal/threat"
)

// maxSamples bounds the perturbation repetition count so per-request latency
// stays predictable regardless of configuration.
const maxSamples = 200

// ExplainerConfig configures attribution.
type ExplainerConfig struct {
	// Samples is the perturbation repetition count per feature. More
	// repetitions reduce variance and cost proportionally more
	// recomputation. Default 25, hard cap 200.
	Samples int

	// Seed fixes the donor-row sampling. Default 42.
	Seed int64

	// GradientStep is the central-difference step size. Default 1e-4.
	GradientStep float64
}

// DefaultExplainerConfig returns the default attribution parameters.
func DefaultExplainerConfig() ExplainerConfig {
	return ExplainerConfig{Samples: 25, Seed: 42, GradientStep: 1e-4}
}

func (c ExplainerConfig) withDefaults() ExplainerConfig {
	if c.Samples <= 0 {
		c.Samples = 25
	}
	if c.Samples > maxSamples {
		c.Samples = maxSamples
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.GradientStep <= 0 {
		c.GradientStep = 1e-4
	}
	return c
}

// Explainer explains predictions of one model/combiner pair. Stateless across
// calls; identical inputs yield identical explanations (the sampling RNG is
// re-seeded per call).
type Explainer struct {
	model    *embed.Model
	combiner *threat.Combiner
	config   ExplainerConfig
}

// NewExplainer creates an explainer over the given model and combiner.
func NewExplainer(model *embed.Model, combiner *threat.Combiner, config ExplainerConfig) *Explainer {
	return &Explainer{model: model, combiner: combiner, config: config.withDefaults()}
}

// Explain attributes the threat score of the node at idx.
func (e *Explainer) Explain(snap *graph.Snapshot, idx int) (models.Explanation, error) {
	if idx < 0 || idx >= snap.Len() {
		return models.Explanation{}, fmt.Errorf("%w: index %d of %d",
			graph.ErrNotFound, idx, snap.Len())
	}

	out, err := e.model.Embed(snap)
	if err != nil {
		return models.Explanation{}, err
	}
	scores, err := e.combiner.Scores(out, snap)
	if err != nil {
		return models.Explanation{}, err
	}
	prediction := scores[idx].Combined

	importance := e.gradientImportance(snap, idx)
	perturbation, err := e.perturbationValues(snap, idx, prediction)
	if err != nil {
		return models.Explanation{}, err
	}

	top := topFeatures(importance, 5)

	return models.Explanation{
		ObjectID:           snap.IDs[idx],
		Prediction:         prediction,
		PredictionLabel:    predictionLabel(prediction),
		Confidence:         confidence(prediction),
		FeatureImportance:  importance,
		PerturbationValues: perturbation,
		TopFeatures:        top,
		ExplanationText:    narrative(prediction, top, perturbation),
		FallbackModel:      e.model.Fallback(),
	}, nil
}

// gradientImportance computes |d(mu-norm)/d(feature)| for the target node by
// central finite differences, normalized to percentages summing to 100.
// When every gradient vanishes the raw zeros are returned unnormalized.
func (e *Explainer) gradientImportance(snap *graph.Snapshot, idx int) map[string]float64 {
	h := e.config.GradientStep
	work := snap.Clone()

	raw := make([]float64, models.FeatureCount)
	for j := 0; j < models.FeatureCount; j++ {
		orig := work.Features.At(idx, j)

		work.Features.Set(idx, j, orig+h)
		up := e.muNorm(work, idx)

		work.Features.Set(idx, j, orig-h)
		down := e.muNorm(work, idx)

		work.Features.Set(idx, j, orig)
		raw[j] = math.Abs((up - down) / (2 * h))
	}

	var total float64
	for _, v := range raw {
		total += v
	}

	out := make(map[string]float64, models.FeatureCount)
	for j, v := range raw {
		if total > 0 {
			v = v / total * 100
		}
		out[models.FeatureName(j)] = v
	}
	return out
}

// muNorm runs the model and returns the L2 norm of the target node's mu,
// the scalar risk summary gradients are taken against.
func (e *Explainer) muNorm(snap *graph.Snapshot, idx int) float64 {
	out, err := e.model.Embed(snap)
	if err != nil {
		return 0
	}
	_, d := out.Mu.Dims()
	var norm2 float64
	for j := 0; j < d; j++ {
		v := out.Mu.At(idx, j)
		norm2 += v * v
	}
	return math.Sqrt(norm2)
}

// perturbationValues estimates each feature's marginal contribution: replace
// the target's value with another node's value sampled at random, recompute
// the threat score, and average (baseline - perturbed) over the configured
// repetitions. Positive values mean the feature pushes the score up at its
// actual value.
func (e *Explainer) perturbationValues(snap *graph.Snapshot, idx int, baseline float64) (map[string]float64, error) {
	rng := rand.New(rand.NewSource(e.config.Seed))
	work := snap.Clone()
	n := snap.Len()

	out := make(map[string]float64, models.FeatureCount)
	for j := 0; j < models.FeatureCount; j++ {
		orig := work.Features.At(idx, j)

		var total float64
		for rep := 0; rep < e.config.Samples; rep++ {
			donor := rng.Intn(n)
			work.Features.Set(idx, j, snap.Features.At(donor, j))

			emb, err := e.model.Embed(work)
			if err != nil {
				return nil, err
			}
			scores, err := e.combiner.Scores(emb, work)
			if err != nil {
				return nil, err
			}
			total += baseline - scores[idx].Combined
		}
		work.Features.Set(idx, j, orig)
		out[models.FeatureName(j)] = total / float64(e.config.Samples)
	}
	return out, nil
}

func topFeatures(importance map[string]float64, k int) []models.FeatureImportance {
	all := make([]models.FeatureImportance, 0, len(importance))
	for name, v := range importance {
		all = append(all, models.FeatureImportance{Feature: name, Importance: v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Importance != all[j].Importance {
			return all[i].Importance > all[j].Importance
		}
		return all[i].Feature < all[j].Feature
	})
	if k > len(all) {
		k = len(all)
	}
	return all[:k]
}

func predictionLabel(p float64) string {
	switch {
	case p > 0.7:
		return "High Threat"
	case p > 0.4:
		return "Medium Threat"
	default:
		return "Low Threat"
	}
}

// confidence is the decisiveness heuristic: distance from the indecision
// midpoint, doubled and clipped to [0, 1].
func confidence(p float64) float64 {
	c := 2 * math.Abs(p-0.5)
	if c > 1 {
		c = 1
	}
	return c
}

func narrative(prediction float64, top []models.FeatureImportance, shap map[string]float64) string {
	var b strings.Builder

	tier := "low"
	switch {
	case prediction > 0.7:
		tier = "high"
	case prediction > 0.4:
		tier = "medium"
	}
	fmt.Fprintf(&b, "This asteroid has a %s threat score of %.1f%%. ", tier, prediction*100)

	type fv struct {
		name  string
		value float64
	}
	var positive, negative []fv
	for name, v := range shap {
		switch {
		case v > 0:
			positive = append(positive, fv{name, v})
		case v < 0:
			negative = append(negative, fv{name, v})
		}
	}
	sort.Slice(positive, func(i, j int) bool {
		if positive[i].value != positive[j].value {
			return positive[i].value > positive[j].value
		}
		return positive[i].name < positive[j].name
	})
	sort.Slice(negative, func(i, j int) bool {
		if negative[i].value != negative[j].value {
			return negative[i].value < negative[j].value
		}
		return negative[i].name < negative[j].name
	})

	if len(positive) > 0 {
		if len(positive) > 3 {
			positive = positive[:3]
		}
		names := make([]string, len(positive))
		for i, f := range positive {
			names[i] = readable(f.name)
		}
		fmt.Fprintf(&b, "The threat score is primarily driven by: %s. ", strings.Join(names, ", "))
	}
	if len(negative) > 0 {
		if len(negative) > 2 {
			negative = negative[:2]
		}
		names := make([]string, len(negative))
		for i, f := range negative {
			names[i] = readable(f.name)
		}
		fmt.Fprintf(&b, "Factors reducing the threat include: %s. ", strings.Join(names, ", "))
	}

	if len(top) > 0 {
		fmt.Fprintf(&b, "The most influential factor is %s (%.1f%% of prediction influence).",
			readable(top[0].Feature), top[0].Importance)
	}

	return b.String()
}

func readable(feature string) string {
	return strings.ReplaceAll(feature, "_", " ")
}
