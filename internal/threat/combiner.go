// Package threat fuses the graph embedding with physical proxies into one
// calibrated threat score per object.
package threat

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/atis-project/atis/internal/embed"
	"github.com/atis-project/atis/internal/graph"
	"github.com/atis-project/atis/internal/models"
)

const (
	// moidEpsilon guards the inverse-distance proxy against near-zero MOID.
	moidEpsilon = 1e-3

	// rangeEpsilon guards min-max normalization against degenerate ranges.
	rangeEpsilon = 1e-8
)

// CombinerConfig holds the fusion weights. Empirically chosen in the original
// system; preserved as named constants, overridable, never re-derived.
type CombinerConfig struct {
	// LatentWeight scales the L2 norm of mu (0.0-1.0)
	LatentWeight float64

	// UncertaintyWeight scales the mean of sigma (0.0-1.0)
	UncertaintyWeight float64

	// ProximityWeight scales the inverse-MOID proxy (0.0-1.0)
	ProximityWeight float64

	// SizeWeight scales the brightness-derived size proxy (0.0-1.0)
	SizeWeight float64
}

// DefaultCombinerConfig returns the original fusion weights.
// Latent 35%, uncertainty 25%, proximity 25%, size 15%.
func DefaultCombinerConfig() CombinerConfig {
	return CombinerConfig{
		LatentWeight:      0.35,
		UncertaintyWeight: 0.25,
		ProximityWeight:   0.25,
		SizeWeight:        0.15,
	}
}

// Combiner computes threat scores from embedding output and physical columns.
type Combiner struct {
	config CombinerConfig
}

// NewCombiner creates a combiner, normalizing weights so they sum to 1.
func NewCombiner(config CombinerConfig) *Combiner {
	total := config.LatentWeight + config.UncertaintyWeight +
		config.ProximityWeight + config.SizeWeight
	if total > 0 && total != 1.0 {
		config.LatentWeight /= total
		config.UncertaintyWeight /= total
		config.ProximityWeight /= total
		config.SizeWeight /= total
	}
	return &Combiner{config: config}
}

// Scores computes the per-object threat breakdown for the whole node set.
//
// Each component is min-max normalized across the node set, combined with
// the configured weights, then the combined vector is min-max re-normalized
// so the top-ranked object reaches 1.0. A plain weighted sum of normalized
// components regresses toward the mean and compresses the top of the
// distribution, which would blunt exactly the scores operators care about.
//
// The proximity proxy reads the physical MOID column from the snapshot, not
// a standardized one; inverse distance only means anything in AU.
func (c *Combiner) Scores(out *embed.Output, snap *graph.Snapshot) ([]models.ThreatBreakdown, error) {
	n := snap.Len()
	muN, _ := out.Mu.Dims()
	if muN != n {
		return nil, fmt.Errorf("%w: embedding for %d nodes, snapshot has %d",
			graph.ErrShape, muN, n)
	}

	latent := make([]float64, n)
	uncertainty := make([]float64, n)
	proximity := make([]float64, n)
	size := make([]float64, n)

	_, d := out.Mu.Dims()
	for i := 0; i < n; i++ {
		var norm2, sigSum float64
		for j := 0; j < d; j++ {
			v := out.Mu.At(i, j)
			norm2 += v * v
			sigSum += out.Sigma.At(i, j)
		}
		latent[i] = math.Sqrt(norm2)
		uncertainty[i] = sigSum / float64(d)

		moid := snap.Features.At(i, models.FeatMOID)
		proximity[i] = 1.0 / (math.Abs(moid) + moidEpsilon)

		size[i] = -snap.Features.At(i, models.FeatAbsoluteMagnitude)
	}

	minMaxNormalize(latent)
	minMaxNormalize(uncertainty)
	minMaxNormalize(proximity)
	minMaxNormalize(size)

	combined := make([]float64, n)
	for i := 0; i < n; i++ {
		combined[i] = c.config.LatentWeight*latent[i] +
			c.config.UncertaintyWeight*uncertainty[i] +
			c.config.ProximityWeight*proximity[i] +
			c.config.SizeWeight*size[i]
	}
	minMaxNormalize(combined)

	scores := make([]models.ThreatBreakdown, n)
	for i := 0; i < n; i++ {
		scores[i] = models.ThreatBreakdown{
			ObjectID:    snap.IDs[i],
			Combined:    combined[i],
			LatentRisk:  latent[i],
			Uncertainty: uncertainty[i],
			Proximity:   proximity[i],
			SizeProxy:   size[i],
		}
	}
	return scores, nil
}

// Score computes the combined threat score for a single node index.
func (c *Combiner) Score(out *embed.Output, snap *graph.Snapshot, idx int) (models.ThreatBreakdown, error) {
	if idx < 0 || idx >= snap.Len() {
		return models.ThreatBreakdown{}, fmt.Errorf("%w: index %d of %d",
			graph.ErrNotFound, idx, snap.Len())
	}
	scores, err := c.Scores(out, snap)
	if err != nil {
		return models.ThreatBreakdown{}, err
	}
	return scores[idx], nil
}

// minMaxNormalize maps v into [0, 1] in place. A degenerate vector
// (max == min) maps to all zeros instead of dividing by zero.
func minMaxNormalize(v []float64) {
	if len(v) == 0 {
		return
	}
	lo := floats.Min(v)
	hi := floats.Max(v)
	span := hi - lo + rangeEpsilon
	for i := range v {
		v[i] = (v[i] - lo) / span
	}
}
