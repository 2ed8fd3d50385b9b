// Package ensemble cross-checks the embedding-based threat score against
// independent heuristic scorers and reports how much they agree.
package ensemble

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/atis-project/atis/internal/graph"
	"github.com/atis-project/atis/internal/models"
)

// Sub-model names used in prediction breakdowns.
const (
	ModelGraph       = "graph"
	ModelProximity   = "proximity_rules"
	ModelInteraction = "interaction"
	ModelHazardScale = "hazard_scale"
)

// outlierThreshold is the sub-model vs ensemble difference that marks a
// sub-model as an outlier.
const outlierThreshold = 0.2

// PredictorConfig holds the fixed sub-model weights. Must sum to 1; the
// constructor normalizes if they don't.
type PredictorConfig struct {
	// GraphWeight is the weight of the embedding-based score. Default 0.50.
	GraphWeight float64

	// ProximityWeight is the weight of the banded proximity rules. Default 0.20.
	ProximityWeight float64

	// InteractionWeight is the weight of the boosted-interaction score. Default 0.20.
	InteractionWeight float64

	// HazardScaleWeight is the weight of the impact-scale score. Default 0.10.
	HazardScaleWeight float64
}

// DefaultPredictorConfig returns the original ensemble weights.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		GraphWeight:       0.50,
		ProximityWeight:   0.20,
		InteractionWeight: 0.20,
		HazardScaleWeight: 0.10,
	}
}

// Predictor combines four independent scores for one object.
type Predictor struct {
	config PredictorConfig
}

// NewPredictor creates a predictor, normalizing weights to sum 1.
func NewPredictor(config PredictorConfig) *Predictor {
	total := config.GraphWeight + config.ProximityWeight +
		config.InteractionWeight + config.HazardScaleWeight
	if total > 0 && total != 1.0 {
		config.GraphWeight /= total
		config.ProximityWeight /= total
		config.InteractionWeight /= total
		config.HazardScaleWeight /= total
	}
	return &Predictor{config: config}
}

// Weights returns the normalized sub-model weights keyed by name.
func (p *Predictor) Weights() map[string]float64 {
	return map[string]float64{
		ModelGraph:       p.config.GraphWeight,
		ModelProximity:   p.config.ProximityWeight,
		ModelInteraction: p.config.InteractionWeight,
		ModelHazardScale: p.config.HazardScaleWeight,
	}
}

// Predict scores one object. features is the physical feature vector
// (models.Feat* order), graphScore the embedding-based threat score for the
// same object.
func (p *Predictor) Predict(features []float64, graphScore float64) (models.EnsemblePrediction, error) {
	if len(features) != models.FeatureCount {
		return models.EnsemblePrediction{}, fmt.Errorf("%w: feature width %d, want %d",
			graph.ErrShape, len(features), models.FeatureCount)
	}

	scores := map[string]float64{
		ModelGraph:       clip01(graphScore),
		ModelProximity:   proximityRuleScore(features),
		ModelInteraction: interactionScore(features),
		ModelHazardScale: hazardScaleScore(features),
	}
	return p.combine(scores), nil
}

// combine fuses the four sub-scores into the final prediction record.
func (p *Predictor) combine(scores map[string]float64) models.EnsemblePrediction {
	weights := p.Weights()
	var ensembleScore float64
	for name, s := range scores {
		ensembleScore += s * weights[name]
	}

	vals := []float64{
		scores[ModelGraph],
		scores[ModelProximity],
		scores[ModelInteraction],
		scores[ModelHazardScale],
	}
	agreement := clip01(1.0 - stat.PopStdDev(vals, nil))

	decisiveness := 2 * math.Abs(ensembleScore-0.5)
	confidence := clip01(0.6*agreement + 0.4*decisiveness)

	outliers := []string{}
	for _, name := range []string{ModelGraph, ModelProximity, ModelInteraction, ModelHazardScale} {
		if math.Abs(scores[name]-ensembleScore) > outlierThreshold {
			outliers = append(outliers, name)
		}
	}

	return models.EnsemblePrediction{
		EnsembleScore:    ensembleScore,
		IndividualScores: scores,
		Weights:          weights,
		Agreement:        agreement,
		Confidence:       confidence,
		OutlierModels:    outliers,
		Recommendation:   recommendation(ensembleScore, confidence, agreement),
	}
}

// proximityRuleScore is a deterministic band lookup: closer perihelion,
// larger diameter, higher eccentricity and lower inclination each add a
// fixed contribution. Capped at 1.
func proximityRuleScore(f []float64) float64 {
	q := f[models.FeatPerihelionDist]
	d := f[models.FeatDiameter]
	e := f[models.FeatEccentricity]
	inc := f[models.FeatInclination]

	score := 0.0

	switch {
	case q < 0.05:
		score += 0.4
	case q < 0.1:
		score += 0.3
	case q < 0.2:
		score += 0.15
	case q < 1.0:
		score += 0.05
	}

	switch {
	case d > 1.0:
		score += 0.3
	case d > 0.5:
		score += 0.2
	case d > 0.14: // PHA size threshold
		score += 0.1
	}

	switch {
	case e > 0.5:
		score += 0.15
	case e > 0.3:
		score += 0.1
	}

	switch {
	case inc < 5:
		score += 0.15
	case inc < 15:
		score += 0.08
	}

	return math.Min(1.0, score)
}

// interactionScore emulates gradient-boosted trees: a 0.5 baseline adjusted
// by conditional splits on normalized proximity, size and eccentricity,
// with pairwise products standing in for interaction effects.
func interactionScore(f []float64) float64 {
	e := math.Min(1.0, f[models.FeatEccentricity])
	inc := math.Min(1.0, f[models.FeatInclination]/90.0)
	qInv := 1.0 - math.Min(1.0, f[models.FeatPerihelionDist]/2.0)
	d := math.Min(1.0, f[models.FeatDiameter]/2.0)

	score := 0.5

	// Split 1: proximity, boosted by size
	if qInv > 0.7 {
		score += 0.15 * (1 + d*0.5)
	} else {
		score -= 0.1
	}

	// Split 2: size, boosted by eccentricity
	if d > 0.3 {
		score += 0.12 * (1 + e*0.3)
	} else {
		score -= 0.05
	}

	// Split 3: orbital stability
	stability := (e + inc) / 2
	if stability < 0.3 {
		score -= 0.08
	} else {
		score += 0.1
	}

	// Split 4: combined risk factors
	score += 0.15 * (qInv + d + e) / 3

	return clip01(score)
}

// hazardScaleScore approximates a 0-10 impact-hazard scale from size and
// perihelion bands, maps it to [0, 1], then inflates for orbital
// unpredictability (eccentricity). Capped at 1.
func hazardScaleScore(f []float64) float64 {
	q := f[models.FeatPerihelionDist]
	d := f[models.FeatDiameter]
	e := f[models.FeatEccentricity]

	scale := 0
	switch {
	case d > 1.0:
		switch {
		case q < 0.002:
			scale = 10
		case q < 0.01:
			scale = 8
		case q < 0.05:
			scale = 5
		}
	case d > 0.5:
		switch {
		case q < 0.01:
			scale = 7
		case q < 0.05:
			scale = 4
		}
	case d > 0.14:
		if q < 0.05 {
			scale = 3
		}
	}

	score := float64(scale) / 10.0
	score *= 1.0 + e*0.2
	return math.Min(1.0, score)
}

// recommendation renders the deterministic advisory text from thresholded
// score, confidence and agreement bands.
func recommendation(score, confidence, agreement float64) string {
	tier := "LOW"
	switch {
	case score > 0.7:
		tier = "HIGH"
	case score > 0.4:
		tier = "MEDIUM"
	}

	rec := fmt.Sprintf("%s THREAT (%.1f%%). ", tier, score*100)

	switch {
	case confidence > 0.8:
		rec += "High confidence prediction - models agree. "
	case confidence > 0.5:
		rec += "Moderate confidence - some model disagreement. "
	default:
		rec += "Low confidence - significant model disagreement. Further analysis recommended. "
	}

	if agreement < 0.6 {
		rec += "WARNING: Models show significant divergence. Manual review suggested."
	}

	switch {
	case score > 0.7:
		rec += " PRIORITY MONITORING REQUIRED."
	case score > 0.4:
		rec += " Continue regular monitoring."
	default:
		rec += " Standard monitoring protocol."
	}

	return rec
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
