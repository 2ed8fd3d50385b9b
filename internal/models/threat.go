package models

// ThreatBreakdown is the per-object output of the threat score combiner.
// Combined is the calibrated score in [0, 1]; the component fields are the
// normalized signals that produced it, kept for transparency.
type ThreatBreakdown struct {
	// Object identifier (SPK-ID or equivalent)
	ObjectID string `json:"object_id"`

	// Combined threat score in [0, 1], re-normalized across the node set
	Combined float64 `json:"threat_score"`

	// Component scores, each min-max normalized across the node set
	LatentRisk  float64 `json:"latent_risk"`
	Uncertainty float64 `json:"uncertainty"`
	Proximity   float64 `json:"proximity_risk"`
	SizeProxy   float64 `json:"size_proxy"`
}

// EnsemblePrediction is the output of the ensemble predictor for one object.
type EnsemblePrediction struct {
	ObjectID string `json:"object_id,omitempty"`

	// Weighted ensemble score in [0, 1]
	EnsembleScore float64 `json:"ensemble_score"`

	// Individual sub-model scores, keyed by sub-model name
	IndividualScores map[string]float64 `json:"individual_predictions"`

	// Fixed weights used for the combination (sum to 1)
	Weights map[string]float64 `json:"model_weights"`

	// Agreement = 1 - stddev of the sub-model scores, in [0, 1]
	Agreement float64 `json:"agreement"`

	// Confidence rewards consensus and decisiveness, in [0, 1]
	Confidence float64 `json:"confidence"`

	// Sub-models whose score differs from the ensemble by more than 0.2
	OutlierModels []string `json:"outlier_models"`

	// Deterministic recommendation text
	Recommendation string `json:"recommendation"`
}

// Explanation attributes a threat prediction to input features.
type Explanation struct {
	ObjectID string `json:"object_id,omitempty"`

	// The threat score being explained
	Prediction float64 `json:"prediction"`

	// "High Threat" / "Medium Threat" / "Low Threat"
	PredictionLabel string `json:"prediction_label"`

	// Decisiveness heuristic: 2*|prediction - 0.5| clipped to [0, 1]
	Confidence float64 `json:"confidence"`

	// Gradient-based importance per feature, normalized to sum 100
	// (left unnormalized, all zero, when every gradient vanishes)
	FeatureImportance map[string]float64 `json:"feature_importance"`

	// Perturbation-based attribution per feature; positive values push
	// the score up at the feature's actual value
	PerturbationValues map[string]float64 `json:"shap_values"`

	// Top gradient features, most influential first
	TopFeatures []FeatureImportance `json:"top_influential_features"`

	// Templated narrative
	ExplanationText string `json:"explanation_text"`

	// True when the model ran with default (untrained) parameters
	FallbackModel bool `json:"fallback_model"`
}

// FeatureImportance pairs a feature name with its importance percentage.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}
