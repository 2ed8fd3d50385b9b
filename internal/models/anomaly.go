package models

// Severity tiers for anomaly reports, ordered from quiet to loud.
const (
	SeverityNormal   = "NORMAL"
	SeverityLow      = "LOW"
	SeverityModerate = "MODERATE"
	SeverityHigh     = "HIGH"
	SeverityExtreme  = "EXTREME"
)

// FeatureStats holds the fitted population statistics for one feature column.
// Immutable after fitting; a re-fit swaps in a whole new table.
type FeatureStats struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Median float64 `json:"median"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// AnomalousFeature describes one feature flagged as unusual (|z| > 2.5).
type AnomalousFeature struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
	ZScore  float64 `json:"z_score"`

	// "high" when above the population mean, "low" when below
	Direction string `json:"direction"`

	PopulationMean   float64 `json:"population_mean"`
	PopulationMedian float64 `json:"population_median"`

	// e.g. "312.4% above average"
	Comparison string `json:"comparison"`
}

// AnomalyReport is the output of the anomaly detector for one object.
// Always produced fresh per query.
type AnomalyReport struct {
	ObjectID string `json:"object_id,omitempty"`

	// True when the combined score exceeds the anomaly threshold (0.6)
	IsAnomalous bool `json:"is_anomalous"`

	// Combined anomaly score in [0, 1]
	Score float64 `json:"anomaly_score"`

	// NORMAL / LOW / MODERATE / HIGH / EXTREME
	Severity string `json:"severity"`

	// Sub-scores: "isolation", "statistical", "contextual"
	IndividualScores map[string]float64 `json:"individual_scores"`

	// Features with |z| > 2.5, sorted by descending |z|
	AnomalousFeatures []AnomalousFeature `json:"anomalous_features"`

	// Templated free-text explanation
	Explanation string `json:"explanation"`

	// Actionable recommendations keyed off severity and top features
	Recommendations []string `json:"recommendations"`

	// True when the detector answered from the built-in default
	// population table instead of fitted statistics
	UsedDefaultStats bool `json:"used_default_stats"`
}
