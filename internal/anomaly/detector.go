// Package anomaly flags objects whose feature combinations are statistically
// or contextually unusual relative to the tracked population.
//
// A Detector is fit once on a reference population and read thereafter.
// Fit builds a complete immutable snapshot (statistics + isolation forest)
// and swaps it in atomically, so concurrent Detect calls are safe against a
// concurrent re-fit. An unfitted detector answers from a documented default
// population table rather than failing.
package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/atis-project/atis/internal/graph"
	"github.com/atis-project/atis/internal/models"
)

const (
	// anomalyThreshold is the combined score above which an object is
	// reported as anomalous.
	anomalyThreshold = 0.6

	// featureZThreshold is the |z| above which a single feature is listed
	// in the anomalous-feature breakdown.
	featureZThreshold = 2.5

	// zCeiling treats 4 standard deviations as maximally anomalous.
	zCeiling = 4.0
)

// DetectorConfig configures the anomaly detector.
type DetectorConfig struct {
	// Contamination is the expected anomaly proportion. Default 0.05.
	Contamination float64

	// Trees is the isolation forest size. Default 100.
	Trees int

	// SampleSize is the per-tree subsample. Default 256 (capped at N).
	SampleSize int

	// Seed fixes the forest construction randomness. Default 42.
	Seed int64

	// IsolationWeight, StatisticalWeight, ContextualWeight mix the three
	// sub-scores. Defaults 0.40 / 0.35 / 0.25.
	IsolationWeight   float64
	StatisticalWeight float64
	ContextualWeight  float64
}

// DefaultDetectorConfig returns the original detector parameters.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Contamination:     0.05,
		Trees:             100,
		SampleSize:        256,
		Seed:              42,
		IsolationWeight:   0.40,
		StatisticalWeight: 0.35,
		ContextualWeight:  0.25,
	}
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	if c.Contamination <= 0 {
		c.Contamination = 0.05
	}
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.SampleSize <= 0 {
		c.SampleSize = 256
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	total := c.IsolationWeight + c.StatisticalWeight + c.ContextualWeight
	if total <= 0 {
		c.IsolationWeight, c.StatisticalWeight, c.ContextualWeight = 0.40, 0.35, 0.25
	} else if total != 1.0 {
		c.IsolationWeight /= total
		c.StatisticalWeight /= total
		c.ContextualWeight /= total
	}
	return c
}

// Detector scores objects against a fitted reference population.
type Detector struct {
	config   DetectorConfig
	snapshot atomic.Pointer[statsSnapshot]
}

// NewDetector creates an unfitted detector.
func NewDetector(config DetectorConfig) *Detector {
	return &Detector{config: config.withDefaults()}
}

// Fit trains the detector on the reference population: per-feature
// statistics plus the isolation forest over the standardized rows.
// Safe to call concurrently with Detect; readers keep the old snapshot
// until the new one is complete.
func (d *Detector) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: empty population", graph.ErrShape)
	}
	for i, row := range rows {
		if len(row) != models.FeatureCount {
			return fmt.Errorf("%w: row %d has width %d, want %d",
				graph.ErrShape, i, len(row), models.FeatureCount)
		}
	}

	snap := &statsSnapshot{stats: fitStats(rows)}

	scaled := make([][]float64, len(rows))
	for i, row := range rows {
		scaled[i] = snap.standardize(row)
	}
	rng := rand.New(rand.NewSource(d.config.Seed))
	snap.forest = buildForest(scaled, d.config.Trees, d.config.SampleSize, rng)

	d.snapshot.Store(snap)
	return nil
}

// Fitted reports whether Fit has completed at least once.
func (d *Detector) Fitted() bool {
	return d.snapshot.Load() != nil
}

// current returns the fitted snapshot, or the default table when unfitted.
func (d *Detector) current() *statsSnapshot {
	if snap := d.snapshot.Load(); snap != nil {
		return snap
	}
	slog.Warn("anomaly detector not fitted, using default population statistics")
	return &statsSnapshot{stats: defaultStats(), isDefault: true}
}

// Detect scores a single object. Always produces a fresh report.
func (d *Detector) Detect(features []float64) (models.AnomalyReport, error) {
	if len(features) != models.FeatureCount {
		return models.AnomalyReport{}, fmt.Errorf("%w: feature width %d, want %d",
			graph.ErrShape, len(features), models.FeatureCount)
	}

	snap := d.current()

	isolation := d.isolationScore(snap, features)
	statistical := statisticalScore(snap, features)
	contextual := contextualScore(features)

	combined := d.config.IsolationWeight*isolation +
		d.config.StatisticalWeight*statistical +
		d.config.ContextualWeight*contextual

	anomalous := anomalousFeatures(snap, features)

	return models.AnomalyReport{
		IsAnomalous: combined > anomalyThreshold,
		Score:       combined,
		Severity:    severity(combined),
		IndividualScores: map[string]float64{
			"isolation":   isolation,
			"statistical": statistical,
			"contextual":  contextual,
		},
		AnomalousFeatures: anomalous,
		Explanation:       explanation(combined, anomalous, features),
		Recommendations:   recommendations(combined, anomalous),
		UsedDefaultStats:  snap.isDefault,
	}, nil
}

// isolationScore maps the forest's native score s (0.5 for average points,
// toward 1 for outliers) onto [0, 1]. The original system's affine map of
// score_samples output lands on the same orientation: s itself, clipped.
// Unfitted detectors return the neutral 0.5.
func (d *Detector) isolationScore(snap *statsSnapshot, features []float64) float64 {
	if snap.forest == nil {
		return 0.5
	}
	s := snap.forest.score(snap.standardize(features))
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// statisticalScore is max |z| across features, with 4 sigma as the ceiling.
// Features with zero population std contribute nothing; a population with no
// usable std at all returns the neutral 0.5.
func statisticalScore(snap *statsSnapshot, features []float64) float64 {
	best := -1.0
	for j, v := range features {
		st := snap.stats[j]
		if st.Std <= 0 {
			continue
		}
		z := math.Abs((v - st.Mean) / st.Std)
		if z > best {
			best = z
		}
	}
	if best < 0 {
		return 0.5
	}
	return math.Min(1.0, best/zCeiling)
}

// anomalousFeatures lists features with |z| > 2.5, most anomalous first.
func anomalousFeatures(snap *statsSnapshot, features []float64) []models.AnomalousFeature {
	var out []models.AnomalousFeature
	for j, v := range features {
		st := snap.stats[j]
		if st.Std <= 0 {
			continue
		}
		z := math.Abs((v - st.Mean) / st.Std)
		if z <= featureZThreshold {
			continue
		}

		direction := "high"
		comparison := ""
		if v > st.Mean {
			comparison = fmt.Sprintf("%.1f%% above average", percentOfMean(v-st.Mean, st.Mean))
		} else {
			direction = "low"
			comparison = fmt.Sprintf("%.1f%% below average", percentOfMean(st.Mean-v, st.Mean))
		}

		out = append(out, models.AnomalousFeature{
			Feature:          models.FeatureName(j),
			Value:            v,
			ZScore:           z,
			Direction:        direction,
			PopulationMean:   st.Mean,
			PopulationMedian: st.Median,
			Comparison:       comparison,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZScore > out[j].ZScore })
	return out
}

// percentOfMean expresses a deviation as a percentage of the population mean,
// guarding the zero-mean case.
func percentOfMean(dev, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	return dev / math.Abs(mean) * 100
}

func severity(score float64) string {
	switch {
	case score > 0.8:
		return models.SeverityExtreme
	case score > 0.6:
		return models.SeverityHigh
	case score > 0.4:
		return models.SeverityModerate
	case score > 0.2:
		return models.SeverityLow
	default:
		return models.SeverityNormal
	}
}

func explanation(score float64, anomalous []models.AnomalousFeature, features []float64) string {
	var b strings.Builder

	switch {
	case score < 0.3:
		b.WriteString("This asteroid has typical characteristics for a Near-Earth Object. ")
	case score < 0.6:
		b.WriteString("This asteroid shows some unusual characteristics. ")
	default:
		b.WriteString("This asteroid has highly unusual characteristics compared to the NEO population. ")
	}

	if len(anomalous) > 0 {
		top := anomalous[0]
		fmt.Fprintf(&b, "Most notably, its %s is %s (%s). ",
			readable(top.Feature), top.Direction, top.Comparison)

		if len(anomalous) > 1 {
			names := make([]string, 0, 2)
			for _, f := range anomalous[1:] {
				names = append(names, readable(f.Feature))
				if len(names) == 2 {
					break
				}
			}
			fmt.Fprintf(&b, "Additionally, %s are also outside typical ranges. ",
				strings.Join(names, ", "))
		}
	}

	if features[models.FeatEccentricity] > 0.7 {
		b.WriteString("The highly elliptical orbit suggests potential long-period variations. ")
	}
	if features[models.FeatInclination] > 60 {
		b.WriteString("The steep inclination is rare among NEOs and may indicate a cometary origin. ")
	}

	return b.String()
}

func recommendations(score float64, anomalous []models.AnomalousFeature) []string {
	var recs []string

	if score > 0.7 {
		recs = append(recs,
			"HIGH PRIORITY: Verify observational data for errors",
			"Request additional observations from multiple observatories",
			"Update orbital elements with latest astrometry")
	}
	if score > 0.5 {
		recs = append(recs,
			"Investigate potential data quality issues",
			"Check for recent close encounters that may explain unusual orbit",
			"Consider manual review by orbital dynamics expert")
	}

	limit := len(anomalous)
	if limit > 2 {
		limit = 2
	}
	for _, f := range anomalous[:limit] {
		switch {
		case strings.Contains(f.Feature, "eccentricity") && f.Direction == "high":
			recs = append(recs, "High eccentricity: Monitor for potential perturbations from Jupiter")
		case strings.Contains(f.Feature, "inclination") && f.Direction == "high":
			recs = append(recs, "High inclination: Investigate possible cometary origin")
		case strings.Contains(f.Feature, "perihelion") && f.Direction == "low":
			recs = append(recs, "Very close perihelion: Priority for close approach monitoring")
		}
	}

	if len(recs) == 0 {
		recs = append(recs, "Standard monitoring protocol is sufficient")
	}
	return recs
}

func readable(feature string) string {
	return strings.ReplaceAll(feature, "_", " ")
}
