package anomaly

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/atis-project/atis/internal/models"
)

// statsSnapshot is the immutable fit-time state: per-feature population
// statistics plus the trained isolation forest. Fit builds a fresh snapshot
// and swaps it in atomically; readers never observe a partial table.
type statsSnapshot struct {
	stats     [models.FeatureCount]models.FeatureStats
	forest    *isoForest
	isDefault bool
}

// fitStats computes the per-column population statistics for the reference
// population. Median and quartiles use linear interpolation.
func fitStats(rows [][]float64) [models.FeatureCount]models.FeatureStats {
	var out [models.FeatureCount]models.FeatureStats
	n := len(rows)
	col := make([]float64, n)
	for j := 0; j < models.FeatureCount; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}
		sorted := make([]float64, n)
		copy(sorted, col)
		sort.Float64s(sorted)

		out[j] = models.FeatureStats{
			Mean:   stat.Mean(col, nil),
			Std:    stat.PopStdDev(col, nil),
			Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
			Q25:    stat.Quantile(0.25, stat.LinInterp, sorted, nil),
			Q75:    stat.Quantile(0.75, stat.LinInterp, sorted, nil),
			Min:    sorted[0],
			Max:    sorted[n-1],
		}
	}
	return out
}

// defaultStats is the documented fallback population table, approximating
// the near-Earth object population. Columns absent from the table carry
// std 0 and contribute a z-score of 0.
func defaultStats() [models.FeatureCount]models.FeatureStats {
	var out [models.FeatureCount]models.FeatureStats
	set := func(idx int, mean, std, median float64) {
		out[idx] = models.FeatureStats{Mean: mean, Std: std, Median: median}
	}
	set(models.FeatEccentricity, 0.25, 0.15, 0.22)
	set(models.FeatSemiMajorAxis, 1.5, 0.8, 1.3)
	set(models.FeatInclination, 15, 12, 10)
	set(models.FeatPerihelionDist, 0.8, 0.5, 0.7)
	set(models.FeatAphelionDist, 2.5, 1.5, 2.0)
	set(models.FeatOrbitalPeriod, 600, 400, 500)
	set(models.FeatAbsoluteMagnitude, 20, 3, 20)
	set(models.FeatDiameter, 0.3, 0.4, 0.15)
	return out
}

// standardize z-scales a feature vector against the snapshot statistics.
// Zero-variance columns map to 0.
func (s *statsSnapshot) standardize(features []float64) []float64 {
	out := make([]float64, len(features))
	for j, v := range features {
		st := s.stats[j]
		if st.Std > 0 {
			out[j] = (v - st.Mean) / st.Std
		}
	}
	return out
}
