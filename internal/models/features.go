// Package models defines the structured value types exchanged between the
// ATIS core components and the surrounding application. Every type here is a
// plain struct safe to serialize to any wire format.
package models

import "fmt"

// Feature column indices for the model-facing feature matrix. The ordering is
// fixed: every component that reads a raw feature vector addresses columns
// through these indices, and a matrix with a different width is rejected as a
// shape error before any math runs.
const (
	FeatEccentricity = iota
	FeatSemiMajorAxis
	FeatInclination
	FeatLongitudeAscending
	FeatArgumentPerihelion
	FeatMeanAnomaly
	FeatPerihelionDist
	FeatAphelionDist
	FeatOrbitalPeriod
	FeatMeanMotion
	FeatAbsoluteMagnitude
	FeatDiameter
	FeatMOID

	// FeatureCount is the fixed feature-vector width F.
	FeatureCount
)

// FeatureNames maps column index to a stable human-readable name, used in
// anomaly breakdowns and explanations.
var FeatureNames = [FeatureCount]string{
	"eccentricity",
	"semi_major_axis",
	"inclination",
	"longitude_ascending",
	"argument_perihelion",
	"mean_anomaly",
	"perihelion_distance",
	"aphelion_distance",
	"orbital_period",
	"mean_motion",
	"absolute_magnitude",
	"diameter",
	"moid",
}

// FeatureName returns the name for a column index, or "feature_<i>" when the
// index is outside the documented contract (wider matrices are rejected
// upstream, so this only shows up in diagnostics).
func FeatureName(i int) string {
	if i >= 0 && i < FeatureCount {
		return FeatureNames[i]
	}
	return fmt.Sprintf("feature_%d", i)
}
