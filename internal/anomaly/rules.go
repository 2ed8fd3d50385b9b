package anomaly

import "github.com/atis-project/atis/internal/models"

// contextRule flags a physically meaningful feature combination that is
// unusual even when each value is individually normal. Each matched rule
// carries a fixed severity and the maximum matched severity wins: a single
// truly strange combination matters more than several mild ones.
type contextRule struct {
	name     string
	severity float64
	match    func(f []float64) bool
}

var contextRules = []contextRule{
	{
		// Large asteroids are typically found closer in
		name:     "large_but_distant",
		severity: 0.8,
		match: func(f []float64) bool {
			return f[models.FeatDiameter] > 1.0 && f[models.FeatPerihelionDist] > 1.0
		},
	},
	{
		name:     "eccentric_low_inclination",
		severity: 0.9,
		match: func(f []float64) bool {
			return f[models.FeatEccentricity] > 0.7 && f[models.FeatInclination] < 5
		},
	},
	{
		// Sun-grazing orbit on a steep plane is rare for a NEO
		name:     "close_perihelion_high_inclination",
		severity: 0.85,
		match: func(f []float64) bool {
			return f[models.FeatPerihelionDist] < 0.05 && f[models.FeatInclination] > 60
		},
	},
	{
		name:     "extreme_eccentricity",
		severity: 0.7,
		match: func(f []float64) bool {
			return f[models.FeatEccentricity] > 0.9
		},
	},
	{
		// Nearly perpendicular to the ecliptic
		name:     "extreme_inclination",
		severity: 0.75,
		match: func(f []float64) bool {
			return f[models.FeatInclination] > 80
		},
	},
	{
		name:     "small_but_close",
		severity: 0.6,
		match: func(f []float64) bool {
			return f[models.FeatDiameter] < 0.1 && f[models.FeatPerihelionDist] < 0.01
		},
	},
}

// contextualScore returns the maximum matched rule severity, 0 when no rule
// matches.
func contextualScore(features []float64) float64 {
	best := 0.0
	for _, r := range contextRules {
		if r.match(features) && r.severity > best {
			best = r.severity
		}
	}
	return best
}
