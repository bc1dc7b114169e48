package advisory

import (
	"math"

	"farmadvisory/internal/types"
)

// DefaultTerrainFactor models flat terrain. Values above 1 amplify runoff
// from upcoming rainfall on sloped ground.
const DefaultTerrainFactor = 1.0

// Bucket lower bounds (inclusive).
const (
	ModerateRiskThreshold = 30
	HighRiskThreshold     = 60
	SevereRiskThreshold   = 80
)

// ScoreFloodRisk combines recent and upcoming rainfall into a 0..100 score:
//
//	value = min(100, round((recent + upcoming*terrain) / 2))
//
// A non-positive or NaN terrain factor is replaced by DefaultTerrainFactor.
// NaN rainfall counts as 0 and the score never drops below 0.
func ScoreFloodRisk(recentMm, upcomingMm, terrainFactor float64) types.FloodRisk {
	if math.IsNaN(terrainFactor) || terrainFactor <= 0 {
		terrainFactor = DefaultTerrainFactor
	}
	if math.IsNaN(recentMm) {
		recentMm = 0
	}
	if math.IsNaN(upcomingMm) {
		upcomingMm = 0
	}

	raw := math.Round((recentMm + upcomingMm*terrainFactor) / 2)
	value := int(math.Max(0, math.Min(100, raw)))

	return types.FloodRisk{Value: value, Bucket: BucketFor(value)}
}

// BucketFor maps a score to its risk bucket.
func BucketFor(score int) types.RiskBucket {
	switch {
	case score >= SevereRiskThreshold:
		return types.RiskSevere
	case score >= HighRiskThreshold:
		return types.RiskHigh
	case score >= ModerateRiskThreshold:
		return types.RiskModerate
	default:
		return types.RiskLow
	}
}

// soilSaturationMm is the recent rainfall at which soil moisture reads 100%.
const soilSaturationMm = 75.0

// SoilMoisturePct estimates soil moisture from recent rainfall.
func SoilMoisturePct(recentMm float64) int {
	if math.IsNaN(recentMm) {
		return 0
	}
	pct := math.Round(recentMm / soilSaturationMm * 100)
	return int(math.Max(0, math.Min(100, pct)))
}
