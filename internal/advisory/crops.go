package advisory

import (
	"sort"

	"farmadvisory/internal/types"
)

// WaterNeed groups crops by how they respond to waterlogged soils.
type WaterNeed int

const (
	WaterWet WaterNeed = iota
	WaterModerate
	WaterDroughtTolerant
)

type cropEntry struct {
	name       string
	confidence int
	need       WaterNeed
	rationale  string
}

// hotSeasonThresholdC splits the off-season tables into drought-resistant and
// cool-weather sets.
const hotSeasonThresholdC = 25.0

var (
	longRainsCrops = []cropEntry{
		{"Tea", 92, WaterWet, "Thrives in the long rains on acidic highland soils"},
		{"Dairy Grass", 90, WaterWet, "Napier grass grows fastest with sustained rainfall"},
		{"Maize", 88, WaterModerate, "Main-season planting window for the long rains"},
		{"Pyrethrum", 86, WaterModerate, "High-altitude cash crop suited to wet, cool conditions"},
		{"Beans", 85, WaterModerate, "Intercrops well with maize during the long rains"},
		{"Sorghum", 70, WaterDroughtTolerant, "Hedge against an early end to the rains"},
	}

	shortRainsCrops = []cropEntry{
		{"Fast-maturing Maize", 85, WaterModerate, "Short-cycle varieties finish before the dry season"},
		{"Vegetables", 90, WaterModerate, "Quick harvests suit the shorter rainy window"},
		{"Beans", 88, WaterModerate, "Matures within the short rains"},
		{"Kale", 90, WaterModerate, "Steady demand and tolerant of variable rainfall"},
	}

	hotOffSeasonCrops = []cropEntry{
		{"Sorghum", 82, WaterDroughtTolerant, "Tolerates heat and low rainfall"},
		{"Millet", 85, WaterDroughtTolerant, "Highly drought resistant"},
		{"Drought-resistant Vegetables", 78, WaterDroughtTolerant, "Cowpeas and amaranth cope with dry spells"},
	}

	coolOffSeasonCrops = []cropEntry{
		{"Irish Potatoes", 80, WaterModerate, "Prefers cool highland temperatures"},
		{"Cabbages", 85, WaterModerate, "Cool-weather crop with good market demand"},
		{"Kale", 88, WaterModerate, "Grows year-round in cool conditions"},
	}

	fallbackCrops = []cropEntry{
		{"Sweet Potatoes", 82, WaterDroughtTolerant, "Resilient staple for uncertain conditions"},
		{"Beans", 75, WaterModerate, "Short cycle and low input requirements"},
	}
)

// RecommendCrops returns the crop suggestions for a season and temperature,
// adjusted for flood risk and sorted by descending confidence. Ties keep
// table order. The result is never empty.
//
// At High risk drought-tolerant crops lose 10 points. At Severe risk they
// lose 20 and moderate-water crops lose 5.
func RecommendCrops(season types.Season, tempC float64, risk types.RiskBucket) []types.CropSuggestion {
	table := cropTable(season, tempC)

	out := make([]types.CropSuggestion, len(table))
	for i, c := range table {
		out[i] = types.CropSuggestion{
			Name:          c.name,
			ConfidencePct: clampPct(c.confidence - riskPenalty(c.need, risk)),
			Rationale:     c.rationale,
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConfidencePct > out[j].ConfidencePct
	})
	return out
}

func cropTable(season types.Season, tempC float64) []cropEntry {
	switch season {
	case types.SeasonLongRains:
		return longRainsCrops
	case types.SeasonShortRains:
		return shortRainsCrops
	case types.SeasonCoolDry, types.SeasonDry:
		if tempC > hotSeasonThresholdC {
			return hotOffSeasonCrops
		}
		return coolOffSeasonCrops
	default:
		return fallbackCrops
	}
}

func riskPenalty(need WaterNeed, risk types.RiskBucket) int {
	switch risk {
	case types.RiskHigh:
		if need == WaterDroughtTolerant {
			return 10
		}
	case types.RiskSevere:
		switch need {
		case WaterDroughtTolerant:
			return 20
		case WaterModerate:
			return 5
		}
	}
	return 0
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
