package types

// Season is the agricultural season label for the East African highlands.
type Season string

const (
	SeasonLongRains  Season = "LongRains"
	SeasonCoolDry    Season = "CoolDry"
	SeasonShortRains Season = "ShortRains"
	SeasonDry        Season = "Dry"
)

// RiskBucket is the categorical label derived from a flood-risk score.
type RiskBucket string

const (
	RiskLow      RiskBucket = "Low"
	RiskModerate RiskBucket = "Moderate"
	RiskHigh     RiskBucket = "High"
	RiskSevere   RiskBucket = "Severe"
)

// Urgency ranks how soon a farm action should be taken.
type Urgency string

const (
	UrgencyLow    Urgency = "Low"
	UrgencyMedium Urgency = "Medium"
	UrgencyHigh   Urgency = "High"
)

// RainfallIntensity labels the current precipitation rate.
type RainfallIntensity string

const (
	IntensityLow      RainfallIntensity = "low"
	IntensityModerate RainfallIntensity = "moderate"
	IntensityHeavy    RainfallIntensity = "heavy"
)

// RainfallTrend compares the next forecast day against current precipitation.
type RainfallTrend string

const (
	TrendIncreasing RainfallTrend = "increasing"
	TrendDecreasing RainfallTrend = "decreasing"
	TrendStable     RainfallTrend = "stable"
)

// SoilType is the coarse texture class of a soil profile.
type SoilType string

const (
	SoilClay  SoilType = "clay"
	SoilSandy SoilType = "sandy"
	SoilLoam  SoilType = "loam"
)

// FloodRisk is a 0..100 score together with its bucket.
type FloodRisk struct {
	Value  int        `json:"value"`
	Bucket RiskBucket `json:"bucket"`
}

// CropSuggestion is one ranked crop recommendation.
type CropSuggestion struct {
	Name          string `json:"name"`
	ConfidencePct int    `json:"confidence_pct"`
	Rationale     string `json:"rationale"`
}

// Action is a farm activity recommended for the current conditions.
type Action struct {
	Title       string  `json:"title"`
	Urgency     Urgency `json:"urgency"`
	Description string  `json:"description"`
}

// AdvisoryResult is the full output of the advisory engine. It is built once
// per call and never mutated afterwards.
type AdvisoryResult struct {
	Season             Season            `json:"season"`
	FloodRisk          FloodRisk         `json:"flood_risk"`
	SoilMoisturePct    int               `json:"soil_moisture_pct"`
	Crops              []CropSuggestion  `json:"crops"`
	Actions            []Action          `json:"actions"`
	RecentRainfallMm   float64           `json:"recent_rainfall_mm"`
	UpcomingRainfallMm float64           `json:"upcoming_rainfall_mm"`
	DailyRainfallMm    []float64         `json:"daily_rainfall_mm"`
	RainfallIntensity  RainfallIntensity `json:"rainfall_intensity"`
	RainfallTrend      RainfallTrend     `json:"rainfall_trend"`
	SoilType           SoilType          `json:"soil_type,omitempty"`
}

// SoilProfile holds the soil properties used for classification and the
// soil-amendment rule. Units follow the SoilGrids conventions: bulk density
// in g/cm3, CEC in cmol/kg, percentages by mass, organic carbon in g/kg and
// wilting point in m3/m3.
type SoilProfile struct {
	Name            string  `json:"name"`
	BulkDensity     float64 `json:"bulk_density"`
	CEC             float64 `json:"cec"`
	ClayPct         float64 `json:"clay_pct"`
	SiltPct         float64 `json:"silt_pct"`
	SandPct         float64 `json:"sand_pct"`
	OrganicCarbon   float64 `json:"organic_carbon"`
	PH              float64 `json:"ph"`
	WiltingPoint    float64 `json:"wilting_point"`
	FertilityRating string  `json:"fertility_rating"`
}
