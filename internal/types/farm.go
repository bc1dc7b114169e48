package types

import "time"

// Location represents a geographic coordinate with an optional display name.
type Location struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name,omitempty"`
}

// IrrigationSystem enumerates the irrigation setups offered at registration.
type IrrigationSystem string

const (
	IrrigationNone      IrrigationSystem = "none"
	IrrigationDrip      IrrigationSystem = "drip"
	IrrigationSprinkler IrrigationSystem = "sprinkler"
	IrrigationFlood     IrrigationSystem = "flood"
	IrrigationRainFed   IrrigationSystem = "rain_fed"
)

// Farm is a registered farm. Farms live only in process memory.
type Farm struct {
	ID               string           `json:"id"`
	OwnerName        string           `json:"owner_name"`
	Email            string           `json:"email"`
	FarmLocation     string           `json:"farm_location"`
	Location         Location         `json:"location"`
	SizeAcres        float64          `json:"size_acres"`
	SoilType         SoilType         `json:"soil_type,omitempty"`
	PrimaryCrops     []string         `json:"primary_crops"`
	IrrigationSystem IrrigationSystem `json:"irrigation_system"`
	TerrainFactor    float64          `json:"terrain_factor"`
	InsideRegion     bool             `json:"inside_region"`
	CreatedAt        time.Time        `json:"created_at"`
}

// RegisterFarmRequest is the registration form payload.
type RegisterFarmRequest struct {
	OwnerName        string           `json:"owner_name" validate:"required,max=200"`
	Email            string           `json:"email" validate:"required,email"`
	FarmLocation     string           `json:"farm_location" validate:"required,max=200"`
	Lat              float64          `json:"lat" validate:"latitude"`
	Lon              float64          `json:"lon" validate:"longitude"`
	SizeAcres        float64          `json:"size_acres" validate:"gt=0,lte=100000"`
	SoilType         SoilType         `json:"soil_type" validate:"omitempty,oneof=clay sandy loam"`
	PrimaryCrops     []string         `json:"primary_crops" validate:"max=20,dive,required,max=100,crop_name"`
	IrrigationSystem IrrigationSystem `json:"irrigation_system" validate:"omitempty,oneof=none drip sprinkler flood rain_fed"`
	TerrainFactor    float64          `json:"terrain_factor" validate:"omitempty,gt=0,lte=5"`
}

// NearestFarm is a farm together with its great-circle distance from a query point.
type NearestFarm struct {
	Farm       Farm    `json:"farm"`
	DistanceKm float64 `json:"distance_km"`
}

// AdvisoryMessage is the SQS payload published by the refresher for every
// advisory it computes. Consumers (notification fan-out, dashboards) read
// it as JSON.
type AdvisoryMessage struct {
	MessageID  string         `json:"message_id"`
	FarmID     string         `json:"farm_id,omitempty"`
	Location   Location       `json:"location"`
	Source     string         `json:"source"`
	ComputedAt time.Time      `json:"computed_at"`
	Advisory   AdvisoryResult `json:"advisory"`
}
