package types

import (
	"fmt"
	"math"
)

// Coordinate bounds.
const (
	MinLat = -90.0
	MaxLat = 90.0
	MinLon = -180.0
	MaxLon = 180.0
)

// ValidateCoordinates checks that lat/lon lie within the WGS84 ranges and
// returns an AppError with the matching validation code otherwise.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < MinLat || lat > MaxLat {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidLat,
			fmt.Sprintf("latitude must be between %.0f and %.0f", MinLat, MaxLat), nil,
			map[string]any{"lat": fmt.Sprint(lat)})
	}
	if math.IsNaN(lon) || lon < MinLon || lon > MaxLon {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidLon,
			fmt.Sprintf("longitude must be between %.0f and %.0f", MinLon, MaxLon), nil,
			map[string]any{"lon": fmt.Sprint(lon)})
	}
	return nil
}
