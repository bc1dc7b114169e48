// Package handlers contains the HTTP handler implementations for the farm
// advisory API:
//   - Advisories (POST /v1/advisories, GET /v1/advisories/point)
//   - Daily forecasts (GET /v1/forecasts/daily)
//   - Seasons (GET /v1/seasons/current)
//   - Farms (/v1/farms)
//
// Handlers declare the service contracts they need locally and receive the
// implementations from main.
package handlers

import (
	"net/http"
	"strconv"

	"farmadvisory/internal/types"
)

// maxTerrainFactor matches the bound accepted at farm registration.
const maxTerrainFactor = 5.0

// parseLatLon reads the required lat and lon query parameters.
func parseLatLon(r *http.Request) (types.Location, error) {
	q := r.URL.Query()

	latStr := q.Get("lat")
	if latStr == "" {
		return types.Location{}, types.NewAppError(types.ErrCodeValidationMissingField, "lat query parameter is required", nil)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return types.Location{}, types.NewAppError(types.ErrCodeValidationInvalidLat, "lat must be a valid number", err)
	}

	lonStr := q.Get("lon")
	if lonStr == "" {
		return types.Location{}, types.NewAppError(types.ErrCodeValidationMissingField, "lon query parameter is required", nil)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return types.Location{}, types.NewAppError(types.ErrCodeValidationInvalidLon, "lon must be a valid number", err)
	}

	if err := types.ValidateCoordinates(lat, lon); err != nil {
		return types.Location{}, err
	}
	return types.Location{Lat: lat, Lon: lon}, nil
}

// parseTerrainFactor reads the optional terrain_factor query parameter.
// ok is false when the parameter is absent.
func parseTerrainFactor(r *http.Request) (tf float64, ok bool, err error) {
	raw := r.URL.Query().Get("terrain_factor")
	if raw == "" {
		return 0, false, nil
	}
	tf, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, types.NewAppError(types.ErrCodeValidationInvalidTerrain, "terrain_factor must be a valid number", err)
	}
	if err := checkTerrainFactor(tf); err != nil {
		return 0, false, err
	}
	return tf, true, nil
}

func checkTerrainFactor(tf float64) error {
	if !(tf > 0 && tf <= maxTerrainFactor) {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidTerrain,
			"terrain_factor must be greater than 0 and at most 5", nil,
			map[string]any{"terrain_factor": tf})
	}
	return nil
}
