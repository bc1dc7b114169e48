package advisory

import "farmadvisory/internal/types"

// ClassifySoil derives a texture class from clay and sand percentages.
func ClassifySoil(clayPct, sandPct float64) types.SoilType {
	switch {
	case clayPct > 35:
		return types.SoilClay
	case sandPct > 70:
		return types.SoilSandy
	default:
		return types.SoilLoam
	}
}

// KerichoSoilProfile returns the reference volcanic soil profile for the
// Kericho highlands. A fresh value is returned on every call.
func KerichoSoilProfile() *types.SoilProfile {
	return &types.SoilProfile{
		Name:            "Andisols (Volcanic)",
		BulkDensity:     1.25,
		CEC:             12.5,
		ClayPct:         42.3,
		SiltPct:         23.1,
		SandPct:         34.6,
		OrganicCarbon:   28.7,
		PH:              5.8,
		WiltingPoint:    0.18,
		FertilityRating: "High",
	}
}
