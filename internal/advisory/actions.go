package advisory

import "farmadvisory/internal/types"

// ActionContext carries the optional readings used by the contextual rules.
// A nil field never triggers a rule.
type ActionContext struct {
	OrganicCarbon *float64 // g/kg
	HumidityPct   *int
	RainfallMm    *float64
}

// Context rule thresholds.
const (
	lowRainfallMm       = 2.0
	lowHumidityPct      = 60
	highOrganicCarbonGK = 25.0
)

type gatedAction struct {
	threshold int
	action    types.Action
}

// actionTable is evaluated in declaration order. Output keeps this order;
// it is not re-sorted by urgency.
var actionTable = []gatedAction{
	{0, types.Action{Title: "Soil Testing", Urgency: types.UrgencyMedium,
		Description: "Test soil pH and nutrient levels before the next planting."}},
	{0, types.Action{Title: "Pest Monitoring", Urgency: types.UrgencyLow,
		Description: "Scout fields weekly for pests and early signs of disease."}},
	{30, types.Action{Title: "Terrace Maintenance", Urgency: types.UrgencyHigh,
		Description: "Clear and reinforce terraces to slow runoff on slopes."}},
	{40, types.Action{Title: "Drainage Management", Urgency: types.UrgencyHigh,
		Description: "Open drainage channels to prevent waterlogging."}},
	{60, types.Action{Title: "Delay Planting", Urgency: types.UrgencyMedium,
		Description: "Hold off planting until heavy rains pass to avoid seed washout."}},
	{70, types.Action{Title: "Harvest Early", Urgency: types.UrgencyHigh,
		Description: "Harvest mature crops before expected heavy rainfall."}},
	{80, types.Action{Title: "Move Livestock to Higher Ground", Urgency: types.UrgencyHigh,
		Description: "Relocate animals away from flood-prone low areas."}},
}

var (
	moistureConservation = types.Action{Title: "Irrigation & Mulching", Urgency: types.UrgencyHigh,
		Description: "Low rainfall and humidity: mulch beds and irrigate to conserve soil moisture."}
	soilAmendment = types.Action{Title: "Compost Tea Application", Urgency: types.UrgencyMedium,
		Description: "High organic carbon: apply compost tea to boost microbial activity."}
)

// RecommendActions returns every table action whose threshold is at or below
// riskScore, in table order, followed by the contextual rules: moisture
// conservation first, then soil amendment.
func RecommendActions(riskScore int, ctx ActionContext) []types.Action {
	out := make([]types.Action, 0, len(actionTable)+2)
	for _, g := range actionTable {
		if riskScore >= g.threshold {
			out = append(out, g.action)
		}
	}

	if ctx.RainfallMm != nil && ctx.HumidityPct != nil &&
		*ctx.RainfallMm < lowRainfallMm && *ctx.HumidityPct < lowHumidityPct {
		out = append(out, moistureConservation)
	}
	if ctx.OrganicCarbon != nil && *ctx.OrganicCarbon > highOrganicCarbonGK {
		out = append(out, soilAmendment)
	}
	return out
}
