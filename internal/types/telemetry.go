package types

// CloudWatch metric and dimension names.
// All components MUST use these constants.
const (
	MetricAPILatency         = "APILatency"
	MetricAPIRequest         = "APIRequest"
	MetricFloodRiskScore     = "FloodRiskScore"
	MetricAdvisoryComputed   = "AdvisoryComputed"
	MetricExternalAPIFailure = "ExternalAPIFailure"
	MetricRefreshDuration    = "RefreshDuration"

	DimEndpoint   = "Endpoint"
	DimStatus     = "StatusClass"
	DimRiskBucket = "RiskBucket"
	DimSeason     = "Season"
	DimProvider   = "Provider"
	DimSource     = "Source"

	MetricNamespace = "FarmAdvisory"
)
