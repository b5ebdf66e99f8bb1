package algorithm

import "github.com/okian/toolrank/internal/domain/factor"

// Built-in version ids.
const (
	V71 = "v7.1"
	V72 = "v7.2"
	V73 = "v7.3"
	V76 = "v7.6"

	// Latest is the version new deployments score with.
	Latest = V76
)

// Builtin returns the historical formulas in the order they shipped.
func Builtin() []Version {
	return []Version{
		{
			ID: V71,
			Factors: []factor.Name{
				factor.AgenticCapability, factor.Innovation, factor.TechnicalPerformance,
				factor.DeveloperAdoption, factor.MarketTraction, factor.BusinessSentiment,
			},
			Weights: map[factor.Name]float64{
				factor.AgenticCapability:    0.30,
				factor.Innovation:           0.15,
				factor.TechnicalPerformance: 0.15,
				factor.DeveloperAdoption:    0.15,
				factor.MarketTraction:       0.15,
				factor.BusinessSentiment:    0.10,
			},
		},
		{
			ID: V72,
			Factors: []factor.Name{
				factor.AgenticCapability, factor.Innovation, factor.TechnicalPerformance,
				factor.DeveloperAdoption, factor.MarketTraction, factor.BusinessSentiment,
				factor.DevelopmentVelocity,
			},
			Weights: map[factor.Name]float64{
				factor.AgenticCapability:    0.25,
				factor.Innovation:           0.15,
				factor.TechnicalPerformance: 0.15,
				factor.DeveloperAdoption:    0.15,
				factor.MarketTraction:       0.15,
				factor.BusinessSentiment:    0.10,
				factor.DevelopmentVelocity:  0.05,
			},
		},
		{
			ID:      V73,
			Factors: factor.All,
			Weights: map[factor.Name]float64{
				factor.AgenticCapability:    0.25,
				factor.Innovation:           0.125,
				factor.TechnicalPerformance: 0.15,
				factor.DeveloperAdoption:    0.125,
				factor.MarketTraction:       0.125,
				factor.BusinessSentiment:    0.10,
				factor.DevelopmentVelocity:  0.075,
				factor.PlatformResilience:   0.05,
			},
		},
		{
			ID:       V76,
			Factors:  factor.All,
			DeltaCap: 25,
			Weights: map[factor.Name]float64{
				factor.AgenticCapability:    0.25,
				factor.Innovation:           0.125,
				factor.TechnicalPerformance: 0.125,
				factor.DeveloperAdoption:    0.125,
				factor.MarketTraction:       0.125,
				factor.BusinessSentiment:    0.10,
				factor.DevelopmentVelocity:  0.075,
				factor.PlatformResilience:   0.075,
			},
		},
	}
}
