package crop

import "fmt"

// Insights is the advisory payload for a single stored prediction.
type Insights struct {
	PredictionID       string   `json:"predictionId"`
	ProductionAnalysis string   `json:"productionAnalysis"`
	YieldAnalysis      string   `json:"yieldAnalysis"`
	Recommendations    []string `json:"recommendations"`
	RiskFactors        []string `json:"riskFactors"`
}

var defaultRecommendations = []string{
	"Consider soil testing for optimal nutrient management",
	"Monitor weather conditions for the selected season",
	"Follow recommended planting dates for better yields",
	"Implement crop rotation practices",
	"Use precision farming techniques",
}

var defaultRiskFactors = []string{
	"Weather variability",
	"Pest and disease pressure",
	"Market price fluctuations",
}

// BuildInsights renders the fixed advisory templates for r.
func BuildInsights(r Record) Insights {
	return Insights{
		PredictionID:       r.ID,
		ProductionAnalysis: fmt.Sprintf("Expected production of %s tons", formatOptional(r.Production, 0)),
		YieldAnalysis:      fmt.Sprintf("Average yield of %s tons per hectare", formatOptional(r.Yield, 2)),
		Recommendations:    append([]string(nil), defaultRecommendations...),
		RiskFactors:        append([]string(nil), defaultRiskFactors...),
	}
}

// formatOptional prints v with prec decimals, or a bare "0" when v is absent.
func formatOptional(v *float64, prec int) string {
	if v == nil {
		return "0"
	}
	return fmt.Sprintf("%.*f", prec, nonNegative(*v))
}
