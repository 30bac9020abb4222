package crop

import (
	"math"
	"sort"
	"strconv"
)

const (
	// efficiencyReference is the yield (tons/ha) rated as 100% efficiency.
	efficiencyReference = 5.0
	// successReference is the yield (tons/ha) rated as a 100% seasonal success rate.
	successReference = 4.0

	// NoDistrict is reported when no district can be ranked.
	NoDistrict = "N/A"
)

// StateSummary is one row of the geographic report.
type StateSummary struct {
	State           string   `json:"state"`
	TotalProduction float64  `json:"totalProduction"`
	TotalArea       float64  `json:"totalArea"`
	AvgYield        float64  `json:"avgYield"`
	Predictions     int      `json:"predictions"`
	Crops           []string `json:"crops"`
	Districts       []string `json:"districts"`
	Lat             *float64 `json:"lat,omitempty"`
	Lng             *float64 `json:"lng,omitempty"`
}

// YearTrend is one row of the yield-trends report.
type YearTrend struct {
	Year            int     `json:"year"`
	TotalProduction float64 `json:"totalProduction"`
	TotalArea       float64 `json:"totalArea"`
	Predictions     int     `json:"predictions"`
	AvgProduction   float64 `json:"avgProduction"`
	AvgArea         float64 `json:"avgArea"`
	AvgYield        float64 `json:"avgYield"`
}

// CropComparison is one row of the crop comparison report.
type CropComparison struct {
	Crop            string  `json:"crop"`
	TotalProduction float64 `json:"totalProduction"`
	TotalArea       float64 `json:"totalArea"`
	Predictions     int     `json:"predictions"`
	AvgProduction   float64 `json:"avgProduction"`
	AvgArea         float64 `json:"avgArea"`
	AvgYield        float64 `json:"avgYield"`
	Efficiency      float64 `json:"efficiency"`
}

// SeasonSummary is one row of the seasonal analysis report.
type SeasonSummary struct {
	Season          string  `json:"season"`
	TotalProduction float64 `json:"totalProduction"`
	TotalArea       float64 `json:"totalArea"`
	Predictions     int     `json:"predictions"`
	AvgProduction   float64 `json:"avgProduction"`
	AvgArea         float64 `json:"avgArea"`
	AvgYield        float64 `json:"avgYield"`
	SuccessRate     float64 `json:"successRate"`
}

// PerformanceMetrics is the single-aggregate performance report.
type PerformanceMetrics struct {
	TotalPredictions       int     `json:"totalPredictions"`
	AccuracyRate           float64 `json:"accuracyRate"`
	AverageProduction      float64 `json:"averageProduction"`
	BestPerformingDistrict string  `json:"bestPerformingDistrict"`
	SeasonalVariance       float64 `json:"seasonalVariance"`
}

// GeographicReport groups by state. AvgYield is total production over total area.
func GeographicReport(records []Record, f Filter) []StateSummary {
	groups := GroupedAggregate(records, ByState, f)
	out := make([]StateSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, StateSummary{
			State:           g.Key,
			TotalProduction: g.TotalProduction,
			TotalArea:       g.TotalArea,
			AvgYield:        g.AvgYield,
			Predictions:     g.Count,
			Crops:           g.Crops,
			Districts:       g.Districts,
		})
	}
	return out
}

// YieldTrendsReport groups by year and sorts ascending by year.
// AvgYield is the ratio of the per-year averages.
func YieldTrendsReport(records []Record, f Filter) []YearTrend {
	groups := GroupedAggregate(records, ByYear, f)
	out := make([]YearTrend, 0, len(groups))
	for _, g := range groups {
		year, _ := strconv.Atoi(g.Key)
		out = append(out, YearTrend{
			Year:            year,
			TotalProduction: g.TotalProduction,
			TotalArea:       g.TotalArea,
			Predictions:     g.Count,
			AvgProduction:   g.AvgProduction,
			AvgArea:         g.AvgArea,
			AvgYield:        ratio(g.AvgProduction, g.AvgArea),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// CropComparisonReport groups by crop type and rates each crop's yield
// against the 5 t/ha efficiency reference.
func CropComparisonReport(records []Record, f Filter) []CropComparison {
	groups := GroupedAggregate(records, ByCrop, f)
	out := make([]CropComparison, 0, len(groups))
	for _, g := range groups {
		avgYield := ratio(g.AvgProduction, g.AvgArea)
		out = append(out, CropComparison{
			Crop:            g.Key,
			TotalProduction: g.TotalProduction,
			TotalArea:       g.TotalArea,
			Predictions:     g.Count,
			AvgProduction:   g.AvgProduction,
			AvgArea:         g.AvgArea,
			AvgYield:        avgYield,
			Efficiency:      cappedPercent(avgYield, efficiencyReference),
		})
	}
	return out
}

// SeasonalReport groups by season and rates each season's yield against the
// 4 t/ha success reference.
func SeasonalReport(records []Record, f Filter) []SeasonSummary {
	groups := GroupedAggregate(records, BySeason, f)
	out := make([]SeasonSummary, 0, len(groups))
	for _, g := range groups {
		avgYield := ratio(g.AvgProduction, g.AvgArea)
		out = append(out, SeasonSummary{
			Season:          g.Key,
			TotalProduction: g.TotalProduction,
			TotalArea:       g.TotalArea,
			Predictions:     g.Count,
			AvgProduction:   g.AvgProduction,
			AvgArea:         g.AvgArea,
			AvgYield:        avgYield,
			SuccessRate:     cappedPercent(avgYield, successReference),
		})
	}
	return out
}

// PerformanceReport summarizes the whole filtered set. An empty set yields the
// zero sentinel with NoDistrict. Average production and seasonal variance are
// rounded to whole tons.
func PerformanceReport(records []Record, f Filter, accuracyRate float64) PerformanceMetrics {
	total := SingleAggregate(records, f)
	if total.Count == 0 {
		return PerformanceMetrics{BestPerformingDistrict: NoDistrict}
	}
	return PerformanceMetrics{
		TotalPredictions:       total.Count,
		AccuracyRate:           accuracyRate,
		AverageProduction:      math.Round(total.AvgProduction),
		BestPerformingDistrict: BestDistrict(records, f),
		SeasonalVariance:       math.Round(SeasonalVariance(records, f)),
	}
}

// BestDistrict returns the district with the highest mean production.
// Ties go to the district seen first.
func BestDistrict(records []Record, f Filter) string {
	best := NoDistrict
	bestAvg := math.Inf(-1)
	for _, acc := range accumulate(records, ByDistrict, f).groups() {
		if avg := acc.avgProduction(); avg > bestAvg {
			best, bestAvg = acc.key, avg
		}
	}
	return best
}

// SeasonalVariance is the population standard deviation of the per-season
// mean productions. It is 0 when fewer than two seasons are present.
func SeasonalVariance(records []Record, f Filter) float64 {
	groups := accumulate(records, BySeason, f).groups()
	means := make([]float64, 0, len(groups))
	for _, acc := range groups {
		means = append(means, acc.avgProduction())
	}
	return populationStdDev(means)
}

func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

// cappedPercent rates v against ref as a percentage capped at 100.
func cappedPercent(v, ref float64) float64 {
	if v <= 0 || ref <= 0 {
		return 0
	}
	return math.Min(100, v/ref*100)
}
