package crop

import (
	"math"
	"strings"
	"time"
)

// Unknown is the label used for missing categorical values.
const Unknown = "Unknown"

// Season represents a normalized cropping season.
type Season string

const (
	SeasonKharif  Season = "Kharif"
	SeasonRabi    Season = "Rabi"
	SeasonZaid    Season = "Zaid"
	SeasonUnknown Season = "Unknown"
)

// ParseSeason maps free-form season text onto a known Season.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseSeason(s string) Season {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kharif":
		return SeasonKharif
	case "rabi":
		return SeasonRabi
	case "zaid":
		return SeasonZaid
	default:
		return SeasonUnknown
	}
}

// Record is one stored prediction for a location/crop/season/year combination.
//
// Production and Yield are optional; the accessor methods apply the read-time
// defaults (0 for numbers, Unknown for labels) so callers never null-check.
type Record struct {
	ID         string    `json:"id"`
	CropType   string    `json:"crop_type"`
	State      string    `json:"state"`
	District   string    `json:"district"`
	Season     Season    `json:"season"`
	CropYear   int       `json:"crop_year"`
	Area       float64   `json:"area"`
	Production *float64  `json:"predicted_production,omitempty"`
	Yield      *float64  `json:"predicted_yield,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`

	// Advisory text returned by the prediction service at creation time.
	ProductionAnalysis string   `json:"production_analysis,omitempty"`
	YieldAnalysis      string   `json:"yield_analysis,omitempty"`
	Recommendations    []string `json:"recommendations,omitempty"`
}

// CropName returns the crop type or Unknown.
func (r Record) CropName() string { return orUnknown(r.CropType) }

// StateName returns the state or Unknown.
func (r Record) StateName() string { return orUnknown(r.State) }

// DistrictName returns the district or Unknown.
func (r Record) DistrictName() string { return orUnknown(r.District) }

// SeasonName returns the season label or Unknown.
func (r Record) SeasonName() string {
	if r.Season == "" {
		return string(SeasonUnknown)
	}
	return string(r.Season)
}

// Year returns the crop year, falling back to the creation year.
func (r Record) Year() int {
	if r.CropYear != 0 {
		return r.CropYear
	}
	if r.CreatedAt.IsZero() {
		return 0
	}
	return r.CreatedAt.Year()
}

// ProductionTons returns predicted production, 0 when absent or malformed.
func (r Record) ProductionTons() float64 {
	if r.Production == nil {
		return 0
	}
	return nonNegative(*r.Production)
}

// AreaHectares returns the cultivated area, 0 when malformed.
func (r Record) AreaHectares() float64 { return nonNegative(r.Area) }

// YieldPerHectare returns the predicted yield, 0 when absent or malformed.
func (r Record) YieldPerHectare() float64 {
	if r.Yield == nil {
		return 0
	}
	return nonNegative(*r.Yield)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Float returns a pointer to v, for populating optional record fields.
func Float(v float64) *float64 { return &v }

// PredictionRequest is the input relayed to the prediction service.
type PredictionRequest struct {
	State    string  `json:"state_name"`
	District string  `json:"district_name"`
	Season   string  `json:"season"`
	Crop     string  `json:"crop"`
	CropYear int     `json:"crop_year"`
	Area     float64 `json:"area"`
}

// PredictionResult is the normalized response of the prediction service.
type PredictionResult struct {
	ProductionTons  float64        `json:"predicted_production"`
	YieldPerHectare float64        `json:"yield_per_hectare"`
	AreaHectares    float64        `json:"area_hectares"`
	Unit            string         `json:"unit"`
	Insights        ServiceInsight `json:"-"`
}

// ServiceInsight is the advisory text generated by the prediction service.
type ServiceInsight struct {
	ProductionAnalysis string   `json:"production_analysis"`
	YieldAnalysis      string   `json:"yield_analysis"`
	Recommendations    []string `json:"recommendations"`
}

// ReferenceData lists the categorical values the prediction model was trained on.
type ReferenceData struct {
	States           []string            `json:"states"`
	Districts        []string            `json:"districts"`
	Seasons          []string            `json:"seasons"`
	Crops            []string            `json:"crops"`
	DistrictsByState map[string][]string `json:"district_state_mapping"`
}

// HealthStatus reports the prediction service state.
type HealthStatus struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	ModelLoaded bool   `json:"model_loaded"`
	Timestamp   string `json:"timestamp"`
}
