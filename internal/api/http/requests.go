package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/i474232898/crop-yield-analytics/internal/common"
	"github.com/i474232898/crop-yield-analytics/internal/crop"
)

const defaultTrendYears = 5

// flexInt accepts a JSON number or a numeric string. Empty strings and null
// decode to zero.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*n = 0
			return nil
		}
	}

	if v, err := strconv.Atoi(raw); err == nil {
		*n = flexInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return fmt.Errorf("invalid integer %q", raw)
	}
	*n = flexInt(f)
	return nil
}

type predictionRequest struct {
	StateName    string  `json:"state_name" validate:"required"`
	DistrictName string  `json:"district_name" validate:"required"`
	Season       string  `json:"season" validate:"required"`
	Crop         string  `json:"crop" validate:"required"`
	CropYear     flexInt `json:"crop_year" validate:"gte=1900,lte=2100"`
	Area         float64 `json:"area" validate:"gt=0"`
}

func (r *predictionRequest) normalize() {
	r.StateName = strings.TrimSpace(r.StateName)
	r.DistrictName = strings.TrimSpace(r.DistrictName)
	r.Season = strings.TrimSpace(r.Season)
	r.Crop = strings.TrimSpace(r.Crop)
}

func (r predictionRequest) toDomain() crop.PredictionRequest {
	return crop.PredictionRequest{
		State:    r.StateName,
		District: r.DistrictName,
		Season:   r.Season,
		Crop:     r.Crop,
		CropYear: int(r.CropYear),
		Area:     r.Area,
	}
}

type predictionValues struct {
	PredictedProduction float64 `json:"predicted_production"`
	YieldPerHectare     float64 `json:"yield_per_hectare"`
	AreaHectares        float64 `json:"area_hectares"`
	Unit                string  `json:"unit"`
}

type predictionInsights struct {
	ProductionAnalysis string   `json:"production_analysis"`
	YieldAnalysis      string   `json:"yield_analysis"`
	Recommendations    []string `json:"recommendations"`
}

type predictionResponse struct {
	Success    bool                   `json:"success"`
	ID         string                 `json:"id"`
	Prediction predictionValues       `json:"prediction"`
	Inputs     crop.PredictionRequest `json:"inputs"`
	Insights   predictionInsights     `json:"insights"`
}

func newPredictionResponse(p crop.Prediction) predictionResponse {
	recs := p.Result.Insights.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return predictionResponse{
		Success: true,
		ID:      p.Record.ID,
		Prediction: predictionValues{
			PredictedProduction: p.Result.ProductionTons,
			YieldPerHectare:     p.Result.YieldPerHectare,
			AreaHectares:        p.Result.AreaHectares,
			Unit:                p.Result.Unit,
		},
		Inputs: p.Request,
		Insights: predictionInsights{
			ProductionAnalysis: p.Result.Insights.ProductionAnalysis,
			YieldAnalysis:      p.Result.Insights.YieldAnalysis,
			Recommendations:    recs,
		},
	}
}

type yieldTrendsQuery struct {
	Crop  string `query:"crop"`
	State string `query:"state"`
	Years int    `query:"years" validate:"min=1,max=50"`
}

type cropComparisonRequest struct {
	Crops []string `json:"crops"`
	State string   `json:"state"`
	Year  flexInt  `json:"year"`
}

func (r cropComparisonRequest) filter() crop.Filter {
	var crops []string
	for _, c := range r.Crops {
		if c = strings.TrimSpace(c); c != "" {
			crops = append(crops, c)
		}
	}
	return crop.Filter{
		Crops: crops,
		State: strings.TrimSpace(r.State),
		Year:  int(r.Year),
	}
}

type performanceRequest struct {
	Crop     string  `json:"crop"`
	State    string  `json:"state"`
	District string  `json:"district"`
	Year     flexInt `json:"year"`
}

func (r performanceRequest) filter() crop.Filter {
	return crop.Filter{
		Crop:     strings.TrimSpace(r.Crop),
		State:    strings.TrimSpace(r.State),
		District: strings.TrimSpace(r.District),
		Year:     int(r.Year),
	}
}

// parseSeasons turns a comma-separated season list into a filter set.
// Names outside the season enum are rejected rather than folded into Unknown.
func parseSeasons(csv string) ([]crop.Season, error) {
	parts := common.SplitList(csv)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]crop.Season, 0, len(parts))
	for _, p := range parts {
		if err := validate.Var(strings.ToLower(p), "oneof=kharif rabi zaid unknown"); err != nil {
			return nil, fmt.Errorf("invalid season %q", p)
		}
		out = append(out, crop.ParseSeason(p))
	}
	return out, nil
}
