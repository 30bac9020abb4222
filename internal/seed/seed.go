// Package seed provides the bundled sample prediction dataset.
package seed

import (
	_ "embed"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/crop-yield-analytics/internal/crop"
)

//go:embed sample.yaml
var sampleYAML []byte

var sampleRecommendations = []string{
	"Monitor soil moisture levels",
	"Follow recommended planting dates",
	"Consider crop rotation for soil health",
}

type entry struct {
	Crop       string   `yaml:"crop"`
	State      string   `yaml:"state"`
	District   string   `yaml:"district"`
	Season     string   `yaml:"season"`
	Year       int      `yaml:"year"`
	Area       float64  `yaml:"area"`
	Yield      *float64 `yaml:"yield"`
	Production *float64 `yaml:"production"`
}

type document struct {
	Records []entry `yaml:"records"`
}

// Sample returns the bundled dataset. Ids and creation times are left for
// the importer to assign.
func Sample() ([]crop.Record, error) {
	return Parse(sampleYAML)
}

// Parse decodes a seed document.
func Parse(data []byte) ([]crop.Record, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode seed data: %w", err)
	}

	records := make([]crop.Record, 0, len(doc.Records))
	for i, e := range doc.Records {
		if e.Crop == "" || e.State == "" {
			return nil, fmt.Errorf("seed record %d: crop and state are required", i)
		}
		rec := crop.Record{
			CropType:        e.Crop,
			State:           e.State,
			District:        e.District,
			Season:          crop.ParseSeason(e.Season),
			CropYear:        e.Year,
			Area:            e.Area,
			Production:      e.Production,
			Yield:           e.Yield,
			Recommendations: append([]string(nil), sampleRecommendations...),
		}
		if e.Production != nil {
			rec.ProductionAnalysis = fmt.Sprintf("Good production potential with %s tons expected.", trimFloat(*e.Production))
		}
		if e.Yield != nil {
			rec.YieldAnalysis = fmt.Sprintf("Average yield expected: %s tons/hectare.", trimFloat(*e.Yield))
		}
		records = append(records, rec)
	}
	return records, nil
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
