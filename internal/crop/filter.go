package crop

import "slices"

// Filter narrows the record set before grouping. Zero-valued fields impose no
// restriction; all supplied criteria must hold for a record to pass.
type Filter struct {
	Crop     string   `json:"crop,omitempty"`
	State    string   `json:"state,omitempty"`
	District string   `json:"district,omitempty"`
	Year     int      `json:"year,omitempty"`
	Crops    []string `json:"crops,omitempty"`
	Seasons  []Season `json:"seasons,omitempty"`
}

// IsEmpty reports whether the filter has no criteria.
func (f Filter) IsEmpty() bool {
	return f.Crop == "" && f.State == "" && f.District == "" && f.Year == 0 &&
		len(f.Crops) == 0 && len(f.Seasons) == 0
}

// Match reports whether r satisfies every criterion. Comparisons use the
// record's read-time defaults, so a missing state matches State: "Unknown".
func (f Filter) Match(r Record) bool {
	if f.Crop != "" && r.CropName() != f.Crop {
		return false
	}
	if f.State != "" && r.StateName() != f.State {
		return false
	}
	if f.District != "" && r.DistrictName() != f.District {
		return false
	}
	if f.Year != 0 && r.CropYear != f.Year {
		return false
	}
	if len(f.Crops) > 0 && !slices.Contains(f.Crops, r.CropName()) {
		return false
	}
	if len(f.Seasons) > 0 && !slices.Contains(f.Seasons, Season(r.SeasonName())) {
		return false
	}
	return true
}

// Apply returns the records that match f, preserving input order.
func (f Filter) Apply(records []Record) []Record {
	if f.IsEmpty() {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
