package crop

import "strconv"

// KeyFunc maps a record to the label of the group it belongs to.
type KeyFunc func(Record) string

// Grouping dimensions supported by the reports.
var (
	ByState    KeyFunc = func(r Record) string { return r.StateName() }
	ByDistrict KeyFunc = func(r Record) string { return r.DistrictName() }
	ByCrop     KeyFunc = func(r Record) string { return r.CropName() }
	BySeason   KeyFunc = func(r Record) string { return r.SeasonName() }
	ByYear     KeyFunc = func(r Record) string { return strconv.Itoa(r.Year()) }
)

// GroupSummary holds the shared per-group totals every report builds on.
type GroupSummary struct {
	Key             string   `json:"key"`
	TotalProduction float64  `json:"totalProduction"`
	TotalArea       float64  `json:"totalArea"`
	Count           int      `json:"predictions"`
	AvgProduction   float64  `json:"avgProduction"`
	AvgArea         float64  `json:"avgArea"`
	AvgYield        float64  `json:"avgYield"`
	Crops           []string `json:"crops"`
	Districts       []string `json:"districts"`
}

// accumulator collects running totals for one group.
type accumulator struct {
	key             string
	totalProduction float64
	totalArea       float64
	count           int
	crops           orderedSet
	districts       orderedSet
}

func (a *accumulator) add(r Record) {
	a.totalProduction += r.ProductionTons()
	a.totalArea += r.AreaHectares()
	a.count++
	a.crops.add(r.CropName())
	a.districts.add(r.DistrictName())
}

func (a *accumulator) avgProduction() float64 { return ratio(a.totalProduction, float64(a.count)) }

func (a *accumulator) avgArea() float64 { return ratio(a.totalArea, float64(a.count)) }

func (a *accumulator) summary() GroupSummary {
	return GroupSummary{
		Key:             a.key,
		TotalProduction: a.totalProduction,
		TotalArea:       a.totalArea,
		Count:           a.count,
		AvgProduction:   a.avgProduction(),
		AvgArea:         a.avgArea(),
		AvgYield:        ratio(a.totalProduction, a.totalArea),
		Crops:           a.crops.values(),
		Districts:       a.districts.values(),
	}
}

// groupIndex is an insertion-ordered map from group key to accumulator.
// A fresh index is built for every call and never shared.
type groupIndex struct {
	order []*accumulator
	byKey map[string]*accumulator
}

func newGroupIndex() *groupIndex {
	return &groupIndex{byKey: make(map[string]*accumulator)}
}

func (g *groupIndex) add(key string, r Record) {
	acc, ok := g.byKey[key]
	if !ok {
		acc = &accumulator{key: key}
		g.byKey[key] = acc
		g.order = append(g.order, acc)
	}
	acc.add(r)
}

func (g *groupIndex) groups() []*accumulator { return g.order }

// accumulate filters records and buckets the survivors by key.
func accumulate(records []Record, key KeyFunc, f Filter) *groupIndex {
	idx := newGroupIndex()
	for _, r := range records {
		if !f.Match(r) {
			continue
		}
		idx.add(key(r), r)
	}
	return idx
}

// AggregateBy filters records, groups them by key in first-seen order and
// returns one summary per distinct key. An empty input yields an empty slice.
func AggregateBy(records []Record, key KeyFunc, f Filter) []GroupSummary {
	return GroupedAggregate(records, key, f)
}

// GroupedAggregate is the grouped form of the shared accumulation primitive.
func GroupedAggregate(records []Record, key KeyFunc, f Filter) []GroupSummary {
	idx := accumulate(records, key, f)
	out := make([]GroupSummary, 0, len(idx.order))
	for _, acc := range idx.groups() {
		out = append(out, acc.summary())
	}
	return out
}

// SingleAggregate folds every matching record into one summary keyed "all".
func SingleAggregate(records []Record, f Filter) GroupSummary {
	acc := &accumulator{key: "all"}
	for _, r := range records {
		if f.Match(r) {
			acc.add(r)
		}
	}
	return acc.summary()
}

// ratio divides a by b, returning 0 when b is zero.
func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func (s *orderedSet) add(v string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet) values() []string {
	if len(s.items) == 0 {
		return []string{}
	}
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
