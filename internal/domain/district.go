package domain

import (
	"fmt"
	"maps"
	"slices"
)

// DistrictID is the stable key joining metric columns, scores and boundary
// polygons, e.g. "강남구".
type DistrictID string

// District is one input row: a district and its raw metric values keyed by
// criterion name.
type District struct {
	ID      DistrictID
	Metrics map[string]float64
}

// MetricTable is an immutable snapshot of raw metrics for a fixed set of
// districts. Accessors return copies.
type MetricTable struct {
	districts []DistrictID
	values    map[string]map[DistrictID]float64
}

// NewMetricTable builds a table from input rows. District ids must be
// non-empty and unique. Missing metrics are kept absent so that ranking
// reports them instead of treating them as zero.
func NewMetricTable(rows []District) (MetricTable, error) {
	t := MetricTable{
		districts: make([]DistrictID, 0, len(rows)),
		values:    make(map[string]map[DistrictID]float64),
	}
	seen := make(map[DistrictID]struct{}, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			return MetricTable{}, fmt.Errorf("row %d: empty district id", i)
		}
		if _, dup := seen[row.ID]; dup {
			return MetricTable{}, fmt.Errorf("%w: %q", ErrDuplicateDistrict, row.ID)
		}
		seen[row.ID] = struct{}{}
		t.districts = append(t.districts, row.ID)

		for name, v := range row.Metrics {
			col, ok := t.values[name]
			if !ok {
				col = make(map[DistrictID]float64, len(rows))
				t.values[name] = col
			}
			col[row.ID] = v
		}
	}
	slices.Sort(t.districts)
	return t, nil
}

// Len returns the number of districts.
func (t MetricTable) Len() int { return len(t.districts) }

// Districts returns the district ids in ascending order.
func (t MetricTable) Districts() []DistrictID {
	return slices.Clone(t.districts)
}

// Has reports whether the table contains the district.
func (t MetricTable) Has(id DistrictID) bool {
	_, found := slices.BinarySearch(t.districts, id)
	return found
}

// Column returns a copy of the values recorded for a criterion. Districts
// without a value are absent from the map.
func (t MetricTable) Column(name string) map[DistrictID]float64 {
	return maps.Clone(t.values[name])
}

// Value returns one district's raw value for a criterion.
func (t MetricTable) Value(id DistrictID, name string) (float64, bool) {
	v, ok := t.values[name][id]
	return v, ok
}

// Metrics returns the sorted names of every column present in the table.
func (t MetricTable) Metrics() []string {
	return slices.Sorted(maps.Keys(t.values))
}
