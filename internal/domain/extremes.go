package domain

import "errors"

// DistrictValue pairs a district with one raw metric value.
type DistrictValue struct {
	District DistrictID `json:"district"`
	Value    float64    `json:"value"`
}

// Extremes is the most vulnerable slice of one criterion alongside the
// city-wide mean of that criterion.
type Extremes struct {
	Criterion string          `json:"criterion"`
	Direction Direction       `json:"direction"`
	Districts []DistrictValue `json:"districts"`
	Mean      float64         `json:"mean"`
}

// MostVulnerable returns the n most vulnerable districts on a criterion,
// worst first, and the mean over all districts. n is clamped to the table
// size. The column must be complete, as for ranking.
func MostVulnerable(table MetricTable, c Criterion, n int) (Extremes, error) {
	if n <= 0 {
		return Extremes{}, errors.New("n must be positive")
	}
	rc, err := RankCriterion(c, table)
	if err != nil {
		return Extremes{}, err
	}

	col := table.values[c.Name]
	var sum float64
	for _, id := range table.districts {
		sum += col[id]
	}

	ranked := rc.SortedRanks()
	n = min(n, len(ranked))
	out := make([]DistrictValue, n)
	for i, e := range ranked[:n] {
		out[i] = DistrictValue{District: e.District, Value: col[e.District]}
	}

	return Extremes{
		Criterion: c.Name,
		Direction: c.Direction,
		Districts: out,
		Mean:      sum / float64(table.Len()),
	}, nil
}
