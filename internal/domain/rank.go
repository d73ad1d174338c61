package domain

import (
	"maps"
	"math"
	"slices"
)

// RankedCriterion holds the ordinal rank of every district on one criterion.
// Rank 1 is the least vulnerable district on that criterion and the most
// vulnerable holds the highest rank.
type RankedCriterion struct {
	Criterion string             `json:"criterion"`
	Direction Direction          `json:"direction"`
	Ranks     map[DistrictID]int `json:"ranks"`
}

// Districts returns the ranked district ids in ascending order.
func (rc RankedCriterion) Districts() []DistrictID {
	return slices.Sorted(maps.Keys(rc.Ranks))
}

// RankValues ranks one metric column. The least vulnerable district gets rank
// 1 and the most vulnerable gets the highest rank: under HigherIsWorse the
// largest value ranks N, under LowerIsWorse the smallest does.
// Equal values share a rank and the next distinct value skips by the number
// of tied districts (competition ranking, "1224").
//
// Every value must be finite and the column must be non-empty.
func RankValues(values map[DistrictID]float64, direction Direction) (map[DistrictID]int, error) {
	if !direction.Valid() {
		return nil, &InvalidDirectionError{Value: direction.String()}
	}
	if len(values) == 0 {
		return nil, &IncompleteCriterionError{}
	}

	var bad []DistrictID
	for id, v := range values {
		if !isFinite(v) {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		slices.Sort(bad)
		return nil, &IncompleteCriterionError{Districts: bad}
	}

	return rankByValue(values, direction), nil
}

// RankCriterion ranks a criterion across every district of the table. A
// district without a finite value fails the whole criterion.
func RankCriterion(c Criterion, table MetricTable) (RankedCriterion, error) {
	if err := c.Validate(); err != nil {
		return RankedCriterion{}, err
	}
	if table.Len() == 0 {
		return RankedCriterion{}, &IncompleteCriterionError{Criterion: c.Name}
	}

	col := table.values[c.Name]
	values := make(map[DistrictID]float64, table.Len())
	var missing []DistrictID
	for _, id := range table.districts {
		v, ok := col[id]
		if !ok || !isFinite(v) {
			missing = append(missing, id)
			continue
		}
		values[id] = v
	}
	if len(missing) > 0 {
		return RankedCriterion{}, &IncompleteCriterionError{Criterion: c.Name, Districts: missing}
	}

	return RankedCriterion{
		Criterion: c.Name,
		Direction: c.Direction,
		Ranks:     rankByValue(values, c.Direction),
	}, nil
}

// rankByValue orders districts least-vulnerable first, ties by ascending id,
// and assigns competition ranks.
func rankByValue(values map[DistrictID]float64, direction Direction) map[DistrictID]int {
	order := slices.Sorted(maps.Keys(values))
	slices.SortStableFunc(order, func(a, b DistrictID) int {
		va, vb := values[a], values[b]
		switch {
		case direction.worse(va, vb):
			return 1
		case direction.worse(vb, va):
			return -1
		default:
			return 0
		}
	})
	return competitionRanks(order, func(a, b DistrictID) bool {
		return values[a] == values[b]
	})
}

// competitionRanks assigns ranks to an ordered slice. A district equal to its
// predecessor shares the predecessor's rank; otherwise it gets its 1-based
// position.
func competitionRanks(order []DistrictID, equal func(a, b DistrictID) bool) map[DistrictID]int {
	ranks := make(map[DistrictID]int, len(order))
	for i, id := range order {
		if i > 0 && equal(order[i-1], id) {
			ranks[id] = ranks[order[i-1]]
			continue
		}
		ranks[id] = i + 1
	}
	return ranks
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
