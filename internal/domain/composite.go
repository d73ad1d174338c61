package domain

import (
	"cmp"
	"maps"
	"slices"
)

// CompositeScore is a district's unweighted sum of criterion ranks and its
// position when districts are ordered by that sum, largest first.
type CompositeScore struct {
	District   DistrictID `json:"district"`
	SumOfRanks int        `json:"sum_of_ranks"`
	FinalRank  int        `json:"final_rank"`
}

// Score sums each district's ranks across the supplied criteria and assigns
// final ranks by descending sum. Equal sums share a final rank (competition
// ranking); listings break the tie by ascending district id.
//
// Every criterion must cover the same districts. When one criterion covers
// all districts seen, the others are incomplete; when none does, the
// criteria disagree on the universe.
func Score(ranked []RankedCriterion) (map[DistrictID]CompositeScore, error) {
	if len(ranked) == 0 {
		return nil, &EmptyCriterionSetError{}
	}
	if err := checkCoverage(ranked); err != nil {
		return nil, err
	}
	if len(ranked[0].Ranks) == 0 {
		return nil, &IncompleteCriterionError{Criterion: ranked[0].Criterion}
	}

	sums := make(map[DistrictID]int, len(ranked[0].Ranks))
	for _, rc := range ranked {
		for id, r := range rc.Ranks {
			sums[id] += r
		}
	}

	order := slices.Sorted(maps.Keys(sums))
	slices.SortStableFunc(order, func(a, b DistrictID) int {
		return cmp.Compare(sums[b], sums[a])
	})
	final := competitionRanks(order, func(a, b DistrictID) bool {
		return sums[a] == sums[b]
	})

	scores := make(map[DistrictID]CompositeScore, len(sums))
	for id, sum := range sums {
		scores[id] = CompositeScore{District: id, SumOfRanks: sum, FinalRank: final[id]}
	}
	return scores, nil
}

// SortedScores lists composite scores by final rank, ties by district id.
func SortedScores(scores map[DistrictID]CompositeScore) []CompositeScore {
	out := slices.Collect(maps.Values(scores))
	slices.SortFunc(out, func(a, b CompositeScore) int {
		if c := cmp.Compare(a.FinalRank, b.FinalRank); c != 0 {
			return c
		}
		return cmp.Compare(a.District, b.District)
	})
	return out
}

func checkCoverage(ranked []RankedCriterion) error {
	union := make(map[DistrictID]struct{})
	for _, rc := range ranked {
		for id := range rc.Ranks {
			union[id] = struct{}{}
		}
	}

	complete := slices.IndexFunc(ranked, func(rc RankedCriterion) bool {
		return len(rc.Ranks) == len(union)
	})
	if complete >= 0 {
		for _, rc := range ranked {
			if len(rc.Ranks) == len(union) {
				continue
			}
			return &IncompleteCriterionError{
				Criterion: rc.Criterion,
				Districts: difference(union, rc.Ranks),
			}
		}
		return nil
	}

	ref := ranked[0]
	refSet := keySet(ref.Ranks)
	for _, rc := range ranked[1:] {
		missing := difference(refSet, rc.Ranks)
		extra := difference(keySet(rc.Ranks), ref.Ranks)
		if len(missing) > 0 || len(extra) > 0 {
			return &CriterionSetMismatchError{
				Criterion: rc.Criterion,
				Reference: ref.Criterion,
				Missing:   missing,
				Extra:     extra,
			}
		}
	}
	// Unreachable: if every criterion matched the first, the first is complete.
	return &CriterionSetMismatchError{Criterion: ref.Criterion, Reference: ref.Criterion}
}

// difference returns the sorted ids of set that are absent from ranks.
func difference(set map[DistrictID]struct{}, ranks map[DistrictID]int) []DistrictID {
	var out []DistrictID
	for id := range set {
		if _, ok := ranks[id]; !ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func keySet(ranks map[DistrictID]int) map[DistrictID]struct{} {
	set := make(map[DistrictID]struct{}, len(ranks))
	for id := range ranks {
		set[id] = struct{}{}
	}
	return set
}
