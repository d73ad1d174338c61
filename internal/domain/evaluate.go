package domain

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// Result is the output of one scoring run: the criteria used, each
// criterion's ranks and the composite score of every district.
type Result struct {
	Criteria []Criterion
	Ranked   []RankedCriterion
	Scores   map[DistrictID]CompositeScore
}

// LeaderboardEntry is one row of the vulnerability leaderboard.
type LeaderboardEntry struct {
	FinalRank  int        `json:"final_rank"`
	District   DistrictID `json:"district"`
	SumOfRanks int        `json:"sum_of_ranks"`
}

// DistrictScore is a district's composite score plus its rank on every
// criterion, keyed by criterion name. Choropleth layers use SumOfRanks as
// fill intensity and CriterionRanks as tooltip fields.
type DistrictScore struct {
	CompositeScore
	CriterionRanks map[string]int `json:"criterion_ranks"`
}

// Evaluate runs the full engine over a table: it validates the criteria,
// ranks each one against every district and scores the ranks. A run either
// succeeds for every district or returns no result.
func Evaluate(table MetricTable, criteria []Criterion) (Result, error) {
	if err := ValidateCriteria(criteria); err != nil {
		return Result{}, err
	}

	ranked := make([]RankedCriterion, 0, len(criteria))
	for _, c := range criteria {
		rc, err := RankCriterion(c, table)
		if err != nil {
			return Result{}, err
		}
		ranked = append(ranked, rc)
	}

	scores, err := Score(ranked)
	if err != nil {
		return Result{}, fmt.Errorf("score criteria: %w", err)
	}

	return Result{
		Criteria: slices.Clone(criteria),
		Ranked:   ranked,
		Scores:   scores,
	}, nil
}

// Leaderboard lists districts most vulnerable first.
func (r Result) Leaderboard() []LeaderboardEntry {
	sorted := SortedScores(r.Scores)
	out := make([]LeaderboardEntry, len(sorted))
	for i, s := range sorted {
		out[i] = LeaderboardEntry{FinalRank: s.FinalRank, District: s.District, SumOfRanks: s.SumOfRanks}
	}
	return out
}

// Choropleth lists every district's score and criterion ranks, ordered by id.
func (r Result) Choropleth() []DistrictScore {
	ids := slices.Sorted(maps.Keys(r.Scores))
	out := make([]DistrictScore, 0, len(ids))
	for _, id := range ids {
		ds, _ := r.District(id)
		out = append(out, ds)
	}
	return out
}

// District returns one district's composite score and criterion ranks.
func (r Result) District(id DistrictID) (DistrictScore, bool) {
	s, ok := r.Scores[id]
	if !ok {
		return DistrictScore{}, false
	}
	ranks := make(map[string]int, len(r.Ranked))
	for _, rc := range r.Ranked {
		ranks[rc.Criterion] = rc.Ranks[id]
	}
	return DistrictScore{CompositeScore: s, CriterionRanks: ranks}, true
}

// CriterionRanks returns the ranks computed for one criterion.
func (r Result) CriterionRanks(name string) (RankedCriterion, bool) {
	i := slices.IndexFunc(r.Ranked, func(rc RankedCriterion) bool { return rc.Criterion == name })
	if i < 0 {
		return RankedCriterion{}, false
	}
	return r.Ranked[i], true
}

// RankEntry is one district's rank on a single criterion.
type RankEntry struct {
	Rank     int        `json:"rank"`
	District DistrictID `json:"district"`
}

// SortedRanks lists a criterion's ranks most vulnerable first (highest rank
// first), ties by district id.
func (rc RankedCriterion) SortedRanks() []RankEntry {
	out := make([]RankEntry, 0, len(rc.Ranks))
	for id, r := range rc.Ranks {
		out = append(out, RankEntry{Rank: r, District: id})
	}
	slices.SortFunc(out, func(a, b RankEntry) int {
		if c := cmp.Compare(b.Rank, a.Rank); c != 0 {
			return c
		}
		return cmp.Compare(a.District, b.District)
	})
	return out
}
