package domain

import (
	"slices"
	"time"
)

// Report is a published scoring run: the engine result plus the run's
// identity and the views handed to presentation consumers.
type Report struct {
	RunID       string             `json:"run_id"`
	Fingerprint string             `json:"fingerprint"`
	GeneratedAt time.Time          `json:"generated_at"`
	Criteria    []Criterion        `json:"criteria"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Districts   []DistrictScore    `json:"districts"`

	Result Result      `json:"-"`
	Table  MetricTable `json:"-"`
}

// NewReport assembles a report from a finished run.
func NewReport(runID, fingerprint string, generatedAt time.Time, table MetricTable, result Result) *Report {
	return &Report{
		RunID:       runID,
		Fingerprint: fingerprint,
		GeneratedAt: generatedAt.UTC(),
		Criteria:    slices.Clone(result.Criteria),
		Leaderboard: result.Leaderboard(),
		Districts:   result.Choropleth(),
		Result:      result,
		Table:       table,
	}
}

// Criterion looks up a configured criterion by name.
func (r *Report) Criterion(name string) (Criterion, bool) {
	i := slices.IndexFunc(r.Criteria, func(c Criterion) bool { return c.Name == name })
	if i < 0 {
		return Criterion{}, false
	}
	return r.Criteria[i], true
}

// RunSummary is the persisted headline of a past scoring run.
type RunSummary struct {
	RunID          string     `json:"run_id"`
	Fingerprint    string     `json:"fingerprint"`
	GeneratedAt    time.Time  `json:"generated_at"`
	Districts      int        `json:"districts"`
	Criteria       int        `json:"criteria"`
	MostVulnerable DistrictID `json:"most_vulnerable"`
}

// Summary returns the run headline. MostVulnerable is the first leaderboard
// entry, or empty for an empty report.
func (r *Report) Summary() RunSummary {
	s := RunSummary{
		RunID:       r.RunID,
		Fingerprint: r.Fingerprint,
		GeneratedAt: r.GeneratedAt,
		Districts:   len(r.Districts),
		Criteria:    len(r.Criteria),
	}
	if len(r.Leaderboard) > 0 {
		s.MostVulnerable = r.Leaderboard[0].District
	}
	return s
}
