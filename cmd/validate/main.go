// Command validate performs data integrity checks on a district metrics CSV
// and its criteria file before they are handed to the service. It verifies
// district coverage, column completeness, value sanity, and that a full
// scoring run produces a consistent leaderboard.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/mock/seoul_districts.csv \
//	  -criteria configs/criteria.yaml \
//	  -districts 25
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/couchcryptid/fire-vulnerability-service/internal/adapter/csvtable"
	"github.com/couchcryptid/fire-vulnerability-service/internal/config"
	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "district metrics CSV")
	criteriaPath := flag.String("criteria", "configs/criteria.yaml", "criteria YAML file")
	encoding := flag.String("encoding", "utf-8", "CSV encoding: utf-8, cp949 or euc-kr")
	districtCol := flag.String("district-column", "자치구", "header of the district id column")
	districts := flag.Int("districts", 25, "expected number of districts (0 to skip the check)")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *criteriaPath, *encoding, *districtCol, *districts); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, criteriaPath, encoding, districtCol string, expectedDistricts int) int {
	fmt.Println("=== District Metrics Validation ===")
	fmt.Println()

	criteria, err := config.LoadCriteria(criteriaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load criteria: %v\n", err)
		return 1
	}

	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open CSV: %v\n", err)
		return 1
	}
	table, err := csvtable.Decode(f, encoding, districtCol, criteria)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decode CSV: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateCoverage(table, expectedDistricts),
		validateCompleteness(table, criteria),
		validateValues(table, criteria),
		validateEvaluation(table, criteria),
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Input: %d districts, %d criteria\n", table.Len(), len(criteria))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: District Coverage ──

func validateCoverage(table domain.MetricTable, expected int) *phase {
	p := &phase{name: "Phase 1: District Coverage"}
	if table.Len() == 0 {
		p.errorf("table has no districts")
	}
	if expected > 0 && table.Len() != expected {
		p.errorf("expected %d districts, got %d", expected, table.Len())
	}
	return p
}

// ── Phase 2: Column Completeness ──
// Every criterion needs a value for every district or ranking fails.

func validateCompleteness(table domain.MetricTable, criteria []domain.Criterion) *phase {
	p := &phase{name: "Phase 2: Column Completeness"}
	for _, c := range criteria {
		col := table.Column(c.Name)
		for _, id := range table.Districts() {
			if _, ok := col[id]; !ok {
				p.errorf("%s (%s): no value for %s", c.Name, c.SourceColumn(), id)
			}
		}
	}
	return p
}

// ── Phase 3: Value Sanity ──
// Metrics are counts, ratios and durations, so none may be negative.

func validateValues(table domain.MetricTable, criteria []domain.Criterion) *phase {
	p := &phase{name: "Phase 3: Value Sanity"}
	for _, c := range criteria {
		col := table.Column(c.Name)
		distinct := map[float64]bool{}
		for _, id := range table.Districts() {
			v, ok := col[id]
			if !ok {
				continue
			}
			distinct[v] = true
			switch {
			case math.IsNaN(v) || math.IsInf(v, 0):
				p.errorf("%s: %s is not finite", c.Name, id)
			case v < 0:
				p.errorf("%s: %s is negative (%g)", c.Name, id, v)
			}
		}
		if len(col) > 1 && len(distinct) == 1 {
			p.errorf("%s: every district has the same value, the criterion cannot discriminate", c.Name)
		}
	}
	return p
}

// ── Phase 4: Scoring Consistency ──

func validateEvaluation(table domain.MetricTable, criteria []domain.Criterion) *phase {
	p := &phase{name: "Phase 4: Scoring Consistency"}

	result, err := domain.Evaluate(table, criteria)
	if err != nil {
		p.errorf("evaluate: %v", err)
		return p
	}

	n := table.Len()
	for _, ds := range result.Choropleth() {
		sum := 0
		for _, c := range criteria {
			r, ok := ds.CriterionRanks[c.Name]
			if !ok {
				p.errorf("%s: missing rank for %s", ds.District, c.Name)
				continue
			}
			if r < 1 || r > n {
				p.errorf("%s: %s rank %d out of range 1..%d", ds.District, c.Name, r, n)
			}
			sum += r
		}
		if sum != ds.SumOfRanks {
			p.errorf("%s: sum of ranks %d, recomputed %d", ds.District, ds.SumOfRanks, sum)
		}
	}

	board := result.Leaderboard()
	if len(board) != n {
		p.errorf("leaderboard has %d entries, table has %d districts", len(board), n)
	}
	if !slices.IsSortedFunc(board, func(a, b domain.LeaderboardEntry) int { return a.FinalRank - b.FinalRank }) {
		p.errorf("leaderboard is not ordered by final rank")
	}
	if len(board) > 0 && board[0].FinalRank != 1 {
		p.errorf("leaderboard starts at rank %d", board[0].FinalRank)
	}
	return p
}
