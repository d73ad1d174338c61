// Command rank scores a district metrics CSV once and prints the
// vulnerability leaderboard. It runs the same pipeline as the service, so
// its output matches what the API would publish for the same inputs.
//
// Usage:
//
//	go run ./cmd/rank \
//	  -csv data/mock/seoul_districts.csv \
//	  -criteria configs/criteria.yaml \
//	  -json out/report.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/fire-vulnerability-service/internal/adapter/csvtable"
	"github.com/couchcryptid/fire-vulnerability-service/internal/config"
	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
	"github.com/couchcryptid/fire-vulnerability-service/internal/observability"
	"github.com/couchcryptid/fire-vulnerability-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "data/mock/seoul_districts.csv", "district metrics CSV")
	encoding := flag.String("encoding", "utf-8", "CSV encoding: utf-8, cp949 or euc-kr")
	districtCol := flag.String("district-column", "자치구", "header of the district id column")
	criteriaPath := flag.String("criteria", "configs/criteria.yaml", "criteria YAML file")
	jsonOut := flag.String("json", "", "optional output path for the full JSON report")
	top := flag.Int("top", 5, "number of most vulnerable districts to list per criterion (0 to skip)")
	flag.Parse()

	criteria, err := config.LoadCriteria(*criteriaPath)
	if err != nil {
		return err
	}

	reader := csvtable.NewReader(*csvPath, *encoding, *districtCol, criteria)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := pipeline.New(reader, pipeline.EngineScorer{}, criteria, logger, observability.NewMetricsWithRegistry(prometheus.NewRegistry()))

	report, err := p.RunOnce(context.Background())
	if err != nil {
		return err
	}

	printLeaderboard(os.Stdout, report)
	if *top > 0 {
		if err := printExtremes(os.Stdout, report, *top); err != nil {
			return err
		}
	}

	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, report); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		log.Printf("wrote report: %s", *jsonOut)
	}
	return nil
}

func printLeaderboard(w io.Writer, report *domain.Report) {
	fmt.Fprintf(w, "Run %s (%d districts, %d criteria)\n\n", report.RunID, len(report.Districts), len(report.Criteria))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := []string{"RANK", "DISTRICT", "SUM"}
	for _, c := range report.Criteria {
		headers = append(headers, c.Name)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for _, e := range report.Leaderboard {
		ds, _ := report.Result.District(e.District)
		cells := []string{fmt.Sprint(e.FinalRank), string(e.District), fmt.Sprint(e.SumOfRanks)}
		for _, c := range report.Criteria {
			cells = append(cells, fmt.Sprint(ds.CriterionRanks[c.Name]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

func printExtremes(w io.Writer, report *domain.Report, n int) error {
	fmt.Fprintln(w)
	for _, c := range report.Criteria {
		ex, err := domain.MostVulnerable(report.Table, c, n)
		if err != nil {
			return err
		}
		names := make([]string, len(ex.Districts))
		for i, d := range ex.Districts {
			names[i] = fmt.Sprintf("%s (%g)", d.District, d.Value)
		}
		label := c.Label
		if label == "" {
			label = c.Name
		}
		fmt.Fprintf(w, "%s [%s] mean %.1f: %s\n", label, c.Direction, ex.Mean, strings.Join(names, ", "))
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
