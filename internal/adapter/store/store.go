// Package store persists scoring run history in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver names a supported database.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Store records every published report. It implements pipeline.ReportLoader
// and the HTTP run history.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// Open opens the database and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName, schema string
	sb := sq.StatementBuilder
	switch driver {
	case DriverSQLite:
		drvName, schema = "sqlite", schemaSQLite // modernc driver
		if dsn == "" {
			dsn = "file:fire-vulnerability.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
		sb = sb.PlaceholderFormat(sq.Question)
	case DriverPostgres:
		drvName, schema = "pgx", schemaPostgres // pgx stdlib driver
		sb = sb.PlaceholderFormat(sq.Dollar)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db, sb: sb}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadReport stores the run and every district score in one transaction.
func (s *Store) LoadReport(ctx context.Context, report *domain.Report) error {
	criteria, err := json.Marshal(report.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	summary := report.Summary()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	q, args, err := s.sb.Insert("scoring_runs").
		Columns("run_id", "fingerprint", "generated_at", "districts", "criteria", "most_vulnerable", "criteria_json").
		Values(summary.RunID, summary.Fingerprint, summary.GeneratedAt.UnixMilli(),
			summary.Districts, summary.Criteria, string(summary.MostVulnerable), string(criteria)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}

	if len(report.Districts) > 0 {
		ins := s.sb.Insert("district_scores").
			Columns("run_id", "district", "final_rank", "sum_of_ranks", "criterion_ranks_json")
		for _, ds := range report.Districts {
			ranks, err := json.Marshal(ds.CriterionRanks)
			if err != nil {
				return fmt.Errorf("encode ranks for %s: %w", ds.District, err)
			}
			ins = ins.Values(report.RunID, string(ds.District), ds.FinalRank, ds.SumOfRanks, string(ranks))
		}
		q, args, err := ins.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert district scores: %w", err)
		}
	}

	return tx.Commit()
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	q, args, err := s.sb.
		Select("run_id", "fingerprint", "generated_at", "districts", "criteria", "most_vulnerable").
		From("scoring_runs").
		OrderBy("generated_at DESC", "run_id DESC").
		Limit(uint64(max(limit, 1))).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		var (
			r           domain.RunSummary
			generatedAt int64
			top         string
		)
		if err := rows.Scan(&r.RunID, &r.Fingerprint, &generatedAt, &r.Districts, &r.Criteria, &top); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.GeneratedAt = time.UnixMilli(generatedAt).UTC()
		r.MostVulnerable = domain.DistrictID(top)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS scoring_runs (
  run_id TEXT PRIMARY KEY,
  fingerprint TEXT NOT NULL,
  generated_at INTEGER NOT NULL,
  districts INTEGER NOT NULL,
  criteria INTEGER NOT NULL,
  most_vulnerable TEXT NOT NULL DEFAULT '',
  criteria_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scoring_runs_generated_at ON scoring_runs(generated_at);

CREATE TABLE IF NOT EXISTS district_scores (
  run_id TEXT NOT NULL REFERENCES scoring_runs(run_id) ON DELETE CASCADE,
  district TEXT NOT NULL,
  final_rank INTEGER NOT NULL,
  sum_of_ranks INTEGER NOT NULL,
  criterion_ranks_json TEXT NOT NULL,
  PRIMARY KEY (run_id, district)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS scoring_runs (
  run_id TEXT PRIMARY KEY,
  fingerprint TEXT NOT NULL,
  generated_at BIGINT NOT NULL,
  districts INTEGER NOT NULL,
  criteria INTEGER NOT NULL,
  most_vulnerable TEXT NOT NULL DEFAULT '',
  criteria_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scoring_runs_generated_at ON scoring_runs(generated_at);

CREATE TABLE IF NOT EXISTS district_scores (
  run_id TEXT NOT NULL REFERENCES scoring_runs(run_id) ON DELETE CASCADE,
  district TEXT NOT NULL,
  final_rank INTEGER NOT NULL,
  sum_of_ranks INTEGER NOT NULL,
  criterion_ranks_json TEXT NOT NULL,
  PRIMARY KEY (run_id, district)
);
`
