package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
	"github.com/couchcryptid/fire-vulnerability-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff    = 200 * time.Millisecond
	defaultMaxBackoff = 5 * time.Second
)

// TableSource loads the current metric table.
type TableSource interface {
	LoadTable(ctx context.Context) (domain.MetricTable, error)
}

// Scorer turns a table and a criterion set into a scoring result.
type Scorer interface {
	Score(ctx context.Context, table domain.MetricTable, criteria []domain.Criterion) (domain.Result, error)
}

// ReportLoader publishes a finished report to a destination.
type ReportLoader interface {
	LoadReport(ctx context.Context, report *domain.Report) error
}

type sink struct {
	name   string
	loader ReportLoader
}

// Pipeline orchestrates the load-score-publish loop and holds the latest report.
type Pipeline struct {
	source   TableSource
	scorer   Scorer
	criteria []domain.Criterion
	sinks    []sink
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	interval time.Duration
	newRunID func() string
	latest   atomic.Pointer[domain.Report]
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for timestamps, refresh and backoff timers.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithRefreshInterval sets the period between runs. Zero runs once.
func WithRefreshInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.interval = d }
}

// WithLoader adds a named sink that receives every successful report.
func WithLoader(name string, l ReportLoader) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, sink{name: name, loader: l}) }
}

// WithRunIDs overrides run id generation.
func WithRunIDs(fn func() string) Option {
	return func(p *Pipeline) { p.newRunID = fn }
}

// New creates a Pipeline with the given stages and observability.
func New(source TableSource, scorer Scorer, criteria []domain.Criterion, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   source,
		scorer:   scorer,
		criteria: criteria,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Latest returns the most recent successful report.
func (p *Pipeline) Latest() (*domain.Report, bool) {
	r := p.latest.Load()
	return r, r != nil
}

// CheckReadiness returns nil once a report has been produced, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.latest.Load() == nil {
		return errors.New("no scoring run has completed yet")
	}
	return nil
}

// RunOnce performs a full recomputation. On success the report replaces the
// latest one and is handed to every sink; sink failures are logged and
// counted but do not fail the run. On failure the previous report stays.
func (p *Pipeline) RunOnce(ctx context.Context) (*domain.Report, error) {
	start := p.clock.Now()
	runID := p.newRunID()

	report, err := p.score(ctx, runID)
	if err != nil {
		p.metrics.ScoringRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	p.latest.Store(report)
	p.metrics.ScoringRuns.WithLabelValues("success").Inc()
	p.metrics.DistrictsScored.Set(float64(len(report.Districts)))
	p.metrics.ActiveCriteria.Set(float64(len(report.Criteria)))
	p.metrics.LastSuccess.Set(float64(report.GeneratedAt.Unix()))

	p.publish(ctx, report)

	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	p.logger.Info("scoring run complete",
		"run_id", report.RunID,
		"districts", len(report.Districts),
		"criteria", len(report.Criteria),
		"fingerprint", report.Fingerprint,
	)
	return report, nil
}

func (p *Pipeline) score(ctx context.Context, runID string) (*domain.Report, error) {
	table, err := p.source.LoadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("load table: %w", err)
	}
	result, err := p.scorer.Score(ctx, table, p.criteria)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	return domain.NewReport(runID, Fingerprint(table, p.criteria), p.clock.Now(), table, result), nil
}

func (p *Pipeline) publish(ctx context.Context, report *domain.Report) {
	for _, s := range p.sinks {
		if err := s.loader.LoadReport(ctx, report); err != nil {
			p.logger.Error("publish report failed", "sink", s.name, "run_id", report.RunID, "error", err)
			p.metrics.LoaderErrors.WithLabelValues(s.name).Inc()
		}
	}
}

// Run scores once, then again every refresh interval, until the context is
// cancelled. A failed run is retried with exponential backoff capped at the
// refresh interval. With no refresh interval Run waits for cancellation
// after the first success.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "refresh_interval", p.interval, "criteria", len(p.criteria))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	maxBackoff := defaultMaxBackoff
	if p.interval > 0 {
		maxBackoff = max(p.interval, initialBackoff)
	}
	backoff := initialBackoff

	for {
		_, err := p.RunOnce(ctx)
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		wait := p.interval
		if err != nil {
			p.logger.Error("scoring run failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = retry.NextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
			if p.interval <= 0 {
				<-ctx.Done()
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
		}

		if !sleepWithContext(ctx, p.clock, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// sleepWithContext is retry.SleepWithContext on an injected clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
