package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
	"github.com/couchcryptid/fire-vulnerability-service/internal/observability"
	"github.com/couchcryptid/fire-vulnerability-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// --- mocks ---

type stubSource struct {
	table domain.MetricTable
	// failFirst makes the first n calls fail.
	failFirst int32
	calls     atomic.Int32
}

func (s *stubSource) LoadTable(_ context.Context) (domain.MetricTable, error) {
	n := s.calls.Add(1)
	if n <= s.failFirst {
		return domain.MetricTable{}, fmt.Errorf("read attempt %d: disk unavailable", n)
	}
	return s.table, nil
}

type recordingLoader struct {
	mu      sync.Mutex
	reports []*domain.Report
	err     error
}

func (l *recordingLoader) LoadReport(_ context.Context, r *domain.Report) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.reports = append(l.reports, r)
	return nil
}

func (l *recordingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reports)
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequentialIDs() func() string {
	var n atomic.Int32
	return func() string { return fmt.Sprintf("run-%d", n.Add(1)) }
}

func testCriteria() []domain.Criterion {
	return []domain.Criterion{
		{Name: "fire_incidents", Direction: domain.HigherIsWorse},
		{Name: "emergency_extinguishers", Direction: domain.LowerIsWorse},
	}
}

func testTable(t *testing.T) domain.MetricTable {
	t.Helper()
	table, err := domain.NewMetricTable([]domain.District{
		{ID: "강남구", Metrics: map[string]float64{"fire_incidents": 420, "emergency_extinguishers": 12}},
		{ID: "종로구", Metrics: map[string]float64{"fire_incidents": 310, "emergency_extinguishers": 48}},
		{ID: "관악구", Metrics: map[string]float64{"fire_incidents": 380, "emergency_extinguishers": 9}},
	})
	require.NoError(t, err)
	return table
}

func newPipeline(src pipeline.TableSource, metrics *observability.Metrics, opts ...pipeline.Option) *pipeline.Pipeline {
	opts = append([]pipeline.Option{pipeline.WithRunIDs(sequentialIDs())}, opts...)
	return pipeline.New(src, pipeline.EngineScorer{}, testCriteria(), discardLogger(), metrics, opts...)
}

// --- RunOnce ---

func TestPipeline_RunOnce(t *testing.T) {
	table := testTable(t)
	metrics := observability.NewMetricsForTesting()
	loader := &recordingLoader{}
	p := newPipeline(&stubSource{table: table}, metrics,
		pipeline.WithClock(clockwork.NewFakeClockAt(t0)),
		pipeline.WithLoader("store", loader),
	)

	require.Error(t, p.CheckReadiness(context.Background()))

	report, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, t0, report.GeneratedAt)
	assert.Equal(t, pipeline.Fingerprint(table, testCriteria()), report.Fingerprint)
	assert.Equal(t, []domain.LeaderboardEntry{
		{FinalRank: 1, District: "강남구", SumOfRanks: 5},
		{FinalRank: 1, District: "관악구", SumOfRanks: 5},
		{FinalRank: 3, District: "종로구", SumOfRanks: 2},
	}, report.Leaderboard)

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Same(t, report, latest)
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 1, loader.count())

	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ScoringRuns.WithLabelValues("success")), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(metrics.DistrictsScored), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.ActiveCriteria), 0)
	assert.InDelta(t, float64(t0.Unix()), testutil.ToFloat64(metrics.LastSuccess), 0)
}

func TestPipeline_RunOnce_FailureKeepsPreviousReport(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	src := &stubSource{table: testTable(t)}
	p := newPipeline(src, metrics)

	first, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	src.failFirst = 10
	_, err = p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load table")

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, first.RunID, latest.RunID)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ScoringRuns.WithLabelValues("error")), 0)
}

func TestPipeline_RunOnce_IncompleteTable(t *testing.T) {
	table, err := domain.NewMetricTable([]domain.District{
		{ID: "A", Metrics: map[string]float64{"fire_incidents": 1, "emergency_extinguishers": 2}},
		{ID: "B", Metrics: map[string]float64{"fire_incidents": 3}},
	})
	require.NoError(t, err)

	p := newPipeline(&stubSource{table: table}, observability.NewMetricsForTesting())
	_, err = p.RunOnce(context.Background())

	var incomplete *domain.IncompleteCriterionError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "emergency_extinguishers", incomplete.Criterion)
	assert.Equal(t, []domain.DistrictID{"B"}, incomplete.Districts)

	_, ok := p.Latest()
	assert.False(t, ok)
}

func TestPipeline_RunOnce_LoaderFailureDoesNotDiscardReport(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	broken := &recordingLoader{err: errors.New("broker unreachable")}
	healthy := &recordingLoader{}
	p := newPipeline(&stubSource{table: testTable(t)}, metrics,
		pipeline.WithLoader("kafka", broken),
		pipeline.WithLoader("store", healthy),
	)

	report, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, 1, healthy.count())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.LoaderErrors.WithLabelValues("kafka")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.LoaderErrors.WithLabelValues("store")), 0)
	_, ok := p.Latest()
	assert.True(t, ok)
}

// --- Run ---

func startRun(t *testing.T, p *pipeline.Pipeline) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitForTimer(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}

func awaitStop(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop after cancellation")
	}
}

func TestPipeline_Run_RefreshesOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	src := &stubSource{table: testTable(t)}
	metrics := observability.NewMetricsForTesting()
	p := newPipeline(src, metrics, pipeline.WithClock(clock), pipeline.WithRefreshInterval(time.Minute))

	cancel, done := startRun(t, p)

	waitForTimer(t, clock)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.PipelineRunning), 0)

	clock.Advance(time.Minute)
	waitForTimer(t, clock)
	assert.Equal(t, int32(2), src.calls.Load())

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, "run-2", latest.RunID)
	assert.Equal(t, t0.Add(time.Minute), latest.GeneratedAt)

	awaitStop(t, cancel, done)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_RetriesWithBackoff(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	src := &stubSource{table: testTable(t), failFirst: 2}
	metrics := observability.NewMetricsForTesting()
	p := newPipeline(src, metrics, pipeline.WithClock(clock), pipeline.WithRefreshInterval(time.Minute))

	cancel, done := startRun(t, p)

	// First failure waits 200ms.
	waitForTimer(t, clock)
	assert.Equal(t, int32(1), src.calls.Load())
	require.Error(t, p.CheckReadiness(context.Background()))

	clock.Advance(200 * time.Millisecond)

	// Second failure waits 400ms.
	waitForTimer(t, clock)
	assert.Equal(t, int32(2), src.calls.Load())
	clock.Advance(399 * time.Millisecond)
	assert.Equal(t, int32(2), src.calls.Load())
	clock.Advance(time.Millisecond)

	// Third attempt succeeds and waits for the refresh interval.
	waitForTimer(t, clock)
	assert.Equal(t, int32(3), src.calls.Load())
	require.NoError(t, p.CheckReadiness(context.Background()))

	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.ScoringRuns.WithLabelValues("error")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ScoringRuns.WithLabelValues("success")), 0)

	awaitStop(t, cancel, done)
}

func TestPipeline_Run_BackoffCappedAtRefreshInterval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	src := &stubSource{table: testTable(t), failFirst: 3}
	p := newPipeline(src, observability.NewMetricsForTesting(),
		pipeline.WithClock(clock), pipeline.WithRefreshInterval(300*time.Millisecond))

	cancel, done := startRun(t, p)

	waitForTimer(t, clock)
	clock.Advance(200 * time.Millisecond)

	// 400ms would exceed the refresh interval, so the wait is 300ms.
	for attempt := int32(2); attempt <= 3; attempt++ {
		waitForTimer(t, clock)
		assert.Equal(t, attempt, src.calls.Load())
		clock.Advance(299 * time.Millisecond)
		assert.Equal(t, attempt, src.calls.Load())
		clock.Advance(time.Millisecond)
	}

	waitForTimer(t, clock)
	assert.Equal(t, int32(4), src.calls.Load())
	require.NoError(t, p.CheckReadiness(context.Background()))

	awaitStop(t, cancel, done)
}

func TestPipeline_Run_NoRefreshRunsOnce(t *testing.T) {
	src := &stubSource{table: testTable(t)}
	p := newPipeline(src, observability.NewMetricsForTesting())

	cancel, done := startRun(t, p)

	require.Eventually(t, func() bool {
		_, ok := p.Latest()
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	awaitStop(t, cancel, done)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	src := &stubSource{table: testTable(t), failFirst: 1000}
	p := newPipeline(src, observability.NewMetricsForTesting(), pipeline.WithRefreshInterval(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	_, ok := p.Latest()
	assert.False(t, ok)
}
