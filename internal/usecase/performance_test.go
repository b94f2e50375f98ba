package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/services/analytics"
	"SignalPulse/internal/services/attribution"
)

type perfFixture struct {
	svc     *PerformanceService
	signals *memSignals
	perf    *memPerformance
	aggs    *memAggregates
	attr    *pnlAttributor
	metrics *fakeMetrics
}

func newPerfFixture() *perfFixture {
	f := &perfFixture{
		signals: newMemSignals(),
		perf:    newMemPerformance(),
		aggs:    newMemAggregates(),
		attr:    &pnlAttributor{fail: map[string]error{}},
		metrics: newFakeMetrics(),
	}
	f.signals.perf = f.perf
	f.svc = NewPerformanceService(f.signals, f.perf, f.aggs, f.attr,
		analytics.Params{RiskFreeRate: 0.05, TradingDays: 252}, f.metrics, nil)
	return f
}

func closedSignal(t *testing.T, f *perfFixture, id string, strategy models.Strategy, exit float64) {
	t.Helper()
	s := activeSignal(id, models.TierBasic, models.Buy)
	s.Key = "K_" + id
	s.Strategy = strategy
	_, err := f.signals.Insert(context.Background(), []models.Signal{s})
	require.NoError(t, err)
	_, err = f.signals.Close(context.Background(), id, exit, openedAt.Add(time.Hour))
	require.NoError(t, err)
}

func TestPerformance_AttributeSignalIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newPerfFixture()
	closedSignal(t, f, "a", models.StrategyMomentum, 110)
	ctx := context.Background()

	rec, err := f.svc.AttributeSignal(ctx, "a")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, rec.PnLPercent, 1e-9)

	again, err := f.svc.AttributeSignal(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, rec.SignalID, again.SignalID)
	assert.Equal(t, 1, f.attr.calls)
	assert.Equal(t, 1, f.metrics.attrib["saved"])
	assert.Equal(t, 1, f.metrics.attrib["duplicate"])

	_, err = f.svc.AttributeSignal(ctx, "nope")
	assert.ErrorIs(t, err, ErrSignalNotFound)
}

func TestPerformance_NoExitIsReported(t *testing.T) {
	t.Parallel()

	f := newPerfFixture()
	seed(t, f.signals, activeSignal("open", models.TierBasic, models.Buy))
	f.attr.fail["open"] = attribution.ErrNoExitData

	_, err := f.svc.AttributeSignal(context.Background(), "open")
	assert.ErrorIs(t, err, attribution.ErrNoExitData)
	assert.Equal(t, 1, f.metrics.attrib["no_exit"])
	assert.False(t, f.perf.has("open"))

	_, err = f.svc.Performance(context.Background(), "open")
	assert.ErrorIs(t, err, ErrNotAttributed)
	_, err = f.svc.Performance(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSignalNotFound)
}

func TestPerformance_DailyAnalysis(t *testing.T) {
	t.Parallel()

	f := newPerfFixture()
	closedSignal(t, f, "a", models.StrategyMomentum, 110)
	closedSignal(t, f, "b", models.StrategyMomentum, 95)
	closedSignal(t, f, "c", models.StrategyTrend, 105)
	closedSignal(t, f, "d", models.StrategyTrend, 101)
	f.attr.fail["d"] = errors.New("benchmark provider down")
	ctx := context.Background()

	res, err := f.svc.RunDailyAnalysis(ctx, openedAt.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attributed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), res.Date)
	// ALL, US_EQUITY, MOMENTUM, TREND
	require.Len(t, res.Aggregates, 4)

	all, err := f.svc.Aggregate(ctx, openedAt, models.AllScope())
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalSignals)
	assert.Equal(t, 2, all.WinningSignals)
	assert.InDelta(t, 10.0, all.BestTrade, 1e-9)
	assert.InDelta(t, -5.0, all.WorstTrade, 1e-9)

	mom, err := f.svc.Aggregate(ctx, openedAt, models.StrategyScope(models.StrategyMomentum))
	require.NoError(t, err)
	assert.Equal(t, 2, mom.TotalSignals)
	assert.InDelta(t, 2.0, mom.ProfitFactor, 1e-9)

	trend, err := f.svc.Aggregate(ctx, openedAt, models.StrategyScope(models.StrategyTrend))
	require.NoError(t, err)
	assert.True(t, math.IsInf(trend.ProfitFactor, 1))

	// the failed signal is picked up by the next run
	delete(f.attr.fail, "d")
	res, err = f.svc.RunDailyAnalysis(ctx, openedAt)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attributed)
	all, err = f.svc.Aggregate(ctx, openedAt, models.AllScope())
	require.NoError(t, err)
	assert.Equal(t, 4, all.TotalSignals)
}

func TestPerformance_DailyAnalysisRewritesEntryDay(t *testing.T) {
	t.Parallel()

	f := newPerfFixture()
	ctx := context.Background()
	closedSignal(t, f, "a", models.StrategyMomentum, 110)
	swing := activeSignal("b", models.TierBasic, models.Buy)
	seed(t, f.signals, swing)

	_, err := f.svc.RunDailyAnalysis(ctx, openedAt)
	require.NoError(t, err)
	all, err := f.aggs.Get(ctx, openedAt, models.AllScope())
	require.NoError(t, err)
	assert.Equal(t, 1, all.TotalSignals)

	nextDay := openedAt.AddDate(0, 0, 1)
	_, err = f.signals.Close(ctx, "b", 120, nextDay)
	require.NoError(t, err)

	res, err := f.svc.RunDailyAnalysis(ctx, nextDay)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attributed)

	all, err = f.aggs.Get(ctx, openedAt, models.AllScope())
	require.NoError(t, err)
	assert.Equal(t, 2, all.TotalSignals)
	assert.InDelta(t, 20.0, all.BestTrade, 1e-9)

	// the run date is stored too, even with nothing entered on it
	empty, err := f.aggs.Get(ctx, nextDay, models.AllScope())
	require.NoError(t, err)
	assert.Zero(t, empty.TotalSignals)
}

func TestPerformance_AggregateFallsBackToRecords(t *testing.T) {
	t.Parallel()

	f := newPerfFixture()
	closedSignal(t, f, "a", models.StrategyMomentum, 110)
	ctx := context.Background()
	_, err := f.svc.AttributeSignal(ctx, "a")
	require.NoError(t, err)

	agg, err := f.svc.Aggregate(ctx, openedAt, models.AssetClassScope(models.AssetUSEquity))
	require.NoError(t, err)
	assert.Equal(t, 1, agg.TotalSignals)
	assert.Empty(t, f.aggs.rows, "reads never write")

	empty, err := f.svc.Aggregate(ctx, openedAt.AddDate(0, 0, 3), models.AllScope())
	require.NoError(t, err)
	assert.Zero(t, empty.TotalSignals)
}

func TestPerformance_StoreFailureSurfaces(t *testing.T) {
	t.Parallel()

	f := newPerfFixture()
	f.aggs.err = errors.New("clickhouse unavailable")
	_, err := f.svc.RunDailyAnalysis(context.Background(), openedAt)
	assert.ErrorContains(t, err, "clickhouse unavailable")
	assert.Equal(t, 1, f.metrics.errors["aggregate_store"])
}

func TestPerformance_Report(t *testing.T) {
	t.Parallel()

	f := newPerfFixture()
	closedSignal(t, f, "a", models.StrategyMomentum, 110)
	closedSignal(t, f, "b", models.StrategyTrend, 98)
	ctx := context.Background()
	_, err := f.svc.RunDailyAnalysis(ctx, openedAt)
	require.NoError(t, err)

	rep, err := f.svc.Report(ctx, openedAt, openedAt)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Overall.TotalSignals)
	assert.InDelta(t, 50.0, rep.Overall.WinRate, 1e-9)

	_, err = f.svc.Report(ctx, openedAt, openedAt.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInvalidRange)
}
