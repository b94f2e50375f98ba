package usecase

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPulse/internal/domain/models"
	domsvc "SignalPulse/internal/domain/service"
	"SignalPulse/internal/services/detectors"
	"SignalPulse/internal/services/indicators"
	"SignalPulse/pkg/config"
)

var cycleAt = time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

func engineConfig() config.EngineConfig {
	var cfg config.EngineConfig
	cfg.MinRiskReward = 2.0
	cfg.MinConfidence = 6
	cfg.MaxSignalsPerCycle = 15
	cfg.Concurrency = 3
	cfg.SymbolTimeout = time.Second
	cfg.InvestmentHour = 9
	cfg.FamilyMinConfidence = map[string]int{"MOMENTUM": 6, "TREND": 6, "VALUE": 7}
	cfg.Universe.USEquity = []string{"AAPL", "MSFT", "NVDA"}
	cfg.Horizons.Intraday = config.HorizonConfig{Period: "2d", Interval: "5m", MinBars: 50}
	cfg.Horizons.Swing = config.HorizonConfig{Period: "30d", Interval: "1h", MinBars: 50}
	cfg.Horizons.Investment = config.HorizonConfig{Period: "1y", Interval: "1d", MinBars: 50}
	return cfg
}

func trendDetector() stubDetector {
	return stubDetector{
		strategy: models.StrategyTrend,
		horizon:  models.HorizonSwing,
		propose: func(f *indicators.Frame) (models.Proposal, bool) {
			c := f.Last(f.Close)
			return models.TrendProposal{Close: c, EMA12: c, EMA26: c * 0.99, MACD: 1}, true
		},
	}
}

func momentumDetector() stubDetector {
	return stubDetector{
		strategy: models.StrategyMomentum,
		horizon:  models.HorizonIntraday,
		propose: func(f *indicators.Frame) (models.Proposal, bool) {
			c := f.Last(f.Close)
			return models.MomentumProposal{Close: c, Resistance: c, EMA20: c * 0.99}, true
		},
	}
}

func valueDetector() stubDetector {
	return stubDetector{
		strategy: models.StrategyInvestment,
		horizon:  models.HorizonInvestment,
		propose: func(f *indicators.Frame) (models.Proposal, bool) {
			c := f.Last(f.Close)
			return models.InvestmentProposal{Variant: models.VariantValue, Close: c, Mean120: c * 1.1, Low60: c * 0.9}, true
		},
	}
}

type cycleFixture struct {
	cycle   *DetectionCycle
	data    *fakeProvider
	store   *memSignals
	pub     *recPublisher
	metrics *fakeMetrics
}

func newCycleFixture(cfg config.EngineConfig, scorer stubScorer, ds ...domsvc.Detector) *cycleFixture {
	f := &cycleFixture{
		data: &fakeProvider{
			bars: map[string][]models.Bar{
				"AAPL": bars(60, 100),
				"MSFT": bars(60, 300),
				"NVDA": bars(60, 800),
			},
			errs: map[string]error{},
		},
		store:   newMemSignals(),
		pub:     &recPublisher{},
		metrics: newFakeMetrics(),
	}
	f.cycle = NewDetectionCycle(cfg, f.data, scorer, detectors.NewBuilder(cfg.MinRiskReward, nil), ds, f.store, f.pub, f.metrics, nil)
	f.cycle.now = func() time.Time { return cycleAt }
	return f
}

func TestDetectionCycle_IsolatesSymbolFailures(t *testing.T) {
	t.Parallel()

	f := newCycleFixture(engineConfig(), stubScorer{models.StrategyTrend: 7, models.StrategyMomentum: 8},
		trendDetector(), momentumDetector())
	f.data.errs["MSFT"] = errors.New("provider unavailable")

	res, err := f.cycle.Run(context.Background(), CycleOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Symbols)
	assert.Contains(t, res.Failures, "MSFT")
	assert.Len(t, res.Failures, 1)
	assert.Equal(t, 4, res.Candidates)
	require.Len(t, res.Emitted, 4)

	// momentum outranks trend on confidence; ties keep universe order
	assert.Equal(t, "MOM_AAPL_20250303_1430", res.Emitted[0].Key)
	assert.Equal(t, "MOM_NVDA_20250303_1430", res.Emitted[1].Key)
	assert.Equal(t, "TREND_AAPL_20250303_1430", res.Emitted[2].Key)

	assert.Len(t, f.pub.emitted, 4)
	assert.Equal(t, 1, f.metrics.cycles)
	assert.Equal(t, 1, f.metrics.failed)
	assert.Equal(t, 1, f.metrics.errors["fetch"])
	assert.Zero(t, f.data.callCount("1d"), "investment horizon is gated by the hour")
}

func TestDetectionCycle_ConfidenceGates(t *testing.T) {
	t.Parallel()

	cfg := engineConfig()
	cfg.FamilyMinConfidence["TREND"] = 8
	delete(cfg.FamilyMinConfidence, "MOMENTUM")
	f := newCycleFixture(cfg, stubScorer{models.StrategyTrend: 7, models.StrategyMomentum: 5},
		trendDetector(), momentumDetector())

	res, err := f.cycle.Run(context.Background(), CycleOptions{Symbols: []string{"AAPL"}})
	require.NoError(t, err)
	assert.Empty(t, res.Emitted)
	assert.Equal(t, 1, f.metrics.proposals["TREND:rejected"], "family floor")
	assert.Equal(t, 1, f.metrics.proposals["MOMENTUM:ok"], "built, then dropped by the selector")
	assert.Empty(t, f.pub.emitted)
}

func TestDetectionCycle_CapAndShortSeries(t *testing.T) {
	t.Parallel()

	cfg := engineConfig()
	cfg.MaxSignalsPerCycle = 2
	f := newCycleFixture(cfg, stubScorer{models.StrategyTrend: 7, models.StrategyMomentum: 8},
		trendDetector(), momentumDetector())
	f.data.bars["NVDA"] = bars(10, 800)

	res, err := f.cycle.Run(context.Background(), CycleOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Failures, "a short series is not a failure")
	assert.Equal(t, 4, res.Candidates)
	require.Len(t, res.Emitted, 2)
	for _, s := range res.Emitted {
		assert.Equal(t, models.StrategyMomentum, s.Strategy)
	}
}

func TestDetectionCycle_InvestmentHourOrForce(t *testing.T) {
	t.Parallel()

	f := newCycleFixture(engineConfig(), stubScorer{models.StrategyInvestment: 8}, valueDetector())

	res, err := f.cycle.Run(context.Background(), CycleOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Candidates)
	assert.Zero(t, f.data.callCount("1d"))

	res, err = f.cycle.Run(context.Background(), CycleOptions{Symbols: []string{"AAPL"}, ForceInvestment: true})
	require.NoError(t, err)
	require.Len(t, res.Emitted, 1)
	assert.Equal(t, "VALUE", res.Emitted[0].Setup)
	assert.Equal(t, "INV_AAPL_20250303_1430", res.Emitted[0].Key)
	assert.Equal(t, 1, f.data.callCount("1d"))

	f.cycle.now = func() time.Time { return time.Date(2025, 3, 4, 9, 5, 0, 0, time.UTC) }
	res, err = f.cycle.Run(context.Background(), CycleOptions{Symbols: []string{"MSFT"}})
	require.NoError(t, err)
	assert.Len(t, res.Emitted, 1)
}

func TestDetectionCycle_InvestmentHourInMarketZone(t *testing.T) {
	t.Parallel()

	cfg := engineConfig()
	cfg.InvestmentTimezone = "Asia/Kolkata"
	f := newCycleFixture(cfg, stubScorer{models.StrategyInvestment: 8}, valueDetector())
	ctx := context.Background()

	// 09:05 UTC is mid-afternoon in Mumbai
	f.cycle.now = func() time.Time { return time.Date(2025, 3, 4, 9, 5, 0, 0, time.UTC) }
	res, err := f.cycle.Run(ctx, CycleOptions{Symbols: []string{"AAPL"}})
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)

	f.cycle.now = func() time.Time { return time.Date(2025, 3, 4, 3, 35, 0, 0, time.UTC) }
	res, err = f.cycle.Run(ctx, CycleOptions{Symbols: []string{"AAPL"}})
	require.NoError(t, err)
	assert.Len(t, res.Emitted, 1)
}

func TestNewDetectionCycle_UnknownZoneFallsBackToUTC(t *testing.T) {
	t.Parallel()

	cfg := engineConfig()
	cfg.InvestmentTimezone = "Mars/Olympus_Mons"
	f := newCycleFixture(cfg, stubScorer{}, valueDetector())
	assert.Equal(t, time.UTC, f.cycle.market)
}

func TestDetectionCycle_DuplicateKeysAreNotReEmitted(t *testing.T) {
	t.Parallel()

	f := newCycleFixture(engineConfig(), stubScorer{models.StrategyMomentum: 8}, momentumDetector())
	ctx := context.Background()

	first, err := f.cycle.Run(ctx, CycleOptions{Symbols: []string{"AAPL"}})
	require.NoError(t, err)
	require.Len(t, first.Emitted, 1)

	second, err := f.cycle.Run(ctx, CycleOptions{Symbols: []string{"AAPL"}})
	require.NoError(t, err)
	assert.Empty(t, second.Emitted)
	assert.Len(t, f.pub.emitted, 1)
}

func TestDetectionCycle_PublishFailureKeepsSignals(t *testing.T) {
	t.Parallel()

	f := newCycleFixture(engineConfig(), stubScorer{models.StrategyMomentum: 8}, momentumDetector())
	f.pub.err = errors.New("kafka down")

	res, err := f.cycle.Run(context.Background(), CycleOptions{Symbols: []string{"AAPL"}})
	require.NoError(t, err)
	assert.Len(t, res.Emitted, 1)
	assert.Equal(t, 1, f.metrics.errors["publish"])
}
