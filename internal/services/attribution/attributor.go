// Package attribution measures how a closed signal actually performed.
package attribution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/repository"
	"SignalPulse/internal/domain/service"
	"SignalPulse/pkg/config"
	"SignalPulse/pkg/logger"
	"SignalPulse/pkg/util"
)

// ErrNoExitData is returned for signals without a recorded exit.
var ErrNoExitData = errors.New("signal has no exit price/time")

const fallbackBenchmark = "^GSPC"

// Attributor turns a CLOSED signal into a PerformanceRecord. Benchmark and
// excursion lookups are best effort: a failed fetch contributes zero.
type Attributor struct {
	cfg  config.AttributionConfig
	data repository.MarketDataProvider
	log  *logger.Logger
}

var _ service.Attributor = (*Attributor)(nil)

func New(cfg config.AttributionConfig, data repository.MarketDataProvider, log *logger.Logger) *Attributor {
	if log == nil {
		log = logger.Nop()
	}
	return &Attributor{cfg: cfg, data: data, log: log.With(logger.String("component", "attribution"))}
}

// Attribute computes the record for s. It is a pure function of the signal
// and the market data it fetches.
func (a *Attributor) Attribute(ctx context.Context, s models.Signal) (models.PerformanceRecord, error) {
	if s.Status != models.StatusClosed || !s.HasExit() {
		return models.PerformanceRecord{}, fmt.Errorf("attribute %s: %w", s.ID, ErrNoExitData)
	}
	exit, exitTime := *s.ExitPrice, *s.ExitTime

	pnl := s.PnLPercent(exit)
	hitTarget, hitStop := Hits(s.Direction, exit, s.Stop, s.Target, a.cfg.HitTolerance)

	benchSymbol := a.benchmarkFor(s.AssetClass)
	bench := a.benchmarkReturn(ctx, benchSymbol, s.CreatedAt, exitTime)
	alpha := pnl - bench
	mfe, mae := a.excursions(ctx, s, exitTime)

	return models.PerformanceRecord{
		SignalID:          s.ID,
		Symbol:            s.Symbol,
		AssetClass:        s.AssetClass,
		Strategy:          s.Strategy,
		SignalType:        s.Type,
		Direction:         s.Direction,
		Entry:             s.Entry,
		Exit:              exit,
		Stop:              s.Stop,
		Target:            s.Target,
		EntryTime:         s.CreatedAt,
		ExitTime:          exitTime,
		HoldingHours:      exitTime.Sub(s.CreatedAt).Hours(),
		PnLPercent:        pnl,
		PnLAbsolute:       pnl * s.Entry / 100,
		MFE:               mfe,
		MAE:               mae,
		BenchmarkSymbol:   benchSymbol,
		BenchmarkReturn:   bench,
		Alpha:             alpha,
		HitTarget:         hitTarget,
		HitStop:           hitStop,
		Confidence:        s.Confidence,
		PlannedRiskReward: s.RiskReward,
		ActualRiskReward:  ActualRiskReward(s.Direction, s.Entry, s.Stop, exit),
		QualityScore:      QualityScore(pnl, hitTarget, hitStop, alpha, s.Confidence, a.cfg.HighConfidence, a.cfg.LowConfidence),
	}, nil
}

func (a *Attributor) benchmarkFor(ac models.AssetClass) string {
	if sym, ok := a.cfg.Benchmarks[string(ac)]; ok && sym != "" {
		return sym
	}
	return fallbackBenchmark
}

// benchmarkReturn is the first-to-last daily close move over the calendar
// days the signal was open, in percent.
func (a *Attributor) benchmarkReturn(ctx context.Context, symbol string, from, to time.Time) float64 {
	start := util.Day(from)
	end := util.Day(to).AddDate(0, 0, 1)
	bars, err := a.data.FetchRange(ctx, symbol, repository.Interval1d, start, end)
	if err != nil {
		a.log.Warn("benchmark fetch failed", logger.String("benchmark", symbol), logger.Error(err))
		return 0
	}
	if len(bars) < 2 || bars[0].Close == 0 {
		return 0
	}
	first, last := bars[0].Close, bars[len(bars)-1].Close
	return (last - first) / first * 100
}

// excursions scans intraday bars strictly between entry and exit for the
// best and worst unrealised move, both reported as non-negative percentages.
func (a *Attributor) excursions(ctx context.Context, s models.Signal, exitTime time.Time) (float64, float64) {
	iv := repository.NormalizeInterval(a.cfg.ExcursionInterval)
	bars, err := a.data.FetchRange(ctx, s.Symbol, iv, util.Day(s.CreatedAt), util.Day(exitTime).AddDate(0, 0, 1))
	if err != nil {
		a.log.Warn("excursion fetch failed", logger.String("symbol", s.Symbol), logger.Error(err))
		return 0, 0
	}

	hi, lo := math.Inf(-1), math.Inf(1)
	for _, b := range bars {
		if !b.Time.After(s.CreatedAt) || !b.Time.Before(exitTime) {
			continue
		}
		hi = math.Max(hi, b.High)
		lo = math.Min(lo, b.Low)
	}
	if math.IsInf(hi, -1) || s.Entry == 0 {
		return 0, 0
	}
	return Excursions(s.Direction, s.Entry, hi, lo)
}

// Excursions converts the extreme high and low of the holding window into
// MFE and MAE percentages, floored at zero.
func Excursions(d models.Direction, entry, high, low float64) (mfe, mae float64) {
	up := (high - entry) / entry * 100
	down := (entry - low) / entry * 100
	if d == models.Sell {
		up, down = down, up
	}
	return math.Max(0, up), math.Max(0, down)
}

// Hits reports whether exit landed on the target or the stop, each widened by
// tol in the trade's favour.
func Hits(d models.Direction, exit, stop, target, tol float64) (hitTarget, hitStop bool) {
	if d == models.Sell {
		return exit <= target*(1+tol), exit >= stop*(1-tol)
	}
	return exit >= target*(1-tol), exit <= stop*(1+tol)
}

// ActualRiskReward is |realised reward / planned risk|, 0 when the stop sits
// on entry.
func ActualRiskReward(d models.Direction, entry, stop, exit float64) float64 {
	risk := d.Sign() * (entry - stop)
	if risk == 0 {
		return 0
	}
	reward := d.Sign() * (exit - entry)
	return math.Abs(reward / risk)
}

// QualityScore grades a trade on 0..100. Starting from 50 it adds the
// P&L, hit, alpha and confidence-calibration components.
func QualityScore(pnl float64, hitTarget, hitStop bool, alpha float64, confidence int, high, low float64) float64 {
	score := 50.0
	if pnl > 0 {
		score += math.Min(30, pnl*2)
	} else {
		score += math.Max(-30, pnl*2)
	}

	switch {
	case hitTarget:
		score += 20
	case hitStop:
		score -= 15
	}

	score += math.Min(15, math.Max(-15, alpha*1.5))

	expected := float64(confidence) / 10
	win := pnl > 0
	switch {
	case (expected > high && win) || (expected < low && !win):
		score += 15
	case (expected > high && !win) || (expected < low && win):
		score -= 15
	}

	return math.Max(0, math.Min(100, score))
}
