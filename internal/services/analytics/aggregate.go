// Package analytics rolls performance records up into aggregate statistics.
// Everything here is a pure reduction: the same records always produce the
// same output.
package analytics

import (
	"math"
	"sort"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/services/features"
	"SignalPulse/pkg/config"
	"SignalPulse/pkg/util"
)

type Params struct {
	RiskFreeRate float64
	TradingDays  int
}

func ParamsFrom(cfg config.AttributionConfig) Params {
	return Params{RiskFreeRate: cfg.RiskFreeRate, TradingDays: cfg.TradingDays}
}

func (p Params) dailyRiskFree() float64 { return p.RiskFreeRate / 365 }

func (p Params) annualise() float64 {
	days := p.TradingDays
	if days <= 0 {
		days = 252
	}
	return math.Sqrt(float64(days))
}

// Compute reduces the records that fall into scope. Records are ordered by
// entry time, then signal id, before the path-dependent drawdown is taken.
func Compute(date time.Time, scope models.Scope, recs []models.PerformanceRecord, p Params) models.AggregateMetricsRecord {
	in := ordered(filter(recs, scope))
	out := models.AggregateMetricsRecord{Date: util.Day(date), Scope: scope, TotalSignals: len(in)}
	if len(in) == 0 {
		return out
	}

	pnl := make([]float64, len(in))
	hours := make([]float64, len(in))
	alpha := make([]float64, len(in))
	bench := make([]float64, len(in))
	for i, r := range in {
		pnl[i] = r.PnLPercent
		hours[i] = r.HoldingHours
		alpha[i] = r.Alpha
		bench[i] = r.BenchmarkReturn
	}

	for _, x := range pnl {
		if x > 0 {
			out.WinningSignals++
		} else {
			out.LosingSignals++
		}
	}
	out.WinRate = float64(out.WinningSignals) / float64(len(pnl)) * 100
	out.AvgReturn = features.Mean(pnl)
	out.TotalReturn = sum(pnl)
	out.Sharpe = Sharpe(pnl, p)
	out.Sortino = Sortino(pnl, p)
	out.MaxDrawdown = MaxDrawdown(pnl)
	out.ProfitFactor = ProfitFactor(pnl)
	out.AvgHoldingHours = features.Mean(hours)
	out.BestTrade = features.Max(pnl)
	out.WorstTrade = features.Min(pnl)
	out.AvgAlpha = features.Mean(alpha)
	out.AvgBenchmark = features.Mean(bench)
	return out
}

// ComputeDaily produces the ALL scope plus one row per asset class and
// strategy present in recs.
func ComputeDaily(date time.Time, recs []models.PerformanceRecord, p Params) []models.AggregateMetricsRecord {
	out := []models.AggregateMetricsRecord{Compute(date, models.AllScope(), recs, p)}

	for _, ac := range models.AssetClasses {
		s := models.AssetClassScope(ac)
		if len(filter(recs, s)) > 0 {
			out = append(out, Compute(date, s, recs, p))
		}
	}
	for _, st := range models.Strategies {
		s := models.StrategyScope(st)
		if len(filter(recs, s)) > 0 {
			out = append(out, Compute(date, s, recs, p))
		}
	}
	return out
}

// Sharpe is (mean - rf/365) / stdev * sqrt(tradingDays), 0 when the sample
// standard deviation is zero or undefined.
func Sharpe(pnl []float64, p Params) float64 {
	sd := features.StdDev(pnl)
	if math.IsNaN(sd) || sd <= 0 {
		return 0
	}
	return (features.Mean(pnl) - p.dailyRiskFree()) / sd * p.annualise()
}

// Sortino divides the same excess return by the deviation of the losing
// trades only. With no losers it equals Sharpe; with an undefined or zero
// downside deviation it is 0.
func Sortino(pnl []float64, p Params) float64 {
	var neg []float64
	for _, x := range pnl {
		if x < 0 {
			neg = append(neg, x)
		}
	}
	if len(neg) == 0 {
		return Sharpe(pnl, p)
	}
	sd := features.StdDev(neg)
	if math.IsNaN(sd) || sd <= 0 {
		return 0
	}
	return (features.Mean(pnl) - p.dailyRiskFree()) / sd * p.annualise()
}

// MaxDrawdown is the deepest fall of the compounded equity curve below its
// running peak, as a positive percentage.
func MaxDrawdown(pnl []float64) float64 {
	equity, peak, worst := 1.0, math.Inf(-1), 0.0
	for _, x := range pnl {
		equity *= 1 + x/100
		peak = math.Max(peak, equity)
		if dd := equity/peak - 1; dd < worst {
			worst = dd
		}
	}
	return math.Abs(worst) * 100
}

// ProfitFactor is gross profit over gross loss, +Inf without losses.
func ProfitFactor(pnl []float64) float64 {
	var gain, loss float64
	for _, x := range pnl {
		switch {
		case x > 0:
			gain += x
		case x < 0:
			loss -= x
		}
	}
	if loss == 0 {
		return math.Inf(1)
	}
	return gain / loss
}

func filter(recs []models.PerformanceRecord, scope models.Scope) []models.PerformanceRecord {
	out := make([]models.PerformanceRecord, 0, len(recs))
	for _, r := range recs {
		if scope.Includes(r) {
			out = append(out, r)
		}
	}
	return out
}

func ordered(recs []models.PerformanceRecord) []models.PerformanceRecord {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].EntryTime.Equal(recs[j].EntryTime) {
			return recs[i].EntryTime.Before(recs[j].EntryTime)
		}
		return recs[i].SignalID < recs[j].SignalID
	})
	return recs
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}
