// Package scoring rates detector proposals on a 1..10 confidence scale.
package scoring

import (
	"math"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/service"
	"SignalPulse/internal/services/features"
	"SignalPulse/internal/services/indicators"
)

const (
	baseScore = 5
	minScore  = 1
	maxScore  = 10
)

// Scorer adds and subtracts points from a neutral base according to volume,
// volatility, technical agreement and a per-strategy bonus.
type Scorer struct{}

var _ service.ConfidenceScorer = Scorer{}

func New() Scorer { return Scorer{} }

// Score is deterministic for a given frame and strategy and always lies in [1,10].
func (Scorer) Score(f *indicators.Frame, strategy models.Strategy) int {
	score := baseScore
	vr := f.VolumeRatio()

	switch {
	case vr > 1.5:
		score++
	case vr < 0.7:
		score--
	}

	vol := features.StdDev(features.ComputePctReturns(f.Close))
	switch {
	case vol > 0.01 && vol < 0.03:
		score++
	case vol > 0.05:
		score--
	}

	score += alignment(f) - 1
	score += bonus(f, strategy, vr)

	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// alignment counts how many of RSI-in-range, MACD-above-signal and
// price-above-EMA12 hold on the latest bar.
func alignment(f *indicators.Frame) int {
	n := 0
	rsi := f.Last(f.RSI)
	if rsi > 30 && rsi < 70 {
		n++
	}
	if f.Last(f.MACD) > f.Last(f.MACDSignal) {
		n++
	}
	if f.Last(f.Close) > f.Last(f.EMA12) {
		n++
	}
	return n
}

func bonus(f *indicators.Frame, strategy models.Strategy, vr float64) int {
	switch strategy {
	case models.StrategyMomentum:
		if vr > 2 {
			return 1
		}
	case models.StrategyMeanReversion:
		rsi := f.Last(f.RSI)
		if rsi < 25 || rsi > 75 {
			return 1
		}
	case models.StrategyScalping:
		c := f.Last(f.Close)
		if c != 0 && math.Abs(c-f.Last(f.EMA12))/c < 0.001 {
			return 1
		}
	}
	return 0
}
