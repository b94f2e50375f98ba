package detectors

import (
	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/service"
	"SignalPulse/internal/services/features"
	"SignalPulse/internal/services/indicators"
)

const (
	halfYearBars   = 120
	quarterBars    = 60
	growthMinBars  = 60
	valueDiscount  = 0.9
	valueFloorLift = 1.05
)

// Investment reads a daily series and proposes a long-horizon value or growth
// entry. When both variants qualify the value case wins.
type Investment struct{}

var _ service.Detector = Investment{}

func (Investment) Strategy() models.Strategy { return models.StrategyInvestment }
func (Investment) Horizon() models.Horizon   { return models.HorizonInvestment }

func (Investment) Detect(f *indicators.Frame) (models.Proposal, bool) {
	if f.Len() == 0 {
		return nil, false
	}
	closes := f.Close
	c := f.Last(closes)
	mean120 := features.Mean(features.Tail(closes, halfYearBars))
	low60 := features.Min(features.Tail(closes, quarterBars))

	p := models.InvestmentProposal{Close: c, Mean120: mean120, Low60: low60}
	switch {
	case isValue(closes):
		p.Variant = models.VariantValue
	case isGrowth(closes, f.Volume):
		p.Variant = models.VariantGrowth
	default:
		return nil, false
	}
	return p, true
}

// isValue: trading at least 10% under the six-month mean but more than 5%
// above the 20-day low.
func isValue(closes []float64) bool {
	c := closes[len(closes)-1]
	discounted := c < features.Mean(features.Tail(closes, halfYearBars))*valueDiscount
	notCrashing := c > features.Min(features.Tail(closes, 20))*valueFloorLift
	return discounted && notCrashing
}

// isGrowth: above the level of 60 bars ago, last week stronger than the week
// three weeks back, and volume picking up.
func isGrowth(closes, volumes []float64) bool {
	n := len(closes)
	if n < growthMinBars {
		return false
	}
	c := closes[n-1]
	uptrend := c > closes[n-quarterBars]
	strength := features.Mean(features.Tail(closes, 5)) > features.Mean(features.Slice(closes, -20, -15))
	volume := features.Mean(features.Tail(volumes, 10)) > features.Mean(features.Slice(volumes, -30, -20))
	return uptrend && strength && volume
}
