package detectors

import (
	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/service"
	"SignalPulse/internal/services/indicators"
)

const trendMinBars = 50

// Trend joins an established uptrend: stacked EMAs, rising EMA12, price above
// EMA12 and positive MACD.
type Trend struct{}

var _ service.Detector = Trend{}

func (Trend) Strategy() models.Strategy { return models.StrategyTrend }
func (Trend) Horizon() models.Horizon   { return models.HorizonSwing }

func (Trend) Detect(f *indicators.Frame) (models.Proposal, bool) {
	if f.Len() < trendMinBars {
		return nil, false
	}

	ema12, ema26 := f.Last(f.EMA12), f.Last(f.EMA26)
	c := f.Last(f.Close)
	macd := f.Last(f.MACD)

	stacked := ema12 > ema26
	rising := ema12 > f.Back(f.EMA12, 4)
	above := c > ema12
	positive := macd > 0

	if !(stacked && rising && above && positive) {
		return nil, false
	}
	return models.TrendProposal{Close: c, EMA12: ema12, EMA26: ema26, MACD: macd}, true
}
