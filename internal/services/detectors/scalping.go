package detectors

import (
	"math"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/service"
	"SignalPulse/internal/services/features"
	"SignalPulse/internal/services/indicators"
)

const scalpMinBars = 10

// Scalping looks for a sharp RSI swing while price hugs EMA12 on rising volume.
type Scalping struct{}

var _ service.Detector = Scalping{}

func (Scalping) Strategy() models.Strategy { return models.StrategyScalping }
func (Scalping) Horizon() models.Horizon   { return models.HorizonIntraday }

func (Scalping) Detect(f *indicators.Frame) (models.Proposal, bool) {
	if f.Len() < scalpMinBars {
		return nil, false
	}

	rsi := f.Back(f.RSI, 0)
	delta := rsi - f.Back(f.RSI, 2)
	c := f.Last(f.Close)
	ema12 := f.Last(f.EMA12)
	vol := f.Last(f.Volume)
	recent := features.Mean(features.Tail(f.Volume, 3))

	quickMove := math.Abs(delta) > 10
	hugging := nearBy(c, ema12, 0.002)
	rising := vol > recent*1.3

	if !(quickMove && hugging && rising) {
		return nil, false
	}

	dir := models.Sell
	if rsi < 50 {
		dir = models.Buy
	}
	return models.ScalpingProposal{
		Direction:   dir,
		Close:       c,
		EMA12:       ema12,
		RSI:         rsi,
		RSIDelta:    delta,
		VolumeRatio: vol / recent,
	}, true
}
