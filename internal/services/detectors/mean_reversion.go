package detectors

import (
	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/service"
	"SignalPulse/internal/services/indicators"
)

// MeanReversion fades RSI extremes that coincide with a Bollinger band touch
// on above-average volume.
type MeanReversion struct{}

var _ service.Detector = MeanReversion{}

func (MeanReversion) Strategy() models.Strategy { return models.StrategyMeanReversion }
func (MeanReversion) Horizon() models.Horizon   { return models.HorizonIntraday }

func (MeanReversion) Detect(f *indicators.Frame) (models.Proposal, bool) {
	rsi := f.Last(f.RSI)
	c := f.Last(f.Close)
	vr := f.VolumeRatio()

	if !(vr > 1.2) {
		return nil, false
	}
	oversold := rsi < 30 && c <= f.Last(f.BBLower)*1.01
	overbought := rsi > 70 && c >= f.Last(f.BBUpper)*0.99
	if !oversold && !overbought {
		return nil, false
	}

	dir := models.Sell
	if rsi < 30 {
		dir = models.Buy
	}
	return models.MeanReversionProposal{
		Direction:   dir,
		Close:       c,
		RSI:         rsi,
		BBMiddle:    f.Last(f.BBMiddle),
		Support:     f.Last(f.Support),
		Resistance:  f.Last(f.Resistance),
		VolumeRatio: vr,
	}, true
}
