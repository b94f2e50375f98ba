package detectors

import (
	"math"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/service"
	"SignalPulse/internal/services/indicators"
)

// SupportResistance buys an oversold test of support or sells an overbought
// test of resistance.
type SupportResistance struct{}

var _ service.Detector = SupportResistance{}

func (SupportResistance) Strategy() models.Strategy { return models.StrategySupportResistance }
func (SupportResistance) Horizon() models.Horizon   { return models.HorizonSwing }

func (SupportResistance) Detect(f *indicators.Frame) (models.Proposal, bool) {
	c := f.Last(f.Close)
	sup, res := f.Last(f.Support), f.Last(f.Resistance)
	rsi := f.Last(f.RSI)

	atSupport := nearBy(c, sup, 0.02) && rsi < 35
	atResistance := nearBy(c, res, 0.02) && rsi > 65
	if !atSupport && !atResistance {
		return nil, false
	}

	// direction follows whichever level is closer, not which test fired
	dir := models.Sell
	if math.Abs(c-sup) < math.Abs(c-res) {
		dir = models.Buy
	}
	return models.SupportResistanceProposal{
		Direction:  dir,
		Close:      c,
		Support:    sup,
		Resistance: res,
		RSI:        rsi,
	}, true
}
