package detectors

import (
	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/service"
	"SignalPulse/internal/services/indicators"
)

// Momentum goes long on a close through the prior 20-bar high confirmed by a
// fresh bullish MACD cross and a volume surge.
//
// The breakout level at bar t is the resistance as of bar t-1: the rolling
// high at t includes bar t itself, which no close can exceed.
type Momentum struct{}

var _ service.Detector = Momentum{}

func (Momentum) Strategy() models.Strategy { return models.StrategyMomentum }
func (Momentum) Horizon() models.Horizon   { return models.HorizonIntraday }

func (Momentum) Detect(f *indicators.Frame) (models.Proposal, bool) {
	c, prevC := f.Back(f.Close, 0), f.Back(f.Close, 1)
	level, prevLevel := f.Back(f.Resistance, 1), f.Back(f.Resistance, 2)
	breakout := c > level && prevC <= prevLevel

	macd, sig := f.Back(f.MACD, 0), f.Back(f.MACDSignal, 0)
	prevMACD, prevSig := f.Back(f.MACD, 1), f.Back(f.MACDSignal, 1)
	cross := macd > sig && prevMACD <= prevSig

	vr := f.VolumeRatio()
	surge := vr > 1.5

	if !(breakout && cross && surge) {
		return nil, false
	}
	return models.MomentumProposal{
		Close:       c,
		Resistance:  level,
		EMA20:       f.Last(f.EMA20),
		MACD:        macd,
		MACDSignal:  sig,
		VolumeRatio: vr,
	}, true
}
