package detectors

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SignalPulse/internal/domain/models"
)

const (
	// pricePlaces is the precision entry, stop and target are quoted with.
	pricePlaces = 2
	// rrPlaces is the precision the risk-reward ratio is stored with.
	rrPlaces = 6
)

type profile struct {
	prefix    string
	kind      models.SignalType
	timeframe string
	tier      models.Tier
}

var profiles = map[models.Strategy]profile{
	models.StrategyMeanReversion:     {"MR", models.TypeIntraday, "5-15min", models.TierBasic},
	models.StrategyMomentum:          {"MOM", models.TypeIntraday, "15-30min", models.TierPro},
	models.StrategyScalping:          {"SCALP", models.TypeScalping, "5min", models.TierEnterprise},
	models.StrategyTrend:             {"TREND", models.TypeSwing, "1-5 days", models.TierBasic},
	models.StrategySupportResistance: {"SR", models.TypeSwing, "2-7 days", models.TierPro},
	models.StrategyInvestment:        {"INV", models.TypeInvestment, "weeks-months", models.TierPro},
}

// Builder turns proposals into fully priced signals.
type Builder struct {
	minRiskReward float64
	crypto        map[string]struct{}
	newID         func() string
}

// NewBuilder returns a Builder rejecting signals under minRiskReward. crypto
// lists symbols to classify as CRYPTO regardless of suffix.
func NewBuilder(minRiskReward float64, crypto []string) *Builder {
	set := make(map[string]struct{}, len(crypto))
	for _, s := range crypto {
		set[s] = struct{}{}
	}
	return &Builder{
		minRiskReward: minRiskReward,
		crypto:        set,
		newID:         func() string { return uuid.NewString() },
	}
}

// Build prices p, attaches metadata and validates the result. The returned
// error wraps models.ErrBadLevels or models.ErrLowRiskReward when the setup
// is discarded.
func (b *Builder) Build(symbol string, p models.Proposal, confidence int, at time.Time) (models.Signal, error) {
	prof, ok := profiles[p.Strategy()]
	if !ok {
		return models.Signal{}, fmt.Errorf("no profile for strategy %s", p.Strategy())
	}

	entry := round(entryOf(p), pricePlaces)
	stop, target := Levels(p)
	stop, target = round(stop, pricePlaces), round(target, pricePlaces)
	rr := round(models.RiskReward(entry, stop, target), rrPlaces)

	at = at.UTC()
	s := models.Signal{
		ID:         b.newID(),
		Key:        fmt.Sprintf("%s_%s_%s", prof.prefix, symbol, at.Format("20060102_1504")),
		Symbol:     symbol,
		AssetClass: models.ClassifyAsset(symbol, b.crypto),
		Strategy:   p.Strategy(),
		Setup:      p.Setup(),
		Type:       prof.kind,
		Timeframe:  prof.timeframe,
		Direction:  p.Side(),
		Entry:      entry,
		Stop:       stop,
		Target:     target,
		RiskReward: rr,
		Confidence: confidence,
		Analysis:   describe(p),
		Tier:       prof.tier,
		Status:     models.StatusActive,
		CreatedAt:  at,
	}
	if err := s.Validate(b.minRiskReward); err != nil {
		return models.Signal{}, err
	}
	return s, nil
}

// Levels returns the stop and target for a proposal.
func Levels(p models.Proposal) (stop, target float64) {
	switch v := p.(type) {
	case models.MeanReversionProposal:
		if v.Direction == models.Buy {
			return v.Support * 0.98, v.BBMiddle
		}
		return v.Resistance * 1.02, v.BBMiddle
	case models.MomentumProposal:
		return v.EMA20 * 0.97, v.Close * 1.08
	case models.ScalpingProposal:
		if v.Direction == models.Buy {
			return v.Close * 0.995, v.Close * 1.01
		}
		return v.Close * 1.005, v.Close * 0.99
	case models.TrendProposal:
		return v.EMA26 * 0.95, v.Close * 1.15
	case models.SupportResistanceProposal:
		mid := (v.Resistance + v.Support) / 2
		if v.Direction == models.Buy {
			return v.Support * 0.97, mid
		}
		return v.Resistance * 1.03, mid
	case models.InvestmentProposal:
		stop = v.Low60 * 0.95
		if v.Variant == models.VariantValue {
			return stop, v.Mean120 * 1.2
		}
		return stop, v.Close * 1.3
	}
	return math.NaN(), math.NaN()
}

// round leaves NaN and infinities untouched; Validate rejects them.
func round(x float64, places int32) float64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

func entryOf(p models.Proposal) float64 {
	switch v := p.(type) {
	case models.MeanReversionProposal:
		return v.Close
	case models.MomentumProposal:
		return v.Close
	case models.ScalpingProposal:
		return v.Close
	case models.TrendProposal:
		return v.Close
	case models.SupportResistanceProposal:
		return v.Close
	case models.InvestmentProposal:
		return v.Close
	}
	return math.NaN()
}

func describe(p models.Proposal) string {
	switch v := p.(type) {
	case models.MeanReversionProposal:
		return fmt.Sprintf("Mean reversion signal based on RSI %.1f and Bollinger Band position", v.RSI)
	case models.MomentumProposal:
		return "Momentum breakout above resistance with MACD bullish crossover"
	case models.ScalpingProposal:
		return fmt.Sprintf("Quick scalp based on RSI %.1f and EMA proximity", v.RSI)
	case models.TrendProposal:
		return "Trend continuation with EMA alignment and MACD positive"
	case models.SupportResistanceProposal:
		return fmt.Sprintf("Support/Resistance play with RSI %.1f", v.RSI)
	case models.InvestmentProposal:
		return fmt.Sprintf("%s_BUY opportunity with fundamental and technical alignment", v.Variant)
	}
	return ""
}
