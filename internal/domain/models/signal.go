package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Bar is one OHLCV record. Series are ordered oldest first.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Sign is +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	if d == Sell {
		return -1
	}
	return 1
}

type Strategy string

const (
	StrategyMeanReversion     Strategy = "MEAN_REVERSION"
	StrategyMomentum          Strategy = "MOMENTUM"
	StrategyScalping          Strategy = "SCALPING"
	StrategyTrend             Strategy = "TREND"
	StrategySupportResistance Strategy = "SUPPORT_RESISTANCE"
	StrategyInvestment        Strategy = "INVESTMENT"
)

// Strategies lists every detector family.
var Strategies = []Strategy{
	StrategyMeanReversion,
	StrategyMomentum,
	StrategyScalping,
	StrategyTrend,
	StrategySupportResistance,
	StrategyInvestment,
}

// SignalType is the holding-style label attached to a signal.
type SignalType string

const (
	TypeIntraday   SignalType = "INTRADAY"
	TypeScalping   SignalType = "SCALPING"
	TypeSwing      SignalType = "SWING"
	TypeInvestment SignalType = "INVESTMENT"
)

// Horizon selects which bar series a detector reads.
type Horizon string

const (
	HorizonIntraday   Horizon = "intraday"
	HorizonSwing      Horizon = "swing"
	HorizonInvestment Horizon = "investment"
)

type AssetClass string

const (
	AssetIndianEquity AssetClass = "INDIAN_EQUITY"
	AssetUSEquity     AssetClass = "US_EQUITY"
	AssetCrypto       AssetClass = "CRYPTO"
	AssetForex        AssetClass = "FOREX"
)

var AssetClasses = []AssetClass{AssetIndianEquity, AssetUSEquity, AssetCrypto, AssetForex}

// ClassifyAsset maps a ticker to its asset class. Symbols in crypto, or
// ending in -USD, are treated as crypto.
func ClassifyAsset(symbol string, crypto map[string]struct{}) AssetClass {
	switch {
	case strings.HasSuffix(symbol, ".NS"):
		return AssetIndianEquity
	case strings.HasSuffix(symbol, "=X"):
		return AssetForex
	}
	if _, ok := crypto[symbol]; ok {
		return AssetCrypto
	}
	if strings.HasSuffix(symbol, "-USD") {
		return AssetCrypto
	}
	return AssetUSEquity
}

type Tier string

const (
	TierBasic      Tier = "BASIC"
	TierPro        Tier = "PRO"
	TierEnterprise Tier = "ENTERPRISE"
)

// AccessibleTiers lists the signal tiers visible to a subscriber tier.
// Unknown tiers see BASIC only.
func AccessibleTiers(t Tier) []Tier {
	switch t {
	case TierEnterprise:
		return []Tier{TierBasic, TierPro, TierEnterprise}
	case TierPro:
		return []Tier{TierBasic, TierPro}
	default:
		return []Tier{TierBasic}
	}
}

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusClosed    Status = "CLOSED"
	StatusCancelled Status = "CANCELLED"
)

var (
	ErrBadLevels       = errors.New("stop and target must straddle entry for the trade direction")
	ErrLowRiskReward   = errors.New("risk-reward below minimum")
	ErrConfidenceRange = errors.New("confidence outside [1,10]")
)

// Signal is a directional trade idea. Everything except Status, ExitPrice and
// ExitTime is fixed at creation.
type Signal struct {
	ID         string     `json:"id"`
	Key        string     `json:"key"`
	Symbol     string     `json:"symbol"`
	AssetClass AssetClass `json:"asset_class"`
	Strategy   Strategy   `json:"strategy"`
	Setup      string     `json:"setup"`
	Type       SignalType `json:"signal_type"`
	Timeframe  string     `json:"timeframe"`
	Direction  Direction  `json:"direction"`
	Entry      float64    `json:"entry_price"`
	Stop       float64    `json:"stop_loss"`
	Target     float64    `json:"target_price"`
	RiskReward float64    `json:"risk_reward_ratio"`
	Confidence int        `json:"confidence"`
	Analysis   string     `json:"analysis"`
	Tier       Tier       `json:"tier_access"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
}

// RiskReward returns |target-entry| / |entry-stop|, or 0 when the stop sits on entry.
func RiskReward(entry, stop, target float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(target-entry) / risk
}

// LevelsValid reports whether the stop worsens and the target improves the position.
func LevelsValid(d Direction, entry, stop, target float64) bool {
	if d == Sell {
		return stop > entry && target < entry
	}
	return stop < entry && target > entry
}

// Validate checks the creation invariants.
func (s *Signal) Validate(minRiskReward float64) error {
	if !LevelsValid(s.Direction, s.Entry, s.Stop, s.Target) {
		return fmt.Errorf("%s %s: %w", s.Symbol, s.Direction, ErrBadLevels)
	}
	if s.RiskReward < minRiskReward {
		return fmt.Errorf("%s rr=%.4f min=%.2f: %w", s.Symbol, s.RiskReward, minRiskReward, ErrLowRiskReward)
	}
	if s.Confidence < 1 || s.Confidence > 10 {
		return fmt.Errorf("%s confidence=%d: %w", s.Symbol, s.Confidence, ErrConfidenceRange)
	}
	return nil
}

func (s *Signal) IsTerminal() bool {
	return s.Status == StatusClosed || s.Status == StatusCancelled
}

// HasExit reports whether exit price and time were recorded.
func (s *Signal) HasExit() bool {
	return s.ExitPrice != nil && s.ExitTime != nil
}

// PnLPercent is the signed percentage move from entry to price in the trade's favour.
func (s *Signal) PnLPercent(price float64) float64 {
	if s.Entry == 0 {
		return 0
	}
	return s.Direction.Sign() * (price - s.Entry) / s.Entry * 100
}

// PriceTick is one trade print from a live feed.
type PriceTick struct {
	Symbol string
	Price  float64
	Volume float64
	Time   time.Time
}
