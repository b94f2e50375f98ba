package models

import (
	"encoding/json"
	"math"
	"time"
)

// PerformanceRecord is the realised outcome of one closed signal. It is
// written once and never updated.
type PerformanceRecord struct {
	SignalID          string     `json:"signal_id"`
	Symbol            string     `json:"symbol"`
	AssetClass        AssetClass `json:"asset_class"`
	Strategy          Strategy   `json:"strategy"`
	SignalType        SignalType `json:"signal_type"`
	Direction         Direction  `json:"direction"`
	Entry             float64    `json:"entry_price"`
	Exit              float64    `json:"exit_price"`
	Stop              float64    `json:"stop_loss"`
	Target            float64    `json:"target_price"`
	EntryTime         time.Time  `json:"entry_time"`
	ExitTime          time.Time  `json:"exit_time"`
	HoldingHours      float64    `json:"holding_period_hours"`
	PnLPercent        float64    `json:"pnl_percentage"`
	PnLAbsolute       float64    `json:"pnl_absolute"`
	MFE               float64    `json:"max_favorable_excursion"`
	MAE               float64    `json:"max_adverse_excursion"`
	BenchmarkSymbol   string     `json:"benchmark_symbol"`
	BenchmarkReturn   float64    `json:"benchmark_return"`
	Alpha             float64    `json:"alpha"`
	HitTarget         bool       `json:"hit_target"`
	HitStop           bool       `json:"hit_stop_loss"`
	Confidence        int        `json:"confidence"`
	PlannedRiskReward float64    `json:"risk_reward_ratio"`
	ActualRiskReward  float64    `json:"actual_risk_reward"`
	QualityScore      float64    `json:"trade_quality_score"`
}

type ScopeKind string

const (
	ScopeAll        ScopeKind = "ALL"
	ScopeAssetClass ScopeKind = "ASSET_CLASS"
	ScopeStrategy   ScopeKind = "STRATEGY"
)

// Scope selects the subset of performance records an aggregate covers.
type Scope struct {
	Kind  ScopeKind `json:"kind"`
	Value string    `json:"value"`
}

func AllScope() Scope { return Scope{Kind: ScopeAll, Value: "all"} }

func AssetClassScope(a AssetClass) Scope { return Scope{Kind: ScopeAssetClass, Value: string(a)} }

func StrategyScope(s Strategy) Scope { return Scope{Kind: ScopeStrategy, Value: string(s)} }

// Includes reports whether r falls into the scope.
func (s Scope) Includes(r PerformanceRecord) bool {
	switch s.Kind {
	case ScopeAssetClass:
		return string(r.AssetClass) == s.Value
	case ScopeStrategy:
		return string(r.Strategy) == s.Value
	default:
		return true
	}
}

func (s Scope) String() string { return string(s.Kind) + ":" + s.Value }

// AggregateMetricsRecord summarises the closed signals of one scope on one day.
// ProfitFactor is +Inf when there were no losing trades.
type AggregateMetricsRecord struct {
	Date            time.Time `json:"date"`
	Scope           Scope     `json:"scope"`
	TotalSignals    int       `json:"total_signals"`
	WinningSignals  int       `json:"winning_signals"`
	LosingSignals   int       `json:"losing_signals"`
	WinRate         float64   `json:"win_rate"`
	AvgReturn       float64   `json:"avg_return"`
	TotalReturn     float64   `json:"total_return"`
	Sharpe          float64   `json:"sharpe_ratio"`
	Sortino         float64   `json:"sortino_ratio"`
	MaxDrawdown     float64   `json:"max_drawdown"`
	ProfitFactor    float64   `json:"profit_factor"`
	AvgHoldingHours float64   `json:"avg_holding_period_hours"`
	BestTrade       float64   `json:"best_trade_return"`
	WorstTrade      float64   `json:"worst_trade_return"`
	AvgAlpha        float64   `json:"avg_alpha"`
	AvgBenchmark    float64   `json:"avg_benchmark_return"`
}

// MarshalJSON renders an infinite profit factor as the string "inf", which
// encoding/json cannot represent as a number.
func (a AggregateMetricsRecord) MarshalJSON() ([]byte, error) {
	type plain AggregateMetricsRecord
	out := struct {
		plain
		ProfitFactor interface{} `json:"profit_factor"`
	}{plain: plain(a), ProfitFactor: a.ProfitFactor}
	if math.IsInf(a.ProfitFactor, 1) {
		out.ProfitFactor = "inf"
	}
	return json.Marshal(out)
}
