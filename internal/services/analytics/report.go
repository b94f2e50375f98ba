package analytics

import (
	"math"
	"sort"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/services/features"
	"SignalPulse/pkg/util"
)

const topSignals = 10

type Overall struct {
	TotalSignals    int     `json:"total_signals"`
	WinRate         float64 `json:"win_rate"`
	AvgReturn       float64 `json:"avg_return"`
	TotalReturn     float64 `json:"total_return"`
	AvgAlpha        float64 `json:"avg_alpha"`
	AvgQualityScore float64 `json:"avg_quality_score"`
	AvgHoldingHours float64 `json:"avg_holding_hours"`
	Sharpe          float64 `json:"sharpe_ratio"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	// ProfitFactor is nil when there were no losses.
	ProfitFactor *float64 `json:"profit_factor"`
}

type Breakdown struct {
	Key             string  `json:"key"`
	Signals         int     `json:"signals"`
	WinRate         float64 `json:"win_rate"`
	AvgReturn       float64 `json:"avg_return"`
	AvgAlpha        float64 `json:"avg_alpha"`
	AvgHoldingHours float64 `json:"avg_holding_hours"`
}

type TopSignal struct {
	SignalID     string  `json:"signal_id"`
	Symbol       string  `json:"symbol"`
	PnLPercent   float64 `json:"pnl_percentage"`
	Alpha        float64 `json:"alpha"`
	QualityScore float64 `json:"trade_quality_score"`
}

// Report summarises every attributed signal created within a date range.
type Report struct {
	From         time.Time   `json:"from"`
	To           time.Time   `json:"to"`
	Overall      Overall     `json:"overall_performance"`
	ByAssetClass []Breakdown `json:"performance_by_asset_class"`
	BySignalType []Breakdown `json:"performance_by_signal_type"`
	Top          []TopSignal `json:"top_performing_signals"`
}

// BuildReport assembles a Report from recs.
func BuildReport(from, to time.Time, recs []models.PerformanceRecord, p Params) Report {
	in := ordered(append([]models.PerformanceRecord(nil), recs...))
	rep := Report{From: util.Day(from), To: util.Day(to)}
	rep.Overall.TotalSignals = len(in)
	if len(in) == 0 {
		return rep
	}

	pnl := column(in, func(r models.PerformanceRecord) float64 { return r.PnLPercent })
	rep.Overall.WinRate = winRate(pnl)
	rep.Overall.AvgReturn = features.Mean(pnl)
	rep.Overall.TotalReturn = sum(pnl)
	rep.Overall.AvgAlpha = features.Mean(column(in, func(r models.PerformanceRecord) float64 { return r.Alpha }))
	rep.Overall.AvgQualityScore = features.Mean(column(in, func(r models.PerformanceRecord) float64 { return r.QualityScore }))
	rep.Overall.AvgHoldingHours = features.Mean(column(in, func(r models.PerformanceRecord) float64 { return r.HoldingHours }))
	rep.Overall.Sharpe = Sharpe(pnl, p)
	rep.Overall.MaxDrawdown = MaxDrawdown(pnl)
	if pf := ProfitFactor(pnl); !math.IsInf(pf, 1) {
		rep.Overall.ProfitFactor = &pf
	}

	rep.ByAssetClass = breakdown(in, func(r models.PerformanceRecord) string { return string(r.AssetClass) })
	rep.BySignalType = breakdown(in, func(r models.PerformanceRecord) string { return string(r.SignalType) })

	best := append([]models.PerformanceRecord(nil), in...)
	sort.SliceStable(best, func(i, j int) bool { return best[i].PnLPercent > best[j].PnLPercent })
	if len(best) > topSignals {
		best = best[:topSignals]
	}
	for _, r := range best {
		rep.Top = append(rep.Top, TopSignal{
			SignalID:     r.SignalID,
			Symbol:       r.Symbol,
			PnLPercent:   r.PnLPercent,
			Alpha:        r.Alpha,
			QualityScore: r.QualityScore,
		})
	}
	return rep
}

func breakdown(recs []models.PerformanceRecord, key func(models.PerformanceRecord) string) []Breakdown {
	groups := map[string][]models.PerformanceRecord{}
	var order []string
	for _, r := range recs {
		k := key(r)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}
	sort.Strings(order)

	out := make([]Breakdown, 0, len(order))
	for _, k := range order {
		g := groups[k]
		pnl := column(g, func(r models.PerformanceRecord) float64 { return r.PnLPercent })
		out = append(out, Breakdown{
			Key:             k,
			Signals:         len(g),
			WinRate:         winRate(pnl),
			AvgReturn:       features.Mean(pnl),
			AvgAlpha:        features.Mean(column(g, func(r models.PerformanceRecord) float64 { return r.Alpha })),
			AvgHoldingHours: features.Mean(column(g, func(r models.PerformanceRecord) float64 { return r.HoldingHours })),
		})
	}
	return out
}

func column(recs []models.PerformanceRecord, get func(models.PerformanceRecord) float64) []float64 {
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i] = get(r)
	}
	return out
}

func winRate(pnl []float64) float64 {
	if len(pnl) == 0 {
		return 0
	}
	wins := 0
	for _, x := range pnl {
		if x > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(pnl)) * 100
}
