package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"SignalPulse/internal/domain/models"
	domrepo "SignalPulse/internal/domain/repository"
)

// PerformanceModel is the performance_records table, one row per closed signal.
type PerformanceModel struct {
	SignalID          string          `gorm:"primaryKey;size:36"`
	Symbol            string          `gorm:"size:32;not null"`
	AssetClass        string          `gorm:"size:16;not null;index"`
	Strategy          string          `gorm:"size:32;not null;index"`
	SignalType        string          `gorm:"size:16;not null"`
	Direction         string          `gorm:"size:4;not null"`
	Entry             decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Exit              decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Stop              decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Target            decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	EntryTime         time.Time       `gorm:"not null;index"`
	ExitTime          time.Time       `gorm:"not null"`
	HoldingHours      float64
	PnLPercent        float64 `gorm:"column:pnl_percent"`
	PnLAbsolute       float64 `gorm:"column:pnl_absolute"`
	MFE               float64 `gorm:"column:mfe"`
	MAE               float64 `gorm:"column:mae"`
	BenchmarkSymbol   string  `gorm:"size:16"`
	BenchmarkReturn   float64
	Alpha             float64
	HitTarget         bool
	HitStop           bool
	Confidence        int
	PlannedRiskReward float64
	ActualRiskReward  float64
	QualityScore      float64
	CreatedAt         time.Time
}

func (PerformanceModel) TableName() string {
	return "performance_records"
}

func toPerformanceModel(p models.PerformanceRecord) PerformanceModel {
	return PerformanceModel{
		SignalID:          p.SignalID,
		Symbol:            p.Symbol,
		AssetClass:        string(p.AssetClass),
		Strategy:          string(p.Strategy),
		SignalType:        string(p.SignalType),
		Direction:         string(p.Direction),
		Entry:             decimal.NewFromFloat(p.Entry),
		Exit:              decimal.NewFromFloat(p.Exit),
		Stop:              decimal.NewFromFloat(p.Stop),
		Target:            decimal.NewFromFloat(p.Target),
		EntryTime:         p.EntryTime.UTC(),
		ExitTime:          p.ExitTime.UTC(),
		HoldingHours:      p.HoldingHours,
		PnLPercent:        p.PnLPercent,
		PnLAbsolute:       p.PnLAbsolute,
		MFE:               p.MFE,
		MAE:               p.MAE,
		BenchmarkSymbol:   p.BenchmarkSymbol,
		BenchmarkReturn:   p.BenchmarkReturn,
		Alpha:             p.Alpha,
		HitTarget:         p.HitTarget,
		HitStop:           p.HitStop,
		Confidence:        p.Confidence,
		PlannedRiskReward: p.PlannedRiskReward,
		ActualRiskReward:  p.ActualRiskReward,
		QualityScore:      p.QualityScore,
	}
}

func (m PerformanceModel) toDomain() models.PerformanceRecord {
	return models.PerformanceRecord{
		SignalID:          m.SignalID,
		Symbol:            m.Symbol,
		AssetClass:        models.AssetClass(m.AssetClass),
		Strategy:          models.Strategy(m.Strategy),
		SignalType:        models.SignalType(m.SignalType),
		Direction:         models.Direction(m.Direction),
		Entry:             m.Entry.InexactFloat64(),
		Exit:              m.Exit.InexactFloat64(),
		Stop:              m.Stop.InexactFloat64(),
		Target:            m.Target.InexactFloat64(),
		EntryTime:         m.EntryTime.UTC(),
		ExitTime:          m.ExitTime.UTC(),
		HoldingHours:      m.HoldingHours,
		PnLPercent:        m.PnLPercent,
		PnLAbsolute:       m.PnLAbsolute,
		MFE:               m.MFE,
		MAE:               m.MAE,
		BenchmarkSymbol:   m.BenchmarkSymbol,
		BenchmarkReturn:   m.BenchmarkReturn,
		Alpha:             m.Alpha,
		HitTarget:         m.HitTarget,
		HitStop:           m.HitStop,
		Confidence:        m.Confidence,
		PlannedRiskReward: m.PlannedRiskReward,
		ActualRiskReward:  m.ActualRiskReward,
		QualityScore:      m.QualityScore,
	}
}

type performanceGorm struct {
	db *gorm.DB
}

var _ domrepo.PerformanceStore = (*performanceGorm)(nil)

func NewPerformanceStore(db *gorm.DB) domrepo.PerformanceStore {
	return &performanceGorm{db: db}
}

func (r *performanceGorm) Save(ctx context.Context, rec models.PerformanceRecord) (bool, error) {
	m := toPerformanceModel(rec)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "signal_id"}},
		DoNothing: true,
	}).Create(&m)
	if res.Error != nil {
		return false, fmt.Errorf("save performance %s: %w", rec.SignalID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *performanceGorm) Get(ctx context.Context, signalID string) (*models.PerformanceRecord, error) {
	var m PerformanceModel
	err := r.db.WithContext(ctx).Where("signal_id = ?", signalID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get performance %s: %w", signalID, err)
	}
	rec := m.toDomain()
	return &rec, nil
}

func (r *performanceGorm) ListByEntryDate(ctx context.Context, from, to time.Time) ([]models.PerformanceRecord, error) {
	var ms []PerformanceModel
	err := r.db.WithContext(ctx).
		Where("entry_time >= ? AND entry_time < ?", from.UTC(), to.UTC()).
		Order("entry_time ASC").Order("signal_id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("list performance: %w", err)
	}
	out := make([]models.PerformanceRecord, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.toDomain())
	}
	return out, nil
}
