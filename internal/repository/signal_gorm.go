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

// SignalModel is the signals table. Prices are stored as exact numerics.
type SignalModel struct {
	ID         string          `gorm:"primaryKey;size:36"`
	Key        string          `gorm:"column:signal_key;size:96;not null;uniqueIndex"`
	Symbol     string          `gorm:"size:32;not null;index"`
	AssetClass string          `gorm:"size:16;not null"`
	Strategy   string          `gorm:"size:32;not null"`
	Setup      string          `gorm:"size:32;not null"`
	Type       string          `gorm:"column:signal_type;size:16;not null"`
	Timeframe  string          `gorm:"size:16"`
	Direction  string          `gorm:"size:4;not null"`
	Entry      decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Stop       decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Target     decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	RiskReward float64         `gorm:"not null"`
	Confidence int             `gorm:"not null"`
	Analysis   string          `gorm:"type:text"`
	Tier       string          `gorm:"size:16;not null;index"`
	Status     string          `gorm:"size:16;not null;index"`
	CreatedAt  time.Time       `gorm:"not null;index"`

	ExitPrice decimal.NullDecimal `gorm:"type:numeric(20,8)"`
	ExitTime  *time.Time
	UpdatedAt time.Time
}

func (SignalModel) TableName() string {
	return "signals"
}

func toSignalModel(s models.Signal) SignalModel {
	return SignalModel{
		ID:         s.ID,
		Key:        s.Key,
		Symbol:     s.Symbol,
		AssetClass: string(s.AssetClass),
		Strategy:   string(s.Strategy),
		Setup:      s.Setup,
		Type:       string(s.Type),
		Timeframe:  s.Timeframe,
		Direction:  string(s.Direction),
		Entry:      decimal.NewFromFloat(s.Entry),
		Stop:       decimal.NewFromFloat(s.Stop),
		Target:     decimal.NewFromFloat(s.Target),
		RiskReward: s.RiskReward,
		Confidence: s.Confidence,
		Analysis:   s.Analysis,
		Tier:       string(s.Tier),
		Status:     string(s.Status),
		CreatedAt:  s.CreatedAt.UTC(),
	}
}

func (m SignalModel) toDomain() models.Signal {
	s := models.Signal{
		ID:         m.ID,
		Key:        m.Key,
		Symbol:     m.Symbol,
		AssetClass: models.AssetClass(m.AssetClass),
		Strategy:   models.Strategy(m.Strategy),
		Setup:      m.Setup,
		Type:       models.SignalType(m.Type),
		Timeframe:  m.Timeframe,
		Direction:  models.Direction(m.Direction),
		Entry:      m.Entry.InexactFloat64(),
		Stop:       m.Stop.InexactFloat64(),
		Target:     m.Target.InexactFloat64(),
		RiskReward: m.RiskReward,
		Confidence: m.Confidence,
		Analysis:   m.Analysis,
		Tier:       models.Tier(m.Tier),
		Status:     models.Status(m.Status),
		CreatedAt:  m.CreatedAt.UTC(),
	}
	if m.ExitPrice.Valid {
		p := m.ExitPrice.Decimal.InexactFloat64()
		s.ExitPrice = &p
	}
	if m.ExitTime != nil {
		t := m.ExitTime.UTC()
		s.ExitTime = &t
	}
	return s
}

type signalGorm struct {
	db *gorm.DB
}

var _ domrepo.SignalStore = (*signalGorm)(nil)

func NewSignalStore(db *gorm.DB) domrepo.SignalStore {
	return &signalGorm{db: db}
}

func (r *signalGorm) Insert(ctx context.Context, signals []models.Signal) ([]models.Signal, error) {
	if len(signals) == 0 {
		return nil, nil
	}
	created := make([]models.Signal, 0, len(signals))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range signals {
			m := toSignalModel(s)
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "signal_key"}},
				DoNothing: true,
			}).Create(&m)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				created = append(created, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert signals: %w", err)
	}
	return created, nil
}

func (r *signalGorm) Get(ctx context.Context, id string) (*models.Signal, error) {
	var m SignalModel
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get signal %s: %w", id, err)
	}
	s := m.toDomain()
	return &s, nil
}

func (r *signalGorm) List(ctx context.Context, f domrepo.SignalFilter) ([]models.Signal, error) {
	q := r.db.WithContext(ctx).Model(&SignalModel{})
	if len(f.Tiers) > 0 {
		tiers := make([]string, len(f.Tiers))
		for i, t := range f.Tiers {
			tiers[i] = string(t)
		}
		q = q.Where("tier IN ?", tiers)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Symbol != "" {
		q = q.Where("symbol = ?", f.Symbol)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To.UTC())
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var ms []SignalModel
	if err := q.Order("confidence DESC").Order("risk_reward DESC").Order("created_at ASC").Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	out := make([]models.Signal, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (r *signalGorm) Close(ctx context.Context, id string, exitPrice float64, exitTime time.Time) (*models.Signal, error) {
	at := exitTime.UTC()
	return r.transition(ctx, id, map[string]interface{}{
		"status":     string(models.StatusClosed),
		"exit_price": decimal.NewNullDecimal(decimal.NewFromFloat(exitPrice)),
		"exit_time":  &at,
	})
}

func (r *signalGorm) Cancel(ctx context.Context, id string) (*models.Signal, error) {
	return r.transition(ctx, id, map[string]interface{}{
		"status": string(models.StatusCancelled),
	})
}

// transition applies fields only while the row is still ACTIVE, so two
// concurrent closes cannot both succeed.
func (r *signalGorm) transition(ctx context.Context, id string, fields map[string]interface{}) (*models.Signal, error) {
	res := r.db.WithContext(ctx).Model(&SignalModel{}).
		Where("id = ? AND status = ?", id, string(models.StatusActive)).
		Updates(fields)
	if res.Error != nil {
		return nil, fmt.Errorf("update signal %s: %w", id, res.Error)
	}
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return s, fmt.Errorf("signal %s is %s: %w", id, s.Status, domrepo.ErrInvalidTransition)
	}
	return s, nil
}

func (r *signalGorm) ListUnattributed(ctx context.Context, limit int) ([]models.Signal, error) {
	q := r.db.WithContext(ctx).Model(&SignalModel{}).
		Joins("LEFT JOIN performance_records pr ON pr.signal_id = signals.id").
		Where("signals.status = ? AND pr.signal_id IS NULL", string(models.StatusClosed)).
		Order("signals.exit_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ms []SignalModel
	if err := q.Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list unattributed: %w", err)
	}
	out := make([]models.Signal, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.toDomain())
	}
	return out, nil
}
