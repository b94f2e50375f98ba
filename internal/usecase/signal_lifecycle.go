package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalPulse/internal/domain/models"
	drepo "SignalPulse/internal/domain/repository"
	"SignalPulse/pkg/logger"
	"SignalPulse/pkg/util"
)

var (
	ErrSignalNotFound    = errors.New("signal not found")
	ErrInvalidTransition = drepo.ErrInvalidTransition
	ErrInvalidExit       = errors.New("invalid exit")
)

// SignalLifecycle owns reads of signals and the ACTIVE to CLOSED/CANCELLED
// transition.
type SignalLifecycle struct {
	signals drepo.SignalStore
	pub     drepo.SignalPublisher
	metrics drepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewSignalLifecycle(signals drepo.SignalStore, pub drepo.SignalPublisher, metrics drepo.Metrics, log *logger.Logger) *SignalLifecycle {
	if log == nil {
		log = logger.Nop()
	}
	return &SignalLifecycle{
		signals: signals,
		pub:     pub,
		metrics: metrics,
		log:     log.With(logger.String("component", "lifecycle")),
		now:     time.Now,
	}
}

func (l *SignalLifecycle) Get(ctx context.Context, id string) (*models.Signal, error) {
	s, err := l.signals.Get(ctx, id)
	if err != nil {
		return nil, mapNotFound(id, err)
	}
	return s, nil
}

// ListForTier returns the signals of one day and status visible to tier,
// best first.
func (l *SignalLifecycle) ListForTier(ctx context.Context, tier models.Tier, status models.Status, day time.Time, limit int) ([]models.Signal, error) {
	from, to := util.DayRange(day)
	return l.signals.List(ctx, drepo.SignalFilter{
		Tiers:  models.AccessibleTiers(tier),
		Status: status,
		From:   from,
		To:     to,
		Limit:  limit,
	})
}

// Close records the exit of an ACTIVE signal and announces it. A zero
// exitTime means now. The exit cannot precede the signal's creation.
func (l *SignalLifecycle) Close(ctx context.Context, id string, exitPrice float64, exitTime time.Time) (*models.Signal, error) {
	if exitPrice <= 0 {
		return nil, fmt.Errorf("%w: exit price must be positive", ErrInvalidExit)
	}
	if exitTime.IsZero() {
		exitTime = l.now()
	}
	exitTime = exitTime.UTC()

	cur, err := l.signals.Get(ctx, id)
	if err != nil {
		return nil, mapNotFound(id, err)
	}
	if exitTime.Before(cur.CreatedAt) {
		return nil, fmt.Errorf("%w: exit %s precedes entry %s", ErrInvalidExit,
			exitTime.Format(time.RFC3339), cur.CreatedAt.Format(time.RFC3339))
	}

	s, err := l.signals.Close(ctx, id, exitPrice, exitTime)
	if err != nil {
		return s, mapNotFound(id, err)
	}

	l.log.Info("signal closed",
		logger.String("signal_id", s.ID),
		logger.String("symbol", s.Symbol),
		logger.Float64("exit_price", exitPrice),
		logger.Float64("pnl_pct", s.PnLPercent(exitPrice)),
	)
	if l.pub != nil {
		if err := l.pub.PublishClosed(ctx, *s); err != nil {
			l.metrics.RecordError("publish")
			l.log.Error("publish closed signal", logger.String("signal_id", s.ID), logger.Error(err))
		}
	}
	return s, nil
}

func (l *SignalLifecycle) Cancel(ctx context.Context, id string) (*models.Signal, error) {
	s, err := l.signals.Cancel(ctx, id)
	if err != nil {
		return s, mapNotFound(id, err)
	}
	l.log.Info("signal cancelled", logger.String("signal_id", s.ID))
	return s, nil
}

// ActiveSignals lists every ACTIVE signal regardless of tier.
func (l *SignalLifecycle) ActiveSignals(ctx context.Context) ([]models.Signal, error) {
	return l.signals.List(ctx, drepo.SignalFilter{
		Tiers:  models.AccessibleTiers(models.TierEnterprise),
		Status: models.StatusActive,
	})
}

func mapNotFound(id string, err error) error {
	if errors.Is(err, drepo.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrSignalNotFound, id)
	}
	return err
}
