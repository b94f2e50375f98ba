package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalPulse/internal/domain/models"
	drepo "SignalPulse/internal/domain/repository"
	domsvc "SignalPulse/internal/domain/service"
	"SignalPulse/internal/services/analytics"
	"SignalPulse/internal/services/attribution"
	"SignalPulse/pkg/logger"
	"SignalPulse/pkg/util"
)

var ErrNotAttributed = errors.New("signal has no performance record")

// DailyAnalysis summarises one run of the daily analysis job.
type DailyAnalysis struct {
	Date       time.Time                       `json:"date"`
	Attributed int                             `json:"attributed"`
	Skipped    int                             `json:"skipped"`
	Failed     int                             `json:"failed"`
	Aggregates []models.AggregateMetricsRecord `json:"aggregates"`
}

// PerformanceService attributes closed signals and maintains the aggregate
// statistics built from their records.
type PerformanceService struct {
	signals    drepo.SignalStore
	perf       drepo.PerformanceStore
	aggregates drepo.AggregateStore
	attributor domsvc.Attributor
	params     analytics.Params
	metrics    drepo.Metrics
	log        *logger.Logger
	now        func() time.Time
}

func NewPerformanceService(
	signals drepo.SignalStore,
	perf drepo.PerformanceStore,
	aggregates drepo.AggregateStore,
	attributor domsvc.Attributor,
	params analytics.Params,
	metrics drepo.Metrics,
	log *logger.Logger,
) *PerformanceService {
	if log == nil {
		log = logger.Nop()
	}
	return &PerformanceService{
		signals:    signals,
		perf:       perf,
		aggregates: aggregates,
		attributor: attributor,
		params:     params,
		metrics:    metrics,
		log:        log.With(logger.String("component", "performance")),
		now:        time.Now,
	}
}

// AttributeSignal writes the performance record of a closed signal. Running
// it twice returns the stored record; a signal without an exit yields
// attribution.ErrNoExitData.
func (p *PerformanceService) AttributeSignal(ctx context.Context, id string) (*models.PerformanceRecord, error) {
	if rec, err := p.perf.Get(ctx, id); err == nil {
		p.metrics.RecordAttribution("duplicate")
		return rec, nil
	} else if !errors.Is(err, drepo.ErrNotFound) {
		return nil, err
	}

	s, err := p.signals.Get(ctx, id)
	if err != nil {
		return nil, mapNotFound(id, err)
	}
	return p.attribute(ctx, *s)
}

func (p *PerformanceService) attribute(ctx context.Context, s models.Signal) (*models.PerformanceRecord, error) {
	rec, err := p.attributor.Attribute(ctx, s)
	if err != nil {
		if errors.Is(err, attribution.ErrNoExitData) {
			p.metrics.RecordAttribution("no_exit")
		} else {
			p.metrics.RecordAttribution("error")
		}
		return nil, err
	}

	created, err := p.perf.Save(ctx, rec)
	if err != nil {
		p.metrics.RecordAttribution("error")
		return nil, fmt.Errorf("save performance: %w", err)
	}
	if !created {
		p.metrics.RecordAttribution("duplicate")
		return p.perf.Get(ctx, s.ID)
	}

	p.metrics.RecordAttribution("saved")
	p.log.Info("signal attributed",
		logger.String("signal_id", s.ID),
		logger.String("symbol", s.Symbol),
		logger.Float64("pnl_pct", rec.PnLPercent),
		logger.Float64("alpha", rec.Alpha),
		logger.Float64("quality", rec.QualityScore),
	)
	return &rec, nil
}

// Performance returns the stored record of a signal.
func (p *PerformanceService) Performance(ctx context.Context, id string) (*models.PerformanceRecord, error) {
	rec, err := p.perf.Get(ctx, id)
	if errors.Is(err, drepo.ErrNotFound) {
		if _, gerr := p.signals.Get(ctx, id); gerr != nil {
			return nil, mapNotFound(id, gerr)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotAttributed, id)
	}
	return rec, err
}

// RunDailyAnalysis attributes every closed signal still missing a record,
// then recomputes the aggregates of date and of every entry day that gained
// a record. One failing signal never stops the others.
func (p *PerformanceService) RunDailyAnalysis(ctx context.Context, date time.Time) (DailyAnalysis, error) {
	day := util.Day(date)
	out := DailyAnalysis{Date: day}

	pending, err := p.signals.ListUnattributed(ctx, 0)
	if err != nil {
		return out, fmt.Errorf("list unattributed: %w", err)
	}
	days := []time.Time{day}
	touched := map[time.Time]bool{day: true}
	for _, s := range pending {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		rec, err := p.attribute(ctx, s)
		switch {
		case err == nil:
			out.Attributed++
			if d := util.Day(rec.EntryTime); !touched[d] {
				touched[d] = true
				days = append(days, d)
			}
		case errors.Is(err, attribution.ErrNoExitData):
			out.Skipped++
		default:
			out.Failed++
			p.log.Warn("attribution failed", logger.String("signal_id", s.ID), logger.Error(err))
		}
	}

	for _, d := range days {
		aggs, err := p.RecomputeAggregates(ctx, d)
		if err != nil {
			return out, err
		}
		out.Aggregates = append(out.Aggregates, aggs...)
	}

	p.log.Info("daily analysis finished",
		logger.Time("date", day),
		logger.Int("attributed", out.Attributed),
		logger.Int("skipped", out.Skipped),
		logger.Int("failed", out.Failed),
		logger.Int("days", len(days)),
		logger.Int("aggregates", len(out.Aggregates)),
	)
	return out, nil
}

// RecomputeAggregates overwrites the ALL, asset-class and strategy rows of
// the records whose signals were created on date.
func (p *PerformanceService) RecomputeAggregates(ctx context.Context, date time.Time) ([]models.AggregateMetricsRecord, error) {
	day, next := util.DayRange(date)
	recs, err := p.perf.ListByEntryDate(ctx, day, next)
	if err != nil {
		return nil, fmt.Errorf("load performance: %w", err)
	}
	aggs := analytics.ComputeDaily(day, recs, p.params)
	if err := p.aggregates.Upsert(ctx, aggs); err != nil {
		p.metrics.RecordError("aggregate_store")
		return nil, fmt.Errorf("store aggregates: %w", err)
	}
	return aggs, nil
}

// Aggregate returns the stored aggregate, computing it from the records when
// nothing has been stored for that day yet.
func (p *PerformanceService) Aggregate(ctx context.Context, date time.Time, scope models.Scope) (*models.AggregateMetricsRecord, error) {
	day, next := util.DayRange(date)
	rec, err := p.aggregates.Get(ctx, day, scope)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, drepo.ErrNotFound) {
		return nil, err
	}

	recs, err := p.perf.ListByEntryDate(ctx, day, next)
	if err != nil {
		return nil, fmt.Errorf("load performance: %w", err)
	}
	agg := analytics.Compute(day, scope, recs, p.params)
	return &agg, nil
}

// Report summarises records whose signals were created between from and to,
// both days inclusive.
func (p *PerformanceService) Report(ctx context.Context, from, to time.Time) (analytics.Report, error) {
	start, end := util.Day(from), util.Day(to)
	if end.Before(start) {
		return analytics.Report{}, fmt.Errorf("%w: range ends before it starts", ErrInvalidRange)
	}
	recs, err := p.perf.ListByEntryDate(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return analytics.Report{}, fmt.Errorf("load performance: %w", err)
	}
	return analytics.BuildReport(start, end, recs, p.params), nil
}

var ErrInvalidRange = errors.New("invalid date range")
