package usecase

import (
	"context"
	"sync"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/pkg/logger"
	"SignalPulse/pkg/queue"
	"SignalPulse/pkg/util"
)

// Scheduler runs the detection cycle on a fixed interval and triggers the
// daily analysis once per UTC day after the configured hour.
type Scheduler struct {
	cycle     *DetectionCycle
	interval  time.Duration
	jobs      queue.Publisher
	perf      *PerformanceService
	dailyHour int
	onEmit    func([]models.Signal)
	log       *logger.Logger
	now       func() time.Time

	lastDaily time.Time
	wg        sync.WaitGroup
}

type SchedulerOption func(*Scheduler)

// WithEmitHook is called with the signals each cycle stored.
func WithEmitHook(fn func([]models.Signal)) SchedulerOption {
	return func(s *Scheduler) { s.onEmit = fn }
}

// WithJobQueue hands the daily analysis to the job workers instead of running
// it on the scheduler goroutine.
func WithJobQueue(q queue.Publisher) SchedulerOption {
	return func(s *Scheduler) { s.jobs = q }
}

func NewScheduler(cycle *DetectionCycle, perf *PerformanceService, interval time.Duration, dailyHour int, log *logger.Logger, opts ...SchedulerOption) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	s := &Scheduler{
		cycle:     cycle,
		perf:      perf,
		interval:  interval,
		dailyHour: dailyHour,
		log:       log.With(logger.String("component", "scheduler")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a first cycle immediately, then one per interval until ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Wait blocks until the loop started by Start has exited.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Tick performs one scheduling step.
func (s *Scheduler) Tick(ctx context.Context) {
	res, err := s.cycle.Run(ctx, CycleOptions{})
	if err != nil {
		s.log.Error("detection cycle", logger.Error(err))
	} else if s.onEmit != nil && len(res.Emitted) > 0 {
		s.onEmit(res.Emitted)
	}
	s.maybeDaily(ctx)
}

func (s *Scheduler) maybeDaily(ctx context.Context) {
	now := s.now().UTC()
	today := util.Day(now)
	if now.Hour() < s.dailyHour || !s.lastDaily.Before(today) {
		return
	}
	// at hour 0 the day that just ended is analysed, later hours analyse today
	date := today.AddDate(0, 0, -1)
	if s.dailyHour > 0 {
		date = today
	}

	if s.jobs != nil {
		err := s.jobs.Enqueue(ctx, JobDailyAnalysis, DailyAnalysisPayload{Date: date.Format(util.DateLayout)})
		if err != nil {
			s.log.Error("enqueue daily analysis", logger.Error(err))
			return
		}
	} else if _, err := s.perf.RunDailyAnalysis(ctx, date); err != nil {
		s.log.Error("daily analysis", logger.Error(err))
		return
	}
	s.lastDaily = today
}
