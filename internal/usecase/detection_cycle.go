package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SignalPulse/internal/domain/models"
	drepo "SignalPulse/internal/domain/repository"
	domsvc "SignalPulse/internal/domain/service"
	"SignalPulse/internal/services/detectors"
	"SignalPulse/internal/services/indicators"
	"SignalPulse/internal/services/selector"
	"SignalPulse/pkg/config"
	"SignalPulse/pkg/logger"
)

// SignalBuilder prices a proposal into a validated signal.
type SignalBuilder interface {
	Build(symbol string, p models.Proposal, confidence int, at time.Time) (models.Signal, error)
}

// CycleOptions narrows one run of the detection cycle.
type CycleOptions struct {
	// Symbols overrides the configured universe when non-empty.
	Symbols []string
	// ForceInvestment runs the daily-bar detectors regardless of the hour.
	ForceInvestment bool
}

type horizonPlan struct {
	horizon   models.Horizon
	period    drepo.Period
	interval  drepo.Interval
	minBars   int
	detectors []domsvc.Detector
}

// DetectionCycle runs the detectors over the universe on a bounded worker
// pool, then ranks every candidate in one pass and persists the winners.
type DetectionCycle struct {
	cfg       config.EngineConfig
	data      drepo.MarketDataProvider
	scorer    domsvc.ConfidenceScorer
	builder   SignalBuilder
	detectors []domsvc.Detector
	signals   drepo.SignalStore
	pub       drepo.SignalPublisher
	metrics   drepo.Metrics
	log       *logger.Logger
	now       func() time.Time
	// market is the zone InvestmentHour is read in.
	market *time.Location

	// running serialises cycles; a scheduled tick and a manual trigger
	// must not insert the same keys concurrently.
	running sync.Mutex
}

func NewDetectionCycle(
	cfg config.EngineConfig,
	data drepo.MarketDataProvider,
	scorer domsvc.ConfidenceScorer,
	builder SignalBuilder,
	detectors []domsvc.Detector,
	signals drepo.SignalStore,
	pub drepo.SignalPublisher,
	metrics drepo.Metrics,
	log *logger.Logger,
) *DetectionCycle {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.String("component", "detection"))
	market := time.UTC
	if cfg.InvestmentTimezone != "" {
		loc, err := time.LoadLocation(cfg.InvestmentTimezone)
		if err != nil {
			log.Warn("unknown investment timezone, using UTC",
				logger.String("timezone", cfg.InvestmentTimezone), logger.Error(err))
		} else {
			market = loc
		}
	}
	return &DetectionCycle{
		cfg:       cfg,
		data:      data,
		scorer:    scorer,
		builder:   builder,
		detectors: detectors,
		signals:   signals,
		pub:       pub,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
		market:    market,
	}
}

type symbolResult struct {
	signals []models.Signal
	err     error
}

// Run executes one cycle. Per-symbol failures are reported in the result and
// never abort the cycle; only persistence errors are returned.
func (c *DetectionCycle) Run(ctx context.Context, opts CycleOptions) (models.CycleResult, error) {
	c.running.Lock()
	defer c.running.Unlock()

	started := c.now().UTC()
	symbols := opts.Symbols
	if len(symbols) == 0 {
		symbols = c.cfg.Symbols()
	}
	res := models.CycleResult{
		StartedAt: started,
		Symbols:   len(symbols),
		Failures:  map[string]string{},
	}

	plans := c.plans(started, opts.ForceInvestment)
	results := c.scan(ctx, symbols, plans, started)

	// barrier passed: flatten in universe order so arrival order is stable
	var cands []models.Candidate
	for i, r := range results {
		if r.err != nil {
			res.Failures[symbols[i]] = r.err.Error()
			continue
		}
		for _, s := range r.signals {
			cands = append(cands, models.Candidate{Signal: s, Seq: len(cands)})
		}
	}
	res.Candidates = len(cands)

	picked := selector.Select(cands, selector.Options{
		MinConfidence: c.cfg.MinConfidence,
		MinRiskReward: c.cfg.MinRiskReward,
		MaxSignals:    c.cfg.MaxSignalsPerCycle,
	})

	emitted, err := c.persist(ctx, picked)
	res.Emitted = emitted
	res.FinishedAt = c.now().UTC()
	c.metrics.RecordCycle(res.FinishedAt.Sub(started).Seconds(), len(symbols), len(res.Failures), len(emitted))
	if err != nil {
		return res, err
	}

	c.log.Info("detection cycle finished",
		logger.Int("symbols", len(symbols)),
		logger.Int("failed", len(res.Failures)),
		logger.Int("candidates", len(cands)),
		logger.Int("emitted", len(emitted)),
		logger.Duration("duration_ms", res.FinishedAt.Sub(started)),
	)
	return res, nil
}

func (c *DetectionCycle) plans(at time.Time, forceInvestment bool) []horizonPlan {
	h := c.cfg.Horizons
	all := []struct {
		horizon models.Horizon
		cfg     config.HorizonConfig
	}{
		{models.HorizonIntraday, h.Intraday},
		{models.HorizonSwing, h.Swing},
		{models.HorizonInvestment, h.Investment},
	}

	hour := at.In(c.market).Hour()
	var out []horizonPlan
	for _, p := range all {
		if p.horizon == models.HorizonInvestment && !forceInvestment && hour != c.cfg.InvestmentHour {
			continue
		}
		ds := detectors.ForHorizon(c.detectors, p.horizon)
		if len(ds) == 0 {
			continue
		}
		out = append(out, horizonPlan{
			horizon:   p.horizon,
			period:    drepo.Period(p.cfg.Period),
			interval:  drepo.NormalizeInterval(p.cfg.Interval),
			minBars:   p.cfg.MinBars,
			detectors: ds,
		})
	}
	return out
}

// scan fans symbols out to the worker pool and waits for all of them.
func (c *DetectionCycle) scan(ctx context.Context, symbols []string, plans []horizonPlan, at time.Time) []symbolResult {
	results := make([]symbolResult, len(symbols))
	workers := c.cfg.Concurrency
	if workers <= 0 {
		workers = 1
	}
	if workers > len(symbols) {
		workers = len(symbols)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = c.analyze(ctx, symbols[i], plans, at)
			}
		}()
	}
	for i := range symbols {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (c *DetectionCycle) analyze(ctx context.Context, symbol string, plans []horizonPlan, at time.Time) symbolResult {
	if c.cfg.SymbolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.SymbolTimeout)
		defer cancel()
	}

	var out []models.Signal
	for _, p := range plans {
		bars, err := c.data.Fetch(ctx, symbol, p.period, p.interval)
		if err != nil {
			c.metrics.RecordError("fetch")
			c.log.Warn("symbol skipped",
				logger.String("symbol", symbol),
				logger.String("horizon", string(p.horizon)),
				logger.Error(err),
			)
			return symbolResult{err: fmt.Errorf("fetch %s %s: %w", p.interval, p.period, err)}
		}
		if len(bars) < p.minBars {
			c.log.Debug("series too short",
				logger.String("symbol", symbol),
				logger.String("horizon", string(p.horizon)),
				logger.Int("bars", len(bars)),
				logger.Int("min_bars", p.minBars),
			)
			continue
		}

		f := indicators.Compute(bars)
		if !f.Ready() {
			continue
		}
		for _, d := range p.detectors {
			if s, ok := c.propose(symbol, d, f, at); ok {
				out = append(out, s)
			}
		}
	}
	return symbolResult{signals: out}
}

func (c *DetectionCycle) propose(symbol string, d domsvc.Detector, f *indicators.Frame, at time.Time) (models.Signal, bool) {
	p, ok := d.Detect(f)
	if !ok {
		return models.Signal{}, false
	}
	strategy := string(d.Strategy())

	conf := c.scorer.Score(f, d.Strategy())
	if floor, ok := c.cfg.FamilyMinConfidence[p.Setup()]; ok && conf < floor {
		c.metrics.RecordProposal(strategy, false)
		return models.Signal{}, false
	}

	s, err := c.builder.Build(symbol, p, conf, at)
	if err != nil {
		c.metrics.RecordProposal(strategy, false)
		if !errors.Is(err, models.ErrLowRiskReward) && !errors.Is(err, models.ErrBadLevels) {
			c.log.Warn("build signal", logger.String("symbol", symbol), logger.Error(err))
		}
		return models.Signal{}, false
	}
	c.metrics.RecordProposal(strategy, true)
	return s, true
}

// persist stores the selected signals and announces the ones that were new.
func (c *DetectionCycle) persist(ctx context.Context, picked []models.Signal) ([]models.Signal, error) {
	if len(picked) == 0 {
		return nil, nil
	}
	created, err := c.signals.Insert(ctx, picked)
	if err != nil {
		c.metrics.RecordError("persist")
		return nil, fmt.Errorf("store signals: %w", err)
	}
	if skipped := len(picked) - len(created); skipped > 0 {
		c.log.Info("duplicate signal keys skipped", logger.Int("skipped", skipped))
	}
	if c.pub != nil && len(created) > 0 {
		if err := c.pub.PublishEmitted(ctx, created); err != nil {
			c.metrics.RecordError("publish")
			c.log.Error("publish emitted signals", logger.Error(err))
		}
	}
	return created, nil
}
