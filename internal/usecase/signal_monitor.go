package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"SignalPulse/internal/domain/models"
	drepo "SignalPulse/internal/domain/repository"
	mid "SignalPulse/internal/middleware"
	"SignalPulse/pkg/logger"
)

// SignalMonitor watches live trades and closes ACTIVE signals whose target
// or stop has been touched.
type SignalMonitor struct {
	stream    drepo.MarketStream
	lifecycle *SignalLifecycle
	metrics   drepo.Metrics
	log       *logger.Logger
	symbols   []string
	refresh   time.Duration
	pipe      *mid.RealtimePipeline

	mu     sync.RWMutex
	active map[string][]models.Signal
	wg     sync.WaitGroup
}

type MonitorOption func(*SignalMonitor)

// WithRefresh sets how often the ACTIVE set is reloaded from the store.
func WithRefresh(d time.Duration) MonitorOption {
	return func(m *SignalMonitor) {
		if d > 0 {
			m.refresh = d
		}
	}
}

func NewSignalMonitor(
	stream drepo.MarketStream,
	lifecycle *SignalLifecycle,
	symbols []string,
	metrics drepo.Metrics,
	log *logger.Logger,
	pipeOpts []mid.PipelineOption,
	opts ...MonitorOption,
) *SignalMonitor {
	if log == nil {
		log = logger.Nop()
	}
	m := &SignalMonitor{
		stream:    stream,
		lifecycle: lifecycle,
		metrics:   metrics,
		log:       log.With(logger.String("component", "monitor")),
		symbols:   symbols,
		refresh:   time.Minute,
		active:    make(map[string][]models.Signal),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.pipe = mid.NewRealtimePipeline(m, metrics, pipeOpts...)
	return m
}

// IsConnected returns true if the market stream is connected.
func (m *SignalMonitor) IsConnected() bool {
	return m.stream.IsConnected()
}

func (m *SignalMonitor) Start(ctx context.Context) error {
	if err := m.Reload(ctx); err != nil {
		return err
	}
	if err := m.stream.Connect(ctx); err != nil {
		return err
	}
	if err := m.stream.Subscribe(ctx, m.symbols); err != nil {
		return err
	}
	m.pipe.Start(ctx)

	m.wg.Add(2)
	go m.consume(ctx)
	go m.reloadLoop(ctx)
	return nil
}

func (m *SignalMonitor) consume(ctx context.Context) {
	defer m.wg.Done()
	for {
		ticks, errs := m.stream.Read(ctx)
		for ticks != nil || errs != nil {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				m.metrics.RecordError("stream")
				m.log.Warn("trade stream error", logger.Error(err))
			case t, ok := <-ticks:
				if !ok {
					ticks = nil
					continue
				}
				_ = m.pipe.HandleTick(ctx, t)
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err := m.stream.Reconnect(ctx); err != nil {
			m.log.Warn("trade stream reconnect", logger.Error(err))
		}
	}
}

func (m *SignalMonitor) reloadLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Reload(ctx); err != nil {
				m.log.Warn("reload active signals", logger.Error(err))
			}
		}
	}
}

// Reload replaces the watched set with the ACTIVE signals in the store.
func (m *SignalMonitor) Reload(ctx context.Context) error {
	signals, err := m.lifecycle.ActiveSignals(ctx)
	if err != nil {
		return err
	}
	bySymbol := make(map[string][]models.Signal)
	for _, s := range signals {
		bySymbol[s.Symbol] = append(bySymbol[s.Symbol], s)
	}
	m.mu.Lock()
	m.active = bySymbol
	m.mu.Unlock()
	return nil
}

// Watch adds freshly emitted signals without waiting for the next reload.
func (m *SignalMonitor) Watch(signals []models.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range signals {
		if s.Status == models.StatusActive {
			m.active[s.Symbol] = append(m.active[s.Symbol], s)
		}
	}
}

// HandleTick closes every watched signal of the tick's symbol whose level
// the price reached. A failed close is returned so the pipeline retries it.
func (m *SignalMonitor) HandleTick(ctx context.Context, t models.PriceTick) error {
	m.mu.RLock()
	watched := m.active[t.Symbol]
	m.mu.RUnlock()

	var firstErr error
	for _, s := range watched {
		reason, hit := Touched(s, t.Price)
		if !hit {
			continue
		}
		_, err := m.lifecycle.Close(ctx, s.ID, t.Price, t.Time)
		switch {
		case err == nil:
			m.log.Info("signal auto-closed",
				logger.String("signal_id", s.ID),
				logger.String("symbol", s.Symbol),
				logger.String("reason", reason),
				logger.Float64("price", t.Price),
			)
			m.forget(s.ID)
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrSignalNotFound), errors.Is(err, ErrInvalidExit):
			m.forget(s.ID)
		default:
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *SignalMonitor) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sym, list := range m.active {
		kept := list[:0]
		for _, s := range list {
			if s.ID != id {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(m.active, sym)
		} else {
			m.active[sym] = kept
		}
	}
}

// Watching reports how many signals are being monitored.
func (m *SignalMonitor) Watching() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, list := range m.active {
		n += len(list)
	}
	return n
}

// Touched reports whether price reached the signal's target or stop.
func Touched(s models.Signal, price float64) (string, bool) {
	if s.Direction == models.Sell {
		switch {
		case price <= s.Target:
			return "target", true
		case price >= s.Stop:
			return "stop", true
		}
		return "", false
	}
	switch {
	case price >= s.Target:
		return "target", true
	case price <= s.Stop:
		return "stop", true
	}
	return "", false
}

// Shutdown stops the pipeline and closes the stream. ctx passed to Start must
// already be cancelled for the loops to exit.
func (m *SignalMonitor) Shutdown(ctx context.Context) error {
	m.pipe.Stop()
	err := m.stream.Close()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
