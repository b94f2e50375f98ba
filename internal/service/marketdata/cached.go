package marketdata

import (
	"context"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/repository"
	"SignalPulse/pkg/cache"
	"SignalPulse/pkg/logger"
)

// Cached memoises bar fetches. Period fetches are keyed on the current
// interval bucket so that every worker in a cycle shares one upstream call
// per (symbol, period, interval). Cache failures fall through to the source.
type Cached struct {
	next      repository.MarketDataProvider
	cache     cache.Service
	ttl       time.Duration
	namespace string
	log       *logger.Logger
	now       func() time.Time
}

var _ repository.MarketDataProvider = (*Cached)(nil)

func NewCached(next repository.MarketDataProvider, c cache.Service, ttl time.Duration, namespace string, log *logger.Logger) *Cached {
	if log == nil {
		log = logger.Nop()
	}
	return &Cached{next: next, cache: c, ttl: ttl, namespace: namespace, log: log, now: time.Now}
}

func (c *Cached) Fetch(ctx context.Context, symbol string, period repository.Period, interval repository.Interval) ([]models.Bar, error) {
	bucket := c.now().UTC().Truncate(interval.Duration()).Unix()
	key := cache.Key(c.namespace, "p", symbol, period, interval, bucket)
	return c.load(ctx, key, func() ([]models.Bar, error) {
		return c.next.Fetch(ctx, symbol, period, interval)
	})
}

func (c *Cached) FetchRange(ctx context.Context, symbol string, interval repository.Interval, from, to time.Time) ([]models.Bar, error) {
	key := cache.Key(c.namespace, "r", symbol, interval, from.UTC().Unix(), to.UTC().Unix())
	return c.load(ctx, key, func() ([]models.Bar, error) {
		return c.next.FetchRange(ctx, symbol, interval, from, to)
	})
}

func (c *Cached) load(ctx context.Context, key string, fetch func() ([]models.Bar, error)) ([]models.Bar, error) {
	bars, ok, err := cache.GetTyped[[]models.Bar](ctx, c.cache, key)
	if err != nil {
		c.log.Warn("bar cache read failed", logger.String("key", key), logger.Error(err))
	}
	if ok {
		return bars, nil
	}

	bars, err = fetch()
	if err != nil {
		return nil, err
	}
	// empty series are not cached so a transient gap is retried next cycle
	if len(bars) > 0 {
		if err := c.cache.Set(ctx, key, bars, c.ttl); err != nil {
			c.log.Warn("bar cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return bars, nil
}
