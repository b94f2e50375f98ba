package marketdata

import (
	"context"
	"fmt"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/repository"
	"SignalPulse/internal/service/ratelimit"
)

const (
	ProviderAlpaca     = "alpaca"
	ProviderTwelveData = "twelvedata"
)

// Router picks a provider per symbol, throttles each provider through its
// own token bucket and reports fetch latency.
type Router struct {
	providers    map[string]repository.MarketDataProvider
	limiters     map[string]*ratelimit.Limiter
	routes       map[models.AssetClass]string
	symbolRoutes map[string]string
	crypto       map[string]struct{}
	metrics      repository.Metrics
}

var _ repository.MarketDataProvider = (*Router)(nil)

type RouterOption func(*Router)

// WithProvider registers a named provider with an optional limiter.
func WithProvider(name string, p repository.MarketDataProvider, l *ratelimit.Limiter) RouterOption {
	return func(r *Router) {
		r.providers[name] = p
		if l != nil {
			r.limiters[name] = l
		}
	}
}

// WithRoutes sets the asset-class and per-symbol routing tables.
func WithRoutes(byClass map[string]string, bySymbol map[string]string) RouterOption {
	return func(r *Router) {
		for k, v := range byClass {
			r.routes[models.AssetClass(k)] = v
		}
		for k, v := range bySymbol {
			r.symbolRoutes[k] = v
		}
	}
}

// WithCryptoSymbols marks extra tickers as crypto for routing.
func WithCryptoSymbols(symbols []string) RouterOption {
	return func(r *Router) {
		for _, s := range symbols {
			r.crypto[s] = struct{}{}
		}
	}
}

func NewRouter(metrics repository.Metrics, opts ...RouterOption) *Router {
	r := &Router{
		providers:    map[string]repository.MarketDataProvider{},
		limiters:     map[string]*ratelimit.Limiter{},
		routes:       map[models.AssetClass]string{},
		symbolRoutes: map[string]string{},
		crypto:       map[string]struct{}{},
		metrics:      metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Fetch(ctx context.Context, symbol string, period repository.Period, interval repository.Interval) ([]models.Bar, error) {
	name, p, err := r.route(symbol)
	if err != nil {
		return nil, err
	}
	return r.observe(ctx, name, func() ([]models.Bar, error) {
		return p.Fetch(ctx, symbol, period, interval)
	})
}

func (r *Router) FetchRange(ctx context.Context, symbol string, interval repository.Interval, from, to time.Time) ([]models.Bar, error) {
	name, p, err := r.route(symbol)
	if err != nil {
		return nil, err
	}
	return r.observe(ctx, name, func() ([]models.Bar, error) {
		return p.FetchRange(ctx, symbol, interval, from, to)
	})
}

// Provider reports which provider serves symbol.
func (r *Router) Provider(symbol string) string {
	name, _, _ := r.route(symbol)
	return name
}

func (r *Router) route(symbol string) (string, repository.MarketDataProvider, error) {
	name, ok := r.symbolRoutes[symbol]
	if !ok {
		name = r.routes[models.ClassifyAsset(symbol, r.crypto)]
	}
	p, ok := r.providers[name]
	if !ok {
		return name, nil, fmt.Errorf("no market data provider for %s (route %q)", symbol, name)
	}
	return name, p, nil
}

func (r *Router) observe(ctx context.Context, name string, call func() ([]models.Bar, error)) ([]models.Bar, error) {
	if l, ok := r.limiters[name]; ok {
		if err := l.Wait(ctx, name); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	bars, err := call()
	if r.metrics != nil {
		r.metrics.RecordFetch(name, time.Since(start).Seconds(), err)
	}
	return bars, err
}
