// Package marketdata adapts external bar providers to the
// repository.MarketDataProvider interface.
package marketdata

import (
	"context"
	"sort"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/repository"
)

type rangeFetcher interface {
	FetchRange(ctx context.Context, symbol string, interval repository.Interval, from, to time.Time) ([]models.Bar, error)
}

// fetchPeriod resolves a lookback period against now and delegates to the
// range fetch.
func fetchPeriod(ctx context.Context, f rangeFetcher, symbol string, period repository.Period, interval repository.Interval, now time.Time) ([]models.Bar, error) {
	from, to, err := period.Window(now)
	if err != nil {
		return nil, err
	}
	return f.FetchRange(ctx, symbol, interval, from, to)
}

// clip sorts bars oldest first and keeps from <= t < to.
func clip(bars []models.Bar, from, to time.Time) []models.Bar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if b.Time.Before(from) || !b.Time.Before(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}
