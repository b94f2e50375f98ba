package repository

import (
	"context"
	"time"

	"SignalPulse/internal/domain/models"
)

// MarketDataProvider returns OHLCV bars for a symbol, oldest first.
// "No data" is an empty slice with a nil error; errors are reserved for
// transport or provider failures.
type MarketDataProvider interface {
	// Fetch returns the bars of the lookback period ending now.
	Fetch(ctx context.Context, symbol string, period Period, interval Interval) ([]models.Bar, error)
	// FetchRange returns bars with from <= time < to.
	FetchRange(ctx context.Context, symbol string, interval Interval, from, to time.Time) ([]models.Bar, error)
}
