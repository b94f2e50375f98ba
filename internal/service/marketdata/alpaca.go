package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/repository"
	"SignalPulse/pkg/config"
)

// alpacaBars is the subset of *marketdata.Client used here.
type alpacaBars interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
}

// Alpaca serves US equities and crypto pairs.
type Alpaca struct {
	client alpacaBars
	feed   string
	now    func() time.Time
}

var _ repository.MarketDataProvider = (*Alpaca)(nil)

func NewAlpaca(cfg config.AlpacaConfig) *Alpaca {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
	return &Alpaca{client: client, feed: cfg.Feed, now: time.Now}
}

func (a *Alpaca) Fetch(ctx context.Context, symbol string, period repository.Period, interval repository.Interval) ([]models.Bar, error) {
	return fetchPeriod(ctx, a, symbol, period, interval, a.now())
}

func (a *Alpaca) FetchRange(ctx context.Context, symbol string, interval repository.Interval, from, to time.Time) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tf := alpacaTimeFrame(interval)

	if pair, ok := alpacaCryptoPair(symbol); ok {
		raw, err := a.client.GetCryptoBars(pair, marketdata.GetCryptoBarsRequest{TimeFrame: tf, Start: from, End: to})
		if err != nil {
			return nil, fmt.Errorf("alpaca crypto bars %s: %w", symbol, err)
		}
		bars := make([]models.Bar, 0, len(raw))
		for _, b := range raw {
			bars = append(bars, models.Bar{Time: b.Timestamp, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
		}
		return clip(bars, from, to), nil
	}

	raw, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     from,
		End:       to,
		Feed:      marketdata.Feed(a.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", symbol, err)
	}
	bars := make([]models.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, models.Bar{Time: b.Timestamp, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: float64(b.Volume)})
	}
	return clip(bars, from, to), nil
}

func alpacaTimeFrame(iv repository.Interval) marketdata.TimeFrame {
	switch iv {
	case repository.Interval1m:
		return marketdata.NewTimeFrame(1, marketdata.Min)
	case repository.Interval15m:
		return marketdata.NewTimeFrame(15, marketdata.Min)
	case repository.Interval1h:
		return marketdata.NewTimeFrame(1, marketdata.Hour)
	case repository.Interval1d:
		return marketdata.NewTimeFrame(1, marketdata.Day)
	default:
		return marketdata.NewTimeFrame(5, marketdata.Min)
	}
}

// alpacaCryptoPair maps BTC-USD style tickers to Alpaca's BTC/USD.
func alpacaCryptoPair(symbol string) (string, bool) {
	if strings.Contains(symbol, "/") {
		return symbol, true
	}
	if base, ok := strings.CutSuffix(symbol, "-USD"); ok {
		return base + "/USD", true
	}
	return "", false
}
