package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPulse/internal/domain/repository"
)

type fakeAlpaca struct {
	stockSymbol  string
	cryptoSymbol string
	timeframe    marketdata.TimeFrame
	bars         []marketdata.Bar
	cryptoBars   []marketdata.CryptoBar
}

func (f *fakeAlpaca) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.stockSymbol = symbol
	f.timeframe = req.TimeFrame
	return f.bars, nil
}

func (f *fakeAlpaca) GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error) {
	f.cryptoSymbol = symbol
	f.timeframe = req.TimeFrame
	return f.cryptoBars, nil
}

func TestAlpaca_StocksAndCrypto(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	fake := &fakeAlpaca{
		bars: []marketdata.Bar{
			{Timestamp: t0.Add(time.Hour), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 300},
			{Timestamp: t0, Open: 1, High: 1, Low: 1, Close: 1, Volume: 100},
			{Timestamp: t0.Add(5 * time.Hour), Close: 9}, // outside the window
		},
		cryptoBars: []marketdata.CryptoBar{{Timestamp: t0, Close: 65000, Volume: 1.5}},
	}
	a := &Alpaca{client: fake, feed: "iex", now: time.Now}
	ctx := context.Background()

	bars, err := a.FetchRange(ctx, "AAPL", repository.Interval1h, t0, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", fake.stockSymbol)
	assert.Equal(t, marketdata.NewTimeFrame(1, marketdata.Hour), fake.timeframe)
	require.Len(t, bars, 2)
	assert.Equal(t, t0, bars[0].Time)
	assert.Equal(t, 300.0, bars[1].Volume)

	bars, err = a.FetchRange(ctx, "BTC-USD", repository.Interval5m, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", fake.cryptoSymbol)
	require.Len(t, bars, 1)
	assert.Equal(t, 1.5, bars[0].Volume)
}

func TestAlpaca_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Alpaca{client: &fakeAlpaca{}, now: time.Now}).FetchRange(ctx, "AAPL", repository.Interval5m, time.Now(), time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}
