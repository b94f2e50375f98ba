package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalPulse/internal/domain/models"
)

func risingBars(n int) []models.Bar {
	start := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = models.Bar{
			Time:   start.Add(time.Duration(i) * 5 * time.Minute),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func TestCompute_ShortSeriesReturnsRawColumnsOnly(t *testing.T) {
	t.Parallel()

	f := Compute(risingBars(MinBars - 1))

	assert.False(t, f.Ready())
	assert.Equal(t, MinBars-1, f.Len())
	assert.Nil(t, f.SMA20)
	assert.Nil(t, f.RSI)
	assert.True(t, math.IsNaN(f.Last(f.RSI)))
	assert.True(t, math.IsNaN(f.VolumeRatio()))
}

func TestCompute_TrendColumns(t *testing.T) {
	t.Parallel()

	bars := risingBars(60)
	f := Compute(bars)
	require.True(t, f.Ready())

	for i := 0; i < 19; i++ {
		assert.Truef(t, math.IsNaN(f.SMA20[i]), "SMA20[%d] should be warm-up NaN", i)
	}
	// closes are 100..159, so the last 20 average to 149.5
	assert.InDelta(t, 149.5, f.Last(f.SMA20), 1e-9)
	assert.InDelta(t, f.Last(f.SMA20), f.Last(f.BBMiddle), 1e-9)

	assert.Greater(t, f.Last(f.EMA12), f.Last(f.EMA26), "fast EMA leads on a rising series")
	assert.Greater(t, f.Last(f.MACD), 0.0)
	assert.InDelta(t, f.Last(f.MACD)-f.Last(f.MACDSignal), f.Last(f.MACDHist), 1e-9)
	assert.True(t, math.IsNaN(f.MACDSignal[32]))
	assert.False(t, math.IsNaN(f.MACDSignal[33]))
}

func TestCompute_Oscillators(t *testing.T) {
	t.Parallel()

	f := Compute(risingBars(40))

	assert.InDelta(t, 100.0, f.Last(f.RSI), 1e-9, "no losses means RSI 100")
	assert.True(t, math.IsNaN(f.RSI[13]))
	assert.False(t, math.IsNaN(f.RSI[14]))

	k := f.Last(f.StochK)
	assert.GreaterOrEqual(t, k, 0.0)
	assert.LessOrEqual(t, k, 100.0)
}

func TestCompute_BandsVolumeAndLevels(t *testing.T) {
	t.Parallel()

	bars := risingBars(30)
	f := Compute(bars)

	// population std-dev of 20 consecutive integers is sqrt((20^2-1)/12)
	sigma := math.Sqrt((20*20 - 1) / 12.0)
	assert.InDelta(t, 4*sigma, f.Last(f.BBUpper)-f.Last(f.BBLower), 1e-6)

	assert.InDelta(t, 1000.0, f.Last(f.VolumeSMA), 1e-9)
	assert.InDelta(t, 1.0, f.VolumeRatio(), 1e-9)
	assert.InDelta(t, 30*1000.0, f.Last(f.OBV), 1e-9, "every bar closes higher")

	last := len(bars) - 1
	assert.InDelta(t, bars[last-19].Low, f.Last(f.Support), 1e-9)
	assert.InDelta(t, bars[last].High, f.Last(f.Resistance), 1e-9)
}

func TestFrameBack(t *testing.T) {
	t.Parallel()

	f := &Frame{Close: []float64{1, 2, 3}}
	assert.Equal(t, 3.0, f.Back(f.Close, 0))
	assert.Equal(t, 1.0, f.Back(f.Close, 2))
	assert.True(t, math.IsNaN(f.Back(f.Close, 3)))
	assert.True(t, math.IsNaN(f.Back(f.Close, -1)))
}
