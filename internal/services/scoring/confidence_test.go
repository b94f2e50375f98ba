package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/services/indicators"
)

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// zigzag alternates +step/-step percent moves around 100.
func zigzag(n int, step float64) []float64 {
	out := make([]float64, n)
	out[0] = 100
	for i := 1; i < n; i++ {
		if i%2 == 1 {
			out[i] = out[i-1] * (1 + step)
		} else {
			out[i] = out[i-1] * (1 - step)
		}
	}
	return out
}

func frame(closes []float64) *indicators.Frame {
	n := len(closes)
	return &indicators.Frame{
		Close:      closes,
		Volume:     flat(n, 1000),
		VolumeSMA:  flat(n, 1000),
		RSI:        flat(n, 50),
		MACD:       flat(n, 0),
		MACDSignal: flat(n, 0),
		EMA12:      flat(n, 1e9),
	}
}

func TestScore_NeutralFrame(t *testing.T) {
	t.Parallel()

	// flat prices: zero volatility, only RSI in range -> 5 + 0 + 0 + (1-1)
	f := frame(flat(30, 100))
	assert.Equal(t, 5, New().Score(f, models.StrategyTrend))
}

func TestScore_FullAlignmentAndBonuses(t *testing.T) {
	t.Parallel()

	f := frame(zigzag(40, 0.02))
	f.EMA12 = flat(40, 1)
	f.MACD[39] = 1
	f.Volume[39] = 2500

	// 5 +1 volume +1 volatility +2 alignment +1 momentum surge
	assert.Equal(t, 10, New().Score(f, models.StrategyMomentum))
	// same frame without the strategy bonus
	assert.Equal(t, 9, New().Score(f, models.StrategyTrend))
}

func TestScore_PenaltiesClampAtOne(t *testing.T) {
	t.Parallel()

	f := frame(zigzag(40, 0.08))
	f.RSI = flat(40, 90)
	f.Volume[39] = 100

	// 5 -1 volume -1 volatility -1 alignment
	assert.Equal(t, 2, New().Score(f, models.StrategyScalping))
}

func TestScore_MeanReversionExtremeRSI(t *testing.T) {
	t.Parallel()

	f := frame(flat(30, 100))
	f.RSI = flat(30, 20)
	// RSI out of range drops alignment to zero: 5 - 1 + 1
	assert.Equal(t, 5, New().Score(f, models.StrategyMeanReversion))
}

func TestScore_AlwaysInRange(t *testing.T) {
	t.Parallel()

	cases := []*indicators.Frame{
		frame(flat(25, 100)),
		frame(zigzag(25, 0.2)),
		{Close: flat(5, 100)},
		{Close: []float64{math.NaN(), 1}},
	}
	for _, f := range cases {
		for _, s := range models.Strategies {
			got := New().Score(f, s)
			assert.GreaterOrEqual(t, got, 1)
			assert.LessOrEqual(t, got, 10)
		}
	}
}
