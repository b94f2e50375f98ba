package indicators

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"SignalPulse/internal/domain/models"
)

const (
	// MinBars is the shortest series the engine derives indicators for.
	MinBars = 20

	smaLen      = 20
	emaFastLen  = 12
	emaMidLen   = 20
	emaSlowLen  = 26
	macdSigLen  = 9
	rsiLen      = 14
	stochKLen   = 14
	stochDLen   = 3
	bbLen       = 20
	bbDev       = 2.0
	volumeLen   = 20
	levelWindow = 20
)

// Frame is a bar series plus its derived columns. Every column has the same
// length as Close; positions before an indicator's warm-up hold NaN. When the
// series is shorter than MinBars only the raw columns are populated.
type Frame struct {
	Bars   []models.Bar
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64

	SMA20      []float64
	EMA12      []float64
	EMA20      []float64
	EMA26      []float64
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
	RSI        []float64
	StochK     []float64
	StochD     []float64
	BBUpper    []float64
	BBMiddle   []float64
	BBLower    []float64
	VolumeSMA  []float64
	OBV        []float64
	Support    []float64
	Resistance []float64
}

// Len is the number of bars.
func (f *Frame) Len() int { return len(f.Close) }

// Ready reports whether indicator columns were derived.
func (f *Frame) Ready() bool { return f.Len() >= MinBars && len(f.SMA20) == f.Len() }

// Back returns col at n bars before the latest one (0 = latest), or NaN when
// the column is missing or too short.
func (f *Frame) Back(col []float64, n int) float64 {
	i := len(col) - 1 - n
	if n < 0 || i < 0 {
		return math.NaN()
	}
	return col[i]
}

// Last is Back(col, 0).
func (f *Frame) Last(col []float64) float64 { return f.Back(col, 0) }

// VolumeRatio is the latest volume over its 20-bar mean.
func (f *Frame) VolumeRatio() float64 {
	avg := f.Last(f.VolumeSMA)
	if math.IsNaN(avg) || avg == 0 {
		return math.NaN()
	}
	return f.Last(f.Volume) / avg
}

// Compute derives the indicator set from bars. Short series come back with
// raw columns only.
func Compute(bars []models.Bar) *Frame {
	n := len(bars)
	f := &Frame{
		Bars:   bars,
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	for i, b := range bars {
		f.Open[i] = b.Open
		f.High[i] = b.High
		f.Low[i] = b.Low
		f.Close[i] = b.Close
		f.Volume[i] = b.Volume
	}
	if n < MinBars {
		return f
	}

	f.SMA20 = sma(f.Close, smaLen)
	f.EMA12 = ema(f.Close, emaFastLen)
	f.EMA20 = ema(f.Close, emaMidLen)
	f.EMA26 = ema(f.Close, emaSlowLen)

	f.MACD = make([]float64, n)
	for i := range f.MACD {
		f.MACD[i] = f.EMA12[i] - f.EMA26[i]
	}
	f.MACDSignal = emaFrom(f.MACD, macdSigLen, emaSlowLen-1)
	f.MACDHist = make([]float64, n)
	for i := range f.MACDHist {
		f.MACDHist[i] = f.MACD[i] - f.MACDSignal[i]
	}

	f.RSI = rsi(f.Close, rsiLen)
	f.StochK, f.StochD = stoch(f.High, f.Low, f.Close)
	f.BBUpper, f.BBMiddle, f.BBLower = bbands(f.Close)
	f.VolumeSMA = sma(f.Volume, volumeLen)
	f.OBV = talib.Obv(f.Close, f.Volume)
	f.Support = rolling(f.Low, levelWindow, talib.Min)
	f.Resistance = rolling(f.High, levelWindow, talib.Max)

	return f
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// mask overwrites the first warm positions with NaN; talib leaves zeros there.
func mask(xs []float64, warm int) []float64 {
	for i := 0; i < warm && i < len(xs); i++ {
		xs[i] = math.NaN()
	}
	return xs
}

func sma(xs []float64, period int) []float64 {
	if len(xs) < period {
		return nanSlice(len(xs))
	}
	return mask(talib.Sma(xs, period), period-1)
}

func ema(xs []float64, period int) []float64 {
	if len(xs) < period {
		return nanSlice(len(xs))
	}
	return mask(talib.Ema(xs, period), period-1)
}

// emaFrom computes an EMA over xs[start:] and re-aligns it to xs.
func emaFrom(xs []float64, period, start int) []float64 {
	out := nanSlice(len(xs))
	if start < 0 || len(xs)-start < period {
		return out
	}
	seg := ema(xs[start:], period)
	copy(out[start:], seg)
	return out
}

func rsi(xs []float64, period int) []float64 {
	if len(xs) <= period {
		return nanSlice(len(xs))
	}
	return mask(talib.Rsi(xs, period), period)
}

func stoch(high, low, closes []float64) ([]float64, []float64) {
	warm := stochKLen - 1 + stochDLen - 1
	if len(closes) <= warm {
		return nanSlice(len(closes)), nanSlice(len(closes))
	}
	k, d := talib.StochF(high, low, closes, stochKLen, stochDLen, talib.SMA)
	return mask(k, warm), mask(d, warm)
}

func bbands(xs []float64) ([]float64, []float64, []float64) {
	if len(xs) < bbLen {
		return nanSlice(len(xs)), nanSlice(len(xs)), nanSlice(len(xs))
	}
	up, mid, lo := talib.BBands(xs, bbLen, bbDev, bbDev, talib.SMA)
	return mask(up, bbLen-1), mask(mid, bbLen-1), mask(lo, bbLen-1)
}

func rolling(xs []float64, period int, fn func([]float64, int) []float64) []float64 {
	if len(xs) < period {
		return nanSlice(len(xs))
	}
	return mask(fn(xs, period), period-1)
}
