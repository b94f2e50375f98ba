package models

// Proposal is a detector's raw trade idea before levels, scoring and
// validation. Each strategy family has its own case carrying only what its
// builder needs; the set is closed.
type Proposal interface {
	Strategy() Strategy
	// Setup names the concrete variant; it equals the strategy except for
	// investment, which is VALUE or GROWTH.
	Setup() string
	Side() Direction
	isProposal()
}

type MeanReversionProposal struct {
	Direction   Direction
	Close       float64
	RSI         float64
	BBMiddle    float64
	Support     float64
	Resistance  float64
	VolumeRatio float64
}

func (p MeanReversionProposal) Strategy() Strategy { return StrategyMeanReversion }
func (p MeanReversionProposal) Setup() string      { return string(StrategyMeanReversion) }
func (p MeanReversionProposal) Side() Direction    { return p.Direction }
func (MeanReversionProposal) isProposal()          {}

type MomentumProposal struct {
	Close       float64
	Resistance  float64
	EMA20       float64
	MACD        float64
	MACDSignal  float64
	VolumeRatio float64
}

func (p MomentumProposal) Strategy() Strategy { return StrategyMomentum }
func (p MomentumProposal) Setup() string      { return string(StrategyMomentum) }
func (p MomentumProposal) Side() Direction    { return Buy }
func (MomentumProposal) isProposal()          {}

type ScalpingProposal struct {
	Direction   Direction
	Close       float64
	EMA12       float64
	RSI         float64
	RSIDelta    float64
	VolumeRatio float64
}

func (p ScalpingProposal) Strategy() Strategy { return StrategyScalping }
func (p ScalpingProposal) Setup() string      { return string(StrategyScalping) }
func (p ScalpingProposal) Side() Direction    { return p.Direction }
func (ScalpingProposal) isProposal()          {}

type TrendProposal struct {
	Close float64
	EMA12 float64
	EMA26 float64
	MACD  float64
}

func (p TrendProposal) Strategy() Strategy { return StrategyTrend }
func (p TrendProposal) Setup() string      { return string(StrategyTrend) }
func (p TrendProposal) Side() Direction    { return Buy }
func (TrendProposal) isProposal()          {}

type SupportResistanceProposal struct {
	Direction  Direction
	Close      float64
	Support    float64
	Resistance float64
	RSI        float64
}

func (p SupportResistanceProposal) Strategy() Strategy { return StrategySupportResistance }
func (p SupportResistanceProposal) Setup() string      { return string(StrategySupportResistance) }
func (p SupportResistanceProposal) Side() Direction    { return p.Direction }
func (SupportResistanceProposal) isProposal()          {}

type InvestmentVariant string

const (
	VariantValue  InvestmentVariant = "VALUE"
	VariantGrowth InvestmentVariant = "GROWTH"
)

type InvestmentProposal struct {
	Variant InvestmentVariant
	Close   float64
	// Mean120 is the ~6 month average close, Low60 the ~3 month low close.
	Mean120 float64
	Low60   float64
}

func (p InvestmentProposal) Strategy() Strategy { return StrategyInvestment }
func (p InvestmentProposal) Setup() string      { return string(p.Variant) }
func (p InvestmentProposal) Side() Direction    { return Buy }
func (InvestmentProposal) isProposal()          {}
