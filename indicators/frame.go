package indicators

import (
	"math"
	"time"

	"pro-trader/config"
	"pro-trader/types"
)

// Frame holds all indicator columns aligned 1:1 with the input bars.
// Numeric columns carry NaN through their warm-up window; boolean
// conditions are false wherever an input they depend on is still NaN.
type Frame struct {
	Time   []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64

	EMA20  []float64
	EMA50  []float64
	EMA200 []float64

	RSI        []float64
	MACDLine   []float64
	SignalLine []float64
	Histogram  []float64
	ATR        []float64

	ADX     []float64
	PlusDI  []float64
	MinusDI []float64

	VolSMA []float64
	ATRPct []float64

	// Trend strength: EMA separation as percent of price
	EMASeparationBull []float64
	EMASeparationBear []float64
	StrongBullTrend   []bool
	StrongBearTrend   []bool

	// Price momentum relative to EMA20
	PriceMomentumBull []bool
	PriceMomentumBear []bool

	// Volatility regime from ATR percent against its own average
	HighVolatility   []bool
	LowVolatility    []bool
	NormalVolatility []bool

	// Market phase: net displacement against the 20-bar range
	TrendingMarket []bool

	// Momentum quality
	RSIBullMomentum []bool
	RSIBearMomentum []bool

	// MACD acceleration
	MACDAcceleratingBull []bool
	MACDAcceleratingBear []bool

	// Volume confirmation
	VolBull []bool
	VolBear []bool

	// ADX regime classification
	ADXChoppy  []bool
	ADXExtreme []bool
}

// Len returns the number of bars in the frame
func (f *Frame) Len() int { return len(f.Close) }

// Compute builds the full indicator frame for a bar series. Pure and
// deterministic: the value at index i depends only on bars[0..i].
func Compute(bars []types.Bar, cfg *config.Config) *Frame {
	n := len(bars)
	f := &Frame{
		Time:   make([]time.Time, n),
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	for i, b := range bars {
		f.Time[i] = b.Time
		f.Open[i] = b.Open
		f.High[i] = b.High
		f.Low[i] = b.Low
		f.Close[i] = b.Close
		f.Volume[i] = b.Volume
	}

	f.EMA20 = EMASeries(f.Close, cfg.EMA20Length)
	f.EMA50 = EMASeries(f.Close, cfg.EMA50Length)
	f.EMA200 = EMASeries(f.Close, cfg.EMA200Length)
	f.RSI = RSISeries(f.Close, cfg.RSILength)
	f.MACDLine, f.SignalLine, f.Histogram = MACDSeries(f.Close, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	f.ATR = ATRSeries(f.High, f.Low, f.Close, cfg.ATRLength)
	f.ADX, f.PlusDI, f.MinusDI = ADXSeries(f.High, f.Low, f.Close, cfg.ADXLength)
	f.VolSMA = SMASeries(f.Volume, 20)

	f.computeDerived(cfg)
	return f
}

func (f *Frame) computeDerived(cfg *config.Config) {
	n := f.Len()

	f.ATRPct = nanSlice(n)
	for i := 0; i < n; i++ {
		if f.Close[i] != 0 {
			f.ATRPct[i] = f.ATR[i] / f.Close[i] * 100
		}
	}
	atrSMA := SMASeries(f.ATRPct, 20)

	f.EMASeparationBull = nanSlice(n)
	f.EMASeparationBear = nanSlice(n)
	f.StrongBullTrend = make([]bool, n)
	f.StrongBearTrend = make([]bool, n)
	f.PriceMomentumBull = make([]bool, n)
	f.PriceMomentumBear = make([]bool, n)
	f.HighVolatility = make([]bool, n)
	f.LowVolatility = make([]bool, n)
	f.NormalVolatility = make([]bool, n)
	f.TrendingMarket = make([]bool, n)
	f.RSIBullMomentum = make([]bool, n)
	f.RSIBearMomentum = make([]bool, n)
	f.MACDAcceleratingBull = make([]bool, n)
	f.MACDAcceleratingBear = make([]bool, n)
	f.VolBull = make([]bool, n)
	f.VolBear = make([]bool, n)
	f.ADXChoppy = make([]bool, n)
	f.ADXExtreme = make([]bool, n)

	for i := 0; i < n; i++ {
		// Trend strength via EMA separation percent of price
		if !math.IsNaN(f.EMA20[i]) && !math.IsNaN(f.EMA50[i]) && f.Close[i] != 0 {
			f.EMASeparationBull[i] = (f.EMA20[i] - f.EMA50[i]) / f.Close[i] * 100
			f.EMASeparationBear[i] = (f.EMA50[i] - f.EMA20[i]) / f.Close[i] * 100
			f.StrongBullTrend[i] = f.EMASeparationBull[i] > 0.5
			f.StrongBearTrend[i] = f.EMASeparationBear[i] > 0.5
		}

		// Price distance from EMA20 as percent
		if !math.IsNaN(f.EMA20[i]) && f.Close[i] != 0 {
			dist := (f.Close[i] - f.EMA20[i]) / f.Close[i] * 100
			f.PriceMomentumBull[i] = dist > 1.0
			f.PriceMomentumBear[i] = dist < -1.0
		}

		// Volatility regime
		if !math.IsNaN(f.ATRPct[i]) && !math.IsNaN(atrSMA[i]) {
			f.HighVolatility[i] = f.ATRPct[i] > atrSMA[i]*1.5
			f.LowVolatility[i] = f.ATRPct[i] < atrSMA[i]*0.7
			f.NormalVolatility[i] = !f.HighVolatility[i] && !f.LowVolatility[i]
		}

		// Trending when 20-bar displacement covers 60% of the range
		if i >= 20 {
			rangeHigh := MaxSlice(f.High[i-19 : i+1])
			rangeLow := MinSlice(f.Low[i-19 : i+1])
			movement := math.Abs(f.Close[i] - f.Close[i-20])
			f.TrendingMarket[i] = movement > (rangeHigh-rangeLow)*0.6
		}

		// RSI slope over three bars for momentum quality
		if i >= 3 && !math.IsNaN(f.RSI[i]) && !math.IsNaN(f.RSI[i-3]) {
			slope := f.RSI[i] - f.RSI[i-3]
			f.RSIBullMomentum[i] = f.RSI[i] > 45 && f.RSI[i] < 75 && slope > 2
			f.RSIBearMomentum[i] = f.RSI[i] < 55 && f.RSI[i] > 25 && slope < -2
		}

		// MACD histogram slope over two bars for acceleration
		if i >= 2 && !math.IsNaN(f.Histogram[i]) && !math.IsNaN(f.Histogram[i-2]) &&
			!math.IsNaN(f.MACDLine[i]) && !math.IsNaN(f.SignalLine[i]) {
			slope := f.Histogram[i] - f.Histogram[i-2]
			f.MACDAcceleratingBull[i] = f.MACDLine[i] > f.SignalLine[i] && slope > 0
			f.MACDAcceleratingBear[i] = f.MACDLine[i] < f.SignalLine[i] && slope < 0
		}

		// Volume confirmation against the 20-bar average
		if !math.IsNaN(f.VolSMA[i]) && f.VolSMA[i] > 0 {
			f.VolBull[i] = f.Volume[i] > f.VolSMA[i]*1.2
			f.VolBear[i] = f.Volume[i] > f.VolSMA[i]*1.1
		}

		// ADX regime classification
		if !math.IsNaN(f.ADX[i]) {
			f.ADXChoppy[i] = f.ADX[i] < cfg.ADXRangingThreshold
			f.ADXExtreme[i] = f.ADX[i] > cfg.ADXExtremeThreshold
		}
	}
}

// Ready reports whether the core indicator columns are all defined at
// index i. Consumers treat a not-ready bar as "cannot signal".
func (f *Frame) Ready(i int) bool {
	if i < 0 || i >= f.Len() {
		return false
	}
	return !math.IsNaN(f.EMA20[i]) && !math.IsNaN(f.EMA50[i]) && !math.IsNaN(f.EMA200[i]) &&
		!math.IsNaN(f.RSI[i]) && !math.IsNaN(f.MACDLine[i]) && !math.IsNaN(f.SignalLine[i]) &&
		!math.IsNaN(f.ATR[i])
}
