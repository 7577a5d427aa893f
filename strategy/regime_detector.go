package strategy

import (
	"fmt"
	"math"

	"pro-trader/config"
	"pro-trader/indicators"
	"pro-trader/logging"
	"pro-trader/types"
)

// Regime labels a broad market condition
type Regime string

const (
	RegimeBull     Regime = "bull"
	RegimeBear     Regime = "bear"
	RegimeVolatile Regime = "volatile"
	RegimeSideways Regime = "sideways"
)

// stableWindowDays marks the tier of trailing windows whose agreement
// decides bull/bear outright
const stableWindowDays = 30

// regimeWindowDays are the trailing sub-windows the detector votes over
var regimeWindowDays = []int{1, 2, 3, 7, 14, 30, 45, 60}

// WindowVote is one sub-window's independent classification
type WindowVote struct {
	Days        int
	Bars        int
	Label       Regime
	TotalReturn float64 // percent over the window
	Volatility  float64 // per-bar return stddev, percent
	MaxDrawdown float64 // percent, negative or zero
	EMABull     bool
	EMABear     bool
}

// Detection is the aggregated regime decision with its vote breakdown
type Detection struct {
	Label      Regime
	Confidence float64
	Votes      []WindowVote
	StableBull int
	StableBear int
}

// RegimeDetector classifies the market by voting over several trailing
// sub-windows of the close series. Stateless given its input slice, so
// callers simply pass closes[:i+1] to evaluate at bar i with no
// look-ahead.
type RegimeDetector struct {
	barsPerDay int
	logger     logging.LoggerInterface
}

// NewRegimeDetector creates a detector for a bar interval
func NewRegimeDetector(interval string, logger logging.LoggerInterface) (*RegimeDetector, error) {
	perDay, err := types.BarsPerDay(interval)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &RegimeDetector{barsPerDay: perDay, logger: logger}, nil
}

// Detect classifies the market at the end of the given close series
func (rd *RegimeDetector) Detect(closes []float64) (*Detection, error) {
	if len(closes) < 2 {
		return nil, fmt.Errorf("regime detection needs at least 2 closes, got %d", len(closes))
	}

	// EMA alignment is evaluated once at the series end and shared by
	// every window vote
	ema20 := lastValue(indicators.EMASeries(closes, 20))
	ema50 := lastValue(indicators.EMASeries(closes, 50))
	ema200 := lastValue(indicators.EMASeries(closes, 200))
	emaBull := !math.IsNaN(ema200) && ema20 > ema50 && ema50 > ema200
	emaBear := !math.IsNaN(ema200) && ema20 < ema50 && ema50 < ema200

	det := &Detection{}
	for _, days := range regimeWindowDays {
		bars := days * rd.barsPerDay
		if bars >= len(closes) {
			bars = len(closes) - 1
		}
		if bars < 1 {
			continue
		}
		vote := rd.classifyWindow(closes[len(closes)-bars-1:], days, bars, emaBull, emaBear)
		det.Votes = append(det.Votes, vote)
	}
	if len(det.Votes) == 0 {
		return nil, fmt.Errorf("no usable regime windows for %d closes", len(closes))
	}

	rd.aggregate(det)
	rd.logger.Debug("regime detected: %s (confidence %.2f, stable bull=%d bear=%d)",
		det.Label, det.Confidence, det.StableBull, det.StableBear)
	return det, nil
}

// classifyWindow labels one trailing sub-window. Shorter windows use
// tighter return thresholds so they react first; the stable tier needs
// a bigger move to commit.
func (rd *RegimeDetector) classifyWindow(window []float64, days, bars int, emaBull, emaBear bool) WindowVote {
	v := WindowVote{Days: days, Bars: bars, EMABull: emaBull, EMABear: emaBear}

	start := window[0]
	end := window[len(window)-1]
	if start != 0 {
		v.TotalReturn = (end - start) / start * 100
	}

	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		if window[i-1] != 0 {
			returns = append(returns, (window[i]-window[i-1])/window[i-1]*100)
		}
	}
	v.Volatility = indicators.StdDev(returns)

	peak := window[0]
	for _, c := range window {
		if c > peak {
			peak = c
		}
		if peak > 0 {
			dd := (c - peak) / peak * 100
			if dd < v.MaxDrawdown {
				v.MaxDrawdown = dd
			}
		}
	}

	scale := math.Sqrt(float64(days) / float64(stableWindowDays))
	retThresh := 10.0 * scale
	ddThresh := -15.0 * scale
	// Per-bar volatility threshold: 4% for daily bars, scaled down for
	// finer intervals where each bar carries less of the day's variance
	volThresh := 4.0 / math.Sqrt(float64(rd.barsPerDay))

	turbulent := v.Volatility > volThresh || v.MaxDrawdown < ddThresh
	switch {
	case turbulent && v.TotalReturn > retThresh:
		v.Label = RegimeBull
	case turbulent && v.TotalReturn < -retThresh:
		v.Label = RegimeBear
	case turbulent:
		v.Label = RegimeVolatile
	case v.TotalReturn > retThresh, emaBull && v.TotalReturn > retThresh/2:
		v.Label = RegimeBull
	case v.TotalReturn < -retThresh, emaBear && v.TotalReturn < -retThresh/2:
		v.Label = RegimeBear
	default:
		v.Label = RegimeSideways
	}
	return v
}

// aggregate folds the window votes into the final label. Stable-tier
// agreement on a direction wins outright; otherwise a majority vote
// decides, with direction conflicts breaking toward volatile.
func (rd *RegimeDetector) aggregate(det *Detection) {
	counts := map[Regime]int{}
	for _, v := range det.Votes {
		counts[v.Label]++
		if v.Days >= stableWindowDays {
			switch v.Label {
			case RegimeBull:
				det.StableBull++
			case RegimeBear:
				det.StableBear++
			}
		}
	}

	total := float64(len(det.Votes))
	if det.StableBull >= 2 && det.StableBull > det.StableBear {
		det.Label = RegimeBull
		det.Confidence = float64(counts[RegimeBull]) / total
		return
	}
	if det.StableBear >= 2 && det.StableBear > det.StableBull {
		det.Label = RegimeBear
		det.Confidence = float64(counts[RegimeBear]) / total
		return
	}

	best := RegimeSideways
	bestCount := -1
	tied := false
	for _, label := range []Regime{RegimeBull, RegimeBear, RegimeVolatile, RegimeSideways} {
		c := counts[label]
		if c > bestCount {
			best, bestCount, tied = label, c, false
		} else if c == bestCount && c > 0 {
			tied = true
		}
	}
	if tied {
		if counts[RegimeBull] > 0 && counts[RegimeBear] > 0 {
			best = RegimeVolatile
		} else {
			best = RegimeSideways
		}
		bestCount = counts[best]
	}
	det.Label = best
	det.Confidence = float64(bestCount) / total
}

// RecommendedConfig maps a regime to its risk-parameter override. Bear
// is the only regime that disables long entries: long expectancy in
// confirmed bear regimes is negative while shorts hold up.
func RecommendedConfig(label Regime) config.Override {
	switch label {
	case RegimeBull:
		return config.Override{
			AllowLongTrades:    bptr(true),
			AllowShortTrades:   bptr(true),
			StopLossMultiplier: fptr(3.0),
			TakeProfit1Mult:    fptr(4.0),
			TakeProfit2Mult:    fptr(8.0),
			MinBarsGap:         iptr(6),
		}
	case RegimeBear:
		return config.Override{
			AllowLongTrades:    bptr(false),
			AllowShortTrades:   bptr(true),
			StopLossMultiplier: fptr(2.5),
			TakeProfit1Mult:    fptr(3.0),
			TakeProfit2Mult:    fptr(5.0),
			MinBarsGap:         iptr(8),
		}
	case RegimeVolatile:
		return config.Override{
			AllowLongTrades:    bptr(true),
			AllowShortTrades:   bptr(true),
			StopLossMultiplier: fptr(2.0),
			TakeProfit1Mult:    fptr(2.5),
			TakeProfit2Mult:    fptr(4.0),
			MinBarsGap:         iptr(12),
		}
	default: // sideways
		return config.Override{
			AllowLongTrades:    bptr(true),
			AllowShortTrades:   bptr(true),
			StopLossMultiplier: fptr(2.0),
			TakeProfit1Mult:    fptr(2.5),
			TakeProfit2Mult:    fptr(4.0),
			MinBarsGap:         iptr(10),
		}
	}
}

func lastValue(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

func bptr(b bool) *bool       { return &b }
func fptr(f float64) *float64 { return &f }
func iptr(i int) *int         { return &i }
