package strategy

import (
	"math"

	"pro-trader/config"
	"pro-trader/indicators"
	"pro-trader/logging"
	"pro-trader/strategy/signals"
)

// Generator turns an indicator frame into confirmed buy/sell columns.
// The pipeline is: EMA setup filter, regime-specific trigger rules,
// optional confluence override, ADX filter, market-stress exclusion,
// direction gating, then the sequential minimum-gap scan.
type Generator struct {
	logger logging.LoggerInterface
}

// NewGenerator creates a signal generator
func NewGenerator(logger logging.LoggerInterface) *Generator {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Generator{logger: logger}
}

// Generate computes the full signal frame for the given regime and
// config. Deterministic: output at bar i depends only on frame data at
// indices <= i.
func (g *Generator) Generate(f *indicators.Frame, regime Regime, cfg *config.Config) *signals.Frame {
	sf := signals.NewFrame(f.Len())
	g.fill(f, regime, cfg, sf, 0, -1)
	return sf
}

// Resume recomputes the signal frame from index `from` onward under a
// new regime and config, keeping everything before `from` untouched.
// The gap filter carries the last confirmed signal index from the
// preserved prefix so regenerated signals still honor spacing.
func (g *Generator) Resume(f *indicators.Frame, regime Regime, cfg *config.Config, sf *signals.Frame, from int) {
	if from < 0 {
		from = 0
	}
	lastAccepted := sf.LastConfirmedBefore(from)
	for i := from; i < sf.Len(); i++ {
		sf.BuySetup[i] = false
		sf.SellSetup[i] = false
		sf.BuyTrigger[i] = false
		sf.SellTrigger[i] = false
		sf.BuyConfirmed[i] = false
		sf.SellConfirmed[i] = false
	}
	g.fill(f, regime, cfg, sf, from, lastAccepted)
}

func (g *Generator) fill(f *indicators.Frame, regime Regime, cfg *config.Config, sf *signals.Frame, from, lastAccepted int) {
	n := f.Len()
	for i := from; i < n; i++ {
		if !f.Ready(i) {
			continue
		}

		sf.BuySetup[i] = f.EMA20[i] > f.EMA50[i] && f.EMA50[i] > f.EMA200[i]
		sf.SellSetup[i] = f.EMA20[i] < f.EMA50[i] && f.EMA50[i] < f.EMA200[i]

		var buy, sell bool
		if cfg.RequireConfluence {
			buy, sell = g.confluenceRule(f, i)
		} else {
			buy, sell = g.regimeRule(f, regime, cfg, i)
		}
		buy = buy && sf.BuySetup[i]
		sell = sell && sf.SellSetup[i]

		if cfg.EnableRegimeFilter {
			if f.ADXChoppy[i] {
				buy, sell = false, false
			}
			if f.ADXExtreme[i] {
				// Extreme trend strength is tradeable on the buy side
				// in a confirmed bull regime, excluded everywhere else
				if !(regime == RegimeBull) {
					buy = false
				}
				sell = false
			}
		}

		if g.marketStress(f, regime, cfg, i) {
			buy, sell = false, false
		}

		if !cfg.AllowLongTrades {
			buy = false
		}
		if !cfg.AllowShortTrades {
			sell = false
		}

		sf.BuyTrigger[i] = buy
		sf.SellTrigger[i] = sell

		// Sequential minimum-gap scan: rejected signals are cleared,
		// not shifted, and the accepted index is carried forward
		if buy || sell {
			if lastAccepted < 0 || i-lastAccepted >= cfg.MinBarsGap {
				lastAccepted = i
				sf.BuyConfirmed[i] = buy
				sf.SellConfirmed[i] = sell && !buy
			}
		}
	}
}

// regimeRule evaluates the per-regime trigger rules at bar i
func (g *Generator) regimeRule(f *indicators.Frame, regime Regime, cfg *config.Config, i int) (buy, sell bool) {
	macdBull := f.MACDLine[i] > f.SignalLine[i]
	macdBear := f.MACDLine[i] < f.SignalLine[i]

	switch regime {
	case RegimeBull:
		// Relaxed RSI band with any one supporting momentum condition
		buy = f.RSI[i] > 20 && f.RSI[i] < 85 &&
			(macdBull || f.Close[i] > f.EMA50[i] || g.momentum(f, i, 5) > 2.0)
		sell = g.baseSell(f, cfg, i)
	case RegimeBear:
		// Tight bands with multi-bar momentum confluence both ways
		buy = i >= 3 &&
			f.RSI[i] > 45 && f.RSI[i] < 70 &&
			f.RSI[i] > f.RSI[i-1] && f.RSI[i] > f.RSI[i-3] &&
			macdBull && f.Histogram[i] > 0 && f.Histogram[i] > f.Histogram[i-1]
		sell = i >= 3 &&
			f.RSI[i] > 30 && f.RSI[i] < 55 &&
			f.RSI[i] < f.RSI[i-1] && f.RSI[i] < f.RSI[i-3] &&
			macdBear && f.Histogram[i] < 0 && f.Histogram[i] < f.Histogram[i-1]
	case RegimeVolatile:
		// Base rule with RSI stability and no-whipsaw layered on top
		stable := i >= 1 && !math.IsNaN(f.RSI[i-1]) && math.Abs(f.RSI[i]-f.RSI[i-1]) < 8
		noWhipsaw := i >= 1 && !math.IsNaN(f.MACDLine[i-1]) &&
			(f.MACDLine[i] > f.SignalLine[i]) == (f.MACDLine[i-1] > f.SignalLine[i-1])
		buy = g.baseBuy(f, cfg, i) && stable && noWhipsaw
		sell = g.baseSell(f, cfg, i) && stable && noWhipsaw
	default: // sideways
		buy = g.baseBuy(f, cfg, i)
		sell = g.baseSell(f, cfg, i)
	}
	return buy, sell
}

// baseBuy is the symmetric default rule: RSI band, MACD on the right
// side with a positive histogram, volume confirmation
func (g *Generator) baseBuy(f *indicators.Frame, cfg *config.Config, i int) bool {
	return f.RSI[i] > cfg.RSIOversold && f.RSI[i] < cfg.RSIOverbought &&
		f.MACDLine[i] > f.SignalLine[i] && f.Histogram[i] > 0 &&
		f.VolBull[i]
}

func (g *Generator) baseSell(f *indicators.Frame, cfg *config.Config, i int) bool {
	return f.RSI[i] > cfg.RSIOversold && f.RSI[i] < cfg.RSIOverbought &&
		f.MACDLine[i] < f.SignalLine[i] && f.Histogram[i] < 0 &&
		f.VolBear[i]
}

// confluenceRule is the professional ANDed rule set that replaces the
// regime rule when require_confluence is on
func (g *Generator) confluenceRule(f *indicators.Frame, i int) (buy, sell bool) {
	buy = f.RSI[i] > 40 && f.RSI[i] < 75 && f.RSIBullMomentum[i] &&
		f.MACDAcceleratingBull[i] && f.Histogram[i] > 0 &&
		f.StrongBullTrend[i] && f.TrendingMarket[i] &&
		!f.HighVolatility[i] && f.VolBull[i]
	sell = f.RSI[i] > 25 && f.RSI[i] < 60 && f.RSIBearMomentum[i] &&
		f.MACDAcceleratingBear[i] && f.Histogram[i] < 0 &&
		f.StrongBearTrend[i] && f.TrendingMarket[i] &&
		!f.HighVolatility[i] && f.VolBear[i]
	return buy, sell
}

// marketStress reports crash-like drops or extreme volume spikes at
// bar i. Bear and volatile regimes use tightened thresholds.
func (g *Generator) marketStress(f *indicators.Frame, regime Regime, cfg *config.Config, i int) bool {
	drop := cfg.CrashDropPerc
	spike := cfg.VolumeSpikeMult
	if regime == RegimeBear || regime == RegimeVolatile {
		drop *= cfg.StressTightenPerc
		spike *= cfg.StressTightenPerc
	}

	if d := -g.momentum(f, i, 1); d > drop {
		return true
	}
	if d := -g.momentum(f, i, 3); d > drop*1.5 {
		return true
	}
	if spike > 0 && !math.IsNaN(f.VolSMA[i]) && f.VolSMA[i] > 0 &&
		f.Volume[i] > f.VolSMA[i]*spike {
		return true
	}
	return false
}

// momentum returns the close change over lag bars as a percent, or 0
// when not enough history has accumulated
func (g *Generator) momentum(f *indicators.Frame, i, lag int) float64 {
	if i < lag || f.Close[i-lag] == 0 {
		return 0
	}
	return (f.Close[i] - f.Close[i-lag]) / f.Close[i-lag] * 100
}
