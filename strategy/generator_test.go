package strategy

import (
	"math"
	"testing"
	"time"

	"pro-trader/config"
	"pro-trader/indicators"
	"pro-trader/types"
)

// testFrame builds a fully warmed-up frame with neutral values that
// individual tests then shape into the condition under test
func testFrame(n int) *indicators.Frame {
	f := &indicators.Frame{
		Time:                 make([]time.Time, n),
		Open:                 make([]float64, n),
		High:                 make([]float64, n),
		Low:                  make([]float64, n),
		Close:                make([]float64, n),
		Volume:               make([]float64, n),
		EMA20:                make([]float64, n),
		EMA50:                make([]float64, n),
		EMA200:               make([]float64, n),
		RSI:                  make([]float64, n),
		MACDLine:             make([]float64, n),
		SignalLine:           make([]float64, n),
		Histogram:            make([]float64, n),
		ATR:                  make([]float64, n),
		ADX:                  make([]float64, n),
		PlusDI:               make([]float64, n),
		MinusDI:              make([]float64, n),
		VolSMA:               make([]float64, n),
		ATRPct:               make([]float64, n),
		EMASeparationBull:    make([]float64, n),
		EMASeparationBear:    make([]float64, n),
		StrongBullTrend:      make([]bool, n),
		StrongBearTrend:      make([]bool, n),
		PriceMomentumBull:    make([]bool, n),
		PriceMomentumBear:    make([]bool, n),
		HighVolatility:       make([]bool, n),
		LowVolatility:        make([]bool, n),
		NormalVolatility:     make([]bool, n),
		TrendingMarket:       make([]bool, n),
		RSIBullMomentum:      make([]bool, n),
		RSIBearMomentum:      make([]bool, n),
		MACDAcceleratingBull: make([]bool, n),
		MACDAcceleratingBear: make([]bool, n),
		VolBull:              make([]bool, n),
		VolBear:              make([]bool, n),
		ADXChoppy:            make([]bool, n),
		ADXExtreme:           make([]bool, n),
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		f.Time[i] = base.Add(time.Duration(i) * time.Hour)
		f.Close[i] = 100
		f.Volume[i] = 100
		f.VolSMA[i] = 100
		f.RSI[i] = 50
		f.ATR[i] = 1
		f.ADX[i] = 25
	}
	return f
}

// bullish shapes the frame so the sideways base buy rule fires on
// every bar
func bullish(f *indicators.Frame) {
	for i := range f.Close {
		f.EMA20[i] = 103
		f.EMA50[i] = 102
		f.EMA200[i] = 101
		f.MACDLine[i] = 1.0
		f.SignalLine[i] = 0.5
		f.Histogram[i] = 0.5
		f.VolBull[i] = true
	}
}

func bearish(f *indicators.Frame) {
	for i := range f.Close {
		f.EMA20[i] = 101
		f.EMA50[i] = 102
		f.EMA200[i] = 103
		f.MACDLine[i] = -1.0
		f.SignalLine[i] = -0.5
		f.Histogram[i] = -0.5
		f.VolBear[i] = true
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MinBarsGap = 5
	cfg.EnableRegimeFilter = true
	return cfg
}

func TestGenerateBuySpacing(t *testing.T) {
	f := testFrame(30)
	bullish(f)
	cfg := testConfig()

	g := NewGenerator(nil)
	sf := g.Generate(f, RegimeSideways, cfg)

	var confirmed []int
	for i := 0; i < sf.Len(); i++ {
		if !sf.BuyTrigger[i] {
			t.Errorf("Expected buy trigger at every bar, missing at %d", i)
		}
		if sf.BuyConfirmed[i] {
			confirmed = append(confirmed, i)
		}
	}
	if len(confirmed) == 0 {
		t.Fatal("Expected confirmed buys")
	}
	if confirmed[0] != 0 {
		t.Errorf("Expected first confirm at bar 0, got %d", confirmed[0])
	}
	for k := 1; k < len(confirmed); k++ {
		if gap := confirmed[k] - confirmed[k-1]; gap < cfg.MinBarsGap {
			t.Errorf("Gap %d between confirms %d and %d below minimum %d",
				gap, confirmed[k-1], confirmed[k], cfg.MinBarsGap)
		}
	}
}

func TestAllowLongDisabled(t *testing.T) {
	f := testFrame(30)
	bullish(f)
	cfg := testConfig()
	cfg.AllowLongTrades = false

	sf := NewGenerator(nil).Generate(f, RegimeSideways, cfg)
	for i := 0; i < sf.Len(); i++ {
		if sf.BuyTrigger[i] || sf.BuyConfirmed[i] {
			t.Fatalf("Expected no buy signals with longs disabled, got one at %d", i)
		}
	}
}

func TestConfirmedColumnsMutuallyExclusive(t *testing.T) {
	for _, shape := range []func(*indicators.Frame){bullish, bearish} {
		f := testFrame(40)
		shape(f)
		sf := NewGenerator(nil).Generate(f, RegimeSideways, testConfig())
		for i := 0; i < sf.Len(); i++ {
			if sf.BuyConfirmed[i] && sf.SellConfirmed[i] {
				t.Fatalf("Both confirmed columns true at bar %d", i)
			}
		}
	}
}

func TestADXChoppyFilter(t *testing.T) {
	f := testFrame(30)
	bullish(f)
	for i := range f.ADXChoppy {
		f.ADXChoppy[i] = true
	}
	sf := NewGenerator(nil).Generate(f, RegimeSideways, testConfig())
	for i := 0; i < sf.Len(); i++ {
		if sf.BuyTrigger[i] || sf.SellTrigger[i] {
			t.Fatalf("Expected choppy filter to suppress signals, got one at %d", i)
		}
	}
}

func TestADXExtremeBullException(t *testing.T) {
	f := testFrame(30)
	bullish(f)
	for i := range f.ADXExtreme {
		f.ADXExtreme[i] = true
	}
	cfg := testConfig()

	// Extreme trend blocks everything outside a bull regime
	sf := NewGenerator(nil).Generate(f, RegimeSideways, cfg)
	for i := 0; i < sf.Len(); i++ {
		if sf.BuyTrigger[i] {
			t.Fatalf("Expected extreme ADX to block sideways buys, got one at %d", i)
		}
	}

	// In a bull regime the buy side stays open
	sf = NewGenerator(nil).Generate(f, RegimeBull, cfg)
	found := false
	for i := 0; i < sf.Len(); i++ {
		if sf.BuyTrigger[i] {
			found = true
		}
		if sf.SellTrigger[i] {
			t.Fatalf("Expected extreme ADX to block sells even in bull, got one at %d", i)
		}
	}
	if !found {
		t.Error("Expected bull-regime buys through the extreme ADX exception")
	}
}

func TestMarketStressCrashBar(t *testing.T) {
	f := testFrame(30)
	bullish(f)
	// 6% single-bar drop at bar 15 exceeds the default 5% crash cutoff
	f.Close[15] = f.Close[14] * 0.94
	cfg := testConfig()

	sf := NewGenerator(nil).Generate(f, RegimeSideways, cfg)
	if sf.BuyTrigger[15] {
		t.Error("Expected crash bar to carry no trigger")
	}
}

func TestBearRegimeSellRule(t *testing.T) {
	n := 30
	f := testFrame(n)
	bearish(f)
	for i := 0; i < n; i++ {
		// RSI falling through the 30..55 band, histogram decaying
		f.RSI[i] = 50 - float64(i)*0.3
		f.Histogram[i] = -0.1 - float64(i)*0.05
	}
	cfg := testConfig()
	sf := NewGenerator(nil).Generate(f, RegimeBear, cfg)

	foundSell := false
	for i := 0; i < n; i++ {
		if sf.SellConfirmed[i] {
			foundSell = true
		}
		if sf.BuyTrigger[i] {
			t.Fatalf("Bear regime produced a buy trigger at %d", i)
		}
	}
	if !foundSell {
		t.Error("Expected confirmed sells under the bear regime rule")
	}
}

func TestResumeCarriesGapState(t *testing.T) {
	f := testFrame(30)
	bullish(f)
	cfg := testConfig()

	g := NewGenerator(nil)
	sf := g.Generate(f, RegimeSideways, cfg)
	if !sf.BuyConfirmed[0] {
		t.Fatal("Expected confirm at bar 0")
	}

	// Resuming from bar 2 must still see the accepted bar 0, so the
	// next confirm cannot land before bar 5
	g.Resume(f, RegimeSideways, cfg, sf, 2)
	for i := 2; i < 5; i++ {
		if sf.BuyConfirmed[i] {
			t.Errorf("Resume ignored the preserved gap state, confirm at %d", i)
		}
	}
	if !sf.BuyConfirmed[5] {
		t.Error("Expected confirm at bar 5 after resume")
	}
}

func TestGeneratePrefixExtension(t *testing.T) {
	cfg := config.Default()
	cfg.EnableRegimeFilter = false

	// A trending tape with pullbacks, computed through the real
	// indicator pipeline rather than a shaped frame
	bars := make([]types.Bar, 300)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := range bars {
		open := price
		vol := 3000.0
		if i%3 == 2 {
			price *= 0.991
			vol = 600
		} else {
			price *= 1.009
		}
		bars[i] = types.Bar{
			Time:   base.AddDate(0, 0, i),
			Open:   open,
			High:   math.Max(open, price) * 1.001,
			Low:    math.Min(open, price) * 0.999,
			Close:  price,
			Volume: vol,
		}
	}

	gen := NewGenerator(nil)
	full := gen.Generate(indicators.Compute(bars, cfg), RegimeSideways, cfg)
	const m = 250
	pref := gen.Generate(indicators.Compute(bars[:m], cfg), RegimeSideways, cfg)

	confirms := 0
	for i := 0; i < m; i++ {
		if full.BuyTrigger[i] != pref.BuyTrigger[i] || full.SellTrigger[i] != pref.SellTrigger[i] {
			t.Errorf("Trigger columns diverge at bar %d once later bars exist", i)
		}
		if full.BuyConfirmed[i] != pref.BuyConfirmed[i] || full.SellConfirmed[i] != pref.SellConfirmed[i] {
			t.Errorf("Confirmed columns diverge at bar %d once later bars exist", i)
		}
		if pref.BuyConfirmed[i] || pref.SellConfirmed[i] {
			confirms++
		}
	}
	if confirms == 0 {
		t.Error("Expected confirmed signals inside the shared prefix")
	}
}
