package strategy

import (
	"math"
	"testing"
)

func dailyDetector(t *testing.T) *RegimeDetector {
	t.Helper()
	rd, err := NewRegimeDetector("1d", nil)
	if err != nil {
		t.Fatalf("NewRegimeDetector failed: %v", err)
	}
	return rd
}

func TestDetectBull(t *testing.T) {
	rd := dailyDetector(t)
	// 90 days of a steady 0.7% daily climb
	closes := make([]float64, 90)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= 1.007
	}

	det, err := rd.Detect(closes)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if det.Label != RegimeBull {
		t.Errorf("Expected bull, got %s", det.Label)
	}
	if det.StableBull < 2 {
		t.Errorf("Expected at least 2 stable bull votes, got %d", det.StableBull)
	}
	if det.Confidence <= 0 || det.Confidence > 1 {
		t.Errorf("Confidence outside (0,1]: %.2f", det.Confidence)
	}
}

func TestDetectBear(t *testing.T) {
	rd := dailyDetector(t)
	closes := make([]float64, 90)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= 0.993
	}

	det, err := rd.Detect(closes)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if det.Label != RegimeBear {
		t.Errorf("Expected bear, got %s", det.Label)
	}
	if det.StableBear < 2 {
		t.Errorf("Expected at least 2 stable bear votes, got %d", det.StableBear)
	}
}

func TestDetectSideways(t *testing.T) {
	rd := dailyDetector(t)
	closes := make([]float64, 90)
	for i := range closes {
		closes[i] = 100
	}

	det, err := rd.Detect(closes)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if det.Label != RegimeSideways {
		t.Errorf("Expected sideways on a flat series, got %s", det.Label)
	}
}

func TestDetectVolatile(t *testing.T) {
	rd := dailyDetector(t)
	// Whipsaw between 100 and 110: ~9% per-bar swings, no net trend
	closes := make([]float64, 90)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 110
		}
	}

	det, err := rd.Detect(closes)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if det.Label != RegimeVolatile {
		t.Errorf("Expected volatile on a whipsaw series, got %s", det.Label)
	}
}

func TestDetectTooShort(t *testing.T) {
	rd := dailyDetector(t)
	if _, err := rd.Detect([]float64{100}); err == nil {
		t.Error("Expected error for a single close")
	}
}

func TestDetectDeterministic(t *testing.T) {
	rd := dailyDetector(t)
	closes := make([]float64, 120)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= 1 + 0.004*math.Sin(float64(i)/5)
	}

	a, err := rd.Detect(closes)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	b, err := rd.Detect(closes)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if a.Label != b.Label || a.Confidence != b.Confidence {
		t.Errorf("Detection not deterministic: %s/%.2f vs %s/%.2f",
			a.Label, a.Confidence, b.Label, b.Confidence)
	}
}

func TestRecommendedConfig(t *testing.T) {
	bear := RecommendedConfig(RegimeBear)
	if bear.AllowLongTrades == nil || *bear.AllowLongTrades {
		t.Error("Bear regime should disable long trades")
	}
	if bear.MinBarsGap == nil || *bear.MinBarsGap != 8 {
		t.Error("Bear regime should widen the bar gap to 8")
	}

	bull := RecommendedConfig(RegimeBull)
	if bull.AllowLongTrades == nil || !*bull.AllowLongTrades {
		t.Error("Bull regime should allow long trades")
	}
	if bull.TakeProfit2Mult == nil || *bull.TakeProfit2Mult != 8.0 {
		t.Error("Bull regime should stretch TP2 to 8x ATR")
	}

	vol := RecommendedConfig(RegimeVolatile)
	if vol.MinBarsGap == nil || *vol.MinBarsGap != 12 {
		t.Error("Volatile regime should widen the bar gap to 12")
	}
	if vol.StopLossMultiplier == nil || *vol.StopLossMultiplier != 2.0 {
		t.Error("Volatile regime should tighten the stop to 2x ATR")
	}

	side := RecommendedConfig(RegimeSideways)
	if side.MinBarsGap == nil || *side.MinBarsGap != 10 {
		t.Error("Sideways regime should use a 10 bar gap")
	}
}

func TestDetectPrefixUnaffectedByLaterBars(t *testing.T) {
	rd := dailyDetector(t)
	full := make([]float64, 120)
	price := 100.0
	for i := range full {
		if i%2 == 0 {
			price *= 1.01
		} else {
			price *= 0.996
		}
		full[i] = price
	}

	prefix := make([]float64, 80)
	copy(prefix, full[:80])

	before, err := rd.Detect(prefix)
	if err != nil {
		t.Fatalf("Detect on prefix copy failed: %v", err)
	}
	// Detecting over the extended series in between must not leak
	// state into a later detection over the same prefix
	if _, err := rd.Detect(full); err != nil {
		t.Fatalf("Detect on full series failed: %v", err)
	}
	after, err := rd.Detect(full[:80])
	if err != nil {
		t.Fatalf("Detect on shared-backing prefix failed: %v", err)
	}

	if after.Label != before.Label {
		t.Errorf("Expected label %s for the same prefix, got %s", before.Label, after.Label)
	}
	if after.Confidence != before.Confidence {
		t.Errorf("Expected confidence %.4f for the same prefix, got %.4f", before.Confidence, after.Confidence)
	}
}
