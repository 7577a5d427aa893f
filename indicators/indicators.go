package indicators

import (
	"math"
)

// Series functions return slices aligned 1:1 with the input. Entries
// before the indicator's warm-up window are NaN, never zero: a zero RSI
// or EMA is a valid value and must not be confused with "no value yet".

// SMA calculates Simple Moving Average over the whole slice
func SMA(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// StdDev calculates standard deviation over the whole slice
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	m := SMA(data)
	var sum float64
	for _, v := range data {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(data)))
}

// SMASeries calculates the rolling simple moving average
func SMASeries(src []float64, period int) []float64 {
	out := nanSlice(len(src))
	if period <= 0 || len(src) < period {
		return out
	}
	var sum float64
	for i, v := range src {
		sum += v
		if i >= period {
			sum -= src[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMASeries calculates the exponential moving average, seeded with the
// simple average of the first window
func EMASeries(src []float64, period int) []float64 {
	out := nanSlice(len(src))
	if period <= 0 || len(src) < period {
		return out
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += src[i]
	}
	prev := sum / float64(period)
	out[period-1] = prev

	mult := 2.0 / float64(period+1)
	for i := period; i < len(src); i++ {
		prev = src[i]*mult + prev*(1-mult)
		out[i] = prev
	}
	return out
}

// RSISeries calculates the Relative Strength Index with Wilder smoothing
func RSISeries(src []float64, period int) []float64 {
	out := nanSlice(len(src))
	if period <= 0 || len(src) < period+1 {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		delta := src[i] - src[i-1]
		if delta >= 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(src); i++ {
		delta := src[i] - src[i-1]
		if delta >= 0 {
			avgGain = (avgGain*float64(period-1) + delta) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) - delta) / float64(period)
		}
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDSeries calculates the MACD line, signal line and histogram
func MACDSeries(src []float64, fast, slow, signal int) (macdLine, signalLine, histogram []float64) {
	n := len(src)
	macdLine = nanSlice(n)
	signalLine = nanSlice(n)
	histogram = nanSlice(n)
	if n < slow {
		return
	}

	emaFast := EMASeries(src, fast)
	emaSlow := EMASeries(src, slow)
	for i := slow - 1; i < n; i++ {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}

	// Signal line: EMA of the MACD line from its first defined value
	valid := macdLine[slow-1:]
	sig := EMASeries(valid, signal)
	for i, v := range sig {
		signalLine[slow-1+i] = v
	}
	for i := range histogram {
		histogram[i] = macdLine[i] - signalLine[i]
	}
	return
}

// TrueRangeSeries calculates the per-bar true range
func TrueRangeSeries(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			out[i] = highs[i] - lows[i]
			continue
		}
		out[i] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}
	return out
}

// ATRSeries calculates the rolling mean of true range
func ATRSeries(highs, lows, closes []float64, period int) []float64 {
	tr := TrueRangeSeries(highs, lows, closes)
	return SMASeries(tr, period)
}

// ADXSeries calculates the Average Directional Index with the
// directional indicators it derives from
func ADXSeries(highs, lows, closes []float64, period int) (adx, plusDI, minusDI []float64) {
	n := len(closes)
	adx = nanSlice(n)
	plusDI = nanSlice(n)
	minusDI = nanSlice(n)
	if period <= 0 || n < 2*period {
		return
	}

	tr := TrueRangeSeries(highs, lows, closes)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder smoothing: seed with plain sums over the first window
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := nanSlice(n)
	for i := period; i < n; i++ {
		if i > period {
			smTR = smTR - smTR/float64(period) + tr[i]
			smPlus = smPlus - smPlus/float64(period) + plusDM[i]
			smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		}
		if smTR == 0 {
			continue
		}
		pdi := 100 * smPlus / smTR
		mdi := 100 * smMinus / smTR
		plusDI[i] = pdi
		minusDI[i] = mdi
		if pdi+mdi > 0 {
			dx[i] = 100 * math.Abs(pdi-mdi) / (pdi + mdi)
		}
	}

	// ADX: Wilder average of DX, seeded with the mean of the first
	// period defined DX values
	var sum float64
	count := 0
	for i := period; i < n; i++ {
		if math.IsNaN(dx[i]) {
			continue
		}
		sum += dx[i]
		count++
		if count == period {
			prev := sum / float64(period)
			adx[i] = prev
			for j := i + 1; j < n; j++ {
				if math.IsNaN(dx[j]) {
					continue
				}
				prev = (prev*float64(period-1) + dx[j]) / float64(period)
				adx[j] = prev
			}
			break
		}
	}
	return
}

// MaxSlice returns the maximum value in a slice
func MaxSlice(arr []float64) float64 {
	if len(arr) == 0 {
		return 0
	}
	max := arr[0]
	for _, v := range arr[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// MinSlice returns the minimum value in a slice
func MinSlice(arr []float64) float64 {
	if len(arr) == 0 {
		return 0
	}
	min := arr[0]
	for _, v := range arr[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
