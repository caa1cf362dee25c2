package indicators

import "math"

// Bollinger computes Bollinger Bands: SMA middle band with upper/lower at
// mult standard deviations.
func Bollinger(vals []float64, period int, mult float64) (upper, middle, lower []float64) {
	n := len(vals)
	upper, middle, lower = nans(n), SMA(vals, period), nans(n)
	if period <= 0 || n < period {
		return upper, middle, lower
	}
	for i := period - 1; i < n; i++ {
		if math.IsNaN(middle[i]) {
			continue
		}
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := vals[j] - middle[i]
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = middle[i] + mult*sd
		lower[i] = middle[i] - mult*sd
	}
	return upper, middle, lower
}

// TrueRange computes the true range series. The first element uses
// high-low only since there is no prior close.
func TrueRange(highs, lows, closes []float64) []float64 {
	n := len(closes)
	tr := make([]float64, n)
	if n == 0 {
		return tr
	}
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATR computes the average true range with Wilder smoothing.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nans(n)
	if period <= 0 || n < period+1 {
		return out
	}
	tr := TrueRange(highs, lows, closes)
	var seed float64
	for i := 1; i <= period; i++ {
		seed += tr[i]
	}
	out[period] = seed / float64(period)
	for i := period + 1; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// NATR computes the normalized ATR as a percentage of close.
func NATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nans(n)
	atr := ATR(highs, lows, closes, period)
	for i := 0; i < n; i++ {
		if !math.IsNaN(atr[i]) && closes[i] != 0 {
			out[i] = 100 * atr[i] / closes[i]
		}
	}
	return out
}

// Keltner computes Keltner Channels: an EMA middle line with bands at
// mult ATRs.
func Keltner(highs, lows, closes []float64, emaPeriod, atrPeriod int, mult float64) (upper, middle, lower []float64) {
	n := len(closes)
	middle = EMA(closes, emaPeriod)
	atr := ATR(highs, lows, closes, atrPeriod)
	upper, lower = nans(n), nans(n)
	for i := 0; i < n; i++ {
		if !math.IsNaN(middle[i]) && !math.IsNaN(atr[i]) {
			upper[i] = middle[i] + mult*atr[i]
			lower[i] = middle[i] - mult*atr[i]
		}
	}
	return upper, middle, lower
}

// Donchian computes Donchian Channels: rolling high, rolling low, and
// their midpoint.
func Donchian(highs, lows []float64, period int) (upper, middle, lower []float64) {
	n := len(highs)
	upper = RollingMax(highs, period)
	lower = RollingMin(lows, period)
	middle = nans(n)
	for i := 0; i < n; i++ {
		if !math.IsNaN(upper[i]) && !math.IsNaN(lower[i]) {
			middle[i] = (upper[i] + lower[i]) / 2
		}
	}
	return upper, middle, lower
}
