package indicators

import "math"

// SMA computes the simple moving average with the given period.
func SMA(vals []float64, period int) []float64 {
	out := nans(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	start := firstValid(vals)
	if start < 0 || len(vals)-start < period {
		return out
	}
	var sum float64
	for i := start; i < len(vals); i++ {
		sum += vals[i]
		if i-start >= period {
			sum -= vals[i-period]
		}
		if i-start >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average. The first defined value is
// seeded with the SMA of the initial period; subsequent values use the
// standard 2/(period+1) smoothing factor. Leading NaNs in the input are
// skipped so EMA can be stacked (EMA of EMA).
func EMA(vals []float64, period int) []float64 {
	out := nans(len(vals))
	if period <= 0 {
		return out
	}
	start := firstValid(vals)
	if start < 0 || len(vals)-start < period {
		return out
	}
	var seed float64
	for i := start; i < start+period; i++ {
		seed += vals[i]
	}
	seed /= float64(period)
	out[start+period-1] = seed
	k := 2.0 / float64(period+1)
	for i := start + period; i < len(vals); i++ {
		out[i] = vals[i]*k + out[i-1]*(1-k)
	}
	return out
}

// WMA computes the linearly weighted moving average: the most recent value
// carries weight period, the oldest weight 1.
func WMA(vals []float64, period int) []float64 {
	out := nans(len(vals))
	if period <= 0 {
		return out
	}
	start := firstValid(vals)
	if start < 0 || len(vals)-start < period {
		return out
	}
	denom := float64(period*(period+1)) / 2
	for i := start + period - 1; i < len(vals); i++ {
		var sum float64
		for j := 0; j < period; j++ {
			sum += vals[i-period+1+j] * float64(j+1)
		}
		out[i] = sum / denom
	}
	return out
}

// HMA computes the Hull moving average:
// WMA(2*WMA(n/2) - WMA(n), sqrt(n)).
func HMA(vals []float64, period int) []float64 {
	out := nans(len(vals))
	if period <= 1 {
		return out
	}
	half := WMA(vals, period/2)
	full := WMA(vals, period)
	raw := nans(len(vals))
	for i := range vals {
		if !math.IsNaN(half[i]) && !math.IsNaN(full[i]) {
			raw[i] = 2*half[i] - full[i]
		}
	}
	return WMA(raw, int(math.Sqrt(float64(period))))
}

// KAMA computes Kaufman's adaptive moving average with the given
// efficiency-ratio period and the conventional fast=2 / slow=30 bounds.
func KAMA(vals []float64, period int) []float64 {
	out := nans(len(vals))
	if period <= 0 || len(vals) <= period {
		return out
	}
	const (
		fast = 2.0
		slow = 30.0
	)
	fastSC := 2.0 / (fast + 1)
	slowSC := 2.0 / (slow + 1)

	// Seed with the first close at the end of the warm-up window.
	out[period] = vals[period]
	for i := period + 1; i < len(vals); i++ {
		change := math.Abs(vals[i] - vals[i-period])
		var volatility float64
		for j := i - period + 1; j <= i; j++ {
			volatility += math.Abs(vals[j] - vals[j-1])
		}
		er := 0.0
		if volatility != 0 {
			er = change / volatility
		}
		sc := math.Pow(er*(fastSC-slowSC)+slowSC, 2)
		out[i] = out[i-1] + sc*(vals[i]-out[i-1])
	}
	return out
}

// TEMA computes the triple exponential moving average:
// 3*EMA1 - 3*EMA2 + EMA3.
func TEMA(vals []float64, period int) []float64 {
	e1 := EMA(vals, period)
	e2 := EMA(e1, period)
	e3 := EMA(e2, period)
	out := nans(len(vals))
	for i := range vals {
		if !math.IsNaN(e1[i]) && !math.IsNaN(e2[i]) && !math.IsNaN(e3[i]) {
			out[i] = 3*e1[i] - 3*e2[i] + e3[i]
		}
	}
	return out
}

// TRIMA computes the triangular moving average, an SMA of an SMA with the
// window split per the usual convention.
func TRIMA(vals []float64, period int) []float64 {
	if period <= 0 {
		return nans(len(vals))
	}
	p1 := (period + 1) / 2
	p2 := period/2 + 1
	return SMA(SMA(vals, p1), p2)
}
