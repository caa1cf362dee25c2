package indicators

// OBV computes on-balance volume: cumulative volume signed by the close
// direction.
func OBV(closes, volumes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	out[0] = 0
	for i := 1; i < n; i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// VPT computes the volume-price trend: cumulative volume scaled by the
// fractional close change.
func VPT(closes, volumes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	out[0] = 0
	for i := 1; i < n; i++ {
		out[i] = out[i-1]
		if closes[i-1] != 0 {
			out[i] += volumes[i] * (closes[i] - closes[i-1]) / closes[i-1]
		}
	}
	return out
}

// MFI computes the money flow index, an RSI over volume-weighted typical
// prices.
func MFI(highs, lows, closes, volumes []float64, period int) []float64 {
	n := len(closes)
	out := nans(n)
	if period <= 0 || n <= period {
		return out
	}
	tp := make([]float64, n)
	for i := 0; i < n; i++ {
		tp[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	for i := period; i < n; i++ {
		var pos, neg float64
		for j := i - period + 1; j <= i; j++ {
			flow := tp[j] * volumes[j]
			if tp[j] > tp[j-1] {
				pos += flow
			} else if tp[j] < tp[j-1] {
				neg += flow
			}
		}
		if neg == 0 {
			out[i] = 100
			continue
		}
		ratio := pos / neg
		out[i] = 100 - 100/(1+ratio)
	}
	return out
}

// AD computes the accumulation/distribution line.
func AD(highs, lows, closes, volumes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)
	var acc float64
	for i := 0; i < n; i++ {
		rng := highs[i] - lows[i]
		if rng != 0 {
			mfm := ((closes[i] - lows[i]) - (highs[i] - closes[i])) / rng
			acc += mfm * volumes[i]
		}
		out[i] = acc
	}
	return out
}

// CMF computes the Chaikin money flow over the window.
func CMF(highs, lows, closes, volumes []float64, period int) []float64 {
	n := len(closes)
	out := nans(n)
	if period <= 0 || n < period {
		return out
	}
	mfv := make([]float64, n)
	for i := 0; i < n; i++ {
		rng := highs[i] - lows[i]
		if rng != 0 {
			mfv[i] = ((closes[i]-lows[i])-(highs[i]-closes[i])) / rng * volumes[i]
		}
	}
	for i := period - 1; i < n; i++ {
		var sumMFV, sumVol float64
		for j := i - period + 1; j <= i; j++ {
			sumMFV += mfv[j]
			sumVol += volumes[j]
		}
		if sumVol == 0 {
			out[i] = 0
			continue
		}
		out[i] = sumMFV / sumVol
	}
	return out
}

// VWAP computes the running volume-weighted average price over the whole
// series.
func VWAP(highs, lows, closes, volumes []float64) []float64 {
	n := len(closes)
	out := nans(n)
	var sumPV, sumV float64
	for i := 0; i < n; i++ {
		tp := (highs[i] + lows[i] + closes[i]) / 3
		sumPV += tp * volumes[i]
		sumV += volumes[i]
		if sumV != 0 {
			out[i] = sumPV / sumV
		}
	}
	return out
}
