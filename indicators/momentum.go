package indicators

import "math"

// RSI computes the relative strength index with Wilder smoothing.
func RSI(vals []float64, period int) []float64 {
	out := nans(len(vals))
	if period <= 0 || len(vals) <= period {
		return out
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := vals[i] - vals[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)
	for i := period + 1; i < len(vals); i++ {
		change := vals[i] - vals[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Stochastic computes the stochastic oscillator %K and %D.
func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) (k, d []float64) {
	n := len(closes)
	k = nans(n)
	if kPeriod <= 0 || n < kPeriod {
		return k, nans(n)
	}
	hh := RollingMax(highs, kPeriod)
	ll := RollingMin(lows, kPeriod)
	for i := kPeriod - 1; i < n; i++ {
		rng := hh[i] - ll[i]
		if rng == 0 {
			k[i] = 50
			continue
		}
		k[i] = 100 * (closes[i] - ll[i]) / rng
	}
	d = SMA(k, dPeriod)
	return k, d
}

// WilliamsR computes Williams %R, a momentum oscillator in [-100, 0].
func WilliamsR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nans(n)
	if period <= 0 || n < period {
		return out
	}
	hh := RollingMax(highs, period)
	ll := RollingMin(lows, period)
	for i := period - 1; i < n; i++ {
		rng := hh[i] - ll[i]
		if rng == 0 {
			out[i] = -50
			continue
		}
		out[i] = -100 * (hh[i] - closes[i]) / rng
	}
	return out
}

// CCI computes the commodity channel index over typical prices.
func CCI(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nans(n)
	if period <= 0 || n < period {
		return out
	}
	tp := make([]float64, n)
	for i := 0; i < n; i++ {
		tp[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	sma := SMA(tp, period)
	for i := period - 1; i < n; i++ {
		var dev float64
		for j := i - period + 1; j <= i; j++ {
			dev += math.Abs(tp[j] - sma[i])
		}
		dev /= float64(period)
		if dev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - sma[i]) / (0.015 * dev)
	}
	return out
}

// ROC computes the rate of change as a percentage over the period.
func ROC(vals []float64, period int) []float64 {
	out := nans(len(vals))
	if period <= 0 || len(vals) <= period {
		return out
	}
	for i := period; i < len(vals); i++ {
		if vals[i-period] == 0 {
			continue
		}
		out[i] = 100 * (vals[i] - vals[i-period]) / vals[i-period]
	}
	return out
}

// Momentum computes the absolute price change over the period.
func Momentum(vals []float64, period int) []float64 {
	out := nans(len(vals))
	if period <= 0 || len(vals) <= period {
		return out
	}
	for i := period; i < len(vals); i++ {
		out[i] = vals[i] - vals[i-period]
	}
	return out
}

// MACD computes the MACD line, signal line, and histogram with the given
// fast/slow/signal periods (conventionally 12/26/9).
func MACD(vals []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	n := len(vals)
	macd = nans(n)
	emaFast := EMA(vals, fast)
	emaSlow := EMA(vals, slow)
	for i := 0; i < n; i++ {
		if !math.IsNaN(emaFast[i]) && !math.IsNaN(emaSlow[i]) {
			macd[i] = emaFast[i] - emaSlow[i]
		}
	}
	sig = EMA(macd, signal)
	hist = nans(n)
	for i := 0; i < n; i++ {
		if !math.IsNaN(macd[i]) && !math.IsNaN(sig[i]) {
			hist[i] = macd[i] - sig[i]
		}
	}
	return macd, sig, hist
}

// TSI computes the true strength index from double-smoothed momentum.
func TSI(vals []float64, long, short int) []float64 {
	n := len(vals)
	out := nans(n)
	if n < 2 {
		return out
	}
	mom := nans(n)
	absMom := nans(n)
	for i := 1; i < n; i++ {
		mom[i] = vals[i] - vals[i-1]
		absMom[i] = math.Abs(mom[i])
	}
	num := EMA(EMA(mom, long), short)
	den := EMA(EMA(absMom, long), short)
	for i := 0; i < n; i++ {
		if !math.IsNaN(num[i]) && !math.IsNaN(den[i]) && den[i] != 0 {
			out[i] = 100 * num[i] / den[i]
		}
	}
	return out
}

// UltimateOscillator computes the Ultimate Oscillator over the three
// conventional windows (7/14/28).
func UltimateOscillator(highs, lows, closes []float64, p1, p2, p3 int) []float64 {
	n := len(closes)
	out := nans(n)
	if n < p3+1 {
		return out
	}
	bp := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		trueLow := math.Min(lows[i], closes[i-1])
		trueHigh := math.Max(highs[i], closes[i-1])
		bp[i] = closes[i] - trueLow
		tr[i] = trueHigh - trueLow
	}
	avg := func(i, p int) float64 {
		var sb, st float64
		for j := i - p + 1; j <= i; j++ {
			sb += bp[j]
			st += tr[j]
		}
		if st == 0 {
			return 0
		}
		return sb / st
	}
	for i := p3; i < n; i++ {
		a1 := avg(i, p1)
		a2 := avg(i, p2)
		a3 := avg(i, p3)
		out[i] = 100 * (4*a1 + 2*a2 + a3) / 7
	}
	return out
}

// AwesomeOscillator computes SMA(5) - SMA(34) of the bar midpoints.
func AwesomeOscillator(highs, lows []float64) []float64 {
	n := len(highs)
	mp := make([]float64, n)
	for i := 0; i < n; i++ {
		mp[i] = (highs[i] + lows[i]) / 2
	}
	fast := SMA(mp, 5)
	slow := SMA(mp, 34)
	out := nans(n)
	for i := 0; i < n; i++ {
		if !math.IsNaN(fast[i]) && !math.IsNaN(slow[i]) {
			out[i] = fast[i] - slow[i]
		}
	}
	return out
}
