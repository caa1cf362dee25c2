package indicators

import "math"

// DMI computes the directional movement system: +DI, -DI, and ADX, all
// Wilder-smoothed over the given period.
func DMI(highs, lows, closes []float64, period int) (plusDI, minusDI, adx []float64) {
	n := len(closes)
	plusDI, minusDI, adx = nans(n), nans(n), nans(n)
	if period <= 0 || n < 2*period+1 {
		return plusDI, minusDI, adx
	}

	tr := TrueRange(highs, lows, closes)
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

	// Wilder smoothing seeded with plain sums over the first period.
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := nans(n)
	emitDI := func(i int) {
		if smTR == 0 {
			plusDI[i] = 0
			minusDI[i] = 0
			dx[i] = 0
			return
		}
		plusDI[i] = 100 * smPlus / smTR
		minusDI[i] = 100 * smMinus / smTR
		sum := plusDI[i] + minusDI[i]
		if sum == 0 {
			dx[i] = 0
			return
		}
		dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
	}
	emitDI(period)
	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		emitDI(i)
	}

	// ADX: Wilder-smoothed DX, seeded with the mean of the first period DX
	// values.
	var seed float64
	for i := period; i < 2*period; i++ {
		seed += dx[i]
	}
	adx[2*period-1] = seed / float64(period)
	for i := 2 * period; i < n; i++ {
		adx[i] = (adx[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return plusDI, minusDI, adx
}

// Aroon computes Aroon Up and Aroon Down over the period: the share of the
// window elapsed since the most recent high/low.
func Aroon(highs, lows []float64, period int) (up, down []float64) {
	n := len(highs)
	up, down = nans(n), nans(n)
	if period <= 0 || n < period+1 {
		return up, down
	}
	for i := period; i < n; i++ {
		hiIdx, loIdx := i-period, i-period
		for j := i - period; j <= i; j++ {
			if highs[j] >= highs[hiIdx] {
				hiIdx = j
			}
			if lows[j] <= lows[loIdx] {
				loIdx = j
			}
		}
		up[i] = 100 * float64(period-(i-hiIdx)) / float64(period)
		down[i] = 100 * float64(period-(i-loIdx)) / float64(period)
	}
	return up, down
}
