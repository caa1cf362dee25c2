// Package indicators computes technical analysis indicators over OHLCV
// series. Every function is a pure function of its input: the same bars
// always produce the same values, no I/O, no shared state.
//
// All series functions return a slice aligned with the input; positions
// where the indicator is not yet defined (warm-up) hold NaN. Callers pick
// the latest defined value with Last.
package indicators

import (
	"math"
	"time"
)

// Bar is a single OHLCV observation.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Closes extracts the close series from bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high series from bars.
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low series from bars.
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the volume series from bars.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// TypicalPrices returns (high+low+close)/3 per bar.
func TypicalPrices(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = (b.High + b.Low + b.Close) / 3
	}
	return out
}

// Last returns the final value of a series and whether it is defined.
func Last(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	v := vals[len(vals)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// nans returns a slice of n NaN values.
func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// firstValid returns the index of the first non-NaN value, or -1.
func firstValid(vals []float64) int {
	for i, v := range vals {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

// RollingMax returns the maximum over a trailing window per position.
func RollingMax(vals []float64, window int) []float64 {
	out := nans(len(vals))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(vals); i++ {
		m := vals[i-window+1]
		for j := i - window + 2; j <= i; j++ {
			if vals[j] > m {
				m = vals[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingMin returns the minimum over a trailing window per position.
func RollingMin(vals []float64, window int) []float64 {
	out := nans(len(vals))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(vals); i++ {
		m := vals[i-window+1]
		for j := i - window + 2; j <= i; j++ {
			if vals[j] < m {
				m = vals[j]
			}
		}
		out[i] = m
	}
	return out
}

// SupportResistance returns the rolling low (support) and rolling high
// (resistance) using the preferred window, falling back to the smaller
// window when the series is too short for the preferred one.
func SupportResistance(bars []Bar, window, fallback int) (support, resistance float64, ok bool) {
	if len(bars) == 0 {
		return 0, 0, false
	}
	w := window
	if len(bars) < window {
		w = fallback
	}
	if len(bars) < w {
		w = len(bars)
	}
	lo, okLo := Last(RollingMin(Lows(bars), w))
	hi, okHi := Last(RollingMax(Highs(bars), w))
	if !okLo || !okHi {
		return 0, 0, false
	}
	return lo, hi, true
}
