package indicators

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	t.Run("known values", func(t *testing.T) {
		vals := []float64{1, 2, 3, 4, 5}
		got := SMA(vals, 3)
		want := []float64{math.NaN(), math.NaN(), 2, 3, 4}
		for i := range want {
			if math.IsNaN(want[i]) {
				if !math.IsNaN(got[i]) {
					t.Errorf("index %d: want NaN, got %v", i, got[i])
				}
				continue
			}
			if !almostEqual(got[i], want[i]) {
				t.Errorf("index %d: want %v, got %v", i, want[i], got[i])
			}
		}
	})

	t.Run("insufficient data", func(t *testing.T) {
		got := SMA([]float64{1, 2}, 5)
		for i, v := range got {
			if !math.IsNaN(v) {
				t.Errorf("index %d: want NaN, got %v", i, v)
			}
		}
	})
}

func TestEMA(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	got := EMA(vals, 3)
	// Seed SMA(1,2,3)=2 at index 2, k=0.5 thereafter.
	want := []float64{math.NaN(), math.NaN(), 2, 3, 4}
	want[3] = 4*0.5 + 2*0.5    // 3
	want[4] = 5*0.5 + 3*0.5    // 4
	for i := 2; i < len(want); i++ {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("index %d: want %v, got %v", i, want[i], got[i])
		}
	}
}

func TestEMAStacked(t *testing.T) {
	// EMA over a series with leading NaNs must skip the warm-up.
	vals := []float64{math.NaN(), math.NaN(), 1, 2, 3, 4, 5}
	got := EMA(vals, 3)
	if !math.IsNaN(got[3]) {
		t.Errorf("index 3: want NaN, got %v", got[3])
	}
	if !almostEqual(got[4], 2) {
		t.Errorf("seed: want 2, got %v", got[4])
	}
}

func TestWMA(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	got := WMA(vals, 3)
	// (1*1 + 2*2 + 3*3) / 6
	if !almostEqual(got[2], 14.0/6.0) {
		t.Errorf("index 2: want %v, got %v", 14.0/6.0, got[2])
	}
	// (3*1 + 4*2 + 5*3) / 6
	if !almostEqual(got[4], 26.0/6.0) {
		t.Errorf("index 4: want %v, got %v", 26.0/6.0, got[4])
	}
}

func TestRSI(t *testing.T) {
	t.Run("all gains saturate at 100", func(t *testing.T) {
		vals := make([]float64, 20)
		for i := range vals {
			vals[i] = float64(i + 1)
		}
		got := RSI(vals, 14)
		last, ok := Last(got)
		if !ok {
			t.Fatal("expected defined RSI")
		}
		if !almostEqual(last, 100) {
			t.Errorf("want 100, got %v", last)
		}
	})

	t.Run("flat series is neutral", func(t *testing.T) {
		vals := make([]float64, 20)
		for i := range vals {
			vals[i] = 42
		}
		got := RSI(vals, 14)
		last, ok := Last(got)
		if !ok {
			t.Fatal("expected defined RSI")
		}
		if !almostEqual(last, 50) {
			t.Errorf("want 50, got %v", last)
		}
	})
}

func TestMACDFlatSeriesIsZero(t *testing.T) {
	vals := make([]float64, 60)
	for i := range vals {
		vals[i] = 100
	}
	macd, sig, hist := MACD(vals, 12, 26, 9)
	for _, series := range [][]float64{macd, sig, hist} {
		last, ok := Last(series)
		if !ok {
			t.Fatal("expected defined value")
		}
		if !almostEqual(last, 0) {
			t.Errorf("want 0, got %v", last)
		}
	}
}

func TestBollingerFlatSeriesCollapses(t *testing.T) {
	vals := make([]float64, 30)
	for i := range vals {
		vals[i] = 50
	}
	upper, middle, lower := Bollinger(vals, 20, 2)
	u, _ := Last(upper)
	m, _ := Last(middle)
	l, _ := Last(lower)
	if !almostEqual(u, 50) || !almostEqual(m, 50) || !almostEqual(l, 50) {
		t.Errorf("flat series should collapse bands: got %v %v %v", u, m, l)
	}
}

func TestATR(t *testing.T) {
	highs := []float64{10, 11, 12}
	lows := []float64{9, 10, 11}
	closes := []float64{9.5, 10.5, 11.5}
	got := ATR(highs, lows, closes, 2)
	// tr[1]=1.5, tr[2]=1.5 -> seed 1.5 at index 2.
	if !almostEqual(got[2], 1.5) {
		t.Errorf("want 1.5, got %v", got[2])
	}
}

func TestOBV(t *testing.T) {
	closes := []float64{10, 11, 10, 10, 12}
	volumes := []float64{100, 200, 300, 400, 500}
	got := OBV(closes, volumes)
	want := []float64{0, 200, -100, -100, 400}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("index %d: want %v, got %v", i, want[i], got[i])
		}
	}
}

func TestStochasticAtRollingHigh(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = float64(10 + i)
		lows[i] = float64(8 + i)
		closes[i] = highs[i]
	}
	k, _ := Stochastic(highs, lows, closes, 14, 3)
	last, ok := Last(k)
	if !ok {
		t.Fatal("expected defined %K")
	}
	if !almostEqual(last, 100) {
		t.Errorf("close at rolling high should give %%K=100, got %v", last)
	}
}

func TestAroonTrendingUp(t *testing.T) {
	n := 30
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = float64(i)
		lows[i] = float64(i) - 1
	}
	up, down := Aroon(highs, lows, 25)
	u, _ := Last(up)
	d, _ := Last(down)
	if !almostEqual(u, 100) {
		t.Errorf("monotone highs should give Aroon Up 100, got %v", u)
	}
	if almostEqual(d, 100) {
		t.Errorf("monotone rising lows should not give Aroon Down 100")
	}
}

func TestDMIBounds(t *testing.T) {
	n := 60
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)*0.7
		highs[i] = base + 1
		lows[i] = base - 1
		closes[i] = base
	}
	plus, minus, adx := DMI(highs, lows, closes, 14)
	p, okP := Last(plus)
	m, okM := Last(minus)
	a, okA := Last(adx)
	if !okP || !okM || !okA {
		t.Fatal("expected defined DMI values")
	}
	if p < 0 || p > 100 || m < 0 || m > 100 || a < 0 || a > 100 {
		t.Errorf("DMI values out of range: +DI=%v -DI=%v ADX=%v", p, m, a)
	}
	if p <= m {
		t.Errorf("uptrend should have +DI > -DI: +DI=%v -DI=%v", p, m)
	}
}

func TestRollingWindows(t *testing.T) {
	vals := []float64{3, 1, 4, 1, 5}
	maxs := RollingMax(vals, 3)
	mins := RollingMin(vals, 3)
	if !almostEqual(maxs[4], 5) || !almostEqual(mins[4], 1) {
		t.Errorf("window [4,1,5]: want max 5 min 1, got %v %v", maxs[4], mins[4])
	}
	if !almostEqual(maxs[2], 4) || !almostEqual(mins[2], 1) {
		t.Errorf("window [3,1,4]: want max 4 min 1, got %v %v", maxs[2], mins[2])
	}
}

func TestSupportResistanceFallbackWindow(t *testing.T) {
	bars := make([]Bar, 8)
	for i := range bars {
		bars[i] = Bar{
			High: float64(10 + i),
			Low:  float64(5 + i),
		}
	}
	// Too short for the 20 window, falls back to 5.
	support, resistance, ok := SupportResistance(bars, 20, 5)
	if !ok {
		t.Fatal("expected defined support/resistance")
	}
	if !almostEqual(resistance, 17) {
		t.Errorf("want resistance 17, got %v", resistance)
	}
	if !almostEqual(support, 8) {
		t.Errorf("want support 8, got %v", support)
	}
}

func TestDeterministicRecompute(t *testing.T) {
	// The full battery must be a pure function of its input: recomputing on
	// the same bars yields identical values.
	n := 120
	bars := make([]Bar, n)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := 100 + 10*math.Sin(float64(i)/7) + float64(i%5)
		bars[i] = Bar{
			Time:   base.AddDate(0, 0, i),
			Open:   price - 0.5,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000 + float64(i*13%700),
		}
	}

	compute := func() []float64 {
		closes := Closes(bars)
		highs := Highs(bars)
		lows := Lows(bars)
		volumes := Volumes(bars)
		var out []float64
		collect := func(vals ...[]float64) {
			for _, series := range vals {
				v, _ := Last(series)
				out = append(out, v)
			}
		}
		collect(SMA(closes, 20), EMA(closes, 20), WMA(closes, 20), HMA(closes, 20),
			KAMA(closes, 10), TEMA(closes, 20), TRIMA(closes, 20))
		collect(RSI(closes, 14), WilliamsR(highs, lows, closes, 14),
			CCI(highs, lows, closes, 20), ROC(closes, 10), Momentum(closes, 10),
			TSI(closes, 25, 13), UltimateOscillator(highs, lows, closes, 7, 14, 28),
			AwesomeOscillator(highs, lows))
		k, d := Stochastic(highs, lows, closes, 14, 3)
		collect(k, d)
		macd, sig, hist := MACD(closes, 12, 26, 9)
		collect(macd, sig, hist)
		bu, bm, bl := Bollinger(closes, 20, 2)
		collect(bu, bm, bl)
		ku, km, kl := Keltner(highs, lows, closes, 20, 10, 2)
		collect(ku, km, kl)
		du, dm, dl := Donchian(highs, lows, 20)
		collect(du, dm, dl)
		collect(ATR(highs, lows, closes, 14), NATR(highs, lows, closes, 14))
		collect(OBV(closes, volumes), VPT(closes, volumes),
			MFI(highs, lows, closes, volumes, 14), AD(highs, lows, closes, volumes),
			CMF(highs, lows, closes, volumes, 20), VWAP(highs, lows, closes, volumes))
		plus, minus, adx := DMI(highs, lows, closes, 14)
		collect(plus, minus, adx)
		up, down := Aroon(highs, lows, 25)
		collect(up, down)
		return out
	}

	first := compute()
	second := compute()
	if len(first) != len(second) {
		t.Fatalf("length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("index %d: %v != %v", i, first[i], second[i])
		}
	}
	defined := 0
	for _, v := range first {
		if !math.IsNaN(v) && v != 0 {
			defined++
		}
	}
	if defined < 25 {
		t.Errorf("expected most indicators defined on 120 bars, got %d", defined)
	}
}
