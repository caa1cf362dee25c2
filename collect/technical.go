package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/tradingagents-go/indicators"
)

// IndicatorsRecord is the computed technical snapshot for one symbol and
// trade date. Values holds the latest value of every indicator in the
// battery; entries whose warm-up window exceeds the available bars are
// omitted rather than stored as NaN.
type IndicatorsRecord struct {
	Symbol      string             `json:"symbol"`
	Date        string             `json:"date"`
	Period      string             `json:"period"`
	Bars        int                `json:"bars"`
	LastClose   float64            `json:"last_close"`
	Support     float64            `json:"support"`
	Resistance  float64            `json:"resistance"`
	Values      map[string]float64 `json:"values"`
	Source      string             `json:"source"`
	CollectedAt time.Time          `json:"collected_at"`
}

// Technical collects OHLCV bars through the fallback chain and computes
// the indicator battery locally. Results are cached for 24 hours.
type Technical struct {
	finnhub *Finnhub
	av      *AlphaVantage
	bn      *Binance
	cache   Cache
	chain   *Chain[[]indicators.Bar]
	log     *zap.Logger
}

// NewTechnical wires the collector. av and bn may be nil when the
// corresponding upstream is not configured.
func NewTechnical(fh *Finnhub, av *AlphaVantage, bn *Binance, cache Cache, breakers *BreakerSet, limiter *Limiter, log *zap.Logger) *Technical {
	return &Technical{
		finnhub: fh,
		av:      av,
		bn:      bn,
		cache:   cache,
		chain: &Chain[[]indicators.Bar]{
			Breakers: breakers,
			Limiter:  limiter,
			Empty:    func(bars []indicators.Bar) bool { return len(bars) == 0 },
			Log:      log,
		},
		log: log,
	}
}

// Collect returns the indicator battery for symbol over the trailing
// days window. The record is a pure function of the fetched bars, so a
// cache hit and a recompute agree.
func (t *Technical) Collect(ctx context.Context, symbol, date string, days int) (*IndicatorsRecord, error) {
	if days <= 0 {
		days = 100
	}
	period := fmt.Sprintf("%dd", days)
	key := TechnicalKey(symbol, date, period)
	if raw, ok := cacheGet(ctx, t.cache, key); ok {
		var rec IndicatorsRecord
		if err := json.Unmarshal(raw, &rec); err == nil {
			return &rec, nil
		}
		t.log.Warn("corrupt cache entry, recomputing", zap.String("key", key))
	}

	bars, source, err := t.chain.Fetch(ctx, symbol, t.barSources(symbol, days)...)
	if err != nil {
		return nil, err
	}

	rec := buildIndicatorsRecord(symbol, date, period, source, bars)
	if raw, err := json.Marshal(rec); err == nil {
		cacheSet(ctx, t.cache, key, raw, TechnicalTTL)
	}
	return rec, nil
}

func (t *Technical) barSources(symbol string, days int) []Source[[]indicators.Bar] {
	if IsCrypto(symbol) && t.bn != nil {
		return []Source[[]indicators.Bar]{
			{Name: "binance", Fetch: func(ctx context.Context) ([]indicators.Bar, error) {
				return t.bn.DailyBars(ctx, symbol, days)
			}},
		}
	}
	sources := []Source[[]indicators.Bar]{
		{Name: "finnhub", Fetch: func(ctx context.Context) ([]indicators.Bar, error) {
			return t.finnhub.Candles(ctx, symbol, days)
		}},
	}
	if t.av != nil {
		sources = append(sources, Source[[]indicators.Bar]{
			Name: "alphavantage",
			Fetch: func(ctx context.Context) ([]indicators.Bar, error) {
				return t.av.DailyBars(ctx, symbol, days)
			},
		})
	}
	return sources
}

func buildIndicatorsRecord(symbol, date, period, source string, bars []indicators.Bar) *IndicatorsRecord {
	rec := &IndicatorsRecord{
		Symbol:      symbol,
		Date:        date,
		Period:      period,
		Bars:        len(bars),
		Values:      ComputeBattery(bars),
		Source:      source,
		CollectedAt: time.Now().UTC(),
	}
	if last, ok := indicators.Last(indicators.Closes(bars)); ok {
		rec.LastClose = last
	}
	if support, resistance, ok := indicators.SupportResistance(bars, 20, 5); ok {
		rec.Support, rec.Resistance = support, resistance
	}
	return rec
}

// ComputeBattery evaluates the full indicator battery and returns the
// latest value of each series. Indicators still inside their warm-up
// window are left out of the map.
func ComputeBattery(bars []indicators.Bar) map[string]float64 {
	closes := indicators.Closes(bars)
	highs := indicators.Highs(bars)
	lows := indicators.Lows(bars)
	volumes := indicators.Volumes(bars)

	out := map[string]float64{}
	put := func(name string, series []float64) {
		if v, ok := indicators.Last(series); ok && !math.IsNaN(v) {
			out[name] = v
		}
	}

	put("sma_20", indicators.SMA(closes, 20))
	put("sma_50", indicators.SMA(closes, 50))
	put("sma_200", indicators.SMA(closes, 200))
	put("ema_12", indicators.EMA(closes, 12))
	put("ema_26", indicators.EMA(closes, 26))
	put("wma_20", indicators.WMA(closes, 20))
	put("hma_20", indicators.HMA(closes, 20))
	put("kama_10", indicators.KAMA(closes, 10))
	put("tema_20", indicators.TEMA(closes, 20))
	put("trima_20", indicators.TRIMA(closes, 20))

	put("rsi_14", indicators.RSI(closes, 14))
	k, d := indicators.Stochastic(highs, lows, closes, 14, 3)
	put("stoch_k", k)
	put("stoch_d", d)
	put("willr_14", indicators.WilliamsR(highs, lows, closes, 14))
	put("cci_20", indicators.CCI(highs, lows, closes, 20))
	put("roc_10", indicators.ROC(closes, 10))
	put("mom_10", indicators.Momentum(closes, 10))
	macd, signal, hist := indicators.MACD(closes, 12, 26, 9)
	put("macd", macd)
	put("macd_signal", signal)
	put("macd_hist", hist)
	put("tsi", indicators.TSI(closes, 25, 13))
	put("ultosc", indicators.UltimateOscillator(highs, lows, closes, 7, 14, 28))
	put("ao", indicators.AwesomeOscillator(highs, lows))

	bu, bm, bl := indicators.Bollinger(closes, 20, 2)
	put("bb_upper", bu)
	put("bb_middle", bm)
	put("bb_lower", bl)
	ku, km, kl := indicators.Keltner(highs, lows, closes, 20, 10, 2)
	put("kc_upper", ku)
	put("kc_middle", km)
	put("kc_lower", kl)
	du, dm, dl := indicators.Donchian(highs, lows, 20)
	put("dc_upper", du)
	put("dc_middle", dm)
	put("dc_lower", dl)
	put("atr_14", indicators.ATR(highs, lows, closes, 14))
	put("natr_14", indicators.NATR(highs, lows, closes, 14))

	put("obv", indicators.OBV(closes, volumes))
	put("vpt", indicators.VPT(closes, volumes))
	put("mfi_14", indicators.MFI(highs, lows, closes, volumes, 14))
	put("ad", indicators.AD(highs, lows, closes, volumes))
	put("cmf_20", indicators.CMF(highs, lows, closes, volumes, 20))
	put("vwap", indicators.VWAP(highs, lows, closes, volumes))

	plus, minus, adx := indicators.DMI(highs, lows, closes, 14)
	put("plus_di", plus)
	put("minus_di", minus)
	put("adx_14", adx)
	up, down := indicators.Aroon(highs, lows, 25)
	put("aroon_up", up)
	put("aroon_down", down)

	return out
}
