package collect

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/dshills/tradingagents-go/indicators"
)

// Binance wraps the public Binance market-data endpoints. Spot market
// data needs no API key.
type Binance struct {
	client *binance.Client
}

// NewBinance builds a client for public market data.
func NewBinance() *Binance {
	return &Binance{client: binance.NewClient("", "")}
}

// SetBase points the client at a different API root.
func (b *Binance) SetBase(base string) { b.client.BaseURL = base }

// pair maps a crypto ticker ("BTC-USD" or "BTC") onto a Binance spot
// pair ("BTCUSDT").
func pair(symbol string) string {
	return cryptoBase(symbol) + "USDT"
}

// Stats fetches the rolling 24h price statistics for a crypto ticker.
func (b *Binance) Stats(ctx context.Context, symbol string) (*CryptoQuote, error) {
	stats, err := b.client.NewListPriceChangeStatsService().Symbol(pair(symbol)).Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, ErrEmptyResult
	}
	s := stats[0]
	q := &CryptoQuote{Symbol: symbol, Source: "binance"}
	q.Price = atof(s.LastPrice)
	q.Change24h = atof(s.PriceChangePercent)
	q.High24h = atof(s.HighPrice)
	q.Low24h = atof(s.LowPrice)
	q.Volume24h = atof(s.QuoteVolume)
	return q, nil
}

// DailyBars fetches daily klines for a crypto ticker, oldest first.
func (b *Binance) DailyBars(ctx context.Context, symbol string, days int) ([]indicators.Bar, error) {
	if days <= 0 {
		days = 100
	}
	klines, err := b.client.NewKlinesService().Symbol(pair(symbol)).Interval("1d").Limit(days).Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(klines) == 0 {
		return nil, ErrEmptyResult
	}
	bars := make([]indicators.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, indicators.Bar{
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   atof(k.Open),
			High:   atof(k.High),
			Low:    atof(k.Low),
			Close:  atof(k.Close),
			Volume: atof(k.Volume),
		})
	}
	return bars, nil
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
