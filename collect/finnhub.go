package collect

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/dshills/tradingagents-go/indicators"
)

// Finnhub is the primary stock upstream: company facets, OHLCV candles,
// and company news.
type Finnhub struct {
	pool *Pool
	key  string
	base string
}

// NewFinnhub builds a client on the given pool. The base URL is
// overridable for tests via SetBase.
func NewFinnhub(pool *Pool, key string) *Finnhub {
	return &Finnhub{pool: pool, key: key, base: "https://finnhub.io/api/v1"}
}

// SetBase points the client at a different API root.
func (f *Finnhub) SetBase(base string) { f.base = base }

func (f *Finnhub) url(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("token", f.key)
	return f.base + path + "?" + params.Encode()
}

// Quote is the real-time quote for a symbol.
type Quote struct {
	Current   float64 `json:"c"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Open      float64 `json:"o"`
	PrevClose float64 `json:"pc"`
}

// Recommendation is one month's analyst recommendation tally.
type Recommendation struct {
	Period     string `json:"period"`
	StrongBuy  int    `json:"strongBuy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strongSell"`
}

// Total returns the number of analysts in the tally.
func (r Recommendation) Total() int {
	return r.StrongBuy + r.Buy + r.Hold + r.Sell + r.StrongSell
}

// PriceTarget is the analyst price-target summary. Source and Confidence
// are filled by the collector, not the upstream.
type PriceTarget struct {
	TargetHigh       float64 `json:"targetHigh"`
	TargetLow        float64 `json:"targetLow"`
	TargetMean       float64 `json:"targetMean"`
	TargetMedian     float64 `json:"targetMedian"`
	NumberOfAnalysts int     `json:"numberOfAnalysts"`
	LastUpdated      string  `json:"lastUpdated"`
	Source           string  `json:"source,omitempty"`
	Confidence       string  `json:"confidence,omitempty"`
}

// Empty reports whether the upstream returned a placeholder target.
func (p *PriceTarget) Empty() bool {
	return p == nil || (p.NumberOfAnalysts == 0 && p.TargetMean == 0)
}

// NewsItem is a normalized news article.
type NewsItem struct {
	Headline string    `json:"headline"`
	Summary  string    `json:"summary"`
	Source   string    `json:"source"`
	URL      string    `json:"url"`
	Time     time.Time `json:"time"`
}

// Profile fetches the company profile.
func (f *Finnhub) Profile(ctx context.Context, symbol string) (map[string]any, error) {
	var out map[string]any
	err := f.pool.GetJSON(ctx, f.url("/stock/profile2", url.Values{"symbol": {symbol}}), nil, &out)
	return out, err
}

// Metrics fetches the full metric set (valuation, margins, growth, ...).
func (f *Finnhub) Metrics(ctx context.Context, symbol string) (map[string]any, error) {
	var out struct {
		Metric map[string]any `json:"metric"`
	}
	err := f.pool.GetJSON(ctx, f.url("/stock/metric", url.Values{
		"symbol": {symbol},
		"metric": {"all"},
	}), nil, &out)
	return out.Metric, err
}

// Financials fetches one quarterly statement: "bs", "ic", or "cf".
func (f *Finnhub) Financials(ctx context.Context, symbol, statement string) (*Statement, error) {
	var out struct {
		Financials []map[string]any `json:"financials"`
	}
	err := f.pool.GetJSON(ctx, f.url("/stock/financials", url.Values{
		"symbol":    {symbol},
		"statement": {statement},
		"freq":      {"quarterly"},
	}), nil, &out)
	if err != nil {
		return nil, err
	}
	return statementFromRows("finnhub", out.Financials, "period"), nil
}

// Earnings fetches the quarterly EPS history.
func (f *Finnhub) Earnings(ctx context.Context, symbol string) ([]map[string]any, error) {
	var out []map[string]any
	err := f.pool.GetJSON(ctx, f.url("/stock/earnings", url.Values{"symbol": {symbol}}), nil, &out)
	return out, err
}

// EarningsCalendar fetches upcoming earnings dates in a one-year window.
func (f *Finnhub) EarningsCalendar(ctx context.Context, symbol string) ([]map[string]any, error) {
	now := time.Now().UTC()
	var out struct {
		EarningsCalendar []map[string]any `json:"earningsCalendar"`
	}
	err := f.pool.GetJSON(ctx, f.url("/calendar/earnings", url.Values{
		"symbol": {symbol},
		"from":   {now.AddDate(0, -6, 0).Format("2006-01-02")},
		"to":     {now.AddDate(0, 6, 0).Format("2006-01-02")},
	}), nil, &out)
	return out.EarningsCalendar, err
}

// RevenueEstimates fetches quarterly revenue estimates.
func (f *Finnhub) RevenueEstimates(ctx context.Context, symbol string) ([]map[string]any, error) {
	var out struct {
		Data []map[string]any `json:"data"`
	}
	err := f.pool.GetJSON(ctx, f.url("/stock/revenue-estimate", url.Values{"symbol": {symbol}}), nil, &out)
	return out.Data, err
}

// Recommendations fetches the analyst recommendation history, most recent
// first.
func (f *Finnhub) Recommendations(ctx context.Context, symbol string) ([]Recommendation, error) {
	var out []Recommendation
	err := f.pool.GetJSON(ctx, f.url("/stock/recommendation", url.Values{"symbol": {symbol}}), nil, &out)
	return out, err
}

// PriceTargets fetches the analyst price-target summary.
func (f *Finnhub) PriceTargets(ctx context.Context, symbol string) (*PriceTarget, error) {
	var out PriceTarget
	err := f.pool.GetJSON(ctx, f.url("/stock/price-target", url.Values{"symbol": {symbol}}), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// InsiderTransactions fetches recent insider trades.
func (f *Finnhub) InsiderTransactions(ctx context.Context, symbol string) ([]map[string]any, error) {
	var out struct {
		Data []map[string]any `json:"data"`
	}
	err := f.pool.GetJSON(ctx, f.url("/stock/insider-transactions", url.Values{"symbol": {symbol}}), nil, &out)
	return out.Data, err
}

// Ownership fetches institutional ownership.
func (f *Finnhub) Ownership(ctx context.Context, symbol string) ([]map[string]any, error) {
	var out struct {
		Ownership []map[string]any `json:"ownership"`
	}
	err := f.pool.GetJSON(ctx, f.url("/stock/ownership", url.Values{"symbol": {symbol}}), nil, &out)
	return out.Ownership, err
}

// Dividends fetches dividend history over the trailing five years.
func (f *Finnhub) Dividends(ctx context.Context, symbol string) ([]map[string]any, error) {
	now := time.Now().UTC()
	var out []map[string]any
	err := f.pool.GetJSON(ctx, f.url("/stock/dividend", url.Values{
		"symbol": {symbol},
		"from":   {now.AddDate(-5, 0, 0).Format("2006-01-02")},
		"to":     {now.Format("2006-01-02")},
	}), nil, &out)
	return out, err
}

// Splits fetches split history over the trailing five years.
func (f *Finnhub) Splits(ctx context.Context, symbol string) ([]map[string]any, error) {
	now := time.Now().UTC()
	var out []map[string]any
	err := f.pool.GetJSON(ctx, f.url("/stock/split", url.Values{
		"symbol": {symbol},
		"from":   {now.AddDate(-5, 0, 0).Format("2006-01-02")},
		"to":     {now.Format("2006-01-02")},
	}), nil, &out)
	return out, err
}

// Peers fetches the company's peer symbols.
func (f *Finnhub) Peers(ctx context.Context, symbol string) ([]string, error) {
	var out []string
	err := f.pool.GetJSON(ctx, f.url("/stock/peers", url.Values{"symbol": {symbol}}), nil, &out)
	return out, err
}

// Quote fetches the real-time quote.
func (f *Finnhub) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var out Quote
	err := f.pool.GetJSON(ctx, f.url("/quote", url.Values{"symbol": {symbol}}), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Candles fetches daily OHLCV bars covering the period ending now.
func (f *Finnhub) Candles(ctx context.Context, symbol string, days int) ([]indicators.Bar, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -days)
	var out struct {
		Status  string    `json:"s"`
		Opens   []float64 `json:"o"`
		Highs   []float64 `json:"h"`
		Lows    []float64 `json:"l"`
		Closes  []float64 `json:"c"`
		Volumes []float64 `json:"v"`
		Times   []int64   `json:"t"`
	}
	err := f.pool.GetJSON(ctx, f.url("/stock/candle", url.Values{
		"symbol":     {symbol},
		"resolution": {"D"},
		"from":       {fmt.Sprintf("%d", from.Unix())},
		"to":         {fmt.Sprintf("%d", now.Unix())},
	}), nil, &out)
	if err != nil {
		return nil, err
	}
	if out.Status != "ok" || len(out.Closes) == 0 {
		return nil, ErrEmptyResult
	}
	bars := make([]indicators.Bar, len(out.Closes))
	for i := range out.Closes {
		bars[i] = indicators.Bar{
			Time:   time.Unix(out.Times[i], 0).UTC(),
			Open:   out.Opens[i],
			High:   out.Highs[i],
			Low:    out.Lows[i],
			Close:  out.Closes[i],
			Volume: out.Volumes[i],
		}
	}
	return bars, nil
}

// CompanyNews fetches company news for the trailing week.
func (f *Finnhub) CompanyNews(ctx context.Context, symbol string, limit int) ([]NewsItem, error) {
	now := time.Now().UTC()
	var raw []struct {
		Datetime int64  `json:"datetime"`
		Headline string `json:"headline"`
		Summary  string `json:"summary"`
		Source   string `json:"source"`
		URL      string `json:"url"`
	}
	err := f.pool.GetJSON(ctx, f.url("/company-news", url.Values{
		"symbol": {symbol},
		"from":   {now.AddDate(0, 0, -7).Format("2006-01-02")},
		"to":     {now.Format("2006-01-02")},
	}), nil, &raw)
	if err != nil {
		return nil, err
	}
	items := make([]NewsItem, 0, len(raw))
	for _, r := range raw {
		if limit > 0 && len(items) >= limit {
			break
		}
		items = append(items, NewsItem{
			Headline: r.Headline,
			Summary:  r.Summary,
			Source:   r.Source,
			URL:      r.URL,
			Time:     time.Unix(r.Datetime, 0).UTC(),
		})
	}
	return items, nil
}
