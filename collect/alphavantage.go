package collect

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/dshills/tradingagents-go/indicators"
)

// AlphaVantage is the secondary upstream for financial statements and
// daily OHLCV bars.
type AlphaVantage struct {
	pool *Pool
	key  string
	base string
}

// NewAlphaVantage builds a client on the given pool.
func NewAlphaVantage(pool *Pool, key string) *AlphaVantage {
	return &AlphaVantage{pool: pool, key: key, base: "https://www.alphavantage.co"}
}

// SetBase points the client at a different API root.
func (a *AlphaVantage) SetBase(base string) { a.base = base }

func (a *AlphaVantage) url(fn, symbol string, extra url.Values) string {
	params := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	params.Set("function", fn)
	params.Set("symbol", symbol)
	params.Set("apikey", a.key)
	return a.base + "/query?" + params.Encode()
}

var avStatementFunc = map[string]string{
	"bs": "BALANCE_SHEET",
	"ic": "INCOME_STATEMENT",
	"cf": "CASH_FLOW",
}

// Financials fetches one quarterly statement ("bs", "ic", or "cf"). The
// upstream reports line items per fiscal date; values arrive as strings
// with "None" for gaps. The response is normalized through an item-major
// table and transposed into date-major rows.
func (a *AlphaVantage) Financials(ctx context.Context, symbol, statement string) (*Statement, error) {
	fn, ok := avStatementFunc[statement]
	if !ok {
		return nil, fmt.Errorf("unknown statement %q", statement)
	}
	var out struct {
		Note             string              `json:"Note"`
		Information      string              `json:"Information"`
		QuarterlyReports []map[string]string `json:"quarterlyReports"`
	}
	if err := a.pool.GetJSON(ctx, a.url(fn, symbol, nil), nil, &out); err != nil {
		return nil, err
	}
	if msg := out.Note + out.Information; msg != "" && len(out.QuarterlyReports) == 0 {
		return nil, fmt.Errorf("alphavantage throttled: %s", msg)
	}
	table := map[string]map[string]float64{}
	for _, report := range out.QuarterlyReports {
		date := report["fiscalDateEnding"]
		if date == "" {
			continue
		}
		for item, raw := range report {
			if item == "fiscalDateEnding" || item == "reportedCurrency" {
				continue
			}
			n, ok := numeric(raw)
			if !ok {
				continue
			}
			if table[item] == nil {
				table[item] = map[string]float64{}
			}
			table[item][date] = n
		}
	}
	return &Statement{Source: "alphavantage", Rows: Transpose(table)}, nil
}

// DailyBars fetches daily OHLCV bars, oldest first. outputsize switches
// to the full history when more than 100 bars are requested.
func (a *AlphaVantage) DailyBars(ctx context.Context, symbol string, days int) ([]indicators.Bar, error) {
	size := "compact"
	if days > 100 {
		size = "full"
	}
	var out struct {
		Note        string                       `json:"Note"`
		Information string                       `json:"Information"`
		Series      map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := a.pool.GetJSON(ctx, a.url("TIME_SERIES_DAILY", symbol, url.Values{
		"outputsize": {size},
	}), nil, &out); err != nil {
		return nil, err
	}
	if len(out.Series) == 0 {
		if msg := out.Note + out.Information; msg != "" {
			return nil, fmt.Errorf("alphavantage throttled: %s", msg)
		}
		return nil, ErrEmptyResult
	}
	dates := make([]string, 0, len(out.Series))
	for d := range out.Series {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > days {
		dates = dates[len(dates)-days:]
	}
	bars := make([]indicators.Bar, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		fields := out.Series[d]
		open, _ := numeric(fields["1. open"])
		high, _ := numeric(fields["2. high"])
		low, _ := numeric(fields["3. low"])
		clos, _ := numeric(fields["4. close"])
		vol, _ := numeric(fields["5. volume"])
		bars = append(bars, indicators.Bar{Time: t.UTC(), Open: open, High: high, Low: low, Close: clos, Volume: vol})
	}
	if len(bars) == 0 {
		return nil, ErrEmptyResult
	}
	return bars, nil
}
