package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/tradingagents-go/collect"
)

// Fake collectors shared across the package tests. Each returns its
// canned payload after an optional delay, honoring cancellation.

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeTechnical struct {
	rec   *collect.IndicatorsRecord
	err   error
	delay time.Duration
}

func (f *fakeTechnical) Collect(ctx context.Context, symbol, date string, days int) (*collect.IndicatorsRecord, error) {
	if err := wait(ctx, f.delay); err != nil {
		return nil, err
	}
	return f.rec, f.err
}

type fakeFundamentals struct {
	rec *collect.FundamentalsRecord
	err error
}

func (f *fakeFundamentals) Collect(ctx context.Context, symbol, date string) (*collect.FundamentalsRecord, error) {
	return f.rec, f.err
}

type fakeNews struct {
	items []collect.NewsItem
	err   error
}

func (f *fakeNews) CompanyNews(ctx context.Context, symbol string, limit int) ([]collect.NewsItem, error) {
	return f.items, f.err
}

type fakeSearch struct {
	items []collect.NewsItem
	err   error
}

func (f *fakeSearch) News(ctx context.Context, query string, limit int) ([]collect.NewsItem, error) {
	return f.items, f.err
}

type fakeReddit struct {
	posts []collect.SocialPost
	err   error
}

func (f *fakeReddit) Search(ctx context.Context, symbol string, limit int) ([]collect.SocialPost, error) {
	return f.posts, f.err
}

type fakeStockTwits struct {
	posts []collect.SocialPost
	err   error
}

func (f *fakeStockTwits) SymbolStream(ctx context.Context, symbol string, limit int) ([]collect.SocialPost, error) {
	return f.posts, f.err
}

func testIndicators(symbol string) *collect.IndicatorsRecord {
	return &collect.IndicatorsRecord{
		Symbol:     symbol,
		Date:       "2025-06-02",
		Bars:       120,
		LastClose:  187.45,
		Support:    180.10,
		Resistance: 195.30,
		Source:     "finnhub",
		Values: map[string]float64{
			"sma_20":    185.2,
			"sma_50":    182.7,
			"sma_200":   171.3,
			"rsi_14":    58.4,
			"macd":      1.2,
			"macd_hist": 0.4,
		},
	}
}

func testNewsItems(n int) []collect.NewsItem {
	items := make([]collect.NewsItem, n)
	for i := range items {
		items[i] = collect.NewsItem{
			Headline: fmt.Sprintf("Headline %d about the company and its quarter", i+1),
			Summary:  "Summary with enough substance to count as real coverage.",
			Source:   "wire",
			Time:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}
	}
	return items
}

func testPosts(n int, source string) []collect.SocialPost {
	posts := make([]collect.SocialPost, n)
	for i := range posts {
		posts[i] = collect.SocialPost{
			Body:      fmt.Sprintf("post %d: still holding, the chart looks constructive", i+1),
			Author:    fmt.Sprintf("user%d", i+1),
			Source:    source,
			Sentiment: "bullish",
			Time:      time.Date(2025, 6, 1, 9, i, 0, 0, time.UTC),
		}
	}
	return posts
}

func testFundamentals(symbol string) *collect.FundamentalsRecord {
	return &collect.FundamentalsRecord{
		Symbol: symbol,
		Date:   "2025-06-02",
		Profile: map[string]any{
			"name":                 "Test Corp",
			"finnhubIndustry":      "Technology",
			"marketCapitalization": 2895000.0,
		},
		Metrics: map[string]any{
			"peTTM":     28.4,
			"epsGrowth": 0.12,
		},
		Recommendations: []collect.Recommendation{
			{Period: "2025-06-01", StrongBuy: 12, Buy: 20, Hold: 8, Sell: 1},
		},
		Peers:            []string{"AAA", "BBB"},
		EndpointsFetched: 4,
	}
}

// longReport pads a report past the validity threshold.
func longReport(prefix string) string {
	return prefix + ": " + strings.Repeat("solid data point. ", 10)
}
