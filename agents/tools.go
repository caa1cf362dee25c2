package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/tradingagents-go/collect"
	"github.com/dshills/tradingagents-go/graph/tool"
)

// symbolSchema is the argument shape shared by the symbol-keyed tools.
func symbolSchema(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"symbol": map[string]interface{}{
			"type":        "string",
			"description": "Ticker symbol, e.g. AAPL or BTC-USD",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"symbol"},
	}
}

// BuildRegistry wires the data collectors into LLM-callable tools with
// per-analyst allow-lists. Tools for collectors left nil are simply not
// registered; the corresponding analyst sees a shorter tool list.
func BuildRegistry(deps Deps) (*tool.Registry, error) {
	reg := tool.NewRegistry()

	if deps.Quoter != nil {
		t := &tool.Func{
			ToolName: "get_quote",
			Desc:     "Current price quote for a ticker: last, open, high, low, previous close.",
			Schema:   symbolSchema(nil),
			Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
				symbol, ok := tool.StringArg(args, "symbol")
				if !ok {
					return "", fmt.Errorf("missing symbol argument")
				}
				q, err := deps.Quoter.Quote(ctx, symbol)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%s quote: last %.2f, open %.2f, high %.2f, low %.2f, prev close %.2f",
					strings.ToUpper(symbol), q.Current, q.Open, q.High, q.Low, q.PrevClose), nil
			},
		}
		if err := reg.Register(t, tool.AnalystMarket, tool.AnalystFundamentals); err != nil {
			return nil, err
		}
	}

	if deps.Technical != nil {
		t := &tool.Func{
			ToolName: "get_indicators",
			Desc:     "Technical indicator battery computed from daily bars: moving averages, RSI, MACD, Bollinger bands, ATR, ADX and more.",
			Schema: symbolSchema(map[string]interface{}{
				"days": map[string]interface{}{
					"type":        "integer",
					"description": "Lookback window in days (default 120)",
				},
			}),
			Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
				symbol, ok := tool.StringArg(args, "symbol")
				if !ok {
					return "", fmt.Errorf("missing symbol argument")
				}
				days := tool.IntArg(args, "days", 120)
				rec, err := deps.Technical.Collect(ctx, symbol, "", days)
				if err != nil {
					return "", err
				}
				return formatMarketReport(rec), nil
			},
		}
		if err := reg.Register(t, tool.AnalystMarket); err != nil {
			return nil, err
		}
	}

	if deps.Fundamentals != nil {
		t := &tool.Func{
			ToolName: "get_fundamentals",
			Desc:     "Company fundamentals: profile, key metrics, analyst recommendations, price target, financial statements, earnings, peers.",
			Schema:   symbolSchema(nil),
			Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
				symbol, ok := tool.StringArg(args, "symbol")
				if !ok {
					return "", fmt.Errorf("missing symbol argument")
				}
				rec, err := deps.Fundamentals.Collect(ctx, symbol, "")
				if err != nil {
					return "", err
				}
				return formatFundamentalsReport(rec), nil
			},
		}
		if err := reg.Register(t, tool.AnalystFundamentals); err != nil {
			return nil, err
		}
	}

	if deps.News != nil {
		t := &tool.Func{
			ToolName: "get_company_news",
			Desc:     "Recent company news headlines from the market-data feed.",
			Schema: symbolSchema(map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum headlines to return (default 10)",
				},
			}),
			Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
				symbol, ok := tool.StringArg(args, "symbol")
				if !ok {
					return "", fmt.Errorf("missing symbol argument")
				}
				items, err := deps.News.CompanyNews(ctx, symbol, tool.IntArg(args, "limit", 10))
				if err != nil {
					return "", err
				}
				return formatNewsReport(symbol, items), nil
			},
		}
		if err := reg.Register(t, tool.AnalystNews); err != nil {
			return nil, err
		}
	}

	if deps.Search != nil {
		t := &tool.Func{
			ToolName: "search_news",
			Desc:     "Web news search for an arbitrary query.",
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Search query",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum results (default 10)",
					},
				},
				"required": []string{"query"},
			},
			Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
				query, ok := tool.StringArg(args, "query")
				if !ok {
					return "", fmt.Errorf("missing query argument")
				}
				items, err := deps.Search.News(ctx, query, tool.IntArg(args, "limit", 10))
				if err != nil {
					return "", err
				}
				return formatNewsReport(query, items), nil
			},
		}
		if err := reg.Register(t, tool.AnalystNews, tool.AnalystSocial); err != nil {
			return nil, err
		}
	}

	if deps.Reddit != nil || deps.StockTwits != nil || deps.Twitter != nil {
		t := &tool.Func{
			ToolName: "get_social_posts",
			Desc:     "Recent social-media posts mentioning a ticker, pooled across sources, with a sentiment tally.",
			Schema: symbolSchema(map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum posts per source (default 15)",
				},
			}),
			Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
				symbol, ok := tool.StringArg(args, "symbol")
				if !ok {
					return "", fmt.Errorf("missing symbol argument")
				}
				limit := tool.IntArg(args, "limit", 15)
				var posts []collect.SocialPost
				if deps.Reddit != nil {
					if got, err := deps.Reddit.Search(ctx, symbol, limit); err == nil {
						posts = append(posts, got...)
					}
				}
				if deps.StockTwits != nil {
					if got, err := deps.StockTwits.SymbolStream(ctx, symbol, limit); err == nil {
						posts = append(posts, got...)
					}
				}
				if deps.Twitter != nil {
					if got, err := deps.Twitter(ctx, symbol, limit); err == nil {
						posts = append(posts, got...)
					}
				}
				if len(posts) == 0 {
					return "", fmt.Errorf("no social posts found for %s", symbol)
				}
				return formatSocialReport(symbol, posts), nil
			},
		}
		if err := reg.Register(t, tool.AnalystSocial); err != nil {
			return nil, err
		}
	}

	if err := reg.Register(tool.NewFetchTool(nil), tool.AnalystNews); err != nil {
		return nil, err
	}

	return reg, nil
}
