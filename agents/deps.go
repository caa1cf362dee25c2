package agents

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/tradingagents-go/collect"
	"github.com/dshills/tradingagents-go/graph"
	"github.com/dshills/tradingagents-go/graph/model"
	"github.com/dshills/tradingagents-go/graph/tool"
	"github.com/dshills/tradingagents-go/memory"
)

// Narrow collector interfaces so tests can substitute fakes for the
// concrete collect types.
type (
	// FundamentalsCollector produces the fundamentals snapshot.
	FundamentalsCollector interface {
		Collect(ctx context.Context, symbol, date string) (*collect.FundamentalsRecord, error)
	}

	// TechnicalCollector produces the indicator record.
	TechnicalCollector interface {
		Collect(ctx context.Context, symbol, date string, days int) (*collect.IndicatorsRecord, error)
	}

	// NewsFetcher fetches company news from the market-data upstream.
	NewsFetcher interface {
		CompanyNews(ctx context.Context, symbol string, limit int) ([]collect.NewsItem, error)
	}

	// SearchFetcher fetches news and web results from the search upstream.
	SearchFetcher interface {
		News(ctx context.Context, query string, limit int) ([]collect.NewsItem, error)
	}

	// RedditFetcher fetches posts mentioning the symbol.
	RedditFetcher interface {
		Search(ctx context.Context, symbol string, limit int) ([]collect.SocialPost, error)
	}

	// StockTwitsFetcher fetches the symbol's message stream.
	StockTwitsFetcher interface {
		SymbolStream(ctx context.Context, symbol string, limit int) ([]collect.SocialPost, error)
	}

	// QuoteFetcher fetches the current price quote.
	QuoteFetcher interface {
		Quote(ctx context.Context, symbol string) (*collect.Quote, error)
	}

	// TwitterFetcher fetches tweet-like posts; the production
	// implementation goes through the search upstream.
	TwitterFetcher func(ctx context.Context, symbol string, limit int) ([]collect.SocialPost, error)

	// CryptoQuoter fetches the current crypto quote.
	CryptoQuoter func(ctx context.Context, symbol string) (*collect.CryptoQuote, error)

	// Executor runs tool calls; satisfied by *tool.Executor.
	Executor interface {
		Execute(ctx context.Context, calls []model.ToolCall) []tool.ToolResult
	}
)

// Deps bundles everything the agent nodes need. Collectors may be nil;
// the corresponding analyst then reports an error instead of data.
// Models may be nil; LLM-backed nodes then use their deterministic
// fallbacks.
type Deps struct {
	Fundamentals FundamentalsCollector
	Technical    TechnicalCollector
	News         NewsFetcher
	Search       SearchFetcher
	Reddit       RedditFetcher
	StockTwits   StockTwitsFetcher
	Twitter      TwitterFetcher
	CryptoQuote  CryptoQuoter
	Quoter       QuoteFetcher

	// QuickModel handles analyst synthesis; DeepModel handles research,
	// risk, and trading judgement. DeepModel falls back to QuickModel.
	QuickModel model.ChatModel
	DeepModel  model.ChatModel

	Registry *tool.Registry
	Executor Executor

	Memory memory.Store
	Log    *zap.Logger

	// Cost, when set, accumulates token usage and spend for every model
	// call the nodes make.
	Cost *graph.CostTracker

	// LLMAnalysts selects which analysts run in LLM mode instead of
	// direct collector mode.
	LLMAnalysts map[string]bool

	MaxDebateRounds int
	MaxRiskRounds   int
	AnalystBudget   time.Duration
}

// normalized returns a copy with defaults applied.
func (d Deps) normalized() Deps {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.MaxDebateRounds <= 0 {
		d.MaxDebateRounds = 3
	}
	if d.MaxRiskRounds <= 0 {
		d.MaxRiskRounds = 1
	}
	if d.AnalystBudget <= 0 {
		d.AnalystBudget = 30 * time.Second
	}
	if d.DeepModel == nil {
		d.DeepModel = d.QuickModel
	}
	return d
}

// recordUsage attributes one model call's tokens to the cost tracker.
func (d Deps) recordUsage(nodeID string, m model.ChatModel, u model.Usage) {
	if d.Cost == nil || m == nil {
		return
	}
	if err := d.Cost.RecordCall(m.Name(), u.InputTokens, u.OutputTokens, nodeID); err != nil {
		d.Log.Debug("cost attribution", zap.String("node", nodeID), zap.Error(err))
	}
}

// recallLessons fetches prior lessons for the symbol; failures degrade
// to an empty slice.
func (d Deps) recallLessons(ctx context.Context, symbol string, limit int) []memory.Lesson {
	if d.Memory == nil {
		return nil
	}
	lessons, err := d.Memory.Recall(ctx, symbol, limit)
	if err != nil {
		d.Log.Warn("lesson recall failed", zap.String("symbol", symbol), zap.Error(err))
		return nil
	}
	return lessons
}
