package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/tradingagents-go/collect"
	"github.com/dshills/tradingagents-go/graph/model"
	"github.com/dshills/tradingagents-go/graph/tool"
)

func TestMarketAnalystDirectMode(t *testing.T) {
	deps := Deps{Technical: &fakeTechnical{rec: testIndicators("AAPL")}}
	node := NewMarketAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL", TradeDate: "2025-06-02"})
	if res.Err != nil {
		t.Fatalf("unexpected node error: %v", res.Err)
	}
	if !res.Route.Terminal {
		t.Error("analyst branches must terminate")
	}
	if res.Delta.AnalystStatus[AnalystMarket] != StatusCompleted {
		t.Errorf("status = %q, want completed", res.Delta.AnalystStatus[AnalystMarket])
	}
	report := res.Delta.MarketReport
	if !strings.Contains(report, "TECHNICAL ANALYSIS for AAPL") {
		t.Errorf("report missing header:\n%s", report)
	}
	if !strings.Contains(report, "rsi_14") || !strings.Contains(report, "RSI neutral") {
		t.Errorf("report missing indicator read:\n%s", report)
	}
	if res.Delta.ExecutionTime[AnalystMarket] < 0 {
		t.Error("execution time not recorded")
	}
}

func TestMarketAnalystCollectorErrorBecomesReport(t *testing.T) {
	deps := Deps{Technical: &fakeTechnical{err: errors.New("finnhub down")}}
	node := NewMarketAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL"})
	if res.Err != nil {
		t.Fatalf("analyst failures must not fail the node: %v", res.Err)
	}
	if res.Delta.AnalystStatus[AnalystMarket] != StatusError {
		t.Errorf("status = %q, want error", res.Delta.AnalystStatus[AnalystMarket])
	}
	if !strings.Contains(res.Delta.MarketReport, "Error fetching market data") {
		t.Errorf("report = %q", res.Delta.MarketReport)
	}
	if res.Delta.AnalystErrors[AnalystMarket] != "finnhub down" {
		t.Errorf("AnalystErrors = %v", res.Delta.AnalystErrors)
	}
}

func TestMarketAnalystBudgetTimeout(t *testing.T) {
	deps := Deps{
		Technical:     &fakeTechnical{rec: testIndicators("AAPL"), delay: 200 * time.Millisecond},
		AnalystBudget: 20 * time.Millisecond,
	}
	node := NewMarketAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL"})
	if res.Err != nil {
		t.Fatalf("timeouts must not fail the node: %v", res.Err)
	}
	if res.Delta.AnalystStatus[AnalystMarket] != StatusWarning {
		t.Errorf("status = %q, want warning", res.Delta.AnalystStatus[AnalystMarket])
	}
	if !strings.Contains(res.Delta.AnalystErrors[AnalystMarket], "timeout after") {
		t.Errorf("AnalystErrors = %v", res.Delta.AnalystErrors)
	}
	if !strings.Contains(res.Delta.MarketReport, "timed out") {
		t.Errorf("report = %q", res.Delta.MarketReport)
	}
}

func TestFundamentalsAnalystEquityPath(t *testing.T) {
	deps := Deps{Fundamentals: &fakeFundamentals{rec: testFundamentals("AAPL")}}
	node := NewFundamentalsAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL"})
	report := res.Delta.FundamentalsReport
	if !strings.Contains(report, "FUNDAMENTALS for AAPL") {
		t.Errorf("report missing header:\n%s", report)
	}
	if !strings.Contains(report, "Test Corp") || !strings.Contains(report, "12 strong buy") {
		t.Errorf("report missing content:\n%s", report)
	}
}

func TestFundamentalsAnalystCryptoPath(t *testing.T) {
	quoted := false
	deps := Deps{
		Fundamentals: &fakeFundamentals{err: errors.New("should not be called for crypto")},
		CryptoQuote: func(ctx context.Context, symbol string) (*collect.CryptoQuote, error) {
			quoted = true
			return &collect.CryptoQuote{Symbol: symbol, Price: 67123.45, Change24h: 2.1, Source: "binance"}, nil
		},
	}
	node := NewFundamentalsAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "BTC-USD"})
	if !quoted {
		t.Fatal("crypto quote path not taken")
	}
	report := res.Delta.FundamentalsReport
	if !strings.Contains(report, "CRYPTO SNAPSHOT for BTC-USD") {
		t.Errorf("report missing header:\n%s", report)
	}
	if !strings.Contains(report, "67123.45") {
		t.Errorf("report missing price:\n%s", report)
	}
	if res.Delta.AnalystStatus[AnalystFundamentals] != StatusCompleted {
		t.Errorf("status = %q", res.Delta.AnalystStatus[AnalystFundamentals])
	}
}

func TestNewsAnalystMergesSources(t *testing.T) {
	deps := Deps{
		News:   &fakeNews{items: testNewsItems(2)},
		Search: &fakeSearch{items: testNewsItems(3)},
	}
	node := NewNewsAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL"})
	if !strings.Contains(res.Delta.NewsReport, "5 articles") {
		t.Errorf("report should merge both sources:\n%s", res.Delta.NewsReport)
	}
	if res.Delta.AnalystStatus[AnalystNews] != StatusCompleted {
		t.Errorf("status = %q", res.Delta.AnalystStatus[AnalystNews])
	}
}

func TestNewsAnalystSurvivesOneDeadSource(t *testing.T) {
	deps := Deps{
		News:   &fakeNews{err: errors.New("finnhub down")},
		Search: &fakeSearch{items: testNewsItems(3)},
	}
	node := NewNewsAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL"})
	if res.Delta.AnalystStatus[AnalystNews] != StatusCompleted {
		t.Errorf("status = %q, want completed despite one dead source", res.Delta.AnalystStatus[AnalystNews])
	}
	if !strings.Contains(res.Delta.NewsReport, "3 articles") {
		t.Errorf("report = %q", res.Delta.NewsReport)
	}
}

func TestNewsAnalystAllSourcesEmptyIsError(t *testing.T) {
	deps := Deps{
		News:   &fakeNews{err: errors.New("down")},
		Search: &fakeSearch{err: errors.New("down")},
	}
	node := NewNewsAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL"})
	if res.Delta.AnalystStatus[AnalystNews] != StatusError {
		t.Errorf("status = %q, want error", res.Delta.AnalystStatus[AnalystNews])
	}
}

func TestSocialAnalystDeterministicWithoutModel(t *testing.T) {
	deps := Deps{
		Reddit:     &fakeReddit{posts: testPosts(3, "reddit")},
		StockTwits: &fakeStockTwits{posts: testPosts(2, "stocktwits")},
	}
	node := NewSocialAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL"})
	report := res.Delta.SentimentReport
	if !strings.Contains(report, "SOCIAL SENTIMENT for AAPL: 5 posts") {
		t.Errorf("report:\n%s", report)
	}
	if !strings.Contains(report, "5 bullish") {
		t.Errorf("tally missing:\n%s", report)
	}
	if res.Delta.AnalystStatus[AnalystSocial] != StatusCompleted {
		t.Errorf("status = %q", res.Delta.AnalystStatus[AnalystSocial])
	}
}

func TestSocialAnalystZeroPostsIsWarning(t *testing.T) {
	deps := Deps{Reddit: &fakeReddit{}}
	node := NewSocialAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL"})
	if res.Delta.AnalystStatus[AnalystSocial] != StatusWarning {
		t.Errorf("status = %q, want warning", res.Delta.AnalystStatus[AnalystSocial])
	}
	if res.Delta.SentimentReport == "" {
		t.Error("warning path should still produce a report")
	}
}

func TestSocialAnalystSynthesizesWithModel(t *testing.T) {
	mock := model.NewMock(model.ChatOut{Text: "Retail is bullish: chatter supports the uptrend."})
	deps := Deps{
		Reddit:     &fakeReddit{posts: testPosts(3, "reddit")},
		QuickModel: mock,
	}
	node := NewSocialAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL"})
	if res.Delta.SentimentReport != "Retail is bullish: chatter supports the uptrend." {
		t.Errorf("report = %q", res.Delta.SentimentReport)
	}
	if mock.CallCount() != 1 {
		t.Errorf("model calls = %d, want 1", mock.CallCount())
	}
	// The prompt must carry the fetched posts, not delegate fetching.
	last := mock.LastMessages()
	if !strings.Contains(last[len(last)-1].Content, "SOCIAL SENTIMENT") {
		t.Error("synthesis prompt missing the formatted posts")
	}
}

func TestLLMAnalystToolLoop(t *testing.T) {
	reg := tool.NewRegistry()
	err := reg.Register(&tool.Func{
		ToolName: "get_indicators",
		Desc:     "indicator battery",
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return longReport("indicators"), nil
		},
	}, tool.AnalystMarket)
	if err != nil {
		t.Fatal(err)
	}

	mock := model.NewMock(
		model.ChatOut{ToolCalls: []model.ToolCall{{ID: "c1", Name: "get_indicators", Input: map[string]interface{}{"symbol": "AAPL"}}}},
		model.ChatOut{Text: "Technical report grounded in the tool data."},
	)
	deps := Deps{
		QuickModel:  mock,
		Registry:    reg,
		Executor:    tool.NewExecutor(reg),
		LLMAnalysts: map[string]bool{AnalystMarket: true},
	}
	node := NewMarketAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL", TradeDate: "2025-06-02"})
	if res.Delta.AnalystStatus[AnalystMarket] != StatusCompleted {
		t.Fatalf("status = %q, errors = %v", res.Delta.AnalystStatus[AnalystMarket], res.Delta.AnalystErrors)
	}
	if res.Delta.MarketReport != "Technical report grounded in the tool data." {
		t.Errorf("report = %q", res.Delta.MarketReport)
	}
	if res.Delta.ToolCalls[AnalystMarket] != 1 {
		t.Errorf("tool calls = %d, want 1", res.Delta.ToolCalls[AnalystMarket])
	}
	msgs := res.Delta.Messages[AnalystMarket]
	var sawToolResult bool
	for _, m := range msgs {
		if m.Role == model.RoleTool && m.ToolCallID == "c1" {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Error("message log missing the tool result")
	}
}

func TestLLMAnalystEnforcesToolUse(t *testing.T) {
	reg := tool.NewRegistry()
	if err := reg.Register(&tool.Func{
		ToolName: "get_indicators",
		Desc:     "indicator battery",
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return longReport("indicators"), nil
		},
	}, tool.AnalystMarket); err != nil {
		t.Fatal(err)
	}

	// First reply skips tools; the enforcement prompt triggers a tool
	// call; the final reply writes the report.
	mock := model.NewMock(
		model.ChatOut{Text: "Here is my ungrounded take."},
		model.ChatOut{ToolCalls: []model.ToolCall{{ID: "c1", Name: "get_indicators"}}},
		model.ChatOut{Text: "Grounded report."},
	)
	deps := Deps{
		QuickModel:  mock,
		Registry:    reg,
		Executor:    tool.NewExecutor(reg),
		LLMAnalysts: map[string]bool{AnalystMarket: true},
	}
	node := NewMarketAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL"})
	if res.Delta.MarketReport != "Grounded report." {
		t.Errorf("report = %q", res.Delta.MarketReport)
	}
	if res.Delta.AnalystStatus[AnalystMarket] != StatusCompleted {
		t.Errorf("status = %q", res.Delta.AnalystStatus[AnalystMarket])
	}
	if mock.CallCount() != 3 {
		t.Errorf("model calls = %d, want 3", mock.CallCount())
	}
}

func TestLLMAnalystNoToolsAtAllIsWarning(t *testing.T) {
	reg := tool.NewRegistry()
	mock := model.NewMock(
		model.ChatOut{Text: "Ungrounded take."},
		model.ChatOut{Text: "Still ungrounded."},
	)
	deps := Deps{
		QuickModel:  mock,
		Registry:    reg,
		Executor:    tool.NewExecutor(reg),
		LLMAnalysts: map[string]bool{AnalystMarket: true},
	}
	node := NewMarketAnalyst(deps)

	res := node.Run(context.Background(), Blackboard{CompanyOfInterest: "AAPL"})
	if res.Delta.AnalystStatus[AnalystMarket] != StatusWarning {
		t.Errorf("status = %q, want warning", res.Delta.AnalystStatus[AnalystMarket])
	}
	if res.Delta.MarketReport != "Still ungrounded." {
		t.Errorf("report = %q", res.Delta.MarketReport)
	}
}
