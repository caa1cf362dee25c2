package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/tradingagents-go/collect"
	"github.com/dshills/tradingagents-go/graph"
	"github.com/dshills/tradingagents-go/graph/model"
)

// analystOutcome is what one analyst produced within its budget.
type analystOutcome struct {
	report    string
	toolCalls int
	messages  []model.Message
	warning   bool
}

// analystNode wraps an analyst implementation in the shared harness:
// per-analyst budget, timing, status and error bookkeeping. Failures
// become report content and an AnalystErrors entry, never a node error,
// so one dead upstream cannot sink the run.
type analystNode struct {
	key  string
	deps Deps
	run  func(ctx context.Context, b Blackboard) (analystOutcome, error)
}

func (a *analystNode) Run(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
	budgetCtx, cancel := context.WithTimeout(ctx, a.deps.AnalystBudget)
	defer cancel()

	start := time.Now()
	outcome, err := a.run(budgetCtx, b)
	elapsed := time.Since(start).Seconds()

	delta := Blackboard{
		AnalystStatus: map[string]string{a.key: StatusCompleted},
		ExecutionTime: map[string]float64{a.key: elapsed},
		ToolCalls:     map[string]int{a.key: outcome.toolCalls},
	}
	if len(outcome.messages) > 0 {
		delta.Messages = map[string][]model.Message{a.key: outcome.messages}
	}

	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		// Budget exceeded, not a run-level cancellation.
		delta.AnalystStatus[a.key] = StatusWarning
		delta.AnalystErrors = map[string]string{a.key: "timeout after " + a.deps.AnalystBudget.String()}
		outcome.report = fmt.Sprintf("Error: %s analysis timed out after %s.", a.key, a.deps.AnalystBudget)
		a.deps.Log.Warn("analyst budget exceeded", zap.String("analyst", a.key))
	case err != nil:
		delta.AnalystStatus[a.key] = StatusError
		delta.AnalystErrors = map[string]string{a.key: err.Error()}
		outcome.report = fmt.Sprintf("Error fetching %s data: %s", a.key, err.Error())
		a.deps.Log.Warn("analyst failed", zap.String("analyst", a.key), zap.Error(err))
	case outcome.warning:
		delta.AnalystStatus[a.key] = StatusWarning
	}

	setReport(&delta, a.key, outcome.report)
	return graph.NodeResult[Blackboard]{Delta: delta, Route: graph.Stop()}
}

func setReport(delta *Blackboard, analyst, report string) {
	switch analyst {
	case AnalystMarket:
		delta.MarketReport = report
	case AnalystNews:
		delta.NewsReport = report
	case AnalystSocial:
		delta.SentimentReport = report
	case AnalystFundamentals:
		delta.FundamentalsReport = report
	}
}

// NewMarketAnalyst analyzes price action: direct mode collects the
// indicator battery; LLM mode reasons over market tools.
func NewMarketAnalyst(deps Deps) graph.Node[Blackboard] {
	deps = deps.normalized()
	node := &analystNode{key: AnalystMarket, deps: deps}
	if deps.LLMAnalysts[AnalystMarket] {
		node.run = func(ctx context.Context, b Blackboard) (analystOutcome, error) {
			return runLLMAnalyst(ctx, deps, AnalystMarket, b,
				"You are a market technical analyst. Use your tools to pull price and indicator data, then write a technical report with concrete levels and a trend read.")
		}
		return node
	}
	node.run = func(ctx context.Context, b Blackboard) (analystOutcome, error) {
		if deps.Technical == nil {
			return analystOutcome{}, errors.New("technical collector not configured")
		}
		rec, err := deps.Technical.Collect(ctx, b.CompanyOfInterest, b.TradeDate, 120)
		if err != nil {
			return analystOutcome{}, err
		}
		return analystOutcome{report: formatMarketReport(rec)}, nil
	}
	return node
}

// NewFundamentalsAnalyst produces the fundamentals report; crypto
// symbols take the quote path instead of the statement snapshot.
func NewFundamentalsAnalyst(deps Deps) graph.Node[Blackboard] {
	deps = deps.normalized()
	node := &analystNode{key: AnalystFundamentals, deps: deps}
	if deps.LLMAnalysts[AnalystFundamentals] {
		node.run = func(ctx context.Context, b Blackboard) (analystOutcome, error) {
			return runLLMAnalyst(ctx, deps, AnalystFundamentals, b,
				"You are a fundamentals analyst. Use your tools to pull financials, analyst coverage, and price targets, then assess valuation and balance-sheet health.")
		}
		return node
	}
	node.run = func(ctx context.Context, b Blackboard) (analystOutcome, error) {
		symbol := b.CompanyOfInterest
		if collect.IsCrypto(symbol) {
			if deps.CryptoQuote == nil {
				return analystOutcome{}, errors.New("crypto quote fetcher not configured")
			}
			quote, err := deps.CryptoQuote(ctx, symbol)
			if err != nil {
				return analystOutcome{}, err
			}
			return analystOutcome{report: formatCryptoReport(symbol, quote)}, nil
		}
		if deps.Fundamentals == nil {
			return analystOutcome{}, errors.New("fundamentals collector not configured")
		}
		rec, err := deps.Fundamentals.Collect(ctx, symbol, b.TradeDate)
		if err != nil {
			return analystOutcome{}, err
		}
		return analystOutcome{report: formatFundamentalsReport(rec)}, nil
	}
	return node
}

// NewNewsAnalyst merges company news from the market-data upstream with
// search-engine news.
func NewNewsAnalyst(deps Deps) graph.Node[Blackboard] {
	deps = deps.normalized()
	node := &analystNode{key: AnalystNews, deps: deps}
	if deps.LLMAnalysts[AnalystNews] {
		node.run = func(ctx context.Context, b Blackboard) (analystOutcome, error) {
			return runLLMAnalyst(ctx, deps, AnalystNews, b,
				"You are a news analyst. Use your tools to gather recent company and macro news, then summarize the stories most likely to move the stock.")
		}
		return node
	}
	node.run = func(ctx context.Context, b Blackboard) (analystOutcome, error) {
		symbol := b.CompanyOfInterest
		var company, searched []collect.NewsItem

		g, gctx := errgroup.WithContext(ctx)
		if deps.News != nil {
			g.Go(func() error {
				items, err := deps.News.CompanyNews(gctx, symbol, 10)
				if err != nil {
					deps.Log.Warn("company news fetch failed", zap.String("symbol", symbol), zap.Error(err))
					return nil
				}
				company = items
				return nil
			})
		}
		if deps.Search != nil {
			g.Go(func() error {
				items, err := deps.Search.News(gctx, symbol+" stock news", 10)
				if err != nil {
					deps.Log.Warn("news search failed", zap.String("symbol", symbol), zap.Error(err))
					return nil
				}
				searched = items
				return nil
			})
		}
		_ = g.Wait()

		items := append(company, searched...)
		if len(items) == 0 {
			return analystOutcome{}, errors.New("no news available from any source")
		}
		return analystOutcome{report: formatNewsReport(symbol, items)}, nil
	}
	return node
}

// NewSocialAnalyst always fetches the three social sources itself,
// concurrently, then hands the normalized posts to the model for
// synthesis. Without a model it formats deterministically. Fetching is
// never delegated to the LLM.
func NewSocialAnalyst(deps Deps) graph.Node[Blackboard] {
	deps = deps.normalized()
	node := &analystNode{key: AnalystSocial, deps: deps}
	node.run = func(ctx context.Context, b Blackboard) (analystOutcome, error) {
		symbol := b.CompanyOfInterest
		var reddit, twitter, stocktwits []collect.SocialPost

		g, gctx := errgroup.WithContext(ctx)
		if deps.Reddit != nil {
			g.Go(func() error {
				posts, err := deps.Reddit.Search(gctx, symbol, 15)
				if err != nil {
					deps.Log.Warn("reddit fetch failed", zap.String("symbol", symbol), zap.Error(err))
					return nil
				}
				reddit = posts
				return nil
			})
		}
		if deps.Twitter != nil {
			g.Go(func() error {
				posts, err := deps.Twitter(gctx, symbol, 15)
				if err != nil {
					deps.Log.Warn("twitter fetch failed", zap.String("symbol", symbol), zap.Error(err))
					return nil
				}
				twitter = posts
				return nil
			})
		}
		if deps.StockTwits != nil {
			g.Go(func() error {
				posts, err := deps.StockTwits.SymbolStream(gctx, symbol, 15)
				if err != nil {
					deps.Log.Warn("stocktwits fetch failed", zap.String("symbol", symbol), zap.Error(err))
					return nil
				}
				stocktwits = posts
				return nil
			})
		}
		_ = g.Wait()

		posts := append(append(reddit, twitter...), stocktwits...)
		base := formatSocialReport(symbol, posts)
		if len(posts) == 0 {
			// Zero posts is thin coverage, not a failure, but the report
			// must not count as substantive downstream.
			base += "\nNo data available from social sources in this window.\n"
			return analystOutcome{report: base, warning: true}, nil
		}
		if deps.QuickModel == nil {
			return analystOutcome{report: base}, nil
		}

		out, err := deps.QuickModel.Chat(ctx, []model.Message{
			{Role: model.RoleSystem, Content: "You are a social sentiment analyst. Synthesize the provided social media data into a sentiment report: overall mood, notable themes, and whether retail chatter supports or contradicts the price action."},
			{Role: model.RoleUser, Content: fmt.Sprintf("Symbol: %s\nDate: %s\n\n%s", symbol, b.TradeDate, base)},
		}, nil)
		if err != nil {
			deps.Log.Warn("social synthesis failed, using deterministic report", zap.Error(err))
			return analystOutcome{report: base}, nil
		}
		deps.recordUsage("social_analyst", deps.QuickModel, out.Usage)
		return analystOutcome{report: out.Text}, nil
	}
	return node
}

// maxToolRounds bounds the LLM tool loop per analyst.
const maxToolRounds = 3

// runLLMAnalyst drives the tool-use conversation for one analyst: bind
// the analyst's tools, demand tool use (one enforcement retry), execute
// requested calls through the executor, then synthesize the report.
func runLLMAnalyst(ctx context.Context, deps Deps, kind string, b Blackboard, persona string) (analystOutcome, error) {
	if deps.QuickModel == nil {
		return analystOutcome{}, errors.New("no chat model configured for LLM mode")
	}
	if deps.Registry == nil || deps.Executor == nil {
		return analystOutcome{}, errors.New("tool registry not configured for LLM mode")
	}

	specs := deps.Registry.Specs(kind)
	messages := []model.Message{
		{ID: uuid.NewString(), Role: model.RoleSystem, Content: persona + " You must call at least one tool before writing your report."},
		{ID: uuid.NewString(), Role: model.RoleUser, Content: fmt.Sprintf("Analyze %s for trade date %s.", b.CompanyOfInterest, b.TradeDate)},
	}

	outcome := analystOutcome{}
	enforced := false
	for round := 0; round < maxToolRounds; round++ {
		out, err := deps.QuickModel.Chat(ctx, messages, specs)
		if err != nil {
			return outcome, err
		}
		deps.recordUsage(kind+"_analyst", deps.QuickModel, out.Usage)

		if len(out.ToolCalls) == 0 {
			if round == 0 && !enforced {
				// One enforcement prompt before giving up on tools.
				enforced = true
				messages = append(messages,
					model.Message{ID: uuid.NewString(), Role: model.RoleAssistant, Content: out.Text},
					model.Message{ID: uuid.NewString(), Role: model.RoleUser, Content: "You must use your tools to ground the analysis in current data before answering. Call the relevant tools now."})
				continue
			}
			outcome.report = out.Text
			outcome.messages = messages
			if outcome.toolCalls == 0 {
				outcome.warning = true
				if strings.TrimSpace(out.Text) == "" {
					outcome.report = fmt.Sprintf("Warning: %s analyst produced no grounded analysis for %s.", kind, b.CompanyOfInterest)
				}
			}
			return outcome, nil
		}

		messages = append(messages, model.Message{
			ID:        uuid.NewString(),
			Role:      model.RoleAssistant,
			Content:   out.Text,
			ToolCalls: out.ToolCalls,
		})
		results := deps.Executor.Execute(ctx, out.ToolCalls)
		outcome.toolCalls += len(out.ToolCalls)
		for _, res := range results {
			messages = append(messages, model.Message{
				ID:         uuid.NewString(),
				Role:       model.RoleTool,
				Content:    res.Content,
				ToolCallID: res.ToolCallID,
			})
		}
	}

	// Tool rounds exhausted: force a final synthesis without tools.
	messages = append(messages, model.Message{ID: uuid.NewString(), Role: model.RoleUser,
		Content: "Write your final report now using the data gathered above."})
	out, err := deps.QuickModel.Chat(ctx, messages, nil)
	if err != nil {
		return outcome, err
	}
	deps.recordUsage(kind+"_analyst", deps.QuickModel, out.Usage)
	outcome.report = out.Text
	outcome.messages = messages
	return outcome, nil
}
