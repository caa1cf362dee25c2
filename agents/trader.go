package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/tradingagents-go/graph"
	"github.com/dshills/tradingagents-go/graph/model"
	"github.com/dshills/tradingagents-go/memory"
)

// NewTrader turns the investment plan and the risk judgement into the
// actionable trade. It writes the final decision and the trader's
// execution plan, records the run as a lesson, and terminates the
// graph.
func NewTrader(deps Deps) graph.Node[Blackboard] {
	deps = deps.normalized()
	return graph.NodeFunc[Blackboard](func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		decision, plan := tradeDecision(ctx, deps, b)
		signal := ExtractSignal(decision)

		if deps.Memory != nil {
			lesson := memory.Lesson{
				Symbol:    b.CompanyOfInterest,
				Situation: fmt.Sprintf("Trade date %s, aggregation %s, %d debate rounds.", b.TradeDate, b.AggregationStatus, b.ResearchDebate.CurrentRound),
				Takeaway:  summarize(plan, 300),
				Decision:  signal,
			}
			if err := deps.Memory.Put(ctx, lesson); err != nil {
				deps.Log.Warn("lesson write failed", zap.String("symbol", b.CompanyOfInterest), zap.Error(err))
			}
		}

		deps.Log.Info("trade decision",
			zap.String("symbol", b.CompanyOfInterest),
			zap.String("signal", signal))

		return graph.NodeResult[Blackboard]{
			Delta: Blackboard{
				FinalTradeDecision:   decision,
				TraderInvestmentPlan: plan,
			},
			Route: graph.Stop(),
		}
	})
}

// tradeDecision returns the final decision text and the execution plan.
// With a model it synthesizes both in one call; otherwise the risk
// manager's judgement stands and the plan is rule-based.
func tradeDecision(ctx context.Context, deps Deps, b Blackboard) (decision, plan string) {
	decision = b.FinalTradeDecision
	if decision == "" {
		decision = b.RiskDebate.JudgeDecision
	}

	if deps.DeepModel != nil {
		prompt := fmt.Sprintf("You are the trader executing on %s for %s.\n\nInvestment plan:\n%s\n\nRisk manager's judgement:\n%s\n\nWrite the execution plan: entry approach, position size rationale, and exit criteria. Then restate the decision, ending with exactly one line: FINAL DECISION: BUY or FINAL DECISION: SELL or FINAL DECISION: HOLD.",
			b.CompanyOfInterest, b.TradeDate, b.InvestmentPlan, b.RiskDebate.JudgeDecision)
		out, err := deps.DeepModel.Chat(ctx, []model.Message{
			{Role: model.RoleSystem, Content: "You are an execution trader. Plans are concrete and decisions unambiguous."},
			{Role: model.RoleUser, Content: prompt},
		}, nil)
		if err != nil {
			deps.Log.Warn("trader model call failed", zap.Error(err))
		} else if text := strings.TrimSpace(out.Text); text != "" {
			deps.recordUsage("trader", deps.DeepModel, out.Usage)
			if !strings.Contains(strings.ToUpper(text), "FINAL DECISION:") {
				text = text + "\n\nFINAL DECISION: " + ExtractSignal(decision)
			}
			return text, text
		}
	}

	if decision == "" {
		decision = fmt.Sprintf("No upstream judgement was produced for %s on %s; defaulting to no action. FINAL DECISION: HOLD", b.CompanyOfInterest, b.TradeDate)
	}
	plan = deterministicTradePlan(b, ExtractSignal(decision))
	return decision, plan
}

// deterministicTradePlan maps the signal to a standing execution rule.
func deterministicTradePlan(b Blackboard, signal string) string {
	switch signal {
	case "BUY":
		return fmt.Sprintf("Accumulate %s: enter in thirds over the session, size per the risk judgement, stop below the support level in the market report.", b.CompanyOfInterest)
	case "SELL":
		return fmt.Sprintf("Reduce %s: exit in halves at market, re-evaluate only after the bear-case catalysts resolve.", b.CompanyOfInterest)
	default:
		return fmt.Sprintf("Hold %s: no position change; re-run the analysis when fresh data lands or a catalyst hits.", b.CompanyOfInterest)
	}
}

// summarize truncates text to max runes on a word boundary.
func summarize(text string, max int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if idx := strings.LastIndexByte(cut, ' '); idx > max/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
