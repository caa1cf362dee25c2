package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/tradingagents-go/graph"
	"github.com/dshills/tradingagents-go/graph/model"
)

// NewRiskManager gates and judges the risk phase. While the debate has
// rounds left it routes to the orchestrator for another three-way pass;
// once the round budget is spent it composes the final trade decision
// from the plan, the accumulated debate history, and recalled lessons.
func NewRiskManager(deps Deps) graph.Node[Blackboard] {
	deps = deps.normalized()
	return graph.NodeFunc[Blackboard](func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		if b.RiskAnalysisNeeded && b.RiskDebate.Count < deps.MaxRiskRounds {
			return graph.NodeResult[Blackboard]{Route: graph.Goto("risk_orchestrator")}
		}

		decision := composeFinalDecision(ctx, deps, b)
		return graph.NodeResult[Blackboard]{
			Delta: Blackboard{
				FinalTradeDecision: decision,
				RiskDebate: RiskDebate{
					JudgeDecision: decision,
					Count:         b.RiskDebate.Count,
				},
			},
			Route: graph.Goto("trader"),
		}
	})
}

// composeFinalDecision produces the risk manager's judgement, always
// ending with the FINAL DECISION marker.
func composeFinalDecision(ctx context.Context, deps Deps, b Blackboard) string {
	lessons := deps.recallLessons(ctx, b.CompanyOfInterest, 5)

	if deps.DeepModel != nil {
		prompt := fmt.Sprintf("You are the risk manager deciding the trade on %s for %s.\n\nInvestment plan:\n%s\n\nRisk debate:\n%s\n\n%s\nWeigh the plan against the risk perspectives and decide. Your answer must end with exactly one line: FINAL DECISION: BUY or FINAL DECISION: SELL or FINAL DECISION: HOLD.",
			b.CompanyOfInterest, b.TradeDate, b.InvestmentPlan, b.RiskDebate.History, lessonsDigest(lessons))
		out, err := deps.DeepModel.Chat(ctx, []model.Message{
			{Role: model.RoleSystem, Content: "You are a disciplined risk manager. You never leave a decision ambiguous."},
			{Role: model.RoleUser, Content: prompt},
		}, nil)
		if err != nil {
			deps.Log.Warn("risk manager model call failed", zap.Error(err))
		} else if text := strings.TrimSpace(out.Text); text != "" {
			deps.recordUsage("risk_manager", deps.DeepModel, out.Usage)
			if !strings.Contains(strings.ToUpper(text), "FINAL DECISION:") {
				text += "\n\nFINAL DECISION: HOLD"
			}
			return text
		}
	}

	return fmt.Sprintf("Risk review for %s on %s.\n\nPlan under review:\n%s\n\nDebate summary:\n%s\n\nWith no model configured to adjudicate the perspectives, the conservative default applies. FINAL DECISION: HOLD",
		b.CompanyOfInterest, b.TradeDate, b.InvestmentPlan, b.RiskDebate.History)
}

// NewRiskOrchestrator fans out to the three risk debators.
func NewRiskOrchestrator() graph.Node[Blackboard] {
	return graph.NodeFunc[Blackboard](func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		return graph.NodeResult[Blackboard]{
			Route: graph.FanOut("risky_debator", "safe_debator", "neutral_debator"),
		}
	})
}

// riskDebator argues one risk stance over the investment plan. Each
// stance writes its own response field, so the fan-out merge is
// collision-free.
func riskDebator(deps Deps, stance string) graph.NodeFunc[Blackboard] {
	personas := map[string]string{
		"risky":   "You advocate for the aggressive position: maximum justified exposure, leaning into the upside case.",
		"safe":    "You advocate for capital preservation: minimum exposure, hedges, and exit criteria.",
		"neutral": "You weigh both sides dispassionately and recommend the balanced position size.",
	}

	return func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		var response string
		if deps.DeepModel != nil {
			prompt := fmt.Sprintf("Investment plan for %s:\n%s\n\nGive your %s-risk perspective on executing this plan in a short paragraph.",
				b.CompanyOfInterest, b.InvestmentPlan, stance)
			if b.RiskDebate.History != "" {
				prompt += "\n\nDebate so far:\n" + b.RiskDebate.History + "\n\nRespond to the other perspectives where they conflict with yours."
			}
			out, err := deps.DeepModel.Chat(ctx, []model.Message{
				{Role: model.RoleSystem, Content: personas[stance]},
				{Role: model.RoleUser, Content: prompt},
			}, nil)
			if err != nil {
				deps.Log.Warn("risk debator model call failed", zap.String("stance", stance), zap.Error(err))
			} else {
				deps.recordUsage(stance+"_debator", deps.DeepModel, out.Usage)
				response = out.Text
			}
		}
		if response == "" {
			response = deterministicRiskView(b, stance)
		}

		delta := Blackboard{}
		switch stance {
		case "risky":
			delta.RiskDebate.RiskyResponse = response
		case "safe":
			delta.RiskDebate.SafeResponse = response
		case "neutral":
			delta.RiskDebate.NeutralResponse = response
		}
		return graph.NodeResult[Blackboard]{Delta: delta, Route: graph.Stop()}
	}
}

func deterministicRiskView(b Blackboard, stance string) string {
	switch stance {
	case "risky":
		return fmt.Sprintf("Aggressive view on %s: if the plan's thesis holds, underexposure is the real risk; take the full position while the data is fresh.", b.CompanyOfInterest)
	case "safe":
		return fmt.Sprintf("Conservative view on %s: data gaps and unmodeled tail risk argue for minimal exposure and predefined exits.", b.CompanyOfInterest)
	default:
		return fmt.Sprintf("Balanced view on %s: scale in at half size, add only on confirmation, and cap downside at the support level in the market report.", b.CompanyOfInterest)
	}
}

// NewRiskyDebator argues for the aggressive execution of the plan.
func NewRiskyDebator(deps Deps) graph.Node[Blackboard] {
	return riskDebator(deps.normalized(), "risky")
}

// NewSafeDebator argues for capital preservation.
func NewSafeDebator(deps Deps) graph.Node[Blackboard] {
	return riskDebator(deps.normalized(), "safe")
}

// NewNeutralDebator argues the balanced middle ground.
func NewNeutralDebator(deps Deps) graph.Node[Blackboard] {
	return riskDebator(deps.normalized(), "neutral")
}

// NewRiskAggregator concatenates the non-empty perspectives into one
// round block and returns control to the risk manager. The history
// field appends on merge, so rounds accumulate.
func NewRiskAggregator() graph.Node[Blackboard] {
	return graph.NodeFunc[Blackboard](func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		parts := []string{fmt.Sprintf("[risk round %d]", b.RiskDebate.Count+1)}
		for _, p := range []struct{ label, body string }{
			{"Risky analyst", b.RiskDebate.RiskyResponse},
			{"Safe analyst", b.RiskDebate.SafeResponse},
			{"Neutral analyst", b.RiskDebate.NeutralResponse},
		} {
			if strings.TrimSpace(p.body) != "" {
				parts = append(parts, p.label+": "+p.body)
			}
		}
		return graph.NodeResult[Blackboard]{
			Delta: Blackboard{
				RiskDebate: RiskDebate{
					History: strings.Join(parts, "\n\n"),
					Count:   b.RiskDebate.Count + 1,
				},
			},
			Route: graph.Goto("risk_manager"),
		}
	})
}
