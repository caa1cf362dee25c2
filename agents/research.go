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

// NewDebateController opens a research round and fans out to the bull
// and bear researchers. The round counter plus the engine step cap
// guarantee termination.
func NewDebateController(deps Deps) graph.Node[Blackboard] {
	deps = deps.normalized()
	return graph.NodeFunc[Blackboard](func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		round := b.ResearchDebate.CurrentRound + 1
		deps.Log.Debug("research round", zap.Int("round", round), zap.String("symbol", b.CompanyOfInterest))
		return graph.NodeResult[Blackboard]{
			Delta: Blackboard{
				ResearchDebate: ResearchDebate{
					CurrentRound: round,
					MaxRounds:    b.ResearchDebate.MaxRounds,
				},
			},
			Route: graph.FanOut("bull_researcher", "bear_researcher"),
		}
	})
}

// reportsDigest condenses the analyst reports for researcher prompts.
func reportsDigest(b Blackboard) string {
	var sb strings.Builder
	for _, section := range []struct{ label, body string }{
		{"MARKET", b.MarketReport},
		{"NEWS", b.NewsReport},
		{"SENTIMENT", b.SentimentReport},
		{"FUNDAMENTALS", b.FundamentalsReport},
	} {
		if section.body == "" {
			continue
		}
		fmt.Fprintf(&sb, "=== %s ===\n%s\n\n", section.label, section.body)
	}
	return sb.String()
}

func lessonsDigest(lessons []memory.Lesson) string {
	if len(lessons) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Lessons from past runs on this symbol:\n")
	for _, lesson := range lessons {
		fmt.Fprintf(&sb, "- [%s -> %s] %s\n", lesson.CreatedAt.Format("2006-01-02"), lesson.Decision, lesson.Takeaway)
	}
	return sb.String()
}

// researcher is the shared bull/bear implementation; only the stance
// differs.
func researcher(deps Deps, bull bool) graph.NodeFunc[Blackboard] {
	stance := "bear"
	persona := "You are the bear researcher. Argue against taking or keeping a long position: weak points in the data, downside catalysts, overvaluation, deteriorating momentum. Rebut the bull's latest points directly."
	if bull {
		stance = "bull"
		persona = "You are the bull researcher. Argue for a long position: strengths in the data, upside catalysts, favorable valuation or momentum. Rebut the bear's latest points directly."
	}

	return func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		lessons := deps.recallLessons(ctx, b.CompanyOfInterest, 5)
		opposing := b.InvestmentDebate.BearHistory
		if !bull {
			opposing = b.InvestmentDebate.BullHistory
		}

		var argument string
		if deps.DeepModel != nil {
			prompt := fmt.Sprintf("Round %d of the research debate on %s (%s).\n\n%s\n%s\nOpposing side so far:\n%s\n\nMake your strongest case in a few paragraphs.",
				b.ResearchDebate.CurrentRound, b.CompanyOfInterest, b.TradeDate,
				reportsDigest(b), lessonsDigest(lessons), opposing)
			out, err := deps.DeepModel.Chat(ctx, []model.Message{
				{Role: model.RoleSystem, Content: persona},
				{Role: model.RoleUser, Content: prompt},
			}, nil)
			if err != nil {
				deps.Log.Warn("researcher model call failed", zap.String("stance", stance), zap.Error(err))
			} else {
				deps.recordUsage(stance+"_researcher", deps.DeepModel, out.Usage)
				argument = out.Text
			}
		}
		if argument == "" {
			argument = deterministicArgument(b, bull)
		}

		// Transcript fields append on merge; the delta carries only this
		// round's entry.
		entry := fmt.Sprintf("[round %d, %s] %s", b.ResearchDebate.CurrentRound, stance, argument)
		delta := Blackboard{
			InvestmentDebate: InvestmentDebate{
				History:         entry,
				CurrentResponse: argument,
				Count:           b.InvestmentDebate.Count + 1,
			},
		}
		if bull {
			delta.InvestmentDebate.BullHistory = entry
		} else {
			delta.InvestmentDebate.BearHistory = entry
		}
		return graph.NodeResult[Blackboard]{Delta: delta, Route: graph.Stop()}
	}
}

// deterministicArgument builds a stance-colored summary when no model
// is configured, keyed off the indicator read lines in the reports.
func deterministicArgument(b Blackboard, bull bool) string {
	if bull {
		return fmt.Sprintf("The collected data for %s supports accumulation: the market report shows the prevailing trend, news flow contains no disqualifying events, and fundamentals coverage is intact. Absent contrary evidence the bull case stands on the data as gathered.", b.CompanyOfInterest)
	}
	return fmt.Sprintf("Caution is warranted on %s: parts of the data set are incomplete or mixed, and nothing in the reports rules out downside. Until the signals align, the bear case is that the margin of safety is insufficient.", b.CompanyOfInterest)
}

// NewBullResearcher argues the long side of the debate.
func NewBullResearcher(deps Deps) graph.Node[Blackboard] {
	return researcher(deps.normalized(), true)
}

// NewBearResearcher argues the short side of the debate.
func NewBearResearcher(deps Deps) graph.Node[Blackboard] {
	return researcher(deps.normalized(), false)
}

// NewResearchManager judges each round: loop back while rounds remain
// and no consensus, otherwise synthesize the investment plan and hand
// off to the risk manager.
func NewResearchManager(deps Deps) graph.Node[Blackboard] {
	deps = deps.normalized()
	return graph.NodeFunc[Blackboard](func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		round := b.ResearchDebate.CurrentRound
		maxRounds := b.ResearchDebate.MaxRounds
		if maxRounds == 0 {
			maxRounds = deps.MaxDebateRounds
		}

		consensus, verdict := judgeDebate(ctx, deps, b)
		history := append(append([]string(nil), b.ResearchDebate.DebateHistory...),
			fmt.Sprintf("round %d: %s", round, verdictLabel(consensus)))

		if !consensus && round < maxRounds {
			return graph.NodeResult[Blackboard]{
				Delta: Blackboard{
					ContinueDebate: true,
					ResearchDebate: ResearchDebate{
						CurrentRound:  round,
						MaxRounds:     maxRounds,
						DebateHistory: history,
					},
				},
				Route: graph.Goto("debate_controller"),
			}
		}

		plan := verdict
		if plan == "" {
			plan = deterministicPlan(b)
		}
		return graph.NodeResult[Blackboard]{
			Delta: Blackboard{
				InvestmentPlan:     plan,
				RiskAnalysisNeeded: true,
				InvestmentDebate: InvestmentDebate{
					JudgeDecision: plan,
					Count:         b.InvestmentDebate.Count,
				},
				ResearchDebate: ResearchDebate{
					CurrentRound:     round,
					MaxRounds:        maxRounds,
					DebateHistory:    history,
					ConsensusReached: true,
				},
			},
			Route: graph.Goto("risk_manager"),
		}
	})
}

func verdictLabel(consensus bool) string {
	if consensus {
		return "consensus"
	}
	return "continue"
}

// judgeDebate returns whether the debate has converged and, when it
// has, the synthesized plan. Without a model the debate runs its full
// round budget and converges deterministically.
func judgeDebate(ctx context.Context, deps Deps, b Blackboard) (bool, string) {
	if deps.DeepModel == nil {
		return b.ResearchDebate.CurrentRound >= b.ResearchDebate.MaxRounds, ""
	}

	prompt := fmt.Sprintf("You are the research manager judging a bull/bear debate on %s.\n\nDebate so far:\n%s\n\nIf the debate needs another round, reply with exactly CONTINUE. Otherwise write the investment plan: the winning thesis, position direction, and key risks.",
		b.CompanyOfInterest, b.InvestmentDebate.History)
	out, err := deps.DeepModel.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: "You judge investment debates decisively."},
		{Role: model.RoleUser, Content: prompt},
	}, nil)
	if err != nil {
		deps.Log.Warn("research manager model call failed", zap.Error(err))
		return b.ResearchDebate.CurrentRound >= b.ResearchDebate.MaxRounds, ""
	}
	deps.recordUsage("research_manager", deps.DeepModel, out.Usage)

	text := strings.TrimSpace(out.Text)
	if strings.EqualFold(text, "CONTINUE") {
		return false, ""
	}
	return true, text
}

// deterministicPlan summarizes both sides when no model is configured.
func deterministicPlan(b Blackboard) string {
	return fmt.Sprintf("Investment plan for %s (%s), synthesized after %d debate rounds.\n\nBull case:\n%s\n\nBear case:\n%s\n\nResolution: weigh the stronger evidence set and size the position conservatively pending the risk review.",
		b.CompanyOfInterest, b.TradeDate, b.ResearchDebate.CurrentRound,
		b.InvestmentDebate.BullHistory, b.InvestmentDebate.BearHistory)
}
