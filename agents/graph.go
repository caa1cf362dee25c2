package agents

import (
	"time"

	"github.com/dshills/tradingagents-go/graph"
	"github.com/dshills/tradingagents-go/graph/emit"
)

// Engine wall-clock defaults. The analyst phase self-budgets via
// Deps.AnalystBudget; these are the outer backstops.
const (
	defaultMaxSteps    = 200
	defaultRunBudget   = 120 * time.Second
	defaultCancelGrace = 5 * time.Second
)

// BuildGraph assembles the full analysis workflow on the engine:
//
//	intake -> dispatch =(fan-out)=> four analysts -> aggregate
//	aggregate -> debate_controller =(fan-out)=> bull/bear -> research_manager
//	research_manager -> (loop | risk_manager)
//	risk_manager -> risk_orchestrator =(fan-out)=> risky/safe/neutral -> risk_aggregator
//	risk_aggregator -> risk_manager -> trader -> END
//
// Fan-out parents continue through edges after the join; every other
// transition is an explicit route from inside the node.
func BuildGraph(deps Deps, emitter emit.Emitter, opts ...graph.Option) (*graph.Engine[Blackboard], error) {
	deps = deps.normalized()

	options := []graph.Option{
		graph.WithMaxSteps(defaultMaxSteps),
		graph.WithRunWallClockBudget(defaultRunBudget),
		graph.WithCancelGrace(defaultCancelGrace),
		graph.WithDefaultNodeTimeout(deps.AnalystBudget + 15*time.Second),
	}
	options = append(options, opts...)

	eng := graph.New(Reduce, emitter, options...)

	nodes := map[string]graph.Node[Blackboard]{
		"intake":               NewIntake(deps),
		"dispatch":             NewDispatcher(),
		"market_analyst":       NewMarketAnalyst(deps),
		"news_analyst":         NewNewsAnalyst(deps),
		"social_analyst":       NewSocialAnalyst(deps),
		"fundamentals_analyst": NewFundamentalsAnalyst(deps),
		"aggregate":            NewAggregator(deps),
		"conservative_hold":    NewConservativeHold(),
		"debate_controller":    NewDebateController(deps),
		"bull_researcher":      NewBullResearcher(deps),
		"bear_researcher":      NewBearResearcher(deps),
		"research_manager":     NewResearchManager(deps),
		"risk_manager":         NewRiskManager(deps),
		"risk_orchestrator":    NewRiskOrchestrator(),
		"risky_debator":        NewRiskyDebator(deps),
		"safe_debator":         NewSafeDebator(deps),
		"neutral_debator":      NewNeutralDebator(deps),
		"risk_aggregator":      NewRiskAggregator(),
		"trader":               NewTrader(deps),
	}
	for id, node := range nodes {
		if err := eng.Add(id, node); err != nil {
			return nil, err
		}
	}

	if err := eng.StartAt("intake"); err != nil {
		return nil, err
	}

	// Join continuations for the three fan-out parents.
	if err := eng.Connect("dispatch", "aggregate", nil); err != nil {
		return nil, err
	}
	if err := eng.Connect("debate_controller", "research_manager", nil); err != nil {
		return nil, err
	}
	if err := eng.Connect("risk_orchestrator", "risk_aggregator", nil); err != nil {
		return nil, err
	}

	return eng, nil
}
