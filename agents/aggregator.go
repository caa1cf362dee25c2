package agents

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/tradingagents-go/graph"
	"github.com/dshills/tradingagents-go/graph/tool"
)

// minValidReportLen is the shortest report still counted as substantive.
const minValidReportLen = 50

// validReport reports whether an analyst report is substantive: long
// enough and free of the known failure phrases.
func validReport(report string) bool {
	return len(report) > minValidReportLen && !tool.IsLowQuality(report)
}

// NewAggregator classifies the four reports, grades the parallel phase,
// and routes: complete failure skips research and risk entirely and
// goes to the conservative hold path.
func NewAggregator(deps Deps) graph.Node[Blackboard] {
	deps = deps.normalized()
	return graph.NodeFunc[Blackboard](func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		valid := 0
		var empty []string
		for _, analyst := range Analysts {
			if validReport(b.Report(analyst)) {
				valid++
			} else {
				empty = append(empty, analyst)
			}
		}

		delta := Blackboard{
			ParallelEndTime: time.Now().UTC(),
			EmptyReports:    empty,
		}
		if empty == nil {
			delta.EmptyReports = []string{}
		}

		if !b.ParallelStartTime.IsZero() {
			delta.TotalParallelTime = time.Since(b.ParallelStartTime).Seconds()
		}
		var sum, max float64
		for _, t := range b.ExecutionTime {
			sum += t
			if t > max {
				max = t
			}
		}
		if max > 0 {
			delta.SpeedupFactor = sum / max
		}

		switch {
		case valid >= 3:
			delta.AggregationStatus = AggSuccess
		case valid == 2:
			delta.AggregationStatus = AggPartialSuccess
		case valid == 1:
			delta.AggregationStatus = AggMinimalSuccess
		default:
			delta.AggregationStatus = AggCompleteFailure
		}
		if valid < 2 {
			delta.LowQualityReports = true
		}

		// Seed the debate settings when the intake did not.
		if b.ResearchDebate.MaxRounds == 0 {
			delta.ResearchDebate = ResearchDebate{MaxRounds: deps.MaxDebateRounds}
		}

		if delta.AggregationStatus == AggCompleteFailure {
			deps.Log.Warn("all analyst reports failed, taking conservative path",
				zap.Strings("failed", empty))
			return graph.NodeResult[Blackboard]{Delta: delta, Route: graph.Goto("conservative_hold")}
		}

		delta.AggregationReady = true
		return graph.NodeResult[Blackboard]{Delta: delta, Route: graph.Goto("debate_controller")}
	})
}

// NewConservativeHold writes the HOLD decision taken when no analyst
// produced usable data. It terminates the graph.
func NewConservativeHold() graph.Node[Blackboard] {
	return graph.NodeFunc[Blackboard](func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		decision := fmt.Sprintf(
			"No analyst produced a usable report for %s on %s; every data source failed or returned low-quality content. "+
				"Without market, news, sentiment, or fundamentals evidence there is no basis for a position change. "+
				"FINAL DECISION: HOLD",
			b.CompanyOfInterest, b.TradeDate)
		return graph.NodeResult[Blackboard]{
			Delta: Blackboard{
				FinalTradeDecision:   decision,
				TraderInvestmentPlan: "Hold current position; re-run analysis when data sources recover.",
			},
			Route: graph.Stop(),
		}
	})
}
