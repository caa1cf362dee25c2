package agents

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/dshills/tradingagents-go/graph"
)

var symbolRe = regexp.MustCompile(`^[A-Z0-9.\-/]{1,12}$`)

// NewIntake validates the run request and seeds the debate settings.
// Invalid input fails the node; the server layer rejects empty tickers
// before a run is even created, so this guards programmatic callers.
func NewIntake(deps Deps) graph.Node[Blackboard] {
	deps = deps.normalized()
	return graph.NodeFunc[Blackboard](func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		if !symbolRe.MatchString(b.CompanyOfInterest) {
			return graph.NodeResult[Blackboard]{
				Err: fmt.Errorf("invalid ticker %q", b.CompanyOfInterest),
			}
		}
		statuses := make(map[string]string, len(Analysts))
		for _, analyst := range Analysts {
			statuses[analyst] = StatusPending
		}
		delta := Blackboard{
			ResearchDebate: ResearchDebate{MaxRounds: deps.MaxDebateRounds},
			AnalystStatus:  statuses,
		}
		if b.TradeDate == "" {
			delta.TradeDate = time.Now().UTC().Format("2006-01-02")
		}
		return graph.NodeResult[Blackboard]{Delta: delta, Route: graph.Goto("dispatch")}
	})
}

// NewDispatcher marks the parallel phase start, moves every analyst
// from pending to running, and fans out to the four analysts.
func NewDispatcher() graph.Node[Blackboard] {
	return graph.NodeFunc[Blackboard](func(ctx context.Context, b Blackboard) graph.NodeResult[Blackboard] {
		statuses := make(map[string]string, len(Analysts))
		for _, analyst := range Analysts {
			statuses[analyst] = StatusRunning
		}
		targets := make([]string, len(Analysts))
		for i, analyst := range Analysts {
			targets[i] = analyst + "_analyst"
		}
		return graph.NodeResult[Blackboard]{
			Delta: Blackboard{
				ParallelStartTime: time.Now().UTC(),
				AnalystStatus:     statuses,
				AggregationStatus: AggPending,
			},
			Route: graph.FanOut(targets...),
		}
	})
}
