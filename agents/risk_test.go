package agents

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/tradingagents-go/graph/model"
)

func TestRiskManagerFirstEntryRoutesToOrchestrator(t *testing.T) {
	node := NewRiskManager(Deps{})
	res := node.Run(context.Background(), Blackboard{
		CompanyOfInterest:  "AAPL",
		InvestmentPlan:     "buy the dip",
		RiskAnalysisNeeded: true,
	})

	if res.Route.To != "risk_orchestrator" {
		t.Errorf("route = %q, want risk_orchestrator", res.Route.To)
	}
	if res.Delta.FinalTradeDecision != "" {
		t.Error("no decision should be written before the debate")
	}
}

func TestRiskManagerSecondEntryJudges(t *testing.T) {
	node := NewRiskManager(Deps{})
	res := node.Run(context.Background(), Blackboard{
		CompanyOfInterest:  "AAPL",
		TradeDate:          "2025-06-02",
		InvestmentPlan:     "buy the dip",
		RiskAnalysisNeeded: true,
		RiskDebate:         RiskDebate{History: "Risky analyst: go big", Count: 1},
	})

	if res.Route.To != "trader" {
		t.Errorf("route = %q, want trader", res.Route.To)
	}
	decision := res.Delta.FinalTradeDecision
	if !strings.Contains(strings.ToUpper(decision), "FINAL DECISION:") {
		t.Errorf("decision missing marker: %q", decision)
	}
	if res.Delta.RiskDebate.JudgeDecision != decision {
		t.Error("judge decision should match the final decision")
	}
}

func TestRiskManagerModelDecisionGetsMarkerAppended(t *testing.T) {
	mock := model.NewMock(model.ChatOut{Text: "The aggressive case is sound but unproven."})
	node := NewRiskManager(Deps{DeepModel: mock})
	res := node.Run(context.Background(), Blackboard{
		CompanyOfInterest: "AAPL",
		InvestmentPlan:    "plan",
		RiskDebate:        RiskDebate{History: "debated", Count: 1},
	})

	if ExtractSignal(res.Delta.FinalTradeDecision) != "HOLD" {
		t.Errorf("decision = %q, want HOLD appended", res.Delta.FinalTradeDecision)
	}
}

func TestRiskManagerRunsConfiguredRounds(t *testing.T) {
	node := NewRiskManager(Deps{MaxRiskRounds: 2})

	res := node.Run(context.Background(), Blackboard{
		CompanyOfInterest:  "AAPL",
		InvestmentPlan:     "buy the dip",
		RiskAnalysisNeeded: true,
		RiskDebate:         RiskDebate{History: "[risk round 1]\n\nRisky analyst: go big", Count: 1},
	})
	if res.Route.To != "risk_orchestrator" {
		t.Errorf("route after round 1 = %q, want a second round", res.Route.To)
	}

	res = node.Run(context.Background(), Blackboard{
		CompanyOfInterest:  "AAPL",
		InvestmentPlan:     "buy the dip",
		RiskAnalysisNeeded: true,
		RiskDebate:         RiskDebate{History: "two rounds of debate", Count: 2},
	})
	if res.Route.To != "trader" {
		t.Errorf("route after round 2 = %q, want trader", res.Route.To)
	}
	if res.Delta.FinalTradeDecision == "" {
		t.Error("round budget spent, want a decision")
	}
}

func TestDebatorSecondRoundSeesHistory(t *testing.T) {
	mock := model.NewMock(model.ChatOut{Text: "The safe view underweights the momentum data."})
	node := NewRiskyDebator(Deps{DeepModel: mock})

	node.Run(context.Background(), Blackboard{
		CompanyOfInterest: "AAPL",
		InvestmentPlan:    "buy gradually",
		RiskDebate:        RiskDebate{History: "[risk round 1]\n\nSafe analyst: stay small", Count: 1},
	})

	msgs := mock.LastMessages()
	if len(msgs) == 0 {
		t.Fatal("model not called")
	}
	prompt := msgs[len(msgs)-1].Content
	if !strings.Contains(prompt, "Safe analyst: stay small") {
		t.Errorf("second-round prompt missing prior debate: %q", prompt)
	}
}

func TestRiskOrchestratorFansOut(t *testing.T) {
	node := NewRiskOrchestrator()
	res := node.Run(context.Background(), Blackboard{})

	want := []string{"risky_debator", "safe_debator", "neutral_debator"}
	if !reflect.DeepEqual(res.Route.Many, want) {
		t.Errorf("fan-out = %v, want %v", res.Route.Many, want)
	}
}

func TestDebatorsWriteDistinctFields(t *testing.T) {
	board := Blackboard{CompanyOfInterest: "AAPL", InvestmentPlan: "buy gradually"}

	risky := NewRiskyDebator(Deps{}).Run(context.Background(), board)
	safe := NewSafeDebator(Deps{}).Run(context.Background(), board)
	neutral := NewNeutralDebator(Deps{}).Run(context.Background(), board)

	if risky.Delta.RiskDebate.RiskyResponse == "" || risky.Delta.RiskDebate.SafeResponse != "" {
		t.Errorf("risky delta = %+v", risky.Delta.RiskDebate)
	}
	if safe.Delta.RiskDebate.SafeResponse == "" || safe.Delta.RiskDebate.RiskyResponse != "" {
		t.Errorf("safe delta = %+v", safe.Delta.RiskDebate)
	}
	if neutral.Delta.RiskDebate.NeutralResponse == "" {
		t.Errorf("neutral delta = %+v", neutral.Delta.RiskDebate)
	}
	for _, res := range []string{
		risky.Delta.RiskDebate.RiskyResponse,
		safe.Delta.RiskDebate.SafeResponse,
		neutral.Delta.RiskDebate.NeutralResponse,
	} {
		if !strings.Contains(res, "AAPL") {
			t.Errorf("perspective not tied to the symbol: %q", res)
		}
	}
}

func TestRiskAggregatorConcatenatesNonEmpty(t *testing.T) {
	node := NewRiskAggregator()
	res := node.Run(context.Background(), Blackboard{
		RiskDebate: RiskDebate{
			RiskyResponse:   "go big",
			NeutralResponse: "go half",
		},
	})

	if res.Route.To != "risk_manager" {
		t.Errorf("route = %q, want risk_manager", res.Route.To)
	}
	history := res.Delta.RiskDebate.History
	if !strings.Contains(history, "Risky analyst: go big") {
		t.Errorf("history missing risky view: %q", history)
	}
	if !strings.Contains(history, "Neutral analyst: go half") {
		t.Errorf("history missing neutral view: %q", history)
	}
	if strings.Contains(history, "Safe analyst") {
		t.Errorf("history includes the empty safe view: %q", history)
	}
	if res.Delta.RiskDebate.Count != 1 {
		t.Errorf("Count = %d, want 1", res.Delta.RiskDebate.Count)
	}
}
