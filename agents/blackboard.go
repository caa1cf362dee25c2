// Package agents implements the trading-analysis workflow: a blackboard
// state shared through the graph engine, four parallel analysts, report
// aggregation, bull/bear research debate, a risk debate, and a trader
// that issues the final BUY/SELL/HOLD decision.
package agents

import (
	"time"

	"github.com/dshills/tradingagents-go/graph/model"
)

// Analyst keys. They double as registry allow-list kinds and as keys in
// the per-analyst blackboard maps.
const (
	AnalystMarket       = "market"
	AnalystNews         = "news"
	AnalystSocial       = "social"
	AnalystFundamentals = "fundamentals"
)

// Analysts lists the analyst keys in dispatch order.
var Analysts = []string{AnalystMarket, AnalystNews, AnalystSocial, AnalystFundamentals}

// Per-analyst statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusWarning   = "warning"
	StatusError     = "error"
)

// Aggregation outcomes.
const (
	AggPending         = "pending"
	AggSuccess         = "success"
	AggPartialSuccess  = "partial_success"
	AggMinimalSuccess  = "minimal_success"
	AggCompleteFailure = "complete_failure"
)

// InvestmentDebate accumulates the bull/bear argument transcript.
type InvestmentDebate struct {
	BullHistory     string `json:"bull_history,omitempty"`
	BearHistory     string `json:"bear_history,omitempty"`
	History         string `json:"history,omitempty"`
	CurrentResponse string `json:"current_response,omitempty"`
	JudgeDecision   string `json:"judge_decision,omitempty"`
	Count           int    `json:"count"`
}

// ResearchDebate tracks round progress for the research loop.
type ResearchDebate struct {
	CurrentRound     int      `json:"current_round"`
	MaxRounds        int      `json:"max_rounds"`
	DebateHistory    []string `json:"debate_history,omitempty"`
	ConsensusReached bool     `json:"consensus_reached"`
}

// RiskDebate accumulates the risky/safe/neutral perspectives and the
// risk manager's judgement.
type RiskDebate struct {
	RiskyResponse   string `json:"risky_response,omitempty"`
	SafeResponse    string `json:"safe_response,omitempty"`
	NeutralResponse string `json:"neutral_response,omitempty"`
	History         string `json:"history,omitempty"`
	JudgeDecision   string `json:"judge_decision,omitempty"`
	Count           int    `json:"count"`
}

// Blackboard is the run's shared state. Nodes return sparse Blackboard
// deltas; Reduce merges them field-wise. The struct must stay
// JSON-serializable since the engine deep copies it per fan-out branch.
type Blackboard struct {
	CompanyOfInterest string `json:"company_of_interest"`
	TradeDate         string `json:"trade_date"`
	Step              int    `json:"step,omitempty"`

	MarketReport       string `json:"market_report,omitempty"`
	NewsReport         string `json:"news_report,omitempty"`
	SentimentReport    string `json:"sentiment_report,omitempty"`
	FundamentalsReport string `json:"fundamentals_report,omitempty"`

	AnalystStatus map[string]string          `json:"analyst_status,omitempty"`
	Messages      map[string][]model.Message `json:"messages,omitempty"`
	ToolCalls     map[string]int             `json:"tool_calls,omitempty"`
	ExecutionTime map[string]float64         `json:"execution_time,omitempty"`
	AnalystErrors map[string]string          `json:"analyst_errors,omitempty"`

	ParallelStartTime time.Time `json:"parallel_start_time,omitempty"`
	ParallelEndTime   time.Time `json:"parallel_end_time,omitempty"`
	SpeedupFactor     float64   `json:"speedup_factor,omitempty"`
	TotalParallelTime float64   `json:"total_parallel_time,omitempty"`

	AggregationStatus string   `json:"aggregation_status,omitempty"`
	AggregationReady  bool     `json:"aggregation_ready,omitempty"`
	LowQualityReports bool     `json:"low_quality_reports,omitempty"`
	EmptyReports      []string `json:"empty_reports,omitempty"`

	InvestmentDebate InvestmentDebate `json:"investment_debate,omitempty"`
	ResearchDebate   ResearchDebate   `json:"research_debate,omitempty"`
	RiskDebate       RiskDebate       `json:"risk_debate,omitempty"`

	InvestmentPlan       string `json:"investment_plan,omitempty"`
	TraderInvestmentPlan string `json:"trader_investment_plan,omitempty"`
	FinalTradeDecision   string `json:"final_trade_decision,omitempty"`

	ContinueDebate     bool `json:"continue_debate,omitempty"`
	RiskAnalysisNeeded bool `json:"risk_analysis_needed,omitempty"`
}

// Report returns the report text for the analyst key.
func (b Blackboard) Report(analyst string) string {
	switch analyst {
	case AnalystMarket:
		return b.MarketReport
	case AnalystNews:
		return b.NewsReport
	case AnalystSocial:
		return b.SentimentReport
	case AnalystFundamentals:
		return b.FundamentalsReport
	}
	return ""
}

// Reduce merges a node's delta into the previous blackboard. It is the
// reducer handed to the engine, so it also defines fan-out join
// semantics: scalars replace when the delta is non-zero, maps union with
// the delta winning collisions, message logs append with ID
// de-duplication, debate structs merge field-wise with counters taking
// the max, and flags are sticky once set.
func Reduce(prev, delta Blackboard) Blackboard {
	out := prev

	out.CompanyOfInterest = pickString(prev.CompanyOfInterest, delta.CompanyOfInterest)
	out.TradeDate = pickString(prev.TradeDate, delta.TradeDate)
	out.Step = maxInt(prev.Step, delta.Step)

	out.MarketReport = pickString(prev.MarketReport, delta.MarketReport)
	out.NewsReport = pickString(prev.NewsReport, delta.NewsReport)
	out.SentimentReport = pickString(prev.SentimentReport, delta.SentimentReport)
	out.FundamentalsReport = pickString(prev.FundamentalsReport, delta.FundamentalsReport)

	out.AnalystStatus = mergeStringMap(prev.AnalystStatus, delta.AnalystStatus)
	out.Messages = mergeMessages(prev.Messages, delta.Messages)
	out.ToolCalls = mergeIntMap(prev.ToolCalls, delta.ToolCalls)
	out.ExecutionTime = mergeFloatMap(prev.ExecutionTime, delta.ExecutionTime)
	out.AnalystErrors = mergeStringMap(prev.AnalystErrors, delta.AnalystErrors)

	out.ParallelStartTime = pickTime(prev.ParallelStartTime, delta.ParallelStartTime)
	out.ParallelEndTime = pickTime(prev.ParallelEndTime, delta.ParallelEndTime)
	out.SpeedupFactor = pickFloat(prev.SpeedupFactor, delta.SpeedupFactor)
	out.TotalParallelTime = pickFloat(prev.TotalParallelTime, delta.TotalParallelTime)

	out.AggregationStatus = pickString(prev.AggregationStatus, delta.AggregationStatus)
	out.AggregationReady = prev.AggregationReady || delta.AggregationReady
	out.LowQualityReports = prev.LowQualityReports || delta.LowQualityReports
	if delta.EmptyReports != nil {
		out.EmptyReports = delta.EmptyReports
	}

	out.InvestmentDebate = mergeInvestmentDebate(prev.InvestmentDebate, delta.InvestmentDebate)
	out.ResearchDebate = mergeResearchDebate(prev.ResearchDebate, delta.ResearchDebate)
	out.RiskDebate = mergeRiskDebate(prev.RiskDebate, delta.RiskDebate)

	out.InvestmentPlan = pickString(prev.InvestmentPlan, delta.InvestmentPlan)
	out.TraderInvestmentPlan = pickString(prev.TraderInvestmentPlan, delta.TraderInvestmentPlan)
	out.FinalTradeDecision = pickString(prev.FinalTradeDecision, delta.FinalTradeDecision)

	out.ContinueDebate = prev.ContinueDebate || delta.ContinueDebate
	out.RiskAnalysisNeeded = prev.RiskAnalysisNeeded || delta.RiskAnalysisNeeded

	return out
}

func pickString(prev, delta string) string {
	if delta != "" {
		return delta
	}
	return prev
}

func pickFloat(prev, delta float64) float64 {
	if delta != 0 {
		return delta
	}
	return prev
}

func pickTime(prev, delta time.Time) time.Time {
	if !delta.IsZero() {
		return delta
	}
	return prev
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func mergeStringMap(prev, delta map[string]string) map[string]string {
	if len(delta) == 0 {
		return prev
	}
	out := make(map[string]string, len(prev)+len(delta))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}

func mergeIntMap(prev, delta map[string]int) map[string]int {
	if len(delta) == 0 {
		return prev
	}
	out := make(map[string]int, len(prev)+len(delta))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}

func mergeFloatMap(prev, delta map[string]float64) map[string]float64 {
	if len(delta) == 0 {
		return prev
	}
	out := make(map[string]float64, len(prev)+len(delta))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}

// mergeMessages appends per analyst, preserving order and dropping
// delta messages whose ID already appears. Messages without an ID are
// always appended.
func mergeMessages(prev, delta map[string][]model.Message) map[string][]model.Message {
	if len(delta) == 0 {
		return prev
	}
	out := make(map[string][]model.Message, len(prev)+len(delta))
	for k, v := range prev {
		out[k] = v
	}
	for analyst, msgs := range delta {
		seen := make(map[string]bool, len(out[analyst]))
		for _, m := range out[analyst] {
			if m.ID != "" {
				seen[m.ID] = true
			}
		}
		merged := append([]model.Message(nil), out[analyst]...)
		for _, m := range msgs {
			if m.ID != "" && seen[m.ID] {
				continue
			}
			if m.ID != "" {
				seen[m.ID] = true
			}
			merged = append(merged, m)
		}
		out[analyst] = merged
	}
	return out
}

// Debate transcripts append: deltas carry only the new entry, so both
// sides of a fan-out survive the join.
func mergeInvestmentDebate(prev, delta InvestmentDebate) InvestmentDebate {
	return InvestmentDebate{
		BullHistory:     appendText(prev.BullHistory, delta.BullHistory),
		BearHistory:     appendText(prev.BearHistory, delta.BearHistory),
		History:         appendText(prev.History, delta.History),
		CurrentResponse: pickString(prev.CurrentResponse, delta.CurrentResponse),
		JudgeDecision:   pickString(prev.JudgeDecision, delta.JudgeDecision),
		Count:           maxInt(prev.Count, delta.Count),
	}
}

func appendText(prev, delta string) string {
	switch {
	case delta == "":
		return prev
	case prev == "":
		return delta
	default:
		return prev + "\n\n" + delta
	}
}

func mergeResearchDebate(prev, delta ResearchDebate) ResearchDebate {
	out := ResearchDebate{
		CurrentRound:     maxInt(prev.CurrentRound, delta.CurrentRound),
		MaxRounds:        maxInt(prev.MaxRounds, delta.MaxRounds),
		ConsensusReached: prev.ConsensusReached || delta.ConsensusReached,
		DebateHistory:    prev.DebateHistory,
	}
	if len(delta.DebateHistory) > len(prev.DebateHistory) {
		out.DebateHistory = delta.DebateHistory
	}
	return out
}

func mergeRiskDebate(prev, delta RiskDebate) RiskDebate {
	return RiskDebate{
		RiskyResponse:   pickString(prev.RiskyResponse, delta.RiskyResponse),
		SafeResponse:    pickString(prev.SafeResponse, delta.SafeResponse),
		NeutralResponse: pickString(prev.NeutralResponse, delta.NeutralResponse),
		History:         appendText(prev.History, delta.History),
		JudgeDecision:   pickString(prev.JudgeDecision, delta.JudgeDecision),
		Count:           maxInt(prev.Count, delta.Count),
	}
}
