package graph

import (
	"errors"
	"math"
	"testing"
)

func TestCostTrackerRecordsKnownModel(t *testing.T) {
	ct := NewCostTracker("run-1")

	if err := ct.RecordCall("gpt-4o-mini", 1_000_000, 1_000_000, "market_analyst"); err != nil {
		t.Fatalf("RecordCall: %v", err)
	}

	want := 0.15 + 0.60
	if got := ct.TotalCost(); math.Abs(got-want) > 1e-9 {
		t.Errorf("TotalCost = %v, want %v", got, want)
	}
	in, out := ct.TokenUsage()
	if in != 1_000_000 || out != 1_000_000 {
		t.Errorf("TokenUsage = %d/%d", in, out)
	}
	if len(ct.Calls()) != 1 {
		t.Errorf("Calls len = %d, want 1", len(ct.Calls()))
	}
}

func TestCostTrackerUnknownModel(t *testing.T) {
	ct := NewCostTracker("run-2")

	err := ct.RecordCall("mystery-model", 100, 100, "")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("err = %v, want ErrUnknownModel", err)
	}
	// Tokens still counted so usage reporting stays honest.
	in, out := ct.TokenUsage()
	if in != 100 || out != 100 {
		t.Errorf("TokenUsage = %d/%d, want 100/100", in, out)
	}
	if ct.TotalCost() != 0 {
		t.Errorf("TotalCost = %v, want 0", ct.TotalCost())
	}
}

func TestCostTrackerCustomPricing(t *testing.T) {
	ct := NewCostTracker("run-3")
	ct.SetPricing("local-llm", ModelPricing{InputPer1M: 1, OutputPer1M: 2})

	if err := ct.RecordCall("local-llm", 500_000, 500_000, "trader"); err != nil {
		t.Fatalf("RecordCall: %v", err)
	}
	if got := ct.CostByModel()["local-llm"]; math.Abs(got-1.5) > 1e-9 {
		t.Errorf("CostByModel = %v, want 1.5", got)
	}
}
