package collect

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestDeriveFromRecommendations(t *testing.T) {
	cases := []struct {
		name     string
		rec      Recommendation
		price    float64
		wantMean float64
		wantConf string
	}{
		{
			name:     "strong bull consensus",
			rec:      Recommendation{Period: "2025-06-01", StrongBuy: 10, Buy: 5, Hold: 3, Sell: 1, StrongSell: 1},
			price:    100,
			wantMean: 120, // 15/20 bullish -> +20%
			wantConf: "HIGH",
		},
		{
			name:     "moderate bull",
			rec:      Recommendation{Period: "2025-06-01", StrongBuy: 2, Buy: 3, Hold: 5},
			price:    100,
			wantMean: 110, // 5/10 bullish -> +10%
			wantConf: "MEDIUM",
		},
		{
			name:     "bearish consensus",
			rec:      Recommendation{Period: "2025-06-01", Hold: 2, Sell: 2, StrongSell: 1},
			price:    100,
			wantMean: 95, // 3/5 bearish -> -5%
			wantConf: "LOW",
		},
		{
			name:     "neutral",
			rec:      Recommendation{Period: "2025-06-01", Buy: 1, Hold: 3},
			price:    200,
			wantMean: 210, // no consensus -> +5%
			wantConf: "LOW",
		},
		{
			name:     "thin coverage",
			rec:      Recommendation{Period: "2025-06-01", Buy: 2},
			price:    50,
			wantMean: 60, // 100% bullish -> +20%
			wantConf: "LIMITED",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &FundamentalsRecord{Recommendations: []Recommendation{tc.rec}}
			got := DerivePriceTarget(rec, &Quote{Current: tc.price})
			if !almostEqual(got.TargetMean, tc.wantMean) {
				t.Errorf("mean = %v, want %v", got.TargetMean, tc.wantMean)
			}
			if got.Confidence != tc.wantConf {
				t.Errorf("confidence = %q, want %q", got.Confidence, tc.wantConf)
			}
			if got.Source != sourceDerived {
				t.Errorf("source = %q", got.Source)
			}
			if !almostEqual(got.TargetHigh, tc.wantMean*1.10) {
				t.Errorf("high = %v, want %v", got.TargetHigh, tc.wantMean*1.10)
			}
			if !almostEqual(got.TargetLow, tc.wantMean*0.90) {
				t.Errorf("low = %v, want %v", got.TargetLow, tc.wantMean*0.90)
			}
			if got.NumberOfAnalysts != tc.rec.Total() {
				t.Errorf("analysts = %d, want %d", got.NumberOfAnalysts, tc.rec.Total())
			}
		})
	}
}

func TestDeriveIntrinsicWhenNoRecommendations(t *testing.T) {
	rec := &FundamentalsRecord{Metrics: map[string]any{
		"epsExclExtraItemsTTM": 6.0,
		"peNormalizedAnnual":   20.0,
	}}
	got := DerivePriceTarget(rec, &Quote{Current: 100})
	if got.Source != sourceIntrinsic {
		t.Fatalf("source = %q", got.Source)
	}
	if !almostEqual(got.TargetMean, 120) {
		t.Errorf("mean = %v, want 120", got.TargetMean)
	}
	if got.Confidence != "LOW" {
		t.Errorf("confidence = %q", got.Confidence)
	}

	t.Run("default multiple", func(t *testing.T) {
		rec := &FundamentalsRecord{Metrics: map[string]any{"epsExclExtraItemsTTM": 4.0}}
		got := DerivePriceTarget(rec, nil)
		if !almostEqual(got.TargetMean, 60) {
			t.Errorf("mean = %v, want 60 (eps*15)", got.TargetMean)
		}
	})
	t.Run("negative eps falls through", func(t *testing.T) {
		rec := &FundamentalsRecord{Metrics: map[string]any{"epsExclExtraItemsTTM": -2.0}}
		got := DerivePriceTarget(rec, nil)
		if got.Source != sourceUnavailable {
			t.Errorf("source = %q", got.Source)
		}
	})
}

func TestDeriveUnavailable(t *testing.T) {
	got := DerivePriceTarget(&FundamentalsRecord{}, nil)
	if got.Source != sourceUnavailable || got.Confidence != "NONE" {
		t.Fatalf("got %+v", got)
	}
	if got.TargetMean != 0 {
		t.Errorf("unavailable target should carry no numbers, mean = %v", got.TargetMean)
	}
	if !got.Empty() {
		t.Error("unavailable target should read as empty")
	}
}
