package collect

import (
	"github.com/shopspring/decimal"
)

// Target sources, in order of preference. The free Finnhub tier
// paywalls /stock/price-target, so most runs derive a target instead.
const (
	sourceDerived     = "Analyst Recommendations (Derived)"
	sourceIntrinsic   = "Intrinsic Value (P/E Based)"
	sourceUnavailable = "Data Not Available (Free Tier)"
)

var (
	bandHigh = decimal.NewFromFloat(1.10)
	bandLow  = decimal.NewFromFloat(0.90)
)

// DerivePriceTarget synthesizes a price target when the upstream one is
// missing. Preference order: the latest analyst recommendation mix
// applied to the live price, then a normalized-P/E intrinsic value,
// then an explicit unavailable marker. quote may be nil.
func DerivePriceTarget(rec *FundamentalsRecord, quote *Quote) *PriceTarget {
	if len(rec.Recommendations) > 0 && quote != nil && quote.Current > 0 {
		return targetFromRecommendations(rec.Recommendations[0], quote.Current)
	}
	if t := targetFromIntrinsic(rec.Metrics); t != nil {
		return t
	}
	return &PriceTarget{Source: sourceUnavailable, Confidence: "NONE"}
}

// targetFromRecommendations maps the bull/bear split of the latest
// month's tallies onto an offset from the current price.
func targetFromRecommendations(latest Recommendation, price float64) *PriceTarget {
	total := latest.Total()
	if total == 0 {
		return &PriceTarget{Source: sourceUnavailable, Confidence: "NONE"}
	}
	bullish := float64(latest.StrongBuy+latest.Buy) / float64(total)
	bearish := float64(latest.Sell+latest.StrongSell) / float64(total)

	var offset decimal.Decimal
	switch {
	case bullish >= 0.6:
		offset = decimal.NewFromFloat(0.20)
	case bullish >= 0.45:
		offset = decimal.NewFromFloat(0.10)
	case bearish >= 0.45:
		offset = decimal.NewFromFloat(-0.05)
	default:
		offset = decimal.NewFromFloat(0.05)
	}

	mean := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(1).Add(offset))
	t := &PriceTarget{
		NumberOfAnalysts: total,
		LastUpdated:      latest.Period,
		Source:           sourceDerived,
		Confidence:       confidenceFor(total),
	}
	t.TargetMean, _ = mean.Round(2).Float64()
	t.TargetMedian = t.TargetMean
	t.TargetHigh, _ = mean.Mul(bandHigh).Round(2).Float64()
	t.TargetLow, _ = mean.Mul(bandLow).Round(2).Float64()
	return t
}

// targetFromIntrinsic values the company at EPS times a normalized
// multiple. Finnhub's metric keys vary by listing, so several are tried.
func targetFromIntrinsic(metrics map[string]any) *PriceTarget {
	eps, ok := metricFloat(metrics,
		"epsExclExtraItemsTTM", "epsBasicExclExtraItemsTTM", "epsInclExtraItemsTTM", "epsTTM")
	if !ok || eps <= 0 {
		return nil
	}
	multiple, ok := metricFloat(metrics, "peNormalizedAnnual")
	if !ok || multiple <= 0 {
		multiple = 15
	}
	mean := decimal.NewFromFloat(eps).Mul(decimal.NewFromFloat(multiple))
	t := &PriceTarget{Source: sourceIntrinsic, Confidence: "LOW"}
	t.TargetMean, _ = mean.Round(2).Float64()
	t.TargetMedian = t.TargetMean
	t.TargetHigh, _ = mean.Mul(bandHigh).Round(2).Float64()
	t.TargetLow, _ = mean.Mul(bandLow).Round(2).Float64()
	return t
}

func confidenceFor(analysts int) string {
	switch {
	case analysts >= 15:
		return "HIGH"
	case analysts >= 8:
		return "MEDIUM"
	case analysts >= 3:
		return "LOW"
	default:
		return "LIMITED"
	}
}

func metricFloat(metrics map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := metrics[k]; ok {
			if n, ok := numeric(v); ok && n != 0 {
				return n, true
			}
		}
	}
	return 0, false
}
