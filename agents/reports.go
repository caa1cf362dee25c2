package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/tradingagents-go/collect"
)

// Indicator names surfaced in the market report, in display order.
// The battery computes far more; the report leads with the ones the
// researchers weigh.
var reportIndicators = []string{
	"sma_20", "sma_50", "ema_12", "ema_26",
	"rsi_14", "macd", "macd_signal", "macd_hist",
	"stoch_k", "stoch_d", "willr_14", "cci_20",
	"bb_upper", "bb_middle", "bb_lower", "atr_14",
	"adx_14", "plus_di", "minus_di",
	"obv", "mfi_14", "vwap",
}

func formatMarketReport(rec *collect.IndicatorsRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TECHNICAL ANALYSIS for %s as of %s\n", rec.Symbol, rec.Date)
	fmt.Fprintf(&b, "Bars analyzed: %d (source: %s)\n", rec.Bars, rec.Source)
	fmt.Fprintf(&b, "Last close: %.2f\n", rec.LastClose)
	if rec.Support > 0 || rec.Resistance > 0 {
		fmt.Fprintf(&b, "Support: %.2f  Resistance: %.2f\n", rec.Support, rec.Resistance)
	}

	b.WriteString("\nIndicators:\n")
	written := make(map[string]bool, len(reportIndicators))
	for _, name := range reportIndicators {
		if v, ok := rec.Values[name]; ok {
			fmt.Fprintf(&b, "  %s: %.4f\n", name, v)
			written[name] = true
		}
	}
	rest := make([]string, 0, len(rec.Values))
	for name := range rec.Values {
		if !written[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		fmt.Fprintf(&b, "  %s: %.4f\n", name, rec.Values[name])
	}

	b.WriteString("\nRead: ")
	b.WriteString(trendRead(rec))
	return b.String()
}

// trendRead derives a one-line deterministic read from the battery.
func trendRead(rec *collect.IndicatorsRecord) string {
	var notes []string
	if rsi, ok := rec.Values["rsi_14"]; ok {
		switch {
		case rsi >= 70:
			notes = append(notes, "RSI overbought")
		case rsi <= 30:
			notes = append(notes, "RSI oversold")
		default:
			notes = append(notes, "RSI neutral")
		}
	}
	if sma50, ok := rec.Values["sma_50"]; ok && rec.LastClose > 0 {
		if rec.LastClose > sma50 {
			notes = append(notes, "price above 50-day average")
		} else {
			notes = append(notes, "price below 50-day average")
		}
	}
	if hist, ok := rec.Values["macd_hist"]; ok {
		if hist > 0 {
			notes = append(notes, "MACD histogram positive")
		} else if hist < 0 {
			notes = append(notes, "MACD histogram negative")
		}
	}
	if len(notes) == 0 {
		return "insufficient indicator coverage for a summary read."
	}
	return strings.Join(notes, "; ") + "."
}

func formatFundamentalsReport(rec *collect.FundamentalsRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FUNDAMENTALS for %s as of %s\n", rec.Symbol, rec.Date)
	fmt.Fprintf(&b, "Data facets fetched: %d of 15\n", rec.EndpointsFetched)

	if name, ok := rec.Profile["name"].(string); ok {
		industry, _ := rec.Profile["finnhubIndustry"].(string)
		fmt.Fprintf(&b, "\nCompany: %s (%s)\n", name, industry)
	}
	if cap, ok := numericValue(rec.Profile, "marketCapitalization"); ok {
		fmt.Fprintf(&b, "Market cap: %.0fM\n", cap)
	}

	if len(rec.Metrics) > 0 {
		b.WriteString("\nKey metrics:\n")
		for _, key := range []string{"peBasicExclExtraTTM", "peTTM", "psTTM", "pbQuarterly", "epsTTM", "roeTTM", "currentRatioQuarterly", "totalDebt/totalEquityQuarterly"} {
			if v, ok := numericValue(rec.Metrics, key); ok {
				fmt.Fprintf(&b, "  %s: %.2f\n", key, v)
			}
		}
	}

	if len(rec.Recommendations) > 0 {
		latest := rec.Recommendations[0]
		fmt.Fprintf(&b, "\nAnalyst recommendations (%s): %d strong buy, %d buy, %d hold, %d sell, %d strong sell\n",
			latest.Period, latest.StrongBuy, latest.Buy, latest.Hold, latest.Sell, latest.StrongSell)
	}
	if pt := rec.PriceTarget; !pt.Empty() {
		fmt.Fprintf(&b, "Price target: mean %.2f (low %.2f, high %.2f), %d analysts",
			pt.TargetMean, pt.TargetLow, pt.TargetHigh, pt.NumberOfAnalysts)
		if pt.Source != "" {
			fmt.Fprintf(&b, " [%s, confidence %s]", pt.Source, pt.Confidence)
		}
		b.WriteString("\n")
	}

	writeStatement(&b, "Balance sheet", rec.BalanceSheet)
	writeStatement(&b, "Income statement", rec.IncomeStatement)
	writeStatement(&b, "Cash flow", rec.CashFlow)

	if len(rec.Earnings) > 0 {
		fmt.Fprintf(&b, "\nEarnings history: %d quarters on record\n", len(rec.Earnings))
	}
	if len(rec.Peers) > 0 {
		fmt.Fprintf(&b, "Peers: %s\n", strings.Join(rec.Peers, ", "))
	}
	return b.String()
}

func writeStatement(b *strings.Builder, label string, st *collect.Statement) {
	if st.Empty() {
		return
	}
	fmt.Fprintf(b, "\n%s (%s): %d periods", label, st.Source, len(st.Rows))
	latest := st.Rows[0]
	fmt.Fprintf(b, ", latest %s with %d line items\n", latest.Date, len(latest.Items))
}

func formatCryptoReport(symbol string, quote *collect.CryptoQuote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CRYPTO SNAPSHOT for %s (source: %s)\n", symbol, quote.Source)
	fmt.Fprintf(&b, "Current price: %.4f\n", quote.Price)
	fmt.Fprintf(&b, "24h change: %.2f%%  high: %.4f  low: %.4f\n", quote.Change24h, quote.High24h, quote.Low24h)
	fmt.Fprintf(&b, "24h volume: %.0f\n", quote.Volume24h)
	if quote.MarketCap > 0 {
		fmt.Fprintf(&b, "Market cap: %.0f\n", quote.MarketCap)
	}
	if quote.CirculatingSupply > 0 {
		fmt.Fprintf(&b, "Circulating supply: %.0f\n", quote.CirculatingSupply)
	}
	b.WriteString("Traditional fundamentals (statements, analyst coverage) do not apply to this asset; the price above is authoritative for downstream reasoning.\n")
	return b.String()
}

func formatNewsReport(symbol string, items []collect.NewsItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "NEWS DIGEST for %s: %d articles\n\n", symbol, len(items))
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s", i+1, item.Headline)
		if item.Source != "" {
			fmt.Fprintf(&b, " (%s", item.Source)
			if !item.Time.IsZero() {
				fmt.Fprintf(&b, ", %s", item.Time.Format("2006-01-02"))
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
		if item.Summary != "" {
			fmt.Fprintf(&b, "   %s\n", item.Summary)
		}
	}
	return b.String()
}

func formatSocialReport(symbol string, posts []collect.SocialPost) string {
	tally := collect.Tally(posts)
	bySource := make(map[string]int)
	for _, p := range posts {
		bySource[p.Source]++
	}
	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	var b strings.Builder
	fmt.Fprintf(&b, "SOCIAL SENTIMENT for %s: %d posts\n", symbol, len(posts))
	for _, s := range sources {
		fmt.Fprintf(&b, "  %s: %d posts\n", s, bySource[s])
	}
	fmt.Fprintf(&b, "Labeled sentiment: %d bullish, %d bearish, %d neutral\n",
		tally.Bullish, tally.Bearish, tally.Neutral)

	shown := posts
	if len(shown) > 10 {
		shown = shown[:10]
	}
	if len(shown) > 0 {
		b.WriteString("\nSample posts:\n")
		for _, p := range shown {
			body := p.Body
			if len(body) > 200 {
				body = body[:200] + "..."
			}
			fmt.Fprintf(&b, "- [%s] %s\n", p.Source, body)
		}
	}
	return b.String()
}

func numericValue(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
