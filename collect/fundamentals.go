package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FundamentalsRecord is the assembled fundamentals snapshot for one
// symbol and trade date. EndpointsFetched counts how many of the
// fifteen facets answered; downstream quality checks use it to decide
// whether the snapshot is partial.
type FundamentalsRecord struct {
	Symbol              string           `json:"symbol"`
	Date                string           `json:"date"`
	Profile             map[string]any   `json:"profile,omitempty"`
	Metrics             map[string]any   `json:"metrics,omitempty"`
	BalanceSheet        *Statement       `json:"balance_sheet,omitempty"`
	IncomeStatement     *Statement       `json:"income_statement,omitempty"`
	CashFlow            *Statement       `json:"cash_flow,omitempty"`
	Earnings            []map[string]any `json:"earnings,omitempty"`
	EarningsCalendar    []map[string]any `json:"earnings_calendar,omitempty"`
	RevenueEstimates    []map[string]any `json:"revenue_estimates,omitempty"`
	Recommendations     []Recommendation `json:"recommendations,omitempty"`
	PriceTarget         *PriceTarget     `json:"price_target,omitempty"`
	InsiderTransactions []map[string]any `json:"insider_transactions,omitempty"`
	Ownership           []map[string]any `json:"ownership,omitempty"`
	Dividends           []map[string]any `json:"dividends,omitempty"`
	Splits              []map[string]any `json:"splits,omitempty"`
	Peers               []string         `json:"peers,omitempty"`
	EndpointsFetched    int              `json:"endpoints_fetched"`
	CollectedAt         time.Time        `json:"collected_at"`
}

// Fundamentals collects the fifteen-facet snapshot from Finnhub with
// Alpha Vantage backfilling financial statements. Results are cached
// for 90 days: quarterly data moves slowly.
type Fundamentals struct {
	finnhub  *Finnhub
	av       *AlphaVantage
	cache    Cache
	breakers *BreakerSet
	limiter  *Limiter
	log      *zap.Logger
}

// NewFundamentals wires the collector. av may be nil when Alpha Vantage
// is not configured; the statement fallback is skipped in that case.
func NewFundamentals(fh *Finnhub, av *AlphaVantage, cache Cache, breakers *BreakerSet, limiter *Limiter, log *zap.Logger) *Fundamentals {
	return &Fundamentals{finnhub: fh, av: av, cache: cache, breakers: breakers, limiter: limiter, log: log}
}

// facet runs one upstream call under the breaker and concurrency
// limiter. Empty results count against the upstream the same as
// transport failures.
func (f *Fundamentals) facet(ctx context.Context, fn func(context.Context) error) error {
	br := f.breakers.For("finnhub")
	if err := br.Allow(); err != nil {
		return err
	}
	if err := f.limiter.Acquire(ctx); err != nil {
		return err
	}
	err := fn(ctx)
	f.limiter.Release()
	br.Record(err)
	return err
}

// Collect assembles the fundamentals snapshot. Individual facet
// failures degrade the record instead of failing it; only a fully
// unreachable upstream is an error.
func (f *Fundamentals) Collect(ctx context.Context, symbol, date string) (*FundamentalsRecord, error) {
	key := FundamentalsKey(symbol, date)
	if raw, ok := cacheGet(ctx, f.cache, key); ok {
		var rec FundamentalsRecord
		if err := json.Unmarshal(raw, &rec); err == nil {
			return &rec, nil
		}
		f.log.Warn("corrupt cache entry, refetching", zap.String("key", key))
	}

	rec := &FundamentalsRecord{Symbol: symbol, Date: date}
	type facetCall struct {
		name string
		fn   func(context.Context) error
	}
	facets := []facetCall{
		{"profile", func(ctx context.Context) error {
			v, err := f.finnhub.Profile(ctx, symbol)
			if err == nil && len(v) == 0 {
				return ErrEmptyResult
			}
			rec.Profile = v
			return err
		}},
		{"metrics", func(ctx context.Context) error {
			v, err := f.finnhub.Metrics(ctx, symbol)
			if err == nil && len(v) == 0 {
				return ErrEmptyResult
			}
			rec.Metrics = v
			return err
		}},
		{"balance_sheet", func(ctx context.Context) error {
			v, err := f.finnhub.Financials(ctx, symbol, "bs")
			if err == nil && v.Empty() {
				return ErrEmptyResult
			}
			rec.BalanceSheet = v
			return err
		}},
		{"income_statement", func(ctx context.Context) error {
			v, err := f.finnhub.Financials(ctx, symbol, "ic")
			if err == nil && v.Empty() {
				return ErrEmptyResult
			}
			rec.IncomeStatement = v
			return err
		}},
		{"cash_flow", func(ctx context.Context) error {
			v, err := f.finnhub.Financials(ctx, symbol, "cf")
			if err == nil && v.Empty() {
				return ErrEmptyResult
			}
			rec.CashFlow = v
			return err
		}},
		{"earnings", func(ctx context.Context) error {
			v, err := f.finnhub.Earnings(ctx, symbol)
			if err == nil && len(v) == 0 {
				return ErrEmptyResult
			}
			rec.Earnings = v
			return err
		}},
		{"earnings_calendar", func(ctx context.Context) error {
			v, err := f.finnhub.EarningsCalendar(ctx, symbol)
			if err == nil && len(v) == 0 {
				return ErrEmptyResult
			}
			rec.EarningsCalendar = v
			return err
		}},
		{"revenue_estimates", func(ctx context.Context) error {
			v, err := f.finnhub.RevenueEstimates(ctx, symbol)
			if err == nil && len(v) == 0 {
				return ErrEmptyResult
			}
			rec.RevenueEstimates = v
			return err
		}},
		{"recommendations", func(ctx context.Context) error {
			v, err := f.finnhub.Recommendations(ctx, symbol)
			if err == nil && len(v) == 0 {
				return ErrEmptyResult
			}
			rec.Recommendations = v
			return err
		}},
		{"price_target", func(ctx context.Context) error {
			v, err := f.finnhub.PriceTargets(ctx, symbol)
			if err == nil && v.Empty() {
				return ErrEmptyResult
			}
			rec.PriceTarget = v
			return err
		}},
		{"insider_transactions", func(ctx context.Context) error {
			v, err := f.finnhub.InsiderTransactions(ctx, symbol)
			if err == nil && len(v) == 0 {
				return ErrEmptyResult
			}
			rec.InsiderTransactions = v
			return err
		}},
		{"ownership", func(ctx context.Context) error {
			v, err := f.finnhub.Ownership(ctx, symbol)
			if err == nil && len(v) == 0 {
				return ErrEmptyResult
			}
			rec.Ownership = v
			return err
		}},
		{"dividends", func(ctx context.Context) error {
			v, err := f.finnhub.Dividends(ctx, symbol)
			if err == nil && len(v) == 0 {
				return ErrEmptyResult
			}
			rec.Dividends = v
			return err
		}},
		{"splits", func(ctx context.Context) error {
			v, err := f.finnhub.Splits(ctx, symbol)
			if err == nil && len(v) == 0 {
				return ErrEmptyResult
			}
			rec.Splits = v
			return err
		}},
		{"peers", func(ctx context.Context) error {
			v, err := f.finnhub.Peers(ctx, symbol)
			if err == nil && len(v) == 0 {
				return ErrEmptyResult
			}
			rec.Peers = v
			return err
		}},
	}

	errs := make([]error, len(facets))
	g, gctx := errgroup.WithContext(ctx)
	for i, fc := range facets {
		i, fc := i, fc
		g.Go(func() error {
			errs[i] = f.facet(gctx, fc.fn)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err == nil {
			rec.EndpointsFetched++
			continue
		}
		f.log.Debug("facet unavailable",
			zap.String("symbol", symbol),
			zap.String("facet", facets[i].name),
			zap.Error(err))
	}
	if rec.EndpointsFetched == 0 {
		return nil, fmt.Errorf("all fundamentals facets failed for %s: %w", symbol, errs[0])
	}

	f.backfillStatements(ctx, rec)

	if rec.PriceTarget.Empty() {
		rec.PriceTarget = f.derivePriceTarget(ctx, rec)
	}

	rec.CollectedAt = time.Now().UTC()
	if raw, err := json.Marshal(rec); err == nil {
		cacheSet(ctx, f.cache, key, raw, FundamentalsTTL)
	}
	return rec, nil
}

// backfillStatements fills statements the primary left empty from Alpha
// Vantage. The three statements are fetched concurrently; each merge
// keeps primary values on conflict.
func (f *Fundamentals) backfillStatements(ctx context.Context, rec *FundamentalsRecord) {
	if f.av == nil {
		return
	}
	targets := []struct {
		code string
		dst  **Statement
	}{
		{"bs", &rec.BalanceSheet},
		{"ic", &rec.IncomeStatement},
		{"cf", &rec.CashFlow},
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, tgt := range targets {
		tgt := tgt
		if !(*tgt.dst).Empty() {
			continue
		}
		g.Go(func() error {
			sec, err := f.av.Financials(gctx, rec.Symbol, tgt.code)
			if err != nil {
				f.log.Debug("statement backfill unavailable",
					zap.String("symbol", rec.Symbol),
					zap.String("statement", tgt.code),
					zap.Error(err))
				return nil
			}
			if !sec.Empty() {
				*tgt.dst = MergeStatements(*tgt.dst, sec)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// derivePriceTarget synthesizes a target when the upstream endpoint is
// paywalled. The quote is fetched lazily here because only derivation
// needs a live price.
func (f *Fundamentals) derivePriceTarget(ctx context.Context, rec *FundamentalsRecord) *PriceTarget {
	var quote *Quote
	err := f.facet(ctx, func(ctx context.Context) error {
		q, err := f.finnhub.Quote(ctx, rec.Symbol)
		if err == nil && q.Current == 0 {
			return ErrEmptyResult
		}
		quote = q
		return err
	})
	if err != nil {
		f.log.Debug("quote unavailable for target derivation",
			zap.String("symbol", rec.Symbol), zap.Error(err))
	}
	return DerivePriceTarget(rec, quote)
}
