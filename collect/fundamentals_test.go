package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// finnhubFixtures maps API paths to canned responses. Tests override
// individual paths to simulate paywalls and outages.
var finnhubFixtures = map[string]string{
	"/stock/profile2":            `{"name":"Apple Inc","ticker":"AAPL","finnhubIndustry":"Technology"}`,
	"/stock/metric":              `{"metric":{"epsExclExtraItemsTTM":6.0,"peNormalizedAnnual":20.0}}`,
	"/stock/financials":          `{"financials":[{"period":"2025-03-31","totalAssets":100},{"period":"2024-12-31","totalAssets":90}]}`,
	"/stock/earnings":            `[{"actual":1.2,"estimate":1.1,"period":"2025-03-31"}]`,
	"/calendar/earnings":         `{"earningsCalendar":[{"date":"2025-07-30","epsEstimate":1.3}]}`,
	"/stock/revenue-estimate":    `{"data":[{"period":"2025-06-30","revenueAvg":90000}]}`,
	"/stock/recommendation":      `[{"period":"2025-06-01","strongBuy":10,"buy":5,"hold":3,"sell":1,"strongSell":1}]`,
	"/stock/price-target":        `{"targetHigh":280,"targetLow":200,"targetMean":250.5,"targetMedian":252,"numberOfAnalysts":30,"lastUpdated":"2025-06-01"}`,
	"/stock/insider-transactions": `{"data":[{"name":"COOK TIMOTHY","share":1000}]}`,
	"/stock/ownership":           `{"ownership":[{"name":"Vanguard","share":8.1}]}`,
	"/stock/dividend":            `[{"amount":0.25,"payDate":"2025-05-15"}]`,
	"/stock/split":               `[{"fromFactor":1,"toFactor":4,"date":"2020-08-31"}]`,
	"/stock/peers":               `["MSFT","GOOGL"]`,
	"/quote":                     `{"c":100,"h":102,"l":98,"o":99,"pc":99.5}`,
}

func finnhubServer(t *testing.T, hits *atomic.Int64, overrides map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		body, ok := overrides[r.URL.Path]
		if !ok {
			body, ok = finnhubFixtures[r.URL.Path]
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		if body == "FAIL" {
			http.Error(w, "upstream down", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testFundamentals(t *testing.T, srv *httptest.Server, av *AlphaVantage, cache Cache) *Fundamentals {
	t.Helper()
	pool := NewPool(DefaultPoolConfig())
	t.Cleanup(pool.Close)
	fh := NewFinnhub(pool, "test-key")
	fh.SetBase(srv.URL)
	// A high threshold keeps deliberately failing facets from tripping
	// the breaker mid-test.
	return NewFundamentals(fh, av, cache, NewBreakerSet(100, time.Minute), NewLimiter(5), zap.NewNop())
}

func TestFundamentalsCollectAllFacets(t *testing.T) {
	var hits atomic.Int64
	srv := finnhubServer(t, &hits, nil)
	cache := newMemCache()
	f := testFundamentals(t, srv, nil, cache)

	rec, err := f.Collect(context.Background(), "AAPL", "2025-06-02")
	if err != nil {
		t.Fatal(err)
	}
	if rec.EndpointsFetched != 15 {
		t.Errorf("endpoints fetched = %d, want 15", rec.EndpointsFetched)
	}
	if rec.Profile["name"] != "Apple Inc" {
		t.Errorf("profile = %v", rec.Profile)
	}
	if rec.BalanceSheet.Empty() || rec.IncomeStatement.Empty() || rec.CashFlow.Empty() {
		t.Error("statements should be populated")
	}
	if rec.BalanceSheet.Rows[0].Date != "2025-03-31" {
		t.Errorf("latest statement row = %s", rec.BalanceSheet.Rows[0].Date)
	}
	if len(rec.Recommendations) != 1 || rec.Recommendations[0].Total() != 20 {
		t.Errorf("recommendations = %v", rec.Recommendations)
	}
	if rec.PriceTarget == nil || rec.PriceTarget.TargetMean != 250.5 {
		t.Errorf("price target should come from the upstream: %+v", rec.PriceTarget)
	}
	if len(rec.Peers) != 2 {
		t.Errorf("peers = %v", rec.Peers)
	}

	t.Run("second collect hits cache", func(t *testing.T) {
		before := hits.Load()
		again, err := f.Collect(context.Background(), "AAPL", "2025-06-02")
		if err != nil {
			t.Fatal(err)
		}
		if hits.Load() != before {
			t.Errorf("cache hit should not touch the upstream: %d extra requests", hits.Load()-before)
		}
		if again.EndpointsFetched != rec.EndpointsFetched {
			t.Error("cached record differs")
		}
	})
}

func TestFundamentalsDerivesTargetWhenPaywalled(t *testing.T) {
	srv := finnhubServer(t, nil, map[string]string{
		"/stock/price-target": `{}`,
	})
	f := testFundamentals(t, srv, nil, newMemCache())

	rec, err := f.Collect(context.Background(), "AAPL", "2025-06-02")
	if err != nil {
		t.Fatal(err)
	}
	if rec.EndpointsFetched != 14 {
		t.Errorf("endpoints fetched = %d, want 14 (empty target does not count)", rec.EndpointsFetched)
	}
	pt := rec.PriceTarget
	if pt == nil || pt.Source != sourceDerived {
		t.Fatalf("want derived target, got %+v", pt)
	}
	// 15/20 bullish at price 100 -> +20%.
	if !almostEqual(pt.TargetMean, 120) {
		t.Errorf("mean = %v, want 120", pt.TargetMean)
	}
	if pt.Confidence != "HIGH" {
		t.Errorf("confidence = %q", pt.Confidence)
	}
}

func TestFundamentalsDegradesOnPartialOutage(t *testing.T) {
	overrides := map[string]string{}
	for path := range finnhubFixtures {
		if path != "/stock/profile2" {
			overrides[path] = "FAIL"
		}
	}
	srv := finnhubServer(t, nil, overrides)
	f := testFundamentals(t, srv, nil, newMemCache())

	rec, err := f.Collect(context.Background(), "AAPL", "2025-06-02")
	if err != nil {
		t.Fatal(err)
	}
	if rec.EndpointsFetched != 1 {
		t.Errorf("endpoints fetched = %d, want 1", rec.EndpointsFetched)
	}
	if rec.Profile["name"] != "Apple Inc" {
		t.Error("surviving facet should be populated")
	}
	if rec.PriceTarget == nil || rec.PriceTarget.Source != sourceUnavailable {
		t.Errorf("no data to derive from, got %+v", rec.PriceTarget)
	}
}

func TestFundamentalsFailsWhenUpstreamDown(t *testing.T) {
	overrides := map[string]string{}
	for path := range finnhubFixtures {
		overrides[path] = "FAIL"
	}
	srv := finnhubServer(t, nil, overrides)
	f := testFundamentals(t, srv, nil, newMemCache())

	if _, err := f.Collect(context.Background(), "AAPL", "2025-06-02"); err == nil {
		t.Fatal("want error when every facet fails")
	}
}

func TestFundamentalsBackfillsStatements(t *testing.T) {
	srv := finnhubServer(t, nil, map[string]string{
		"/stock/financials": `{"financials":[]}`,
	})
	avSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quarterlyReports":[
			{"fiscalDateEnding":"2025-03-31","reportedCurrency":"USD","totalAssets":"365000000000","goodwill":"None"},
			{"fiscalDateEnding":"2024-12-31","reportedCurrency":"USD","totalAssets":"360000000000"}
		]}`))
	}))
	t.Cleanup(avSrv.Close)

	pool := NewPool(DefaultPoolConfig())
	t.Cleanup(pool.Close)
	av := NewAlphaVantage(pool, "av-key")
	av.SetBase(avSrv.URL)

	f := testFundamentals(t, srv, av, newMemCache())
	rec, err := f.Collect(context.Background(), "AAPL", "2025-06-02")
	if err != nil {
		t.Fatal(err)
	}
	if rec.BalanceSheet.Empty() {
		t.Fatal("balance sheet should be backfilled from the secondary")
	}
	if rec.BalanceSheet.Source != "alphavantage" {
		t.Errorf("source = %q", rec.BalanceSheet.Source)
	}
	if rec.BalanceSheet.Rows[0].Date != "2025-03-31" {
		t.Errorf("latest row = %s", rec.BalanceSheet.Rows[0].Date)
	}
	if rec.BalanceSheet.Rows[0].Items["totalAssets"] != 365000000000 {
		t.Errorf("items = %v", rec.BalanceSheet.Rows[0].Items)
	}
	if _, ok := rec.BalanceSheet.Rows[0].Items["goodwill"]; ok {
		t.Error(`"None" values should be dropped`)
	}
}
