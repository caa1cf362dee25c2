package collect

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// CryptoQuote is a normalized crypto market snapshot. Price fields come
// from whichever upstream answered; MarketCap and CirculatingSupply are
// only available from CoinGecko.
type CryptoQuote struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name,omitempty"`
	Price             float64 `json:"price"`
	Change24h         float64 `json:"change_24h"`
	High24h           float64 `json:"high_24h"`
	Low24h            float64 `json:"low_24h"`
	Volume24h         float64 `json:"volume_24h"`
	MarketCap         float64 `json:"market_cap,omitempty"`
	CirculatingSupply float64 `json:"circulating_supply,omitempty"`
	Source            string  `json:"source"`
}

// coinIDs maps bare crypto tickers onto CoinGecko coin IDs. Membership
// here also marks a ticker as crypto without the -USD suffix.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"BNB":   "binancecoin",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"XLM":   "stellar",
}

// IsCrypto reports whether a ticker names a crypto asset: either the
// -USD pair convention or a bare ticker from the known-coin table.
func IsCrypto(symbol string) bool {
	up := strings.ToUpper(symbol)
	if strings.HasSuffix(up, "-USD") {
		return true
	}
	_, ok := coinIDs[up]
	return ok
}

// cryptoBase strips the pair suffix: "BTC-USD" -> "BTC".
func cryptoBase(symbol string) string {
	return strings.ToUpper(strings.TrimSuffix(strings.ToUpper(symbol), "-USD"))
}

// CoinGecko is the secondary crypto upstream; it adds market cap and
// circulating supply that Binance lacks.
type CoinGecko struct {
	pool *Pool
	base string
}

// NewCoinGecko builds a client on the given pool.
func NewCoinGecko(pool *Pool) *CoinGecko {
	return &CoinGecko{pool: pool, base: "https://api.coingecko.com/api/v3"}
}

// SetBase points the client at a different API root.
func (c *CoinGecko) SetBase(base string) { c.base = base }

// Markets fetches the market snapshot for a crypto ticker.
func (c *CoinGecko) Markets(ctx context.Context, symbol string) (*CryptoQuote, error) {
	id, ok := coinIDs[cryptoBase(symbol)]
	if !ok {
		return nil, fmt.Errorf("no coingecko id for %s", symbol)
	}
	var out []struct {
		Name              string  `json:"name"`
		CurrentPrice      float64 `json:"current_price"`
		MarketCap         float64 `json:"market_cap"`
		High24h           float64 `json:"high_24h"`
		Low24h            float64 `json:"low_24h"`
		PriceChange24h    float64 `json:"price_change_percentage_24h"`
		CirculatingSupply float64 `json:"circulating_supply"`
		TotalVolume       float64 `json:"total_volume"`
	}
	u := fmt.Sprintf("%s/coins/markets?vs_currency=usd&ids=%s", c.base, id)
	if err := c.pool.GetJSON(ctx, u, nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	m := out[0]
	return &CryptoQuote{
		Symbol:            symbol,
		Name:              m.Name,
		Price:             m.CurrentPrice,
		Change24h:         m.PriceChange24h,
		High24h:           m.High24h,
		Low24h:            m.Low24h,
		Volume24h:         m.TotalVolume,
		MarketCap:         m.MarketCap,
		CirculatingSupply: m.CirculatingSupply,
		Source:            "coingecko",
	}, nil
}

// FetchCryptoQuote resolves a crypto quote through the fallback chain:
// Binance for price action, CoinGecko for the supply-side fields. When
// both answer, Binance's price wins and CoinGecko fills the gaps.
func FetchCryptoQuote(ctx context.Context, chain *Chain[*CryptoQuote], bn *Binance, cg *CoinGecko, symbol string, log *zap.Logger) (*CryptoQuote, error) {
	quote, source, err := chain.Fetch(ctx, symbol,
		Source[*CryptoQuote]{Name: "binance", Fetch: func(ctx context.Context) (*CryptoQuote, error) {
			return bn.Stats(ctx, symbol)
		}},
		Source[*CryptoQuote]{Name: "coingecko", Fetch: func(ctx context.Context) (*CryptoQuote, error) {
			return cg.Markets(ctx, symbol)
		}},
	)
	if err != nil {
		return nil, err
	}
	if source == "binance" {
		if supp, serr := cg.Markets(ctx, symbol); serr == nil {
			quote.Name = supp.Name
			quote.MarketCap = supp.MarketCap
			quote.CirculatingSupply = supp.CirculatingSupply
		} else {
			log.Debug("coingecko supplement unavailable", zap.String("symbol", symbol), zap.Error(serr))
		}
	}
	return quote, nil
}
