package collect

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SocialPost is a normalized social-media post about a symbol.
type SocialPost struct {
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Source    string    `json:"source"`
	Sentiment string    `json:"sentiment,omitempty"`
	Score     int       `json:"score,omitempty"`
	URL       string    `json:"url,omitempty"`
	Time      time.Time `json:"time"`
}

// SentimentTally counts labeled sentiment across a batch of posts.
type SentimentTally struct {
	Bullish int `json:"bullish"`
	Bearish int `json:"bearish"`
	Neutral int `json:"neutral"`
}

// Tally counts sentiment labels over the posts.
func Tally(posts []SocialPost) SentimentTally {
	var t SentimentTally
	for _, p := range posts {
		switch p.Sentiment {
		case "bullish":
			t.Bullish++
		case "bearish":
			t.Bearish++
		default:
			t.Neutral++
		}
	}
	return t
}

// StockTwits fetches the public symbol stream. No API key required.
type StockTwits struct {
	pool *Pool
	base string
}

// NewStockTwits builds a client on the given pool.
func NewStockTwits(pool *Pool) *StockTwits {
	return &StockTwits{pool: pool, base: "https://api.stocktwits.com/api/2"}
}

// SetBase points the client at a different API root.
func (s *StockTwits) SetBase(base string) { s.base = base }

// SymbolStream fetches the most recent posts for a symbol.
func (s *StockTwits) SymbolStream(ctx context.Context, symbol string, limit int) ([]SocialPost, error) {
	var out struct {
		Messages []struct {
			Body      string `json:"body"`
			CreatedAt string `json:"created_at"`
			User      struct {
				Username string `json:"username"`
			} `json:"user"`
			Entities struct {
				Sentiment *struct {
					Basic string `json:"basic"`
				} `json:"sentiment"`
			} `json:"entities"`
		} `json:"messages"`
	}
	u := fmt.Sprintf("%s/streams/symbol/%s.json", s.base, url.PathEscape(symbol))
	if err := s.pool.GetJSON(ctx, u, nil, &out); err != nil {
		return nil, err
	}
	posts := make([]SocialPost, 0, len(out.Messages))
	for _, m := range out.Messages {
		if limit > 0 && len(posts) >= limit {
			break
		}
		p := SocialPost{Body: m.Body, Author: m.User.Username, Source: "stocktwits"}
		if m.Entities.Sentiment != nil {
			p.Sentiment = strings.ToLower(m.Entities.Sentiment.Basic)
		}
		if t, err := time.Parse("2006-01-02T15:04:05Z", m.CreatedAt); err == nil {
			p.Time = t
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// Reddit fetches posts from the public JSON search endpoint across the
// major investing subreddits. No API key required, but the shared pool's
// User-Agent matters: Reddit rejects blank agents.
type Reddit struct {
	pool *Pool
	base string
}

// NewReddit builds a client on the given pool.
func NewReddit(pool *Pool) *Reddit {
	return &Reddit{pool: pool, base: "https://www.reddit.com"}
}

// SetBase points the client at a different API root.
func (r *Reddit) SetBase(base string) { r.base = base }

// Search fetches recent posts mentioning the symbol.
func (r *Reddit) Search(ctx context.Context, symbol string, limit int) ([]SocialPost, error) {
	if limit <= 0 {
		limit = 25
	}
	var out struct {
		Data struct {
			Children []struct {
				Data struct {
					Title      string  `json:"title"`
					Selftext   string  `json:"selftext"`
					Score      int     `json:"score"`
					CreatedUTC float64 `json:"created_utc"`
					Permalink  string  `json:"permalink"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s/r/wallstreetbets+stocks+investing/search.json?q=%s&sort=new&restrict_sr=on&limit=%d",
		r.base, url.QueryEscape(symbol), limit)
	if err := r.pool.GetJSON(ctx, u, nil, &out); err != nil {
		return nil, err
	}
	posts := make([]SocialPost, 0, len(out.Data.Children))
	for _, c := range out.Data.Children {
		body := c.Data.Title
		if c.Data.Selftext != "" {
			body += ": " + truncate(c.Data.Selftext, 280)
		}
		posts = append(posts, SocialPost{
			Body:   body,
			Source: "reddit",
			Score:  c.Data.Score,
			URL:    r.base + c.Data.Permalink,
			Time:   time.Unix(int64(c.Data.CreatedUTC), 0).UTC(),
		})
	}
	return posts, nil
}

// TwitterViaSerper approximates a Twitter/X feed with a site-scoped web
// search; there is no free first-party API.
func TwitterViaSerper(ctx context.Context, serper *Serper, symbol string, limit int) ([]SocialPost, error) {
	hits, err := serper.Search(ctx, fmt.Sprintf("site:twitter.com OR site:x.com $%s stock", symbol), limit)
	if err != nil {
		return nil, err
	}
	posts := make([]SocialPost, 0, len(hits))
	for _, h := range hits {
		posts = append(posts, SocialPost{
			Body:   strings.TrimSpace(h.Headline + " " + h.Summary),
			Source: "twitter",
			URL:    h.URL,
			Time:   time.Now().UTC(),
		})
	}
	return posts, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
