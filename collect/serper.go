package collect

import (
	"context"
	"fmt"
	"time"
)

// Serper is the Google-search upstream used for news and macro context.
type Serper struct {
	pool *Pool
	key  string
	base string
}

// NewSerper builds a client on the given pool.
func NewSerper(pool *Pool, key string) *Serper {
	return &Serper{pool: pool, key: key, base: "https://google.serper.dev"}
}

// SetBase points the client at a different API root.
func (s *Serper) SetBase(base string) { s.base = base }

func (s *Serper) headers() map[string]string {
	return map[string]string{"X-API-KEY": s.key}
}

// News runs a news search and normalizes the hits.
func (s *Serper) News(ctx context.Context, query string, limit int) ([]NewsItem, error) {
	if limit <= 0 {
		limit = 10
	}
	var out struct {
		News []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
			Date    string `json:"date"`
			Source  string `json:"source"`
		} `json:"news"`
	}
	err := s.pool.PostJSON(ctx, s.base+"/news", s.headers(), map[string]any{
		"q":   query,
		"num": limit,
	}, &out)
	if err != nil {
		return nil, err
	}
	items := make([]NewsItem, 0, len(out.News))
	for _, n := range out.News {
		items = append(items, NewsItem{
			Headline: n.Title,
			Summary:  n.Snippet,
			Source:   n.Source,
			URL:      n.Link,
			Time:     parseRelativeDate(n.Date),
		})
	}
	return items, nil
}

// Search runs a web search and normalizes the organic hits. Used for
// social-sentiment queries scoped to a site, e.g. "site:twitter.com AAPL".
func (s *Serper) Search(ctx context.Context, query string, limit int) ([]NewsItem, error) {
	if limit <= 0 {
		limit = 10
	}
	var out struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	err := s.pool.PostJSON(ctx, s.base+"/search", s.headers(), map[string]any{
		"q":   query,
		"num": limit,
	}, &out)
	if err != nil {
		return nil, err
	}
	items := make([]NewsItem, 0, len(out.Organic))
	for _, n := range out.Organic {
		items = append(items, NewsItem{Headline: n.Title, Summary: n.Snippet, URL: n.Link})
	}
	return items, nil
}

// parseRelativeDate maps Serper's relative timestamps ("2 hours ago",
// "3 days ago") onto absolute times. Unparseable dates fall back to now.
func parseRelativeDate(s string) time.Time {
	now := time.Now().UTC()
	var n int
	var unit string
	if _, err := fmt.Sscanf(s, "%d %s ago", &n, &unit); err != nil {
		return now
	}
	switch unit {
	case "minute", "minutes":
		return now.Add(-time.Duration(n) * time.Minute)
	case "hour", "hours":
		return now.Add(-time.Duration(n) * time.Hour)
	case "day", "days":
		return now.AddDate(0, 0, -n)
	case "week", "weeks":
		return now.AddDate(0, 0, -7*n)
	case "month", "months":
		return now.AddDate(0, -n, 0)
	default:
		return now
	}
}
