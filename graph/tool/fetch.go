package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/tradingagents-go/collect"
)

// maxFetchBytes caps how much of a page is returned to the model.
const maxFetchBytes = 16 * 1024

// FetchTool retrieves a URL over the shared pooled HTTP client and
// returns the body as text. It backs the analysts' open-ended research
// when a dedicated data tool does not cover a source.
type FetchTool struct {
	pool *collect.Pool
}

// NewFetchTool creates a FetchTool over the pool; nil uses the shared
// pool.
func NewFetchTool(pool *collect.Pool) *FetchTool {
	if pool == nil {
		pool = collect.SharedPool()
	}
	return &FetchTool{pool: pool}
}

// Name implements Tool.
func (f *FetchTool) Name() string { return "fetch_url" }

// Description implements Tool.
func (f *FetchTool) Description() string {
	return "Fetch the raw contents of an http(s) URL. Use only for public data pages; returns at most the first 16KB."
}

// Schema describes the tool's arguments for spec generation.
func (f *FetchTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Absolute http or https URL to fetch",
			},
		},
		"required": []string{"url"},
	}
}

// Call implements Tool.
func (f *FetchTool) Call(ctx context.Context, args map[string]interface{}) (string, error) {
	url, ok := StringArg(args, "url")
	if !ok {
		return "", fmt.Errorf("url parameter required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("unsupported URL scheme in %q", url)
	}

	body, err := f.pool.GetBody(ctx, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if len(body) > maxFetchBytes {
		body = body[:maxFetchBytes]
	}
	return string(body), nil
}
