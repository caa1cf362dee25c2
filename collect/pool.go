package collect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// PoolConfig tunes the pooled HTTP client shared by a collector instance.
type PoolConfig struct {
	// MaxConnsPerHost bounds concurrent connections to one upstream.
	MaxConnsPerHost int
	// ConnectTimeout bounds TCP/TLS dial time.
	ConnectTimeout time.Duration
	// RequestTimeout bounds the whole request including body read.
	RequestTimeout time.Duration
	// UserAgent is sent on every request; some public endpoints reject
	// the Go default.
	UserAgent string
}

// DefaultPoolConfig returns the standard collector pool settings:
// connect 2s, overall 10s, 10 connections per host.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnsPerHost: 10,
		ConnectTimeout:  2 * time.Second,
		RequestTimeout:  10 * time.Second,
		UserAgent:       "tradingagents-go/1.0",
	}
}

// Pool is a pooled HTTP client. The transport prefers HTTP/2 when the peer
// negotiates it and falls back to HTTP/1.1 otherwise; connections are
// reused across requests.
type Pool struct {
	client    *http.Client
	userAgent string
}

// NewPool builds a Pool from cfg. Zero-valued fields take defaults.
func NewPool(cfg PoolConfig) *Pool {
	def := DefaultPoolConfig()
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	transport := &http.Transport{
		ForceAttemptHTTP2:   true,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
	}

	return &Pool{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		userAgent: cfg.UserAgent,
	}
}

// Do executes the request with the pool's user agent applied.
func (p *Pool) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	return p.client.Do(req)
}

// GetBody fetches url and returns the response body. Non-2xx statuses
// return a *StatusError.
func (p *Pool) GetBody(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := p.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// GetJSON fetches url and decodes the JSON response into out.
func (p *Pool) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	body, err := p.GetBody(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// PostJSON sends a JSON payload and decodes the JSON response into out.
func (p *Pool) PostJSON(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := p.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: url, Status: resp.StatusCode}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// Close releases idle connections. Safe to call more than once.
func (p *Pool) Close() {
	if t, ok := p.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

var (
	defaultPoolOnce sync.Once
	defaultPool     *Pool
)

// SharedPool returns the process-wide pool, creating it on first use.
func SharedPool() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool(DefaultPoolConfig())
	})
	return defaultPool
}

// ShutdownSharedPool closes the process-wide pool if it was created.
func ShutdownSharedPool() {
	if defaultPool != nil {
		defaultPool.Close()
	}
}
