package collect

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level collector metrics on the default registry, exposed by the
// server's /metrics endpoint.
var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradingagents",
		Subsystem: "collect",
		Name:      "cache_hits_total",
		Help:      "Cache reads that returned a stored value.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradingagents",
		Subsystem: "collect",
		Name:      "cache_misses_total",
		Help:      "Cache reads that fell through to live upstreams.",
	})
	breakerOpens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradingagents",
		Subsystem: "collect",
		Name:      "breaker_opens_total",
		Help:      "Circuit breaker transitions into the open state.",
	})
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradingagents",
		Subsystem: "collect",
		Name:      "upstream_requests_total",
		Help:      "Outbound upstream fetches by source and outcome.",
	}, []string{"source", "outcome"})
)
