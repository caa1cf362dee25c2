package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/tradingagents-go/agents"
	"github.com/dshills/tradingagents-go/collect"
	"github.com/dshills/tradingagents-go/config"
	"github.com/dshills/tradingagents-go/graph/model"
	anthropicmodel "github.com/dshills/tradingagents-go/graph/model/anthropic"
	googlemodel "github.com/dshills/tradingagents-go/graph/model/google"
	openaimodel "github.com/dshills/tradingagents-go/graph/model/openai"
	"github.com/dshills/tradingagents-go/graph/tool"
	"github.com/dshills/tradingagents-go/memory"
)

// buildDeps assembles the agent dependencies from configuration. The
// returned cleanup closes the cache and memory store.
func buildDeps(cfg *config.Config, log *zap.Logger) (agents.Deps, func(), error) {
	pool := collect.NewPool(collect.DefaultPoolConfig())

	var cache collect.Cache
	if cfg.RedisAddr != "" {
		rc, err := collect.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			log.Warn("redis unavailable, running without cache", zap.Error(err))
		} else {
			cache = rc
		}
	}

	// Zero values take the breaker defaults (5 failures, 60s cooldown).
	breakers := collect.NewBreakerSet(0, 0)
	limiter := collect.NewLimiter(8)

	finnhub := collect.NewFinnhub(pool, cfg.FinnhubAPIKey)
	alphav := collect.NewAlphaVantage(pool, cfg.AlphaVantageAPIKey)
	binance := collect.NewBinance()
	coingecko := collect.NewCoinGecko(pool)
	serper := collect.NewSerper(pool, cfg.SerperAPIKey)

	cryptoChain := &collect.Chain[*collect.CryptoQuote]{
		Breakers: breakers,
		Limiter:  limiter,
		Empty:    func(q *collect.CryptoQuote) bool { return q == nil },
		Log:      log,
	}

	deps := agents.Deps{
		Technical:    collect.NewTechnical(finnhub, alphav, binance, cache, breakers, limiter, log),
		Fundamentals: collect.NewFundamentals(finnhub, alphav, cache, breakers, limiter, log),
		News:         finnhub,
		Search:       serper,
		Reddit:       collect.NewReddit(pool),
		StockTwits:   collect.NewStockTwits(pool),
		Twitter: func(ctx context.Context, symbol string, limit int) ([]collect.SocialPost, error) {
			return collect.TwitterViaSerper(ctx, serper, symbol, limit)
		},
		CryptoQuote: func(ctx context.Context, symbol string) (*collect.CryptoQuote, error) {
			return collect.FetchCryptoQuote(ctx, cryptoChain, binance, coingecko, symbol, log)
		},
		Quoter:          finnhub,
		Log:             log,
		MaxDebateRounds: cfg.MaxDebateRounds,
		MaxRiskRounds:   cfg.MaxRiskDiscussRounds,
	}

	deps.QuickModel, deps.DeepModel = buildModels(cfg)

	store, err := buildMemory(cfg)
	if err != nil {
		pool.Close()
		return agents.Deps{}, nil, err
	}
	deps.Memory = store

	registry, err := agents.BuildRegistry(deps)
	if err != nil {
		pool.Close()
		return agents.Deps{}, nil, err
	}
	deps.Registry = registry
	deps.Executor = tool.NewExecutor(registry, tool.WithLogger(log))

	cleanup := func() {
		if store != nil {
			if err := store.Close(); err != nil {
				log.Warn("closing memory store", zap.Error(err))
			}
		}
		if cache != nil {
			_ = cache.Close()
		}
		pool.Close()
	}
	return deps, cleanup, nil
}

// buildModels returns the quick and deep chat models for the configured
// provider. The mock provider returns nil models; the agents then run
// their deterministic paths.
func buildModels(cfg *config.Config) (model.ChatModel, model.ChatModel) {
	key := cfg.ProviderKey()
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return openaimodel.NewChatModel(key, cfg.QuickThinkModel),
			openaimodel.NewChatModel(key, cfg.DeepThinkModel)
	case config.ProviderAnthropic:
		return anthropicmodel.NewChatModel(key, cfg.QuickThinkModel),
			anthropicmodel.NewChatModel(key, cfg.DeepThinkModel)
	case config.ProviderGoogle:
		return googlemodel.NewChatModel(key, cfg.QuickThinkModel),
			googlemodel.NewChatModel(key, cfg.DeepThinkModel)
	}
	return nil, nil
}

func buildMemory(cfg *config.Config) (memory.Store, error) {
	switch cfg.MemoryBackend {
	case config.MemorySQLite:
		store, err := memory.NewSQLiteStore(cfg.MemoryDSN)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite memory store: %w", err)
		}
		return store, nil
	case config.MemoryMySQL:
		store, err := memory.NewMySQLStore(cfg.MemoryDSN)
		if err != nil {
			return nil, fmt.Errorf("opening mysql memory store: %w", err)
		}
		return store, nil
	}
	return memory.NewInMemoryStore(), nil
}
