// Package config loads the service configuration from the environment.
// There are no config files; every knob is a flat environment variable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LLM provider selectors.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderMock      = "mock"
)

// Memory backend selectors.
const (
	MemoryInMemory = "memory"
	MemorySQLite   = "sqlite"
	MemoryMySQL    = "mysql"
)

// Config is the resolved environment configuration.
type Config struct {
	APIPort int

	FinnhubAPIKey      string
	AlphaVantageAPIKey string
	SerperAPIKey       string

	OpenAIAPIKey    string
	AnthropicAPIKey string
	GoogleAPIKey    string

	// LLMProvider selects the chat backend: openai, anthropic, google,
	// or mock.
	LLMProvider     string
	QuickThinkModel string
	DeepThinkModel  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Dev reflects LANGGRAPH_ENV / IS_LANGGRAPH_DEV and switches logging
	// to debug level.
	Dev bool

	// ForcePureFormulas mirrors the legacy FORCE_PURE_PYTHON switch. The
	// indicator battery always computes locally, so the flag is accepted
	// and logged but changes nothing.
	ForcePureFormulas bool

	LogFile string

	MaxDebateRounds      int
	MaxRiskDiscussRounds int

	MemoryBackend string
	MemoryDSN     string
}

// Load reads the environment and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{
		APIPort:            envInt("API_PORT", 8000),
		FinnhubAPIKey:      os.Getenv("FINNHUB_API_KEY"),
		AlphaVantageAPIKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
		SerperAPIKey:       os.Getenv("SERPER_API_KEY"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),

		LLMProvider:     strings.ToLower(os.Getenv("LLM_PROVIDER")),
		QuickThinkModel: os.Getenv("QUICK_THINK_MODEL"),
		DeepThinkModel:  os.Getenv("DEEP_THINK_MODEL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		Dev:               envBool("IS_LANGGRAPH_DEV") || strings.EqualFold(os.Getenv("LANGGRAPH_ENV"), "dev"),
		ForcePureFormulas: envBool("FORCE_PURE_PYTHON"),
		LogFile:           os.Getenv("TRADINGAGENTS_LOG_FILE"),

		MaxDebateRounds:      envInt("MAX_DEBATE_ROUNDS", 3),
		MaxRiskDiscussRounds: envInt("MAX_RISK_DISCUSS_ROUNDS", 1),

		MemoryBackend: strings.ToLower(os.Getenv("MEMORY_BACKEND")),
		MemoryDSN:     os.Getenv("MEMORY_DSN"),
	}

	if cfg.LLMProvider == "" {
		if cfg.OpenAIAPIKey != "" {
			cfg.LLMProvider = ProviderOpenAI
		} else {
			cfg.LLMProvider = ProviderMock
		}
	}
	switch cfg.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderMock:
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	if cfg.MemoryBackend == "" {
		cfg.MemoryBackend = MemoryInMemory
	}
	switch cfg.MemoryBackend {
	case MemoryInMemory:
	case MemorySQLite, MemoryMySQL:
		if cfg.MemoryDSN == "" {
			return nil, fmt.Errorf("MEMORY_BACKEND %s requires MEMORY_DSN", cfg.MemoryBackend)
		}
	default:
		return nil, fmt.Errorf("unknown MEMORY_BACKEND %q", cfg.MemoryBackend)
	}

	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return nil, fmt.Errorf("API_PORT %d out of range", cfg.APIPort)
	}
	return cfg, nil
}

// ProviderKey returns the API key for the configured LLM provider.
func (c *Config) ProviderKey() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	case ProviderGoogle:
		return c.GoogleAPIKey
	}
	return ""
}

// Logger builds the zap logger described by the configuration: JSON
// production logging, debug level in dev mode, tee'd to the log file
// when one is set.
func (c *Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Dev {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zc.OutputPaths = []string{"stdout"}
	if c.LogFile != "" {
		zc.OutputPaths = append(zc.OutputPaths, c.LogFile)
	}
	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	if c.ForcePureFormulas {
		log.Info("FORCE_PURE_PYTHON set; indicators already compute locally, flag has no effect")
	}
	return log, nil
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
