package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	RetrievalMemory   = "memory"
	RetrievalChromem  = "chromem"
	RetrievalPgvector = "pgvector"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	DBMaxConns              int `env:"DB_MAX_CONNS" envDefault:"10"`
	DBConnectTimeoutSeconds int `env:"DB_CONNECT_TIMEOUT_SECONDS" envDefault:"5"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`
	AuthClientSecret     string `env:"AUTH_CLIENT_SECRET"`

	BaselineWeight    float64 `env:"BASELINE_WEIGHT" envDefault:"0.3"`
	UserWeight        float64 `env:"USER_WEIGHT" envDefault:"0.5"`
	HistoryWeight     float64 `env:"HISTORY_WEIGHT" envDefault:"0.2"`
	DecayHalfLifeDays float64 `env:"DECAY_HALF_LIFE_DAYS" envDefault:"30"`
	DecayFloor        float64 `env:"DECAY_FLOOR" envDefault:"0.1"`

	MemoryMaxTurns       int `env:"MEMORY_MAX_TURNS" envDefault:"20"`
	MemorySummarizeAfter int `env:"MEMORY_SUMMARIZE_AFTER" envDefault:"10"`

	RetrievalBackend      string `env:"RETRIEVAL_BACKEND" envDefault:"memory"`
	RetrievalTopK         int    `env:"RETRIEVAL_TOP_K" envDefault:"3"`
	ChromemPath           string `env:"CHROMEM_PATH"`
	EmbeddingDimensions   int    `env:"EMBEDDING_DIMENSIONS" envDefault:"256"`
	EmbeddingCacheMaxCost int64  `env:"EMBEDDING_CACHE_MAX_COST" envDefault:"16777216"`

	BaselineCacheTTLMinutes int `env:"BASELINE_CACHE_TTL_MINUTES" envDefault:"60"`
	ChatRateLimitPerMinute  int `env:"CHAT_RATE_LIMIT_PER_MINUTE" envDefault:"30"`

	TraitsCatalogPath string `env:"TRAITS_CATALOG_PATH"`
	TraitsLexiconPath string `env:"TRAITS_LEXICON_PATH"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"persona"`
	RefreshWorkers   int    `env:"REFRESH_WORKERS" envDefault:"4"`
}

// LoadConfig carga la configuración desde variables de entorno y la valida.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.BaselineWeight < 0 || c.UserWeight < 0 || c.HistoryWeight < 0 {
		return fmt.Errorf("blend weights must be non-negative")
	}
	if c.BaselineWeight+c.UserWeight+c.HistoryWeight == 0 {
		return fmt.Errorf("at least one blend weight must be positive")
	}
	if c.DecayHalfLifeDays <= 0 {
		return fmt.Errorf("DECAY_HALF_LIFE_DAYS must be positive, got %v", c.DecayHalfLifeDays)
	}
	if c.DecayFloor <= 0 || c.DecayFloor > 1 {
		return fmt.Errorf("DECAY_FLOOR must be in (0, 1], got %v", c.DecayFloor)
	}
	if c.MemoryMaxTurns <= 0 || c.MemorySummarizeAfter <= 0 {
		return fmt.Errorf("memory caps must be positive")
	}
	if c.MemorySummarizeAfter > c.MemoryMaxTurns {
		return fmt.Errorf("MEMORY_SUMMARIZE_AFTER (%d) exceeds MEMORY_MAX_TURNS (%d)", c.MemorySummarizeAfter, c.MemoryMaxTurns)
	}
	switch c.RetrievalBackend {
	case RetrievalMemory, RetrievalChromem:
	case RetrievalPgvector:
		if c.DatabaseURL == "" {
			return fmt.Errorf("RETRIEVAL_BACKEND=pgvector requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown RETRIEVAL_BACKEND %q", c.RetrievalBackend)
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive")
	}
	return nil
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLMinutes) * time.Minute
}

func (c *Config) DBConnectTimeout() time.Duration {
	return time.Duration(c.DBConnectTimeoutSeconds) * time.Second
}

func (c *Config) BaselineCacheTTL() time.Duration {
	return time.Duration(c.BaselineCacheTTLMinutes) * time.Minute
}
