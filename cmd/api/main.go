package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/philippgille/chromem-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pet-persona/internal/config"
	"pet-persona/internal/conversation"
	"pet-persona/internal/db"
	apihttp "pet-persona/internal/http"
	"pet-persona/internal/observability"
	"pet-persona/internal/profile"
	"pet-persona/internal/repository"
	"pet-persona/internal/retrieval"
	"pet-persona/internal/service"
	"pet-persona/internal/traits"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	catalog, lexicon, err := traits.Load(cfg.TraitsCatalogPath, cfg.TraitsLexiconPath)
	if err != nil {
		logger.Fatal("load trait data", zap.Error(err))
	}
	scorer, err := traits.NewScorer(catalog, lexicon)
	if err != nil {
		logger.Fatal("build scorer", zap.Error(err))
	}
	voice, err := conversation.DefaultVoice()
	if err != nil {
		logger.Fatal("load voice data", zap.Error(err))
	}

	embedder, err := retrieval.NewCachedEmbedder(retrieval.NewHashEmbedder(cfg.EmbeddingDimensions), cfg.EmbeddingCacheMaxCost)
	if err != nil {
		logger.Fatal("build embedder", zap.Error(err))
	}
	defer embedder.Close()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.Open(ctx, cfg)
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
		defer pool.Close()
	} else {
		logger.Warn("database url not configured, using in-memory stores")
	}

	var stack service.Stack
	if pool != nil {
		stack = service.Stack{
			Subjects:  repository.NewPgSubjectRepository(pool),
			Documents: repository.NewPgDocumentRepository(pool),
			Turns:     repository.NewPgTurnRepository(pool),
			Snapshots: repository.NewPgSnapshotRepository(pool),
			Baselines: repository.NewPgBaselineRepository(pool),
		}
	} else {
		stack = service.MemoryStack(nil)
	}

	switch cfg.RetrievalBackend {
	case config.RetrievalPgvector:
		stack.IndexFactory = repository.PgVectorFactory(pool, embedder)
	case config.RetrievalChromem:
		var chromemDB *chromem.DB
		if cfg.ChromemPath != "" {
			chromemDB, err = chromem.NewPersistentDB(cfg.ChromemPath, false)
			if err != nil {
				logger.Fatal("open chromem db", zap.Error(err))
			}
		} else {
			chromemDB = chromem.NewDB()
		}
		stack.IndexFactory = retrieval.ChromemFactory(chromemDB, embedder)
	default:
		stack.IndexFactory = retrieval.MemoryFactory(embedder)
	}

	var (
		chatLimiter service.ChatRateLimiter = service.NewMemoryChatRateLimiter(time.Minute, cfg.ChatRateLimitPerMinute)
		tokenStore  service.RefreshTokenStore
		redisClient *redis.Client
	)
	stack.BaselineCache = service.NewMemoryBaselineCache(cfg.BaselineCacheTTL())
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			chatLimiter = service.NewRedisChatRateLimiter(redisClient, time.Minute, cfg.ChatRateLimitPerMinute)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			stack.BaselineCache = service.NewRedisBaselineCache(redisClient, cfg.BaselineCacheTTL())
		}
		cancel()
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	opts := service.AssembleOptions{
		Weights:              profile.Weights{Baseline: cfg.BaselineWeight, User: cfg.UserWeight, History: cfg.HistoryWeight},
		Decay:                profile.DecayPolicy{HalfLifeDays: cfg.DecayHalfLifeDays, Floor: cfg.DecayFloor},
		EvidenceK:            cfg.RetrievalTopK,
		MemoryMaxTurns:       cfg.MemoryMaxTurns,
		MemorySummarizeAfter: cfg.MemorySummarizeAfter,
		Workers:              cfg.RefreshWorkers,
		Metrics:              metrics,
	}
	persona, err := service.Assemble(stack, scorer, voice, opts, logger)
	if err != nil {
		logger.Fatal("assemble persona service", zap.Error(err))
	}

	tokens := service.NewTokenService(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), tokenStore)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured, /v1 is unauthenticated")
	}

	router := apihttp.NewRouter(logger, apihttp.RouterDeps{
		Subjects: apihttp.NewSubjectHandler(logger, persona),
		Chat:     apihttp.NewChatHandler(logger, persona, chatLimiter, metrics),
		Tools:    apihttp.NewToolsHandler(logger, persona),
		Auth:     apihttp.NewAuthHandler(logger, tokens, cfg.AuthClientSecret),
		Tokens:   tokens,
		Metrics:  metrics,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("retrieval_backend", cfg.RetrievalBackend),
		zap.Bool("postgres", pool != nil),
		zap.Bool("redis", redisClient != nil),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
