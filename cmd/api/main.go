package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/mortgage-agent/backend/internal/api/handlers"
	"github.com/mortgage-agent/backend/internal/cache/redis"
	"github.com/mortgage-agent/backend/internal/ingestion"
	"github.com/mortgage-agent/backend/internal/llm"
	"github.com/mortgage-agent/backend/internal/metrics"
	"github.com/mortgage-agent/backend/internal/middleware/ratelimit"
	"github.com/mortgage-agent/backend/internal/middleware/security"
	"github.com/mortgage-agent/backend/internal/middleware/validation"
	"github.com/mortgage-agent/backend/internal/query"
	"github.com/mortgage-agent/backend/internal/quota"
	"github.com/mortgage-agent/backend/internal/storage/sqlite"
	"github.com/mortgage-agent/backend/pkg/config"
	appLogger "github.com/mortgage-agent/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Mortgage Agent API Server")

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:          cfg.OpenAI.APIKey,
		Model:           cfg.OpenAI.Model,
		EmbeddingModel:  cfg.OpenAI.EmbeddingModel,
		Temperature:     cfg.OpenAI.Temperature,
		MaxOutputTokens: cfg.OpenAI.MaxOutputTokens,
		TimeoutSec:      cfg.OpenAI.TimeoutSec,
	})
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	metrics.Init()

	processor := ingestion.NewProcessor(sqliteClient, llmClient, ingestion.Config{
		CorpusPath:    cfg.Corpus.RawPath,
		IndexPath:     cfg.Corpus.IndexPath,
		CorpusVersion: cfg.Corpus.Version,
		ChunkSize:     cfg.Retrieval.ChunkSize,
		ChunkOverlap:  cfg.Retrieval.ChunkOverlap,
	})

	// A nil *redis.Client must stay a nil interface, or the retriever's
	// cache checks would pass and then dereference it.
	var embeddingCache query.EmbeddingCache
	if cacheClient != nil {
		embeddingCache = cacheClient
	}
	retriever := query.NewRetriever(sqliteClient, llmClient, embeddingCache, cfg.Corpus.IndexPath, cfg.Retrieval.TopSources, time.Duration(cfg.Redis.TTLSec)*time.Second)
	tracker := quota.NewTracker(sqliteClient, cfg.Limits.HashSalt, cfg.Limits.QuestionsPerDay, cfg.Limits.QuestionsPerSession)

	engine := query.NewEngine(retriever, llmClient, tracker, sqliteClient, cacheClient, query.EngineConfig{
		TopK:              cfg.Retrieval.TopK,
		CharLimit:         cfg.Limits.CharsPerQuestion,
		CitationsRequired: cfg.Grounding.CitationsRequired,
		Strict:            cfg.Grounding.Strict,
		IndexPath:         cfg.Corpus.IndexPath,
		CacheTTLSec:       cfg.Redis.TTLSec,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Admin-Token",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			MaxRequests: cfg.RateLimit.MaxRequests,
			WindowSize:  time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			Logger:      appLogger.GetLogger(),
		})
		defer limiter.Stop()
		app.Use(limiter.Middleware())
	}

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	chatHandler := handlers.NewChatHandler(engine)
	adminHandler := handlers.NewAdminHandler(processor, sqliteClient, cacheClient, cfg.Corpus.IndexPath)
	feedbackHandler := handlers.NewFeedbackHandler(sqliteClient)

	app.Post("/chat", chatHandler.HandleChat)
	app.Post("/feedback", feedbackHandler.HandleFeedback)
	app.Get("/health", adminHandler.HandleHealth)
	app.Get("/metrics", metrics.MetricsHandler())

	if cfg.Admin.Enabled {
		admin := app.Group("/admin", security.AdminAuth(cfg.Admin.Token))
		admin.Post("/ingest", adminHandler.HandleIngest)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
