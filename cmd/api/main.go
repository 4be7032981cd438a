package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/agent"
	"github.com/lexgraph/backend/internal/api/handlers"
	cache "github.com/lexgraph/backend/internal/cache/redis"
	"github.com/lexgraph/backend/internal/kg/neo4j"
	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/internal/middleware/ratelimit"
	"github.com/lexgraph/backend/internal/middleware/security"
	"github.com/lexgraph/backend/internal/middleware/validation"
	"github.com/lexgraph/backend/internal/retrieval"
	"github.com/lexgraph/backend/internal/storage/sqlite"
	"github.com/lexgraph/backend/internal/synthesis"
	"github.com/lexgraph/backend/internal/vector/provider"
	"github.com/lexgraph/backend/pkg/config"
	appLogger "github.com/lexgraph/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging, "api")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting LexGraph API Server")
	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	neo4jClient, err := neo4j.NewClient(cfg.Neo4j)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	defer neo4jClient.Close(context.Background())

	if stats, err := neo4jClient.Stats(context.Background()); err != nil {
		appLogger.Warn("Failed to read graph stats", zap.Error(err))
	} else {
		metrics.KGEntitiesTotal.Set(float64(stats.Entities))
		metrics.KGRelationsTotal.Set(float64(stats.Relations))
	}

	vectorStore, err := provider.Open(cfg.Vector)
	if err != nil {
		appLogger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer vectorStore.Close()

	err = vectorStore.EnsureCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	var embedder llm.Embedder = llmClient
	agentOpts := []agent.Option{agent.WithHistory(sqliteClient)}
	checks := []handlers.Check{
		{Name: "sqlite", Ping: sqliteClient.Ping},
		{Name: "neo4j", Ping: neo4jClient.Ping},
	}

	if cfg.Cache.Enabled {
		redisClient, err := cache.NewClient(cfg.Redis)
		if err != nil {
			appLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			embedder = cache.NewCachedEmbedder(llmClient, redisClient, cfg.Cache.EmbeddingTTL())
			agentOpts = append(agentOpts, agent.WithCache(redisClient, cfg.Cache.AnswerTTL()))
			checks = append(checks, handlers.Check{Name: "redis", Ping: redisClient.Ping})
		}
	}

	graphRetriever := retrieval.NewGraphRetriever(llmClient, neo4jClient)
	vectorRetriever := retrieval.NewVectorRetriever(llmClient, embedder, vectorStore, cfg.Retrieval.TopK)
	synthEngine := synthesis.NewEngine(llmClient, cfg.Synthesis)
	lawAgent := agent.New(llmClient, graphRetriever, vectorRetriever, synthEngine, agentOpts...)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RequestsPerMin,
		Logger:               appLogger.Named("ratelimit"),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Client-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		ConnectOrigins: connectOrigins(cfg.Server.AllowOrigins),
	}))

	app.Get("/metrics", metrics.MetricsHandler())

	agentHandler := handlers.NewAgentHandler(lawAgent, sqliteClient)
	retrievalHandler := handlers.NewRetrievalHandler(graphRetriever, vectorRetriever)
	wsHandler := handlers.NewWebSocketHandler(lawAgent, time.Duration(cfg.Server.WriteTimeout)*time.Second)
	healthHandler := handlers.NewHealthHandler(checks...)

	api := app.Group("/api/v1")

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(wsHandler.HandleConnection))

	limited := api.Group("", limiter.Middleware(), validation.Middleware(validation.Config{
		MaxQuestionChars: cfg.Server.MaxQuestionChars,
		Logger:           appLogger.Named("validation"),
	}))

	limited.Post("/agent", agentHandler.Ask)
	limited.Get("/agent/history", agentHandler.History)
	limited.Post("/vector-rag", retrievalHandler.VectorRAG)
	limited.Post("/kg-graph", retrievalHandler.KGGraph)

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
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func connectOrigins(allow string) []string {
	if allow == "" || allow == "*" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(allow, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
