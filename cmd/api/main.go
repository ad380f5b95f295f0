package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/compliance-rag/backend/internal/api/handlers"
	"github.com/compliance-rag/backend/internal/audit"
	"github.com/compliance-rag/backend/internal/cache/redis"
	"github.com/compliance-rag/backend/internal/compliance"
	"github.com/compliance-rag/backend/internal/ingestion"
	"github.com/compliance-rag/backend/internal/llm"
	"github.com/compliance-rag/backend/internal/metrics"
	"github.com/compliance-rag/backend/internal/middleware/ratelimit"
	"github.com/compliance-rag/backend/internal/middleware/security"
	"github.com/compliance-rag/backend/internal/middleware/validation"
	"github.com/compliance-rag/backend/internal/monitor"
	"github.com/compliance-rag/backend/internal/query"
	"github.com/compliance-rag/backend/internal/storage/sqlite"
	"github.com/compliance-rag/backend/internal/vector/milvus"
	"github.com/compliance-rag/backend/pkg/config"
	appLogger "github.com/compliance-rag/backend/pkg/logger"
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

	appLogger.Info("Starting Compliance RAG API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.CreateCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	auditStore, err := audit.NewStore(cfg.Audit.LogDir)
	if err != nil {
		appLogger.Fatal("Failed to create audit store", zap.Error(err))
	}

	tracker := monitor.NewTracker(cfg.Performance.WindowSize)
	aggregator := compliance.NewAggregator(milvusClient, auditStore)

	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient, redisClient, auditStore)
	queryEngine := query.NewEngine(
		sqliteClient,
		milvusClient,
		llmClient,
		redisClient,
		auditStore,
		tracker,
		time.Duration(cfg.Redis.QueryTTLSec)*time.Second,
		time.Duration(cfg.Redis.EmbedTTLSec)*time.Second,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RateLimit,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxUploadSize: cfg.Server.BodyLimit,
		Logger:        appLogger.GetLogger(),
	}))

	queryHandler := handlers.NewQueryHandler(queryEngine, sqliteClient, auditStore)
	documentHandler := handlers.NewDocumentHandler(processor, sqliteClient)
	riskHandler := handlers.NewRiskHandler(auditStore)
	dashboardHandler := handlers.NewDashboardHandler(aggregator)
	performanceHandler := handlers.NewPerformanceHandler(tracker)
	auditHandler := handlers.NewAuditHandler(auditStore)
	wsHandler := handlers.NewWebSocketHandler(tracker, aggregator)

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)

	api.Post("/documents", documentHandler.UploadDocument)
	api.Get("/documents", documentHandler.ListDocuments)

	api.Post("/risk/transaction", riskHandler.ScoreTransaction)
	api.Post("/risk/query", riskHandler.AnalyzeQuery)
	api.Post("/risk/report", riskHandler.RiskReport)

	api.Get("/dashboard/coverage", dashboardHandler.GetDocumentCoverage)
	api.Get("/dashboard/statistics", dashboardHandler.GetQueryStatistics)
	api.Get("/dashboard/score", dashboardHandler.GetComplianceScore)
	api.Get("/dashboard/alerts", dashboardHandler.GetRecentAlerts)
	api.Get("/dashboard/summary", dashboardHandler.GetSummary)

	api.Get("/performance", performanceHandler.GetSnapshot)
	api.Get("/performance/summary", performanceHandler.GetSummary)

	api.Get("/audit/queries", auditHandler.GetQueryHistory)
	api.Get("/audit/alerts", auditHandler.GetAlerts)
	api.Get("/audit/access", auditHandler.GetAccessLogs)
	api.Get("/audit/documents", auditHandler.GetDocumentLogs)
	api.Get("/audit/statistics", auditHandler.GetStatistics)
	api.Post("/audit/export", auditHandler.ExportTrail)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/dashboard", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

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
