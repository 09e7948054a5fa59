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
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/matrix-ai/backend/internal/analysis"
	"github.com/matrix-ai/backend/internal/api/handlers"
	"github.com/matrix-ai/backend/internal/auth"
	"github.com/matrix-ai/backend/internal/cache/redis"
	"github.com/matrix-ai/backend/internal/events"
	"github.com/matrix-ai/backend/internal/ingest"
	"github.com/matrix-ai/backend/internal/metrics"
	authmw "github.com/matrix-ai/backend/internal/middleware/auth"
	"github.com/matrix-ai/backend/internal/middleware/ratelimit"
	"github.com/matrix-ai/backend/internal/middleware/security"
	"github.com/matrix-ai/backend/internal/middleware/validation"
	"github.com/matrix-ai/backend/internal/nlp"
	"github.com/matrix-ai/backend/internal/storage/modelstore"
	"github.com/matrix-ai/backend/internal/storage/models"
	"github.com/matrix-ai/backend/internal/storage/sqlite"
	"github.com/matrix-ai/backend/pkg/config"
	appLogger "github.com/matrix-ai/backend/pkg/logger"
	"github.com/matrix-ai/backend/pkg/retry"
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

	appLogger.Info("Starting Matrix AI API Server")

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = appLogger.Log

	var sqliteClient *sqlite.Client
	err = retry.Do(context.Background(), retryCfg, func() error {
		var err error
		sqliteClient, err = sqlite.NewClient(cfg.SQLite.Path)
		return err
	})
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		err = retry.Do(context.Background(), retryCfg, func() error {
			var err error
			cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
			return err
		})
		if err != nil {
			appLogger.Warn("Redis unavailable, running without analysis cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	store, err := modelstore.New(cfg.Model.Dir)
	if err != nil {
		appLogger.Fatal("Failed to create model store", zap.Error(err))
	}

	classifier := nlp.NewClassifier(
		store,
		cfg.Analysis.MaxSequenceLength,
		cfg.Analysis.VocabCapacity,
		cfg.Analysis.HighRiskThreshold,
	)

	analyzer := analysis.New(
		classifier,
		cacheClient,
		time.Duration(cfg.Analysis.CacheTTLMinutes)*time.Minute,
	)

	if err := analyzer.Reload(); err != nil {
		appLogger.Warn("Model not loaded at startup, will retry on first request", zap.Error(err))
	}

	eventManager := events.NewManager(sqliteClient)
	wsHandler := handlers.NewWebSocketHandler()
	eventManager.OnCreated(wsHandler.BroadcastEvent)

	authService := auth.NewService(
		sqliteClient,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour,
		cfg.Auth.BcryptCost,
	)

	processor := ingest.NewProcessor(sqliteClient, analyzer, eventManager)

	metrics.Init()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: []string{"*"},
		IsDevelopment:  cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.Log,
	})
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxTextLength: cfg.Analysis.MaxTextLength,
		Logger:        appLogger.Log,
	}))

	authHandler := handlers.NewAuthHandler(authService)
	analyzeHandler := handlers.NewAnalyzeHandler(analyzer, eventManager)
	eventHandler := handlers.NewEventHandler(eventManager)
	modelHandler := handlers.NewModelHandler(classifier, analyzer, cacheClient)
	sourceHandler := handlers.NewSourceHandler(sqliteClient, processor)

	api := app.Group("/api/v1")

	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

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

	app.Get("/metrics", metrics.MetricsHandler())

	authed := api.Group("", authmw.New(authService))

	authed.Get("/auth/me", authHandler.Me)

	authed.Post("/analyze", analyzeHandler.Analyze)

	authed.Get("/events", eventHandler.List)
	authed.Get("/events/stats/summary", eventHandler.Stats)
	authed.Get("/events/:id", eventHandler.Get)
	authed.Put("/events/:id/status",
		authmw.RequireRoles(models.RoleAdmin, models.RoleAnalyst),
		eventHandler.UpdateStatus,
	)

	authed.Get("/sources", sourceHandler.List)
	authed.Post("/sources",
		authmw.RequireRoles(models.RoleAdmin),
		sourceHandler.Create,
	)
	authed.Post("/sources/:id/ingest",
		authmw.RequireRoles(models.RoleAdmin, models.RoleAnalyst),
		sourceHandler.Ingest,
	)

	authed.Get("/model/info", modelHandler.Info)
	authed.Get("/categories", modelHandler.Categories)
	authed.Post("/model/train",
		authmw.RequireRoles(models.RoleAdmin),
		modelHandler.Train,
	)
	authed.Post("/model/evaluate",
		authmw.RequireRoles(models.RoleAdmin),
		modelHandler.Evaluate,
	)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(wsHandler.HandleConnection))

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
