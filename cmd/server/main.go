package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ballotbox/backend/internal/config"
	"github.com/ballotbox/backend/internal/database"
	"github.com/ballotbox/backend/internal/handlers"
	"github.com/ballotbox/backend/internal/security"
	"github.com/ballotbox/backend/internal/services"
	"github.com/ballotbox/backend/internal/storage"
	"github.com/ballotbox/backend/pkg/logger"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger.Init()
	cfg := config.Load()

	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)
	utils.ConfigureEncryption(cfg.JWT.Secret)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		logger.Error("database_connect_failed", err, nil)
		os.Exit(1)
	}

	var storageClient *storage.MinIOClient
	if cfg.MinIO.Enabled {
		storageClient, err = storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			logger.Error("minio_connect_failed", err, nil)
			os.Exit(1)
		}
		if err := storageClient.EnsureBucket(context.Background()); err != nil {
			logger.Error("minio_bucket_failed", err, nil)
			os.Exit(1)
		}
	}

	auditService := services.NewAuditService(db, storageClient, cfg.Audit.QueueSize)
	if storageClient != nil {
		auditService.StartExporter(cfg.Audit.ExportInterval)
	}

	authService := services.NewAuthService(db, auditService, cfg.Login)
	mfaService := services.NewMFAService(db, auditService, cfg.Login.TOTPIssuer)

	// Forgery tokens live in Redis when an address is configured, so
	// multiple instances share one token space. Single-instance deploys
	// fall back to the in-process store.
	var forgeryStore security.ForgeryTokenStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis_connect_failed", err, nil)
			os.Exit(1)
		}
		forgeryStore = security.NewRedisForgeryStore(client, cfg.CSRF.TokenTTL)
		logger.Info("forgery_store", map[string]interface{}{"backend": "redis"})
	} else {
		forgeryStore = security.NewMemoryForgeryStore(cfg.CSRF.TokenTTL)
		logger.Info("forgery_store", map[string]interface{}{"backend": "memory"})
	}

	// Consumed challenge IDs only need to outlive the challenge expiry.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			utils.CleanupExpiredJTIs()
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      "BallotBox API",
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	handlers.Register(app, handlers.Deps{
		DB:             db,
		Auth:           authService,
		MFA:            mfaService,
		Audit:          auditService,
		ForgeryStore:   forgeryStore,
		ForgeryTTL:     cfg.CSRF.TokenTTL,
		AuthRateMax:    20,
		AuthRateWindow: time.Minute,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("server_shutdown_started", nil)
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("server_shutdown_failed", err, nil)
		}
	}()

	logger.Info("server_starting", map[string]interface{}{"port": cfg.Server.Port})
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		logger.Error("server_stopped", err, nil)
		os.Exit(1)
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return utils.Error(c, code, message)
}
